package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	JobKindPaginated = "paginated"
	JobKindOneShot   = "oneshot"
)

// Config holds all configuration options for the harvester
type Config struct {
	// HTTP client settings
	HTTP HTTPConfig `yaml:"http" json:"http"`

	// Retry policy for page fetches
	Retry RetryConfig `yaml:"retry" json:"retry"`

	// Optional request pacing
	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`

	// Output settings
	Output OutputConfig `yaml:"output" json:"output"`

	// Initial cookie seed
	Cookies CookiesConfig `yaml:"cookies" json:"cookies"`

	// Job runner settings
	Runner RunnerConfig `yaml:"runner" json:"runner"`

	// Prometheus endpoint
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Harvest targets, run in order
	Jobs []JobConfig `yaml:"jobs" json:"jobs"`
}

// HTTPConfig holds transport settings
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout" json:"timeout"`
	UserAgent string        `yaml:"user_agent" json:"user_agent"`
}

// RetryConfig holds the backoff policy
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries" json:"max_retries"`
	BaseWait   time.Duration `yaml:"base_wait" json:"base_wait"`
	MaxWait    time.Duration `yaml:"max_wait" json:"max_wait"`
	Multiplier float64       `yaml:"multiplier" json:"multiplier"`
}

// RateLimitConfig holds request pacing configuration. Zero disables pacing.
type RateLimitConfig struct {
	RequestsPerMinute int    `yaml:"requests_per_minute" json:"requests_per_minute"`
	Strategy          string `yaml:"strategy" json:"strategy"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	Directory string `yaml:"directory" json:"directory"`
}

// CookiesConfig holds the initial cookie seed and the profile store
type CookiesConfig struct {
	// Seed is a "k=v; k2=v2" header used when no checkpoint exists
	Seed    string `yaml:"seed" json:"seed"`
	Profile string `yaml:"profile" json:"profile"`
	// Store selects where profiles live: auto, keyring or file
	Store string `yaml:"store" json:"store"`
}

// RunnerConfig holds job runner settings
type RunnerConfig struct {
	Parallel int `yaml:"parallel" json:"parallel"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// JobConfig describes one harvest target
type JobConfig struct {
	Name           string   `yaml:"name" json:"name"`
	Kind           string   `yaml:"kind" json:"kind"`
	BaseURL        string   `yaml:"base_url" json:"base_url"`
	RecordsField   string   `yaml:"records_field" json:"records_field"`
	FallbackFields []string `yaml:"fallback_fields,omitempty" json:"fallback_fields,omitempty"`
	UserAgent      string   `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	CheckpointFile string   `yaml:"checkpoint_file,omitempty" json:"checkpoint_file,omitempty"`
	OutputFile     string   `yaml:"output_file" json:"output_file"`
	Disabled       bool     `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// DefaultJobs returns the built-in harvest targets
func DefaultJobs() []JobConfig {
	return []JobConfig{
		{
			Name:           "users",
			Kind:           JobKindPaginated,
			BaseURL:        "https://summer.hackclub.com/api/v1/users?page=",
			RecordsField:   "users",
			UserAgent:      "SoMUsersScraper/1.0 (Pls dont ban)",
			CheckpointFile: "resume.json",
			OutputFile:     "users.json",
		},
		{
			Name:           "projects",
			Kind:           JobKindPaginated,
			BaseURL:        "https://summer.hackclub.com/api/v1/projects?devlogs=true&page=",
			RecordsField:   "projects",
			FallbackFields: []string{"items"},
			UserAgent:      "SoM-Analytics/1.0 (Pls dont ban)",
			CheckpointFile: "projects_resume.json",
			OutputFile:     "projects.json",
		},
		{
			Name:           "shells",
			Kind:           JobKindOneShot,
			BaseURL:        "https://explorpheus.hackclub.com/leaderboard",
			RecordsField:   "entries",
			FallbackFields: []string{"items"},
			UserAgent:      "SoM-Analytics/1.0 (Pls dont ban)",
			OutputFile:     "shells.json",
		},
	}
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "SoM-Analytics/1.0 (Pls dont ban)",
		},
		Retry: RetryConfig{
			MaxRetries: 5,
			BaseWait:   2 * time.Second,
			MaxWait:    60 * time.Second,
			Multiplier: 2.0,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 0,
			Strategy:          "token_bucket",
		},
		Output: OutputConfig{
			Directory: "data/raw",
		},
		Cookies: CookiesConfig{
			Profile: "default",
			Store:   "auto",
		},
		Runner: RunnerConfig{
			Parallel: 1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Jobs: DefaultJobs(),
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	var errs []error

	if v := os.Getenv("SOMHARVEST_OUTPUT_DIR"); v != "" {
		c.Output.Directory = v
	}
	if v := os.Getenv("SOMHARVEST_USER_AGENT"); v != "" {
		c.HTTP.UserAgent = v
	}
	if v := os.Getenv("SOMHARVEST_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SOMHARVEST_LOG_FILE"); v != "" {
		c.Logging.File = v
	}
	if v := os.Getenv("SOMHARVEST_METRICS_ADDR"); v != "" {
		c.Metrics.ListenAddr = v
	}
	if v := os.Getenv("SOMHARVEST_PROFILE"); v != "" {
		c.Cookies.Profile = v
	}
	if err := envInt("SOMHARVEST_MAX_RETRIES", &c.Retry.MaxRetries); err != nil {
		errs = append(errs, err)
	}
	if err := envInt("SOMHARVEST_REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute); err != nil {
		errs = append(errs, err)
	}
	if err := envInt("SOMHARVEST_PARALLEL", &c.Runner.Parallel); err != nil {
		errs = append(errs, err)
	}
	if err := envDuration("SOMHARVEST_TIMEOUT", &c.HTTP.Timeout); err != nil {
		errs = append(errs, err)
	}

	// Cookie variables understood by the original scripts, first one wins.
	for _, name := range []string{"SOM_COOKIES", "COOKIES"} {
		if v := os.Getenv(name); v != "" {
			c.Cookies.Seed = v
			break
		}
	}

	return errors.Join(errs...)
}

func envInt(name string, target *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*target = n
	return nil
}

func envDuration(name string, target *time.Duration) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*target = d
	return nil
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	// If path is empty, try default locations
	if path == "" {
		path = FindConfigFile()
		if path == "" {
			return nil // No config file found, not an error
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// FindConfigFile searches for a config file in the standard locations
func FindConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".somharvest.yaml",
		".somharvest.yml",
	}
	if home != "" {
		locations = append(locations,
			filepath.Join(home, ".config", "somharvest", "config.yaml"),
			filepath.Join(home, ".config", "somharvest", "config.yml"),
		)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// DefaultPath is where "config init" writes when no path is given
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".somharvest.yaml"
	}
	return filepath.Join(home, ".config", "somharvest", "config.yaml")
}

// MaxRetryWait is the ceiling on any single wait between attempts,
// server-requested Retry-After included
const MaxRetryWait = 60 * time.Second

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.HTTP.Timeout <= 0 {
		errs = append(errs, errors.New("http timeout must be positive"))
	}

	if c.Retry.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries cannot be negative"))
	}
	if c.Retry.BaseWait <= 0 {
		errs = append(errs, errors.New("retry base wait must be positive"))
	}
	if c.Retry.MaxWait < c.Retry.BaseWait {
		errs = append(errs, errors.New("retry max wait must not be below base wait"))
	}
	if c.Retry.MaxWait > MaxRetryWait {
		errs = append(errs, fmt.Errorf("retry max wait must not exceed %s", MaxRetryWait))
	}
	if c.Retry.Multiplier < 1 {
		errs = append(errs, errors.New("retry multiplier must be at least 1"))
	}

	if c.RateLimit.RequestsPerMinute < 0 {
		errs = append(errs, errors.New("requests per minute cannot be negative"))
	}
	switch strings.ToLower(c.RateLimit.Strategy) {
	case "", "token_bucket", "sliding_window":
	default:
		errs = append(errs, fmt.Errorf("invalid rate limit strategy %q", c.RateLimit.Strategy))
	}

	if c.Output.Directory == "" {
		errs = append(errs, errors.New("output directory is required"))
	}

	switch strings.ToLower(c.Cookies.Store) {
	case "", "auto", "keyring", "file":
	default:
		errs = append(errs, fmt.Errorf("invalid cookie store %q", c.Cookies.Store))
	}

	if c.Runner.Parallel < 1 {
		errs = append(errs, errors.New("parallel must be at least 1"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(c.Jobs) == 0 {
		errs = append(errs, errors.New("at least one job is required"))
	}
	seen := make(map[string]bool)
	files := make(map[string]string)
	for _, job := range c.Jobs {
		if err := job.validate(); err != nil {
			errs = append(errs, err)
		}
		if seen[job.Name] {
			errs = append(errs, fmt.Errorf("duplicate job name %q", job.Name))
		}
		seen[job.Name] = true
		for _, f := range []string{job.CheckpointFile, job.OutputFile} {
			if f == "" {
				continue
			}
			if other, ok := files[f]; ok && other != job.Name {
				errs = append(errs, fmt.Errorf("jobs %q and %q share file %q", other, job.Name, f))
			}
			files[f] = job.Name
		}
	}

	return errors.Join(errs...)
}

func (j JobConfig) validate() error {
	var errs []error
	if j.Name == "" {
		return errors.New("job name is required")
	}
	if j.BaseURL == "" {
		errs = append(errs, fmt.Errorf("job %q: base_url is required", j.Name))
	}
	if j.RecordsField == "" {
		errs = append(errs, fmt.Errorf("job %q: records_field is required", j.Name))
	}
	if j.OutputFile == "" {
		errs = append(errs, fmt.Errorf("job %q: output_file is required", j.Name))
	}
	switch j.Kind {
	case "", JobKindPaginated:
		if j.CheckpointFile == "" {
			errs = append(errs, fmt.Errorf("job %q: checkpoint_file is required", j.Name))
		}
	case JobKindOneShot:
	default:
		errs = append(errs, fmt.Errorf("job %q: unknown kind %q", j.Name, j.Kind))
	}
	return errors.Join(errs...)
}

// Job returns the configured job with the given name
func (c *Config) Job(name string) (JobConfig, bool) {
	for _, job := range c.Jobs {
		if job.Name == name {
			return job, true
		}
	}
	return JobConfig{}, false
}

// SelectJobs resolves names to jobs in config order. With no names every
// enabled job is returned.
func (c *Config) SelectJobs(names []string) ([]JobConfig, error) {
	if len(names) == 0 {
		var jobs []JobConfig
		for _, job := range c.Jobs {
			if !job.Disabled {
				jobs = append(jobs, job)
			}
		}
		return jobs, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := c.Job(name); !ok {
			return nil, fmt.Errorf("unknown job %q", name)
		}
		wanted[name] = true
	}
	var jobs []JobConfig
	for _, job := range c.Jobs {
		if wanted[job.Name] {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// Create directory if it doesn't exist
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only flags the user actually set should be present in the map.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.Directory = v
	}
	if v, ok := flags["cookies"].(string); ok && v != "" {
		c.Cookies.Seed = v
	}
	if v, ok := flags["profile"].(string); ok && v != "" {
		c.Cookies.Profile = v
	}
	if v, ok := flags["parallel"].(int); ok && v > 0 {
		c.Runner.Parallel = v
	}
	if v, ok := flags["max-retries"].(int); ok && v >= 0 {
		c.Retry.MaxRetries = v
	}
	if v, ok := flags["rpm"].(int); ok && v >= 0 {
		c.RateLimit.RequestsPerMinute = v
	}
	if v, ok := flags["timeout"].(time.Duration); ok && v > 0 {
		c.HTTP.Timeout = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.ListenAddr = v
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["log-file"].(string); ok && v != "" {
		c.Logging.File = v
	}
}

// LoadEnvFiles loads .env files without overriding variables already set
func LoadEnvFiles() {
	_ = godotenv.Load(".env")
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".somharvest.env"))
	}
}

// Load loads configuration from all sources with proper precedence
// Precedence order: Command line flags > Environment variables > .env file > Config file > Defaults
func Load(configPath string, flags map[string]interface{}) (*Config, error) {
	LoadEnvFiles()

	// Start with defaults
	config := DefaultConfig()

	// Load from config file
	if err := config.LoadFromFile(configPath); err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables (includes values from .env)
	if err := config.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Override with command line flags
	config.MergeCommandLineFlags(flags)

	// Validate final configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}
