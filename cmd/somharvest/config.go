package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"somharvest/pkg/auth"
	"somharvest/pkg/config"
	"somharvest/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage somharvest configuration files.

Configuration is resolved from, highest priority first:
  - Command line flags
  - Environment variables (SOMHARVEST_*, SOM_COOKIES, COOKIES)
  - .env files
  - Configuration file
  - Built-in defaults`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration to a file",
	Long: `Write the built-in configuration, including the default jobs, to the
file given by --config or to ~/.config/somharvest/config.yaml.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Show the configuration after merging every source. Cookie values are masked.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Out, "\nNext steps:")
	fmt.Fprintln(ui.Out, "1. Store a session cookie with 'somharvest cookies set'")
	fmt.Fprintln(ui.Out, "2. Run 'somharvest config validate' after editing the file")
	fmt.Fprintln(ui.Out, "3. Start harvesting with 'somharvest scrape'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Cookies.Seed = auth.MaskCookies(display.Cookies.Seed)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none, using defaults)"
	}
	fmt.Fprintf(ui.Out, "\nConfiguration file: %s\n", source)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if cfg.Cookies.Seed == "" {
		ui.PrintWarning("No cookie seed configured", "a stored profile or an anonymous session will be used")
	}
	if cfg.Runner.Parallel > len(cfg.Jobs) {
		ui.PrintWarning("parallel exceeds the number of jobs", fmt.Sprintf("%d > %d", cfg.Runner.Parallel, len(cfg.Jobs)))
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Fprintln(ui.Out, "\nConfiguration summary:")
	fmt.Fprintf(ui.Out, "  Output directory: %s\n", cfg.Output.Directory)
	fmt.Fprintf(ui.Out, "  Jobs: %d\n", len(cfg.Jobs))
	fmt.Fprintf(ui.Out, "  Parallel: %d\n", cfg.Runner.Parallel)
	fmt.Fprintf(ui.Out, "  Max retries: %d\n", cfg.Retry.MaxRetries)
	fmt.Fprintf(ui.Out, "  Rate limit: %d requests/minute\n", cfg.RateLimit.RequestsPerMinute)
	fmt.Fprintf(ui.Out, "  Log level: %s\n", cfg.Logging.Level)
	return nil
}
