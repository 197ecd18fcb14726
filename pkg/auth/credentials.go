package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// DefaultProfile is used when no profile name is given
const DefaultProfile = "default"

// Profile is a named cookie header used to seed a fresh harvest
type Profile struct {
	Name         string    `json:"name"`
	Cookies      string    `json:"cookies"`
	LastModified time.Time `json:"last_modified"`
}

// ProfileStore is the interface for storing and retrieving cookie profiles
type ProfileStore interface {
	// Store saves a profile
	Store(profile *Profile) error

	// Retrieve gets the profile with the given name
	Retrieve(name string) (*Profile, error)

	// List returns all stored profiles
	List() ([]*Profile, error)

	// Delete removes a profile
	Delete(name string) error

	// Exists checks if a profile exists
	Exists(name string) bool
}

// Store backends accepted by NewManager
const (
	StoreAuto    = "auto"
	StoreKeyring = "keyring"
	StoreFile    = "file"
)

// Manager handles profile storage with fallback mechanisms
type Manager struct {
	stores []ProfileStore
}

// NewManager creates a profile manager. "auto" tries the system keyring and
// falls back to an encrypted file; "keyring" and "file" force one backend.
// Cookie environment variables are always consulted last, read-only.
func NewManager(backend string) (*Manager, error) {
	var stores []ProfileStore

	switch strings.ToLower(backend) {
	case "", StoreAuto, StoreKeyring:
		keyringStore, err := NewKeyringStore()
		if err == nil {
			stores = append(stores, keyringStore)
		} else if strings.EqualFold(backend, StoreKeyring) {
			return nil, err
		}
		if strings.EqualFold(backend, StoreKeyring) {
			break
		}
		fallthrough
	case StoreFile:
		configDir, err := getConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "cookies.enc"))
		if err != nil {
			return nil, fmt.Errorf("failed to create encrypted store: %w", err)
		}
		stores = append(stores, encryptedStore)
	default:
		return nil, fmt.Errorf("unknown profile store %q", backend)
	}

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over explicit stores, in priority order
func NewManagerWithStores(stores ...ProfileStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves a profile using the first store that accepts it
func (m *Manager) Store(profile *Profile) error {
	if profile.Name == "" {
		profile.Name = DefaultProfile
	}
	profile.Cookies = strings.TrimSpace(profile.Cookies)
	if profile.Cookies == "" {
		return errors.New("cookie header is required")
	}
	if !strings.Contains(profile.Cookies, "=") {
		return fmt.Errorf("%w: expected \"name=value; name2=value2\"", ErrInvalidProfile)
	}

	profile.LastModified = time.Now()

	// Try each store in order
	var lastErr error
	for _, store := range m.stores {
		err := store.Store(profile)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store profile: %w", lastErr)
	}
	return errors.New("no available profile stores")
}

// Retrieve gets a profile from the first store that has it
func (m *Manager) Retrieve(name string) (*Profile, error) {
	if name == "" {
		name = DefaultProfile
	}
	for _, store := range m.stores {
		if profile, err := store.Retrieve(name); err == nil && profile != nil {
			return profile, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrProfileNotFound, name)
}

// Seed returns the cookie header stored under name, "" when there is none
func (m *Manager) Seed(name string) string {
	profile, err := m.Retrieve(name)
	if err != nil {
		return ""
	}
	return profile.Cookies
}

// List returns all profiles from all stores, sorted by name
func (m *Manager) List() ([]*Profile, error) {
	profileMap := make(map[string]*Profile)

	for _, store := range m.stores {
		profiles, err := store.List()
		if err != nil {
			continue
		}
		for _, profile := range profiles {
			// Use the most recently modified version
			if existing, ok := profileMap[profile.Name]; !ok || profile.LastModified.After(existing.LastModified) {
				profileMap[profile.Name] = profile
			}
		}
	}

	result := make([]*Profile, 0, len(profileMap))
	for _, profile := range profileMap {
		result = append(result, profile)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })

	return result, nil
}

// Delete removes a profile from all stores
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultProfile
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrProfileNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete profile: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, name)
	}

	return nil
}

// DeleteAll removes all stored profiles
func (m *Manager) DeleteAll() error {
	profiles, err := m.List()
	if err != nil {
		return err
	}

	for _, profile := range profiles {
		_ = m.Delete(profile.Name) // Ignore individual errors
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "somharvest")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "somharvest")
	default: // Linux and others
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "somharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "somharvest")
		}
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// SanitizeProfile creates a copy of the profile with cookie values masked
func SanitizeProfile(profile *Profile) *Profile {
	if profile == nil {
		return nil
	}

	return &Profile{
		Name:         profile.Name,
		Cookies:      MaskCookies(profile.Cookies),
		LastModified: profile.LastModified,
	}
}

// MaskCookies keeps cookie names and masks their values
func MaskCookies(header string) string {
	var parts []string
	for _, kv := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			continue
		}
		parts = append(parts, name+"="+maskString(value))
	}
	return strings.Join(parts, "; ")
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrProfileNotFound  = errors.New("profile not found")
	ErrInvalidProfile   = errors.New("invalid profile")
	ErrStoreUnavailable = errors.New("profile store unavailable")
)
