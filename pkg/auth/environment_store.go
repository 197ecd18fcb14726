package auth

import (
	"os"
	"time"
)

// EnvProfile is the read-only profile backed by the cookie environment
// variables
const EnvProfile = "env"

// EnvironmentStore implements ProfileStore over SOM_COOKIES, then COOKIES.
// It is read-only.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based profile store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(profile *Profile) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment profile when name is "env"
func (e *EnvironmentStore) Retrieve(name string) (*Profile, error) {
	if name != EnvProfile {
		return nil, ErrProfileNotFound
	}
	cookies := envCookies()
	if cookies == "" {
		return nil, ErrProfileNotFound
	}
	return &Profile{
		Name:         EnvProfile,
		Cookies:      cookies,
		LastModified: time.Now(),
	}, nil
}

// List returns the environment profile if one is set
func (e *EnvironmentStore) List() ([]*Profile, error) {
	profile, err := e.Retrieve(EnvProfile)
	if err != nil {
		return []*Profile{}, nil
	}
	return []*Profile{profile}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment cookies are set
func (e *EnvironmentStore) Exists(name string) bool {
	return name == EnvProfile && envCookies() != ""
}

func envCookies() string {
	if v := os.Getenv("SOM_COOKIES"); v != "" {
		return v
	}
	return os.Getenv("COOKIES")
}
