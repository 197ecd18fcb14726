package auth

import (
	"sort"
	"sync"
)

// MockStore is an in-memory ProfileStore for tests. Setting one of the error
// fields makes the matching operation fail with it.
type MockStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

func NewMockStore() *MockStore {
	return &MockStore{profiles: make(map[string]Profile)}
}

// NewMockManager returns a Manager backed by a single MockStore
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}

func (m *MockStore) Store(profile *Profile) error {
	switch {
	case m.StoreError != nil:
		return m.StoreError
	case profile == nil || profile.Name == "":
		return ErrInvalidProfile
	}

	m.mu.Lock()
	m.profiles[profile.Name] = *profile
	m.mu.Unlock()
	return nil
}

func (m *MockStore) Retrieve(name string) (*Profile, error) {
	switch {
	case m.RetrieveError != nil:
		return nil, m.RetrieveError
	case name == "":
		return nil, ErrInvalidProfile
	}

	m.mu.RLock()
	p, ok := m.profiles[name]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &p, nil
}

func (m *MockStore) List() ([]*Profile, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Profile, 0, len(m.profiles))
	for name := range m.profiles {
		p := m.profiles[name]
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MockStore) Delete(name string) error {
	switch {
	case m.DeleteError != nil:
		return m.DeleteError
	case name == "":
		return ErrInvalidProfile
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[name]; !ok {
		return ErrProfileNotFound
	}
	delete(m.profiles, name)
	return nil
}

func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.profiles[name]
	return ok
}

// Count is the number of stored profiles
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}
