package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"somharvest/pkg/storage"
)

// PassphraseEnv overrides the generated passphrase of the encrypted store
const PassphraseEnv = "SOMHARVEST_PASSPHRASE"

const (
	vaultVersion     = 1
	vaultSaltSize    = 32
	vaultKeySize     = 32
	vaultIterations  = 100000
	passphraseFile   = ".passphrase"
	passphraseLength = 32
)

// sealedVault is the on-disk layout of the encrypted profile file. Payload
// holds the GCM nonce followed by the sealed JSON map of profiles.
type sealedVault struct {
	Version  int       `json:"version"`
	Salt     []byte    `json:"salt"`
	Payload  []byte    `json:"payload"`
	Modified time.Time `json:"modified"`
}

// EncryptedFileStore implements ProfileStore on top of one AES-GCM sealed
// file. The key is derived with PBKDF2 from SOMHARVEST_PASSPHRASE or, when
// that is unset, from a random passphrase saved next to the file.
type EncryptedFileStore struct {
	path       string
	passphrase []byte
	mu         sync.RWMutex
}

// NewEncryptedFileStore prepares an encrypted store at path. The file itself
// is created on the first Store.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := resolvePassphrase(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

// Store adds or replaces a profile
func (e *EncryptedFileStore) Store(profile *Profile) error {
	if profile == nil || profile.Name == "" {
		return ErrInvalidProfile
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	profiles, salt, err := e.open()
	if err != nil {
		return err
	}
	profiles[profile.Name] = *profile
	return e.seal(profiles, salt)
}

// Retrieve returns the named profile
func (e *EncryptedFileStore) Retrieve(name string) (*Profile, error) {
	if name == "" {
		return nil, ErrInvalidProfile
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	profiles, _, err := e.open()
	if err != nil {
		return nil, err
	}
	profile, ok := profiles[name]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return &profile, nil
}

// List returns every stored profile ordered by name
func (e *EncryptedFileStore) List() ([]*Profile, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	profiles, _, err := e.open()
	if err != nil {
		return nil, err
	}

	out := make([]*Profile, 0, len(profiles))
	for name := range profiles {
		p := profiles[name]
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Delete removes a profile. Removing the last one removes the file.
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidProfile
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	profiles, salt, err := e.open()
	if err != nil {
		return err
	}
	if _, ok := profiles[name]; !ok {
		return ErrProfileNotFound
	}
	delete(profiles, name)

	if len(profiles) == 0 {
		return os.Remove(e.path)
	}
	return e.seal(profiles, salt)
}

// Exists reports whether the profile can be read
func (e *EncryptedFileStore) Exists(name string) bool {
	_, err := e.Retrieve(name)
	return err == nil
}

// open reads and decrypts the vault, returning its salt alongside the
// profiles. A missing file is an empty vault with no salt.
func (e *EncryptedFileStore) open() (map[string]Profile, []byte, error) {
	raw, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Profile), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", e.path, err)
	}

	var vault sealedVault
	if err := json.Unmarshal(raw, &vault); err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", e.path, err)
	}
	if vault.Version != vaultVersion {
		return nil, nil, fmt.Errorf("unsupported vault version %d", vault.Version)
	}

	gcm, err := newGCM(e.passphrase, vault.Salt)
	if err != nil {
		return nil, nil, err
	}
	if len(vault.Payload) < gcm.NonceSize() {
		return nil, nil, errors.New("failed to decrypt profiles: payload too short")
	}
	nonce, sealed := vault.Payload[:gcm.NonceSize()], vault.Payload[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt profiles: %w", err)
	}

	profiles := make(map[string]Profile)
	if err := json.Unmarshal(plain, &profiles); err != nil {
		return nil, nil, fmt.Errorf("failed to parse profiles: %w", err)
	}
	return profiles, vault.Salt, nil
}

// seal encrypts profiles and atomically replaces the vault file. The salt of
// an existing vault is kept; a new vault gets a fresh one.
func (e *EncryptedFileStore) seal(profiles map[string]Profile, salt []byte) error {
	if len(salt) == 0 {
		salt = make([]byte, vaultSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(profiles)
	if err != nil {
		return fmt.Errorf("failed to marshal profiles: %w", err)
	}
	gcm, err := newGCM(e.passphrase, salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	content, err := json.MarshalIndent(sealedVault{
		Version:  vaultVersion,
		Salt:     salt,
		Payload:  gcm.Seal(nonce, nonce, plain, nil),
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal vault: %w", err)
	}

	if err := storage.WriteFileAtomic(e.path, content, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", e.path, err)
	}
	return nil
}

func newGCM(passphrase, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(passphrase, salt, vaultIterations, vaultKeySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// resolvePassphrase prefers the environment, then the saved passphrase file,
// and otherwise generates and saves a new one.
func resolvePassphrase(dir string) ([]byte, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return []byte(pass), nil
	}

	path := filepath.Join(dir, passphraseFile)
	if saved, err := os.ReadFile(path); err == nil && len(saved) > 0 {
		return saved, nil
	}

	buf := make([]byte, passphraseLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate passphrase: %w", err)
	}
	pass := []byte(base64.RawURLEncoding.EncodeToString(buf))
	if err := storage.WriteFileAtomic(path, pass, 0600); err != nil {
		return nil, fmt.Errorf("failed to save passphrase: %w", err)
	}
	return pass, nil
}
