package credentials

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/argon2"
)

const (
	keyringService = "viq-cli"
	keyringUser    = "credentials-key"
	keyLength      = 32 // AES-256

	// EncryptionKeyEnvVar holds a hex-encoded 32-byte key for CI.
	EncryptionKeyEnvVar = "VIQ_ENCRYPTION_KEY"
	// PassphraseEnvVar selects the passphrase-derived key.
	PassphraseEnvVar = "VIQ_PASSPHRASE"

	saltFile = "credentials.salt"
)

// Argon2id parameters for passphrase-based key derivation.
const (
	argon2Time    = 1
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4
)

// ErrKeyringUnavailable indicates the system keyring is not available.
var ErrKeyringUnavailable = errors.New("system keyring unavailable")

// KeyProvider supplies the 32-byte credentials encryption key.
type KeyProvider interface {
	// GetKey returns the key, creating one if the backing store is empty.
	GetKey() ([]byte, error)
	// Description names the key storage for `viq auth status`.
	Description() string
}

// KeyringKeyProvider keeps the key in the OS keyring.
type KeyringKeyProvider struct {
	mu sync.Mutex
}

// NewKeyringKeyProvider creates a new KeyringKeyProvider.
func NewKeyringKeyProvider() *KeyringKeyProvider {
	return &KeyringKeyProvider{}
}

// GetKey loads the key from the keyring, generating and storing one on first use.
func (p *KeyringKeyProvider) GetKey() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stored, err := keyring.Get(keyringService, keyringUser)
	switch {
	case err == nil:
		if key, decErr := hex.DecodeString(stored); decErr == nil && len(key) == keyLength {
			return key, nil
		}
		// Corrupt entry: replace it.
	case !errors.Is(err, keyring.ErrNotFound):
		return nil, fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}

	key := make([]byte, keyLength)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating random key: %w", err)
	}
	if err := keyring.Set(keyringService, keyringUser, hex.EncodeToString(key)); err != nil {
		return nil, fmt.Errorf("%w: storing key: %v", ErrKeyringUnavailable, err)
	}
	return key, nil
}

// Forget removes the key from the keyring. Stored credentials become unreadable.
func (p *KeyringKeyProvider) Forget() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := keyring.Delete(keyringService, keyringUser); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return nil
}

// Description returns a description of this key provider.
func (p *KeyringKeyProvider) Description() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "System Keyring (Secret Service)"
	}
}

// PassphraseKeyProvider derives the key from a passphrase with Argon2id.
type PassphraseKeyProvider struct {
	passphrase string
	salt       []byte
}

// NewPassphraseKeyProvider creates a provider; the salt is stored next to the credentials.
func NewPassphraseKeyProvider(passphrase string, salt []byte) *PassphraseKeyProvider {
	return &PassphraseKeyProvider{passphrase: passphrase, salt: salt}
}

// GetKey derives the key.
func (p *PassphraseKeyProvider) GetKey() ([]byte, error) {
	if p.passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if len(p.salt) == 0 {
		return nil, errors.New("salt is required")
	}
	return argon2.IDKey([]byte(p.passphrase), p.salt, argon2Time, argon2Memory, argon2Threads, keyLength), nil
}

// Description returns a description of this key provider.
func (p *PassphraseKeyProvider) Description() string {
	return "Passphrase-derived key (Argon2id)"
}

// GenerateSalt returns 16 random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	return salt, nil
}

// LoadOrCreateSalt reads the passphrase salt from dir, creating it on first use.
func LoadOrCreateSalt(dir string) ([]byte, error) {
	path := filepath.Join(dir, saltFile)
	if data, err := os.ReadFile(path); err == nil {
		salt, decErr := hex.DecodeString(string(data))
		if decErr != nil || len(salt) == 0 {
			return nil, fmt.Errorf("invalid salt file %s", path)
		}
		return salt, nil
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading salt: %w", err)
	}

	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating credentials directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(salt)), 0600); err != nil {
		return nil, fmt.Errorf("writing salt: %w", err)
	}
	return salt, nil
}

// EnvKeyProvider reads a hex key from an environment variable.
type EnvKeyProvider struct {
	envVar string
}

// NewEnvKeyProvider creates a new EnvKeyProvider that reads the key from the given env var.
func NewEnvKeyProvider(envVar string) *EnvKeyProvider {
	return &EnvKeyProvider{envVar: envVar}
}

// GetKey returns the key from the environment variable.
func (p *EnvKeyProvider) GetKey() ([]byte, error) {
	keyHex := os.Getenv(p.envVar)
	if keyHex == "" {
		return nil, fmt.Errorf("environment variable %s not set", p.envVar)
	}

	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid key in %s: %w", p.envVar, err)
	}
	if len(key) != keyLength {
		return nil, fmt.Errorf("key in %s must be %d bytes, got %d", p.envVar, keyLength, len(key))
	}
	return key, nil
}

// Description returns a description of this key provider.
func (p *EnvKeyProvider) Description() string {
	return fmt.Sprintf("Environment variable (%s)", p.envVar)
}

// GetDefaultKeyProvider picks the key source for the current environment:
// VIQ_ENCRYPTION_KEY, then VIQ_PASSPHRASE (salt kept in dir), then the keyring.
func GetDefaultKeyProvider(dir string) (KeyProvider, error) {
	if os.Getenv(EncryptionKeyEnvVar) != "" {
		return NewEnvKeyProvider(EncryptionKeyEnvVar), nil
	}

	if passphrase := os.Getenv(PassphraseEnvVar); passphrase != "" {
		salt, err := LoadOrCreateSalt(dir)
		if err != nil {
			return nil, err
		}
		return NewPassphraseKeyProvider(passphrase, salt), nil
	}

	provider := NewKeyringKeyProvider()
	if _, err := provider.GetKey(); err != nil {
		if errors.Is(err, ErrKeyringUnavailable) {
			return nil, fmt.Errorf("system keyring unavailable; set %s or %s: %w", EncryptionKeyEnvVar, PassphraseEnvVar, err)
		}
		return nil, err
	}
	return provider, nil
}
