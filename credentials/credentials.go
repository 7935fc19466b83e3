// Package credentials stores the backend access token for the viq CLI.
//
// The token lives in ~/.viq/credentials.yaml, encrypted with AES-GCM. The
// encryption key comes from a KeyProvider: VIQ_ENCRYPTION_KEY for CI,
// a passphrase (VIQ_PASSPHRASE) run through Argon2id, or the system keyring.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultCredentialsDir  = ".viq"
	DefaultCredentialsFile = "credentials.yaml"

	// TokenEnvVar overrides the stored token when set.
	TokenEnvVar = "VIQ_TOKEN"
)

var (
	// ErrNoCredentials is returned when no token is stored.
	ErrNoCredentials = errors.New("no credentials stored")
	// ErrExpiredToken is returned when the stored token has expired.
	ErrExpiredToken = errors.New("stored token has expired")
	// ErrEncryptionFailed is returned when encryption/decryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
)

// Credentials is the persisted login state.
type Credentials struct {
	// Token is the bearer access token (encrypted at rest).
	Token string `yaml:"token"`
	// Email is the account the token was issued for.
	Email string `yaml:"email,omitempty"`
	// BaseURL is the backend that issued the token.
	BaseURL string `yaml:"base_url,omitempty"`
	// ExpiresAt is when the token stops being accepted.
	ExpiresAt time.Time `yaml:"expires_at,omitempty"`
	// FromEnv marks a token supplied through VIQ_TOKEN; never persisted.
	FromEnv bool `yaml:"-"`
	// LastUpdated is when the file was last written.
	LastUpdated time.Time `yaml:"last_updated"`
}

// Expired reports whether the token is past its expiry at now.
func (c *Credentials) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Store reads and writes the encrypted credentials file.
type Store struct {
	dir         string
	key         []byte
	keyProvider KeyProvider
	now         func() time.Time
}

// NewStore creates a store using the default key provider.
func NewStore() (*Store, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}

	provider, err := GetDefaultKeyProvider(dir)
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}
	return newStore(dir, provider)
}

// NewStoreWithKeyProvider creates a store with a custom key provider.
func NewStoreWithKeyProvider(provider KeyProvider) (*Store, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}
	return newStore(dir, provider)
}

func newStore(dir string, provider KeyProvider) (*Store, error) {
	key, err := provider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}
	return &Store{dir: dir, key: key, keyProvider: provider, now: time.Now}, nil
}

// KeySource describes where the encryption key is held.
func (s *Store) KeySource() string {
	return s.keyProvider.Description()
}

// CredentialsDir returns the credentials directory path.
// It shares $VIQ_CONFIG_DIR with the config file.
func CredentialsDir() (string, error) {
	if dir := os.Getenv("VIQ_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DefaultCredentialsDir), nil
}

// CredentialsPath returns the full path to the credentials file.
func CredentialsPath() (string, error) {
	dir, err := CredentialsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultCredentialsFile), nil
}

func (s *Store) path() string {
	return filepath.Join(s.dir, DefaultCredentialsFile)
}

// Save encrypts the token and writes the credentials file with 0600 permissions.
func (s *Store) Save(creds *Credentials) error {
	if creds.Token == "" {
		return fmt.Errorf("saving credentials: empty token")
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	stored := *creds
	stored.LastUpdated = s.now()

	sealed, err := seal(s.key, stored.Token)
	if err != nil {
		return fmt.Errorf("encrypting token: %w", err)
	}
	stored.Token = sealed

	data, err := yaml.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.WriteFile(s.path(), data, 0600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}

// Load reads and decrypts the credentials file.
func (s *Store) Load() (*Credentials, error) {
	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoCredentials
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	var creds Credentials
	if err := yaml.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if creds.Token == "" {
		return nil, ErrNoCredentials
	}

	token, err := open(s.key, creds.Token)
	if err != nil {
		return nil, fmt.Errorf("decrypting token: %w", err)
	}
	creds.Token = token
	return &creds, nil
}

// Delete removes the credentials file. A missing file is not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing credentials file: %w", err)
	}
	return nil
}

// Exists checks whether a credentials file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path())
	return err == nil
}

// Active returns the credential every backend command runs with.
// VIQ_TOKEN wins over the file; a stored token past its expiry yields ErrExpiredToken.
func (s *Store) Active() (*Credentials, error) {
	if token := os.Getenv(TokenEnvVar); token != "" {
		return &Credentials{Token: token, ExpiresAt: TokenExpiry(token, time.Time{}), FromEnv: true}, nil
	}

	creds, err := s.Load()
	if err != nil {
		return nil, err
	}
	if creds.Expired(s.now()) {
		return nil, ErrExpiredToken
	}
	return creds, nil
}

// seal encrypts plaintext with AES-GCM and returns nonce||ciphertext in base64.
func seal(key []byte, plaintext string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, []byte(plaintext), nil)), nil
}

// open reverses seal.
func open(key []byte, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	n := gcm.NonceSize()
	if len(data) < n {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}
	plaintext, err := gcm.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncryptionFailed, err)
	}
	return string(plaintext), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}
	return gcm, nil
}

// MaskToken returns the token with only its ends visible.
func MaskToken(token string) string {
	if len(token) <= 20 {
		return strings.Repeat("*", len(token))
	}
	return token[:8] + "..." + token[len(token)-8:]
}

// FormatExpiry formats the time left until expiresAt for display.
func FormatExpiry(expiresAt, now time.Time) string {
	if expiresAt.IsZero() {
		return "never"
	}

	remaining := expiresAt.Sub(now)
	switch {
	case remaining <= 0:
		return "expired"
	case remaining < time.Hour:
		return fmt.Sprintf("%d minutes", int(remaining.Minutes()))
	case remaining < 24*time.Hour:
		return fmt.Sprintf("%d hours", int(remaining.Hours()))
	default:
		return fmt.Sprintf("%d days", int(remaining.Hours()/24))
	}
}
