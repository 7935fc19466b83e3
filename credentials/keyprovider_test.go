package credentials

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestEnvKeyProvider_GetKey(t *testing.T) {
	const envVar = "TEST_VIQ_ENCRYPTION_KEY"

	t.Run("valid key", func(t *testing.T) {
		t.Setenv(envVar, testKeyHex)
		key, err := NewEnvKeyProvider(envVar).GetKey()
		require.NoError(t, err)
		want, _ := hex.DecodeString(testKeyHex)
		assert.Equal(t, want, key)
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(envVar, "")
		_, err := NewEnvKeyProvider(envVar).GetKey()
		assert.Error(t, err)
	})

	t.Run("invalid hex", func(t *testing.T) {
		t.Setenv(envVar, "not-valid-hex")
		_, err := NewEnvKeyProvider(envVar).GetKey()
		assert.Error(t, err)
	})

	t.Run("wrong length", func(t *testing.T) {
		t.Setenv(envVar, "0123456789abcdef")
		_, err := NewEnvKeyProvider(envVar).GetKey()
		assert.ErrorContains(t, err, "must be 32 bytes")
	})
}

func TestPassphraseKeyProvider_GetKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1, err := NewPassphraseKeyProvider("correct horse", salt).GetKey()
	require.NoError(t, err)
	assert.Len(t, k1, keyLength)

	k2, err := NewPassphraseKeyProvider("correct horse", salt).GetKey()
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "derivation must be deterministic")

	k3, err := NewPassphraseKeyProvider("battery staple", salt).GetKey()
	require.NoError(t, err)
	assert.False(t, bytes.Equal(k1, k3))

	_, err = NewPassphraseKeyProvider("", salt).GetKey()
	assert.Error(t, err)
	_, err = NewPassphraseKeyProvider("x", nil).GetKey()
	assert.Error(t, err)
}

func TestLoadOrCreateSalt(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateSalt(dir)
	require.NoError(t, err)
	assert.Len(t, first, 16)

	second, err := LoadOrCreateSalt(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestKeyringKeyProvider_MockKeyring(t *testing.T) {
	keyring.MockInit()
	p := NewKeyringKeyProvider()

	k1, err := p.GetKey()
	require.NoError(t, err)
	assert.Len(t, k1, keyLength)

	k2, err := p.GetKey()
	require.NoError(t, err)
	assert.Equal(t, k1, k2, "key must persist in the keyring")

	require.NoError(t, p.Forget())
	k3, err := p.GetKey()
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
	assert.NotEmpty(t, p.Description())
}

func TestGetDefaultKeyProvider(t *testing.T) {
	t.Run("env key", func(t *testing.T) {
		t.Setenv(EncryptionKeyEnvVar, testKeyHex)
		p, err := GetDefaultKeyProvider(t.TempDir())
		require.NoError(t, err)
		assert.IsType(t, &EnvKeyProvider{}, p)
	})

	t.Run("passphrase", func(t *testing.T) {
		t.Setenv(EncryptionKeyEnvVar, "")
		t.Setenv(PassphraseEnvVar, "s3cret")
		p, err := GetDefaultKeyProvider(t.TempDir())
		require.NoError(t, err)
		assert.IsType(t, &PassphraseKeyProvider{}, p)
	})

	t.Run("keyring", func(t *testing.T) {
		keyring.MockInit()
		t.Setenv(EncryptionKeyEnvVar, "")
		t.Setenv(PassphraseEnvVar, "")
		p, err := GetDefaultKeyProvider(t.TempDir())
		require.NoError(t, err)
		assert.IsType(t, &KeyringKeyProvider{}, p)
	})
}
