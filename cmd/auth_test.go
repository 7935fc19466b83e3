package cmd

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voiceiq/viq-cli/client"
	"github.com/voiceiq/viq-cli/credentials"
)

func TestAuthLogin(t *testing.T) {
	te := newTestEnv(t)
	te.deps.In = strings.NewReader("ann@example.com\n")

	out, err := execute(NewAuthCommand(te.deps), "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Email: ")
	assert.Contains(t, out, "Login successful!")
	assert.Contains(t, out, "ann@example.com")
	assert.NotContains(t, out, testAccessToken)

	store, err := credentials.NewStore()
	require.NoError(t, err)
	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, testAccessToken, creds.Token)
	assert.Equal(t, "ann@example.com", creds.Email)
	assert.Equal(t, te.cfg.BaseURL, creds.BaseURL)
	assert.WithinDuration(t, time.Now().Add(credentials.DefaultTokenLifetime), creds.ExpiresAt, time.Minute)
}

func TestAuthLoginPasswordStdin(t *testing.T) {
	te := newTestEnv(t)
	te.deps.In = strings.NewReader(testPassword + "\n")
	te.deps.ReadPassword = func(string) (string, error) {
		return "", errors.New("terminal prompt must not be used")
	}

	_, err := execute(NewAuthCommand(te.deps), "login", "--email", "ann@example.com", "--password-stdin")
	require.NoError(t, err)

	store, err := credentials.NewStore()
	require.NoError(t, err)
	assert.True(t, store.Exists())
}

func TestAuthLoginInvalidKeepsStoredToken(t *testing.T) {
	te := newTestEnv(t)

	store, err := credentials.NewStore()
	require.NoError(t, err)
	require.NoError(t, store.Save(&credentials.Credentials{Token: "previous-token-abcdefghijkl", Email: "old@example.com"}))

	te.deps.ReadPassword = func(string) (string, error) { return "wrong", nil }
	_, err = execute(NewAuthCommand(te.deps), "login", "--email", "ann@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrInvalidLogin)
	assert.Equal(t, "Invalid email or password.", err.Error())

	creds, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "previous-token-abcdefghijkl", creds.Token)
}

func TestAuthLoginRequiresEmailAndPassword(t *testing.T) {
	te := newTestEnv(t)
	te.deps.ReadPassword = func(string) (string, error) { return "", nil }

	_, err := execute(NewAuthCommand(te.deps), "login", "--email", "ann@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email and password are required")
}

func TestAuthLogout(t *testing.T) {
	te := newTestEnv(t)

	out, err := execute(NewAuthCommand(te.deps), "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "No stored credentials found.")

	store, err := credentials.NewStore()
	require.NoError(t, err)
	require.NoError(t, store.Save(&credentials.Credentials{Token: testAccessToken}))

	out, err = execute(NewAuthCommand(te.deps), "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out successfully.")
	assert.False(t, store.Exists())
}

func TestAuthLogoutWarnsAboutEnvToken(t *testing.T) {
	te := newTestEnv(t)
	t.Setenv(credentials.TokenEnvVar, "env-token")

	out, err := execute(NewAuthCommand(te.deps), "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "VIQ_TOKEN environment variable is still set")
}

func TestAuthStatus(t *testing.T) {
	t.Run("not logged in", func(t *testing.T) {
		te := newTestEnv(t)
		out, err := execute(NewAuthCommand(te.deps), "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Not logged in.")
	})

	t.Run("stored credentials", func(t *testing.T) {
		te := newTestEnv(t)
		store, err := credentials.NewStore()
		require.NoError(t, err)
		require.NoError(t, store.Save(&credentials.Credentials{
			Token:     testAccessToken,
			Email:     "ann@example.com",
			BaseURL:   te.cfg.BaseURL,
			ExpiresAt: time.Now().Add(48 * time.Hour),
		}))

		out, err := execute(NewAuthCommand(te.deps), "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Source:  Stored credentials")
		assert.Contains(t, out, "Account: ann@example.com")
		assert.Contains(t, out, credentials.MaskToken(testAccessToken))
		assert.Contains(t, out, "Environment variable (VIQ_ENCRYPTION_KEY)")
		assert.NotContains(t, out, "expires soon")
	})

	t.Run("expired", func(t *testing.T) {
		te := newTestEnv(t)
		store, err := credentials.NewStore()
		require.NoError(t, err)
		require.NoError(t, store.Save(&credentials.Credentials{
			Token:     testAccessToken,
			ExpiresAt: time.Now().Add(-time.Hour),
		}))

		out, err := execute(NewAuthCommand(te.deps), "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Stored token has expired.")
	})

	t.Run("environment token", func(t *testing.T) {
		te := newTestEnv(t)
		t.Setenv(credentials.TokenEnvVar, "env-token-0123456789abcdef")

		out, err := execute(NewAuthCommand(te.deps), "status")
		require.NoError(t, err)
		assert.Contains(t, out, "Environment variable (VIQ_TOKEN)")
		assert.NotContains(t, out, "Key:")
	})
}
