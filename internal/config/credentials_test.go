package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func unsetAfter(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, os.Unsetenv(key))
	}
	t.Cleanup(func() {
		for _, key := range keys {
			_ = os.Unsetenv(key)
		}
	})
}

func TestResolveCredentialsReadsSiblingDotenv(t *testing.T) {
	unsetAfter(t, "MURMUR_TEST_DOTENV_KEY", "MURMUR_TEST_DOTENV_DSN")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MURMUR_TEST_DOTENV_KEY=from-dotenv\nMURMUR_TEST_DOTENV_DSN=https://k@example.invalid/1\n"), 0o600))

	cfg := Default()
	cfg.Credentials.APIKeyEnv = "MURMUR_TEST_DOTENV_KEY"
	cfg.Diagnostics.SentryDSNEnv = "MURMUR_TEST_DOTENV_DSN"

	warnings, err := ResolveCredentials(&cfg, filepath.Join(dir, "config.jsonc"))
	require.NoError(t, err)
	require.Empty(t, warnings)
	require.Equal(t, "from-dotenv", cfg.Credentials.APIKey)
	require.Equal(t, "https://k@example.invalid/1", cfg.Diagnostics.SentryDSN)
}

func TestResolveCredentialsEnvironmentWinsOverDotenv(t *testing.T) {
	t.Setenv("MURMUR_TEST_PRECEDENCE_KEY", "from-env")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secrets.env"), []byte("MURMUR_TEST_PRECEDENCE_KEY=from-dotenv\n"), 0o600))

	cfg := Default()
	cfg.Credentials.APIKeyEnv = "MURMUR_TEST_PRECEDENCE_KEY"
	cfg.Credentials.DotenvPath = "secrets.env"

	_, err := ResolveCredentials(&cfg, filepath.Join(dir, "config.jsonc"))
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Credentials.APIKey)
}

func TestResolveCredentialsWarnsOnMissingExplicitDotenvAndKey(t *testing.T) {
	unsetAfter(t, "MURMUR_TEST_MISSING_KEY")
	cfg := Default()
	cfg.Credentials.APIKeyEnv = "MURMUR_TEST_MISSING_KEY"
	cfg.Credentials.DotenvPath = filepath.Join(t.TempDir(), "absent.env")

	warnings, err := ResolveCredentials(&cfg, "")
	require.NoError(t, err)
	require.Len(t, warnings, 2)
	require.Contains(t, warnings[0].Message, "absent.env")
	require.Contains(t, warnings[1].Message, "MURMUR_TEST_MISSING_KEY is not set")
	require.Empty(t, cfg.Credentials.APIKey)
}
