package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiredFieldMissing(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required config")
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestNew_WithEnvVar(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DatabaseFilePath)
}

func TestNew_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/codex.db
server_port: 8080
database_debug: true
jwt_secret: test-secret-from-file
library_directories:
  - /books
  - /comics
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/codex.db", cfg.DatabaseFilePath)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.True(t, cfg.DatabaseDebug)
	assert.Equal(t, []string{"/books", "/comics"}, cfg.LibraryDirectories)
}

func TestNew_EnvVarOverridesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/from-file.db
server_port: 8080
jwt_secret: test-secret-from-file
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("DATABASE_FILE_PATH", "/data/from-env.db")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := New()
	require.NoError(t, err)
	// Env vars should override config file
	assert.Equal(t, "/data/from-env.db", cfg.DatabaseFilePath)
	assert.Equal(t, 9090, cfg.ServerPort)
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)

	// Check defaults are applied
	assert.Equal(t, "./data/codex.sqlite", cfg.DatabaseFilePath)
	assert.Equal(t, 5, cfg.DatabaseConnectRetryCount)
	assert.Equal(t, 2*time.Second, cfg.DatabaseConnectRetryDelay)
	assert.False(t, cfg.DatabaseDebug)
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 4001, cfg.ServerPort)
	assert.Equal(t, time.Hour, cfg.ScanInterval)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, runtime.NumCPU(), cfg.ScanWorkers)
	assert.Equal(t, 2, cfg.ProviderMaxRetries)
	assert.False(t, cfg.ExternalLookupEnabled)
	assert.Empty(t, cfg.LibraryDirectories)
}

func TestNew_NegativeProviderMaxRetries(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("PROVIDER_MAX_RETRIES", "-1")

	_, err := New()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider_max_retries")
}

func TestNew_ScanInterval(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/codex.db
scan_interval: 30m
jwt_secret: test-secret-key
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, cfg.ScanInterval)
}

func TestNew_ScanIntervalFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("SCAN_INTERVAL", "15m")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, cfg.ScanInterval)
}

func TestNew_LibraryDirectoriesFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("LIBRARY_DIRECTORIES", "/books,/comics")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, []string{"/books", "/comics"}, cfg.LibraryDirectories)
}

func TestNew_UnrelatedEnvVarsIgnored(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("HOSTNAME_SUFFIX", "should-not-apply")

	cfg, err := New()
	require.NoError(t, err)
	assert.NotEqual(t, "should-not-apply", cfg.Hostname)
}

func TestNewForTest(t *testing.T) {
	cfg := NewForTest()
	assert.Equal(t, ":memory:", cfg.DatabaseFilePath)
	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.Equal(t, time.Hour, cfg.ScanInterval)
	assert.False(t, cfg.ExternalLookupEnabled)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestConfigString_RedactsSecrets(t *testing.T) {
	cfg := NewForTest()
	cfg.GoogleBooksAPIKey = "super-secret-api-key"

	out := cfg.String()
	assert.NotContains(t, out, "test-secret-key")
	assert.NotContains(t, out, "super-secret-api-key")
	assert.Contains(t, out, "[redacted]")
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "database_file_path", toSnakeCase("DatabaseFilePath"))
	assert.Equal(t, "server_port", toSnakeCase("ServerPort"))
	assert.Equal(t, "scan_interval", toSnakeCase("ScanInterval"))
}
