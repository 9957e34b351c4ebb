package config

import (
	"fmt"
	"os"
	"reflect"
	"runtime"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

// Config holds all runtime configuration. Values are resolved in layers:
// built-in defaults, then an optional YAML config file, then environment
// variables (highest precedence). Env var names are the SCREAMING_SNAKE form
// of the koanf key, e.g. DATABASE_FILE_PATH or SCAN_INTERVAL.
type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries"`
	ExternalLookupEnabled     bool          `koanf:"external_lookup_enabled"`
	GoogleBooksAPIKey         string        `koanf:"google_books_api_key"`
	Hostname                  string        `koanf:"hostname"`
	JWTSecret                 string        `koanf:"jwt_secret"`
	LibraryDirectories        []string      `koanf:"library_directories"`
	ProviderConcurrency       int           `koanf:"provider_concurrency"`
	ProviderMaxRetries        int           `koanf:"provider_max_retries"`
	ProviderTimeout           time.Duration `koanf:"provider_timeout"`
	ScanInitialDelay          time.Duration `koanf:"scan_initial_delay"`
	ScanInterval              time.Duration `koanf:"scan_interval"`
	ScanWorkers               int           `koanf:"scan_workers"`
	ServerHost                string        `koanf:"server_host"`
	ServerPort                int           `koanf:"server_port"`
	SessionTTL                time.Duration `koanf:"session_ttl"`
}

const configFileENV = "CONFIG_FILE"

// New loads the configuration. The config file path is taken from the
// CONFIG_FILE env var and defaults to ./config.yaml; a missing file is fine.
func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseFilePath:          "./data/codex.sqlite",
		DatabaseMaxRetries:        3,
		Hostname:                  hostname,
		ProviderConcurrency:       2,
		ProviderMaxRetries:        2,
		ProviderTimeout:           10 * time.Second,
		ScanInitialDelay:          10 * time.Second,
		ScanInterval:              time.Hour,
		ScanWorkers:               runtime.NumCPU(),
		ServerHost:                "0.0.0.0",
		ServerPort:                4001,
		SessionTTL:                24 * time.Hour,
	}

	k := koanf.New(".")

	configFile := os.Getenv(configFileENV)
	if configFile == "" {
		configFile = "./config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "failed to load config file %s", configFile)
		}
	}

	// Env vars override the file. Only names that map to known config keys
	// are considered so that unrelated vars (PATH, HOME, ...) never leak in.
	known := knownKeys()
	err = k.Load(env.Provider("", ".", func(name string) string {
		key := toSnakeCase(name)
		if _, ok := known[key]; !ok {
			return ""
		}
		return key
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load env config")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// NewForTest returns a config suitable for unit tests: in-memory database,
// loopback host, external lookups disabled.
func NewForTest() *Config {
	return &Config{
		DatabaseBusyTimeout:       time.Second,
		DatabaseConnectRetryCount: 1,
		DatabaseConnectRetryDelay: 10 * time.Millisecond,
		DatabaseFilePath:          ":memory:",
		DatabaseMaxRetries:        1,
		Hostname:                  "test",
		JWTSecret:                 "test-secret-key",
		ProviderConcurrency:       2,
		ProviderMaxRetries:        0,
		ProviderTimeout:           time.Second,
		ScanInitialDelay:          time.Millisecond,
		ScanInterval:              time.Hour,
		ScanWorkers:               1,
		ServerHost:                "127.0.0.1",
		SessionTTL:                24 * time.Hour,
	}
}

// validate enforces required values. The session signing secret has no safe
// default, so starting without one is an error.
func (cfg *Config) validate() error {
	var missing []string
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET (jwt_secret)")
	}
	if cfg.DatabaseFilePath == "" {
		missing = append(missing, "DATABASE_FILE_PATH (database_file_path)")
	}
	if len(missing) > 0 {
		return errors.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if cfg.ServerPort < 0 || cfg.ServerPort > 65535 {
		return errors.Errorf("invalid server_port: %d", cfg.ServerPort)
	}
	if cfg.ProviderMaxRetries < 0 {
		return errors.Errorf("invalid provider_max_retries: %d", cfg.ProviderMaxRetries)
	}
	return nil
}

func knownKeys() map[string]struct{} {
	keys := make(map[string]struct{})
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("koanf")
		if tag != "" {
			keys[tag] = struct{}{}
		}
	}
	return keys
}

func toSnakeCase(name string) string {
	return strcase.ToSnake(name)
}

// String renders the config for startup logging with secrets redacted.
func (cfg *Config) String() string {
	redacted := *cfg
	if redacted.JWTSecret != "" {
		redacted.JWTSecret = "[redacted]"
	}
	if redacted.GoogleBooksAPIKey != "" {
		redacted.GoogleBooksAPIKey = "[redacted]"
	}
	return fmt.Sprintf("%+v", redacted)
}
