// Package config provides configuration management for the todo
// server.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// Default configuration values.
const (
	DefaultServerPort      = 8080
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultAuthMode        = "none"
	DefaultTLSClientAuth   = "none"
	DefaultStoreBackend    = "memory"
	DefaultSQLitePath      = "todos.db"
	DefaultLocalOwnerID    = "local"
)

// Environment variable names.
const (
	EnvServerPort      = "APP_SERVER_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvAuthMode        = "APP_AUTH_MODE"
	EnvTLSEnabled      = "APP_TLS_ENABLED"
	EnvTLSCertPath     = "APP_TLS_CERT_PATH"
	EnvTLSKeyPath      = "APP_TLS_KEY_PATH"
	EnvTLSCAPath       = "APP_TLS_CA_PATH"
	EnvTLSClientAuth   = "APP_TLS_CLIENT_AUTH"
	EnvBasicAuthUsers  = "APP_BASIC_AUTH_USERS"
	EnvAPIKeys         = "APP_API_KEYS" //nolint:gosec // env var name, not a credential
	EnvStoreBackend    = "APP_STORE_BACKEND"
	EnvSQLitePath      = "APP_SQLITE_PATH"
	EnvPostgresDSN     = "APP_POSTGRES_DSN"
	EnvLocalOwnerID    = "APP_LOCAL_OWNER_ID"
)

// Config holds the application configuration.
type Config struct {
	// Server settings.
	ServerPort      int
	LogLevel        string
	ShutdownTimeout time.Duration
	MetricsEnabled  bool

	// Authentication mode: none, mtls, basic, apikey, multi.
	AuthMode string

	// TLS settings.
	TLSEnabled    bool
	TLSCertPath   string
	TLSKeyPath    string
	TLSCAPath     string
	TLSClientAuth string

	// Basic auth settings (format: "user1:bcrypt_hash,user2:bcrypt_hash").
	BasicAuthUsers string

	// API key settings (format: "key1:owner1,key2:owner2").
	APIKeys string

	// Storage backend: memory, sqlite, postgres.
	StoreBackend string
	SQLitePath   string
	PostgresDSN  string

	// Owner identity used when auth mode is none (the local-only,
	// single-user variant).
	LocalOwnerID string
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidAuthMode        = errors.New(
		"auth mode must be one of: none, mtls, basic, apikey, multi",
	)
	ErrInvalidTLSClientAuth = errors.New(
		"TLS client auth must be one of: none, request, require",
	)
	ErrInvalidTLSCertRequired = errors.New(
		"TLS cert path and key path must be set when TLS is enabled",
	)
	ErrInvalidTLSCARequired = errors.New(
		"TLS CA path must be set when TLS client auth is require",
	)
	ErrInvalidBasicAuthConfig = errors.New(
		"basic auth users must be set when auth mode is basic",
	)
	ErrInvalidAPIKeyConfig = errors.New(
		"API keys must be set when auth mode is apikey",
	)
	ErrInvalidMultiAuthConfig = errors.New(
		"at least one auth config must be provided when auth mode is multi",
	)
	ErrInvalidStoreBackend = errors.New(
		"store backend must be one of: memory, sqlite, postgres",
	)
	ErrInvalidSQLiteConfig = errors.New(
		"sqlite path must be set when store backend is sqlite",
	)
	ErrInvalidPostgresConfig = errors.New(
		"postgres DSN must be set when store backend is postgres",
	)
	ErrInvalidLocalOwner = errors.New(
		"local owner ID must be set when auth mode is none",
	)
)

// Load reads configuration from environment variables with defaults.
// Environment variables have priority over default values.
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:      DefaultServerPort,
		LogLevel:        DefaultLogLevel,
		ShutdownTimeout: DefaultShutdownTimeout,
		MetricsEnabled:  DefaultMetricsEnabled,
		AuthMode:        DefaultAuthMode,
		TLSClientAuth:   DefaultTLSClientAuth,
		StoreBackend:    DefaultStoreBackend,
		SQLitePath:      DefaultSQLitePath,
		LocalOwnerID:    DefaultLocalOwnerID,
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromEnv() error {
	envString(EnvLogLevel, &c.LogLevel)
	envString(EnvAuthMode, &c.AuthMode)
	envString(EnvTLSCertPath, &c.TLSCertPath)
	envString(EnvTLSKeyPath, &c.TLSKeyPath)
	envString(EnvTLSCAPath, &c.TLSCAPath)
	envString(EnvTLSClientAuth, &c.TLSClientAuth)
	envString(EnvBasicAuthUsers, &c.BasicAuthUsers)
	envString(EnvAPIKeys, &c.APIKeys)
	envString(EnvStoreBackend, &c.StoreBackend)
	envString(EnvSQLitePath, &c.SQLitePath)
	envString(EnvPostgresDSN, &c.PostgresDSN)
	envString(EnvLocalOwnerID, &c.LocalOwnerID)

	if err := envInt(EnvServerPort, &c.ServerPort); err != nil {
		return err
	}
	if err := envDuration(EnvShutdownTimeout, &c.ShutdownTimeout); err != nil {
		return err
	}
	if err := envBool(EnvMetricsEnabled, &c.MetricsEnabled); err != nil {
		return err
	}
	return envBool(EnvTLSEnabled, &c.TLSEnabled)
}

// envString overwrites dst when the variable is set and non-empty.
func envString(name string, dst *string) {
	if val := os.Getenv(name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envDuration(name string, dst *time.Duration) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

func envBool(name string, dst *bool) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = b
	return nil
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateAuth(); err != nil {
		return err
	}

	return c.validateStore()
}

func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel) {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	return nil
}

func (c *Config) validateAuth() error {
	if !slices.Contains([]string{"none", "mtls", "basic", "apikey", "multi"}, c.AuthMode) {
		return ErrInvalidAuthMode
	}

	if err := c.validateTLS(); err != nil {
		return err
	}

	switch c.AuthMode {
	case "none":
		if c.LocalOwnerID == "" {
			return ErrInvalidLocalOwner
		}
	case "basic":
		if c.BasicAuthUsers == "" {
			return ErrInvalidBasicAuthConfig
		}
	case "apikey":
		if c.APIKeys == "" {
			return ErrInvalidAPIKeyConfig
		}
	case "multi":
		if c.BasicAuthUsers == "" && c.APIKeys == "" && !c.TLSEnabled {
			return ErrInvalidMultiAuthConfig
		}
	}

	return nil
}

func (c *Config) validateTLS() error {
	if !slices.Contains([]string{"none", "request", "require"}, c.TLSClientAuth) {
		return ErrInvalidTLSClientAuth
	}

	if c.TLSEnabled && (c.TLSCertPath == "" || c.TLSKeyPath == "") {
		return ErrInvalidTLSCertRequired
	}

	if c.TLSClientAuth == "require" && c.TLSCAPath == "" {
		return ErrInvalidTLSCARequired
	}

	return nil
}

func (c *Config) validateStore() error {
	switch c.StoreBackend {
	case "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return ErrInvalidSQLiteConfig
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return ErrInvalidPostgresConfig
		}
	default:
		return ErrInvalidStoreBackend
	}

	return nil
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}
