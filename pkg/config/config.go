// Package config provides unified configuration for the authgate server.
//
// Configuration is loaded with a layered approach:
//  1. Built-in defaults
//  2. YAML config file (discovered or explicitly specified)
//  3. Environment variable overrides (AUTHGATE_ prefix)
//  4. File reference resolution (_file suffix fields)
//  5. Validation
package config

import (
	"time"

	"github.com/rhuss/authgate/pkg/auth"
	"github.com/rhuss/authgate/pkg/storage"
)

// Config holds all configuration for the authgate server.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Log           LogConfig           `yaml:"log"`
	Auth          AuthConfig          `yaml:"auth"`
	Credentials   CredentialsConfig   `yaml:"credentials"`
	Replay        ReplayConfig        `yaml:"replay"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`             // default: 8080
	ReadTimeout     time.Duration `yaml:"read_timeout"`     // default: 30s
	WriteTimeout    time.Duration `yaml:"write_timeout"`    // default: 60s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"` // default: 10s
}

// LogConfig mirrors debug.Options. AUTHGATE_DEBUG and AUTHGATE_LOG_LEVEL
// take precedence at runtime.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: INFO
	Format string `yaml:"format"` // "text" or "json", default: "text"
	Debug  string `yaml:"debug"`  // comma-separated categories
}

// AuthConfig holds the strategy batch and the routes it protects.
type AuthConfig struct {
	Strategies auth.Batch    `yaml:"strategies"`
	Routes     []RouteConfig `yaml:"routes"`
}

// Route actions.
const (
	ActionEcho   = "echo"
	ActionLogin  = "login"
	ActionLogout = "logout"
)

// RouteConfig declares one protected route.
type RouteConfig struct {
	Method string `yaml:"method"` // default: GET
	Path   string `yaml:"path"`

	// Action selects the handler: echo (default) returns the auth state,
	// login stores the session in the encrypted cookie, logout clears it.
	Action string `yaml:"action"`

	// Auth is nil when the route declares no auth config, in which case
	// the default strategy applies.
	Auth *auth.RouteOptions `yaml:"auth"`
}

// CredentialsConfig selects the credential store.
type CredentialsConfig struct {
	Type     string            `yaml:"type"` // "memory" or "postgres", default: "memory"
	Entries  []CredentialEntry `yaml:"entries"`
	Postgres PostgresConfig    `yaml:"postgres"`
}

// CredentialEntry is a credential provisioned in the config file.
type CredentialEntry struct {
	ID               string   `yaml:"id"`
	Key              string   `yaml:"key"`
	KeyFile          string   `yaml:"key_file"` // _file variant for key
	Algorithm        string   `yaml:"algorithm"`
	PasswordHash     string   `yaml:"password_hash"`
	PasswordHashFile string   `yaml:"password_hash_file"` // _file variant for password_hash
	User             string   `yaml:"user"`
	App              string   `yaml:"app"`
	Scope            []string `yaml:"scope"`
	TOS              *int     `yaml:"tos"`
}

// Credential converts the entry to a store record.
func (e CredentialEntry) Credential() storage.Credential {
	return storage.Credential{
		ID:           e.ID,
		Key:          e.Key,
		Algorithm:    e.Algorithm,
		PasswordHash: e.PasswordHash,
		User:         e.User,
		App:          e.App,
		Scope:        append([]string(nil), e.Scope...),
		TOS:          e.TOS,
	}
}

// PostgresConfig holds PostgreSQL-specific settings.
type PostgresConfig struct {
	DSN            string `yaml:"dsn"`
	DSNFile        string `yaml:"dsn_file"`         // _file variant for dsn
	MaxConns       int32  `yaml:"max_conns"`        // default: 10
	MigrateOnStart bool   `yaml:"migrate_on_start"` // default: false
}

// ReplayConfig selects the nonce cache of the signing strategies.
type ReplayConfig struct {
	Type  string      `yaml:"type"` // "memory" or "redis", default: "memory"
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr         string `yaml:"addr"`
	Password     string `yaml:"password"`
	PasswordFile string `yaml:"password_file"` // _file variant for password
	DB           int    `yaml:"db"`
	KeyPrefix    string `yaml:"key_prefix"`
}

// ObservabilityConfig holds monitoring and instrumentation settings.
type ObservabilityConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig holds Prometheus metrics endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // default: true
	Path    string `yaml:"path"`    // default: "/metrics"
}

// Defaults returns a Config with all default values filled in.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "text",
		},
		Credentials: CredentialsConfig{
			Type: "memory",
			Postgres: PostgresConfig{
				MaxConns: 10,
			},
		},
		Replay: ReplayConfig{
			Type: "memory",
		},
		Observability: ObservabilityConfig{
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}
