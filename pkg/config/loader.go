package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rhuss/authgate/pkg/debug"
)

// Load loads configuration from a layered set of sources.
//
// The loading order is:
//  1. Built-in defaults
//  2. YAML config file (explicit path, AUTHGATE_CONFIG env, ./config.yaml, /etc/authgate/config.yaml)
//  3. Environment variable overrides
//  4. File reference resolution (_file suffix)
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	filePath := discoverConfigFile(configPath)
	if filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
		debug.Log("config", "config file loaded", "path", filePath)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

// discoverConfigFile finds the config file path using the discovery order:
// 1. Explicit configPath argument
// 2. AUTHGATE_CONFIG environment variable
// 3. ./config.yaml in the current directory
// 4. /etc/authgate/config.yaml
//
// Returns empty string if no config file is found.
func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}

	if envPath := os.Getenv("AUTHGATE_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"config.yaml",
		"/etc/authgate/config.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadYAMLFile reads and parses a YAML file into the Config struct.
// Fields not present in the YAML retain their current (default) values.
func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// applyEnvOverrides maps AUTHGATE_* environment variables to config fields.
// Malformed numeric values are ignored; a malformed AUTHGATE_CREDENTIALS is
// an error because silently dropping credentials locks clients out.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("AUTHGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("AUTHGATE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("AUTHGATE_CREDENTIALS_TYPE"); v != "" {
		cfg.Credentials.Type = v
	}
	if v := os.Getenv("AUTHGATE_POSTGRES_DSN"); v != "" {
		cfg.Credentials.Postgres.DSN = v
	}
	if v := os.Getenv("AUTHGATE_REPLAY_TYPE"); v != "" {
		cfg.Replay.Type = v
	}
	if v := os.Getenv("AUTHGATE_REDIS_ADDR"); v != "" {
		cfg.Replay.Redis.Addr = v
	}
	if v := os.Getenv("AUTHGATE_REDIS_PASSWORD"); v != "" {
		cfg.Replay.Redis.Password = v
	}
	if v := os.Getenv("AUTHGATE_METRICS_ENABLED"); v != "" {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Observability.Metrics.Enabled = enabled
		}
	}

	// AUTHGATE_CREDENTIALS: JSON array of credential entries.
	if v := os.Getenv("AUTHGATE_CREDENTIALS"); v != "" {
		entries, err := parseCredentialsJSON(v)
		if err != nil {
			return err
		}
		cfg.Credentials.Entries = entries
	}
	return nil
}

// parseCredentialsJSON parses a JSON array of credential entries. JSON is
// a subset of YAML, so the entries use the same field names as the file.
func parseCredentialsJSON(jsonStr string) ([]CredentialEntry, error) {
	var entries []CredentialEntry
	if err := yaml.Unmarshal([]byte(jsonStr), &entries); err != nil {
		return nil, fmt.Errorf("parsing AUTHGATE_CREDENTIALS: %w", err)
	}
	return entries, nil
}

// resolveFileReferences reads _file fields and populates the corresponding value fields.
// For each field ending in _file, if the value field is empty and the file field is set,
// the file is read, whitespace is trimmed, and the value field is populated.
func resolveFileReferences(cfg *Config) error {
	// credentials.postgres.dsn_file -> credentials.postgres.dsn
	if cfg.Credentials.Postgres.DSNFile != "" && cfg.Credentials.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Credentials.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("credentials.postgres.dsn_file: %w", err)
		}
		cfg.Credentials.Postgres.DSN = val
	}

	// replay.redis.password_file -> replay.redis.password
	if cfg.Replay.Redis.PasswordFile != "" && cfg.Replay.Redis.Password == "" {
		val, err := readSecretFile(cfg.Replay.Redis.PasswordFile)
		if err != nil {
			return fmt.Errorf("replay.redis.password_file: %w", err)
		}
		cfg.Replay.Redis.Password = val
	}

	// credentials.entries[*].key_file -> credentials.entries[*].key
	// credentials.entries[*].password_hash_file -> credentials.entries[*].password_hash
	for i := range cfg.Credentials.Entries {
		e := &cfg.Credentials.Entries[i]
		if e.KeyFile != "" && e.Key == "" {
			val, err := readSecretFile(e.KeyFile)
			if err != nil {
				return fmt.Errorf("credentials.entries[%d].key_file: %w", i, err)
			}
			e.Key = val
		}
		if e.PasswordHashFile != "" && e.PasswordHash == "" {
			val, err := readSecretFile(e.PasswordHashFile)
			if err != nil {
				return fmt.Errorf("credentials.entries[%d].password_hash_file: %w", i, err)
			}
			e.PasswordHash = val
		}
	}

	return nil
}

// readSecretFile reads a file and returns its content with surrounding whitespace trimmed.
func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
