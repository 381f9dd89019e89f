package config

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rhuss/authgate/pkg/storage"
)

// Validate checks the configuration for required fields and valid values.
// Returns an error with a descriptive field path on failure.
//
// Strategy settings and route policies are checked when the server builds
// its registry, since that needs the scheme constructors.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 {
		errs = append(errs, fmt.Errorf("server.port must be > 0, got %d", c.Server.Port))
	}

	switch c.Log.Format {
	case "text", "json", "":
	default:
		errs = append(errs, fmt.Errorf("log.format must be \"text\" or \"json\", got %q", c.Log.Format))
	}

	switch c.Credentials.Type {
	case "memory":
	case "postgres":
		if c.Credentials.Postgres.DSN == "" && c.Credentials.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("credentials.postgres.dsn or credentials.postgres.dsn_file is required when credentials.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("credentials.type must be \"memory\" or \"postgres\", got %q", c.Credentials.Type))
	}

	seen := make(map[string]bool, len(c.Credentials.Entries))
	for i, e := range c.Credentials.Entries {
		if e.ID == "" {
			errs = append(errs, fmt.Errorf("credentials.entries[%d].id is required", i))
			continue
		}
		if seen[e.ID] {
			errs = append(errs, fmt.Errorf("credentials.entries[%d]: duplicate id %q", i, e.ID))
		}
		seen[e.ID] = true
		switch e.Algorithm {
		case "", storage.AlgorithmSHA256, storage.AlgorithmSHA1:
		default:
			errs = append(errs, fmt.Errorf("credentials.entries[%d].algorithm must be %q or %q, got %q",
				i, storage.AlgorithmSHA256, storage.AlgorithmSHA1, e.Algorithm))
		}
	}

	switch c.Replay.Type {
	case "memory":
	case "redis":
		if c.Replay.Redis.Addr == "" {
			errs = append(errs, fmt.Errorf("replay.redis.addr is required when replay.type is \"redis\""))
		}
	default:
		errs = append(errs, fmt.Errorf("replay.type must be \"memory\" or \"redis\", got %q", c.Replay.Type))
	}

	routes := make(map[string]bool, len(c.Auth.Routes))
	for i, r := range c.Auth.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			errs = append(errs, fmt.Errorf("auth.routes[%d].path must start with \"/\", got %q", i, r.Path))
		}
		method := r.MethodOrDefault()
		if !validMethod(method) {
			errs = append(errs, fmt.Errorf("auth.routes[%d].method %q is not a valid HTTP method", i, r.Method))
		}
		switch r.Action {
		case "", ActionEcho, ActionLogin, ActionLogout:
		default:
			errs = append(errs, fmt.Errorf("auth.routes[%d].action must be %q, %q or %q, got %q",
				i, ActionEcho, ActionLogin, ActionLogout, r.Action))
		}
		key := method + " " + r.Path
		if routes[key] {
			errs = append(errs, fmt.Errorf("auth.routes[%d]: duplicate route %s", i, key))
		}
		routes[key] = true
	}

	if c.Observability.Metrics.Enabled && !strings.HasPrefix(c.Observability.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("observability.metrics.path must start with \"/\", got %q", c.Observability.Metrics.Path))
	}

	return errors.Join(errs...)
}

// MethodOrDefault returns the upper-cased route method, GET when unset.
func (r RouteConfig) MethodOrDefault() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

func validMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}
