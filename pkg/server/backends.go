package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rhuss/authgate/pkg/auth/schemes"
	"github.com/rhuss/authgate/pkg/config"
	"github.com/rhuss/authgate/pkg/replay"
	replaymemory "github.com/rhuss/authgate/pkg/replay/memory"
	replayredis "github.com/rhuss/authgate/pkg/replay/redis"
	"github.com/rhuss/authgate/pkg/storage"
	"github.com/rhuss/authgate/pkg/storage/memory"
	"github.com/rhuss/authgate/pkg/storage/postgres"
)

// HealthChecker is implemented by backends that can report connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Backends holds the credential store and nonce cache selected by the
// config, together with the hooks to check and release them.
type Backends struct {
	Credentials storage.CredentialStore
	Nonces      replay.NonceCache

	checks  map[string]HealthChecker
	closers []func() error
}

// Deps returns the scheme dependencies backed by b.
func (b *Backends) Deps() schemes.Deps {
	return schemes.Deps{Credentials: b.Credentials, Nonces: b.Nonces}
}

// Checks returns the health checks of the remote backends.
func (b *Backends) Checks() map[string]HealthChecker {
	return b.checks
}

// Close releases every backend. It is safe to call on a partially opened
// Backends.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

// OpenBackends connects the credential store and nonce cache. Credentials
// listed in the config are loaded into the memory store, or inserted into
// postgres when missing there.
func OpenBackends(ctx context.Context, cfg *config.Config) (*Backends, error) {
	b := &Backends{checks: make(map[string]HealthChecker)}

	creds := make([]storage.Credential, 0, len(cfg.Credentials.Entries))
	for _, e := range cfg.Credentials.Entries {
		creds = append(creds, e.Credential())
	}

	switch cfg.Credentials.Type {
	case "postgres":
		pgCfg := cfg.Credentials.Postgres
		store, err := postgres.New(ctx, postgres.Config{
			DSN:            pgCfg.DSN,
			MaxConns:       pgCfg.MaxConns,
			MigrateOnStart: pgCfg.MigrateOnStart,
		})
		if err != nil {
			return nil, fmt.Errorf("opening postgres credential store: %w", err)
		}
		b.Credentials = store
		b.checks["postgres"] = store
		b.closers = append(b.closers, store.Close)

		for _, c := range creds {
			err := store.Put(ctx, c)
			if errors.Is(err, storage.ErrConflict) {
				continue
			}
			if err != nil {
				b.Close()
				return nil, fmt.Errorf("provisioning credential %q: %w", c.ID, err)
			}
		}
		slog.Info("credential store ready", "type", "postgres", "provisioned", len(creds))

	default:
		store, err := memory.New(creds)
		if err != nil {
			return nil, fmt.Errorf("loading credentials: %w", err)
		}
		b.Credentials = store
		slog.Info("credential store ready", "type", "memory", "credentials", store.Len())
	}

	switch cfg.Replay.Type {
	case "redis":
		rc := cfg.Replay.Redis
		cache, err := replayredis.New(ctx, replayredis.Config{
			Addr:      rc.Addr,
			Password:  rc.Password,
			DB:        rc.DB,
			KeyPrefix: rc.KeyPrefix,
		})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connecting nonce cache: %w", err)
		}
		b.Nonces = cache
		b.checks["redis"] = cache
		b.closers = append(b.closers, cache.Close)
		slog.Info("nonce cache ready", "type", "redis", "addr", rc.Addr)

	default:
		b.Nonces = replaymemory.New()
		slog.Info("nonce cache ready", "type", "memory")
	}

	return b, nil
}
