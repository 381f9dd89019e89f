// Package postgres provides a PostgreSQL implementation of
// storage.CredentialStore. It uses pgx/v5 for connection pooling.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cenkalti/backoff/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/authgate/pkg/storage"
)

// Store is a PostgreSQL-backed CredentialStore.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.CredentialStore at compile time.
var _ storage.CredentialStore = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration. The
// initial ping is retried with exponential backoff until ConnectTimeout.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		if err := pool.Ping(ctx); err != nil {
			slog.Debug("database not ready", "error", err)
			return struct{}{}, err
		}
		return struct{}{}, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(cfg.ConnectTimeout),
	)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Lookup returns the enabled credential with the given id.
func (s *Store) Lookup(ctx context.Context, id string) (*storage.Credential, error) {
	var (
		c   storage.Credential
		tos *int32
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, mac_key, algorithm, password_hash, user_id, app_id, scope, tos
		FROM credentials
		WHERE id = $1 AND NOT disabled
	`, id).Scan(&c.ID, &c.Key, &c.Algorithm, &c.PasswordHash, &c.User, &c.App, &c.Scope, &tos)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("querying credential: %w", err)
	}

	if tos != nil {
		v := int(*tos)
		c.TOS = &v
	}
	return &c, nil
}

// Put inserts a credential.
func (s *Store) Put(ctx context.Context, c storage.Credential) error {
	if c.Scope == nil {
		c.Scope = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO credentials (id, mac_key, algorithm, password_hash, user_id, app_id, scope, tos)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.Key, c.AlgorithmOrDefault(), c.PasswordHash, c.User, c.App, c.Scope, c.TOS)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting credential: %w", err)
	}
	return nil
}

// Disable marks a credential as disabled. Lookups no longer return it.
func (s *Store) Disable(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE credentials SET disabled = true WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("disabling credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
