// Package postgres implements lock.Provider on a PostgreSQL lease table.
//
// Each lock is a row keyed by lock name holding the owner token and an
// expiry. Acquisition is a single upsert that only overwrites a row whose
// lease has already lapsed, so it is atomic without advisory locks or
// long-lived sessions.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/lock"
)

// DefaultTable is the lease table name used when none is configured.
const DefaultTable = "jobrun_locks"

var _ lock.Provider = (*Provider)(nil)

// Option configures the Provider.
type Option func(*Provider)

// WithLogger sets the logger for the provider.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithTable overrides the lease table name.
func WithTable(name string) Option {
	return func(p *Provider) { p.table = name }
}

// Provider is a PostgreSQL lease-table lock provider.
type Provider struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	table  string
}

// New creates a provider from an existing pool. The caller owns the pool.
func New(pool *pgxpool.Pool, opts ...Option) *Provider {
	p := &Provider{
		pool:   pool,
		logger: slog.Default(),
		table:  DefaultTable,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) ident() string {
	return pgx.Identifier{p.table}.Sanitize()
}

// Migrate creates the lease table if it does not exist.
func (p *Provider) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key         TEXT PRIMARY KEY,
			owner       TEXT NOT NULL,
			acquired_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			expires_at  TIMESTAMPTZ NOT NULL
		)`, p.ident()))
	if err != nil {
		return fmt.Errorf("jobrun/postgres: migrate: %w", err)
	}
	return nil
}

// TryAcquire implements lock.Provider.
func (p *Provider) TryAcquire(ctx context.Context, key string, ttl time.Duration) (lock.Token, error) {
	owner := id.NewLockID().String()

	var got string
	err := p.pool.QueryRow(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (key, owner, acquired_at, expires_at)
		VALUES ($1, $2, NOW(), NOW() + make_interval(secs => $3))
		ON CONFLICT (key) DO UPDATE SET
			owner = EXCLUDED.owner,
			acquired_at = EXCLUDED.acquired_at,
			expires_at = EXCLUDED.expires_at
		WHERE %[1]s.expires_at <= NOW()
		RETURNING owner`, p.ident()),
		key, owner, ttl.Seconds(),
	).Scan(&got)
	if errors.Is(err, pgx.ErrNoRows) {
		p.logger.Debug("lock held elsewhere", slog.String("key", key))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("jobrun/postgres: acquire %q: %w", key, err)
	}
	return &token{p: p, key: key, owner: got}, nil
}

// Owner returns the owner of an unexpired lease on key, or "".
func (p *Provider) Owner(ctx context.Context, key string) (string, error) {
	var owner string
	err := p.pool.QueryRow(ctx, fmt.Sprintf(
		`SELECT owner FROM %s WHERE key = $1 AND expires_at > NOW()`, p.ident()),
		key,
	).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("jobrun/postgres: owner %q: %w", key, err)
	}
	return owner, nil
}

type token struct {
	p        *Provider
	key      string
	owner    string
	mu       sync.Mutex
	released bool
}

func (t *token) Key() string   { return t.key }
func (t *token) Owner() string { return t.owner }

// Release gives the lease back. A failed call leaves the token
// releasable so the caller may retry; once the lease is gone further
// calls return nil.
func (t *token) Release(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil
	}
	tag, err := t.p.pool.Exec(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE key = $1 AND owner = $2`, t.p.ident()),
		t.key, t.owner,
	)
	if err != nil {
		return fmt.Errorf("jobrun/postgres: release %q: %w", t.key, err)
	}
	t.released = true
	if tag.RowsAffected() == 0 {
		return jobrun.ErrLockNotHeld
	}
	return nil
}
