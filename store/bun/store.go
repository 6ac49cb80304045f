package bunstore

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrun/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	_ store.Store    = (*Store)(nil)
	_ store.Migrator = (*Store)(nil)
)

// Store keeps instance history in PostgreSQL through a caller-owned *bun.DB.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New wraps db. Close leaves db open.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the wrapped handle.
func (s *Store) DB() *bun.DB {
	return s.db
}

// migrationModel is a row of the jobrun_migrations ledger, which is shared
// with the postgres store so either may create the schema.
type migrationModel struct {
	bun.BaseModel `bun:"table:jobrun_migrations"`

	Filename  string    `bun:"filename,pk"`
	AppliedAt time.Time `bun:"applied_at,notnull"`
}

// Migrate applies the embedded SQL files that the ledger has not seen yet.
// Each file runs in its own transaction together with its ledger row.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*migrationModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobrun/bun: create migrations table: %w", err)
	}

	names, err := migrationFiles()
	if err != nil {
		return fmt.Errorf("jobrun/bun: read migrations: %w", err)
	}

	for _, name := range names {
		applied, err := s.db.NewSelect().
			Model((*migrationModel)(nil)).
			Where("filename = ?", name).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("jobrun/bun: check migration %s: %w", name, err)
		}
		if applied {
			continue
		}

		ddl, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("jobrun/bun: read migration %s: %w", name, err)
		}

		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, string(ddl)); err != nil {
				return err
			}
			_, err := tx.NewInsert().
				Model(&migrationModel{Filename: name, AppliedAt: time.Now().UTC()}).
				Exec(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("jobrun/bun: apply migration %s: %w", name, err)
		}

		s.logger.Info("applied migration", slog.String("file", name))
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op because the caller owns the *bun.DB lifecycle.
func (s *Store) Close() error {
	return nil
}
