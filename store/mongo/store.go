package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/mongodriver/mongomigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/jobrun/store"
)

// DefaultCollection is the instance collection name.
const DefaultCollection = "jobrun_instances"

var (
	_ store.Store    = (*Store)(nil)
	_ store.Migrator = (*Store)(nil)
)

// Store is a grove ORM implementation of job.Store using the MongoDB driver.
// The caller owns the *grove.DB lifecycle; Store never closes it.
type Store struct {
	db     *grove.DB
	mdb    *mongodriver.MongoDB
	col    string
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

// WithCollection overrides the instance collection name.
func WithCollection(name string) Option {
	return func(s *Store) {
		s.col = name
	}
}

// New creates a new MongoDB store. db must be opened with the grove mongo
// driver.
func New(db *grove.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		mdb:    mongodriver.Unwrap(db),
		col:    DefaultCollection,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *grove.DB for advanced usage.
func (s *Store) DB() *grove.DB {
	return s.db
}

// Migrations returns the migration group that creates the indexes the
// list and prune queries rely on.
func (s *Store) Migrations() *migrate.Group {
	g := migrate.NewGroup("jobrun")
	g.MustRegister(&migrate.Migration{
		Name:    "create_" + s.col + "_indexes",
		Version: "20260301120000",
		Up: func(ctx context.Context, exec migrate.Executor) error {
			me, ok := exec.(*mongomigrate.Executor)
			if !ok {
				return fmt.Errorf("jobrun/mongo: unexpected executor %T", exec)
			}
			return me.CreateIndexes(ctx, s.col, migrationIndexes())
		},
		Down: func(ctx context.Context, exec migrate.Executor) error {
			me, ok := exec.(*mongomigrate.Executor)
			if !ok {
				return fmt.Errorf("jobrun/mongo: unexpected executor %T", exec)
			}
			return me.DB().Collection(s.col).Drop(ctx)
		},
	})
	return g
}

// Migrate applies pending migrations.
func (s *Store) Migrate(ctx context.Context) error {
	res, err := migrate.NewOrchestrator(mongomigrate.New(s.mdb), s.Migrations()).Migrate(ctx)
	if err != nil {
		return fmt.Errorf("jobrun/mongo: migrate %s: %w", s.col, err)
	}
	for _, m := range res.Applied {
		s.logger.Info("applied migration",
			slog.String("version", m.Version),
			slog.String("name", m.Name),
		)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close is a no-op because the caller owns the *grove.DB lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

func migrationIndexes() []mongod.IndexModel {
	return []mongod.IndexModel{
		// List order.
		{Keys: bson.D{
			{Key: "scheduled_at", Value: -1},
			{Key: "_id", Value: -1},
		}},
		// Filters.
		{Keys: bson.D{
			{Key: "job_name", Value: 1},
			{Key: "status", Value: 1},
		}},
		// Prune.
		{
			Keys:    bson.D{{Key: "completed_at", Value: 1}},
			Options: options.Index().SetSparse(true),
		},
	}
}
