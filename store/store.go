package store

import (
	"context"
	"time"

	"github.com/xraph/jobrun/job"
)

// Store is the full instance history contract every backend in this module
// implements. The engine only needs job.Store; the rest is operational.
type Store interface {
	job.Store
	Pruner

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases resources the store owns.
	Close() error
}

// Pruner deletes terminal instances that completed before a cutoff.
type Pruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Migrator is implemented by backends that need a schema.
type Migrator interface {
	Migrate(ctx context.Context) error
}
