package lock

import (
	"context"
	"time"
)

// DefaultKeyPrefix is prepended to job names to form lock keys.
const DefaultKeyPrefix = "job:lock:"

// Key returns the lock key guarding the named job.
func Key(jobName string) string { return DefaultKeyPrefix + jobName }

// Provider acquires distributed locks.
type Provider interface {
	// TryAcquire makes one attempt to take key for ttl. It returns a nil
	// Token and nil error when the key is held by someone else.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (Token, error)
}

// Token is a held lock.
type Token interface {
	// Key returns the locked key.
	Key() string

	// Owner returns the unique owner value written into the lock.
	Owner() string

	// Release gives the lock up. Calls after the first return nil.
	Release(ctx context.Context) error
}
