package ext

import (
	"context"
	"time"

	"github.com/xraph/jobrun/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// InstanceStarted is called when an instance begins running.
type InstanceStarted interface {
	OnInstanceStarted(ctx context.Context, inst *job.Instance) error
}

// InstanceSucceeded is called after an instance finishes successfully.
type InstanceSucceeded interface {
	OnInstanceSucceeded(ctx context.Context, inst *job.Instance, elapsed time.Duration) error
}

// InstanceFailed is called when an instance fails terminally.
type InstanceFailed interface {
	OnInstanceFailed(ctx context.Context, inst *job.Instance, err error) error
}

// InstanceCanceled is called when an instance ends canceled.
type InstanceCanceled interface {
	OnInstanceCanceled(ctx context.Context, inst *job.Instance, reason string) error
}

// InstanceRetrying is called after a failed attempt, before the delay.
type InstanceRetrying interface {
	OnInstanceRetrying(ctx context.Context, inst *job.Instance, attempt int, delay time.Duration, err error) error
}

// LockContended is called when a run is skipped because the job's lock is
// held elsewhere.
type LockContended interface {
	OnLockContended(ctx context.Context, inst *job.Instance, key string) error
}

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
