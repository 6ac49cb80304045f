package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/job"
	"github.com/xraph/jobrun/lock"
)

// LockOption configures the Lock middleware.
type LockOption func(*lockOptions)

type lockOptions struct {
	prefix         string
	ttlMargin      time.Duration
	releaseTimeout time.Duration
	onContended    func(ex *job.Execution, key string)
}

// WithLockKeyPrefix overrides the "job:lock:" key prefix.
func WithLockKeyPrefix(prefix string) LockOption {
	return func(o *lockOptions) { o.prefix = prefix }
}

// WithLockTTLMargin sets how long the lock outlives the job timeout.
func WithLockTTLMargin(d time.Duration) LockOption {
	return func(o *lockOptions) { o.ttlMargin = d }
}

// WithReleaseTimeout bounds each release call.
func WithReleaseTimeout(d time.Duration) LockOption {
	return func(o *lockOptions) { o.releaseTimeout = d }
}

// WithLockConfig applies the lock settings of cfg.
func WithLockConfig(cfg jobrun.Config) LockOption {
	return func(o *lockOptions) {
		if cfg.LockKeyPrefix != "" {
			o.prefix = cfg.LockKeyPrefix
		}
		if cfg.LockTTLMargin > 0 {
			o.ttlMargin = cfg.LockTTLMargin
		}
		if cfg.ReleaseTimeout > 0 {
			o.releaseTimeout = cfg.ReleaseTimeout
		}
	}
}

// OnLockContended registers fn to be called when a run is skipped because
// the lock is held elsewhere.
func OnLockContended(fn func(ex *job.Execution, key string)) LockOption {
	return func(o *lockOptions) { o.onContended = fn }
}

// Lock returns middleware that holds a distributed lock on the job name for
// the rest of the pipeline. Jobs that allow concurrency, and pipelines
// without a provider, bypass it.
//
// Acquisition is tried once. When another holder owns the lock the body is
// not run and a failure outcome wrapping jobrun.ErrLockNotAcquired is
// returned. The lock TTL is the job timeout plus a margin so it does not
// lapse mid-attempt. Release happens on every exit path, on a context that
// survives cancellation of the job; release errors are only logged.
func Lock(provider lock.Provider, logger *slog.Logger, opts ...LockOption) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	o := lockOptions{
		prefix:         lock.DefaultKeyPrefix,
		ttlMargin:      5 * time.Second,
		releaseTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return func(ex *job.Execution, next Handler) (job.Outcome, error) {
		d := ex.Descriptor()
		if provider == nil || d.AllowConcurrent {
			return next(ex)
		}

		name := ex.Instance.JobName
		key := o.prefix + name
		ttl := max(d.Timeout, 0) + o.ttlMargin
		ctx := ex.Context()

		tok, err := provider.TryAcquire(ctx, key, ttl)
		if err != nil {
			if ctx.Err() != nil {
				return job.Canceled(fmt.Sprintf("job %q canceled while acquiring lock", name)), nil
			}
			logger.Error("lock acquisition failed",
				slog.String("job_name", name),
				slog.String("instance_id", ex.Instance.ID.String()),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return job.Failure(
				fmt.Sprintf("could not acquire lock %q for job %q: %v", key, name, err),
				fmt.Errorf("%w: %w", jobrun.ErrLockNotAcquired, err),
			), nil
		}
		if tok == nil {
			logger.Info("job skipped, lock held by another node",
				slog.String("job_name", name),
				slog.String("instance_id", ex.Instance.ID.String()),
				slog.String("key", key),
			)
			if o.onContended != nil {
				o.onContended(ex, key)
			}
			return job.Failure(
				fmt.Sprintf("lock %q unavailable: job %q is already running on another node", key, name),
				jobrun.ErrLockNotAcquired,
			), nil
		}

		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.releaseTimeout)
			defer cancel()
			if err := tok.Release(rctx); err != nil {
				logger.Warn("lock release failed",
					slog.String("job_name", name),
					slog.String("key", key),
					slog.String("error", err.Error()),
				)
			}
		}()

		return next(ex)
	}
}
