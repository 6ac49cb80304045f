package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/job"
)

// Timeout returns middleware that enforces the descriptor's per-attempt
// deadline. A zero or negative Timeout bypasses it.
//
// The rest of the pipeline runs on a derived execution whose context is
// cancelled with cause jobrun.ErrTimeout once the deadline passes. A
// cancellation coming back after that deadline fired becomes a failure
// outcome naming the timeout, even when the caller's context is cancelled
// while the body is still winding down. If the caller's context was
// cancelled first, the fault passes through untouched so Retry can report a cancellation.
// The body must observe ex.Context() for the deadline to take effect.
func Timeout(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ex *job.Execution, next Handler) (job.Outcome, error) {
		d := ex.Descriptor().Timeout
		if d <= 0 {
			return next(ex)
		}

		parent := ex.Context()
		ctx, cancel := context.WithTimeoutCause(parent, d, jobrun.ErrTimeout)
		defer cancel()

		start := time.Now()
		out, err := next(ex.WithContext(ctx))
		if !timedOut(ctx) {
			return out, err
		}

		cause := err
		if cause == nil && !out.IsSuccess() {
			cause = out.Err()
		}
		if cause == nil || !isCancellation(cause) {
			return out, err
		}

		elapsed := time.Since(start)
		logger.Warn("job timed out",
			slog.String("job_name", ex.Instance.JobName),
			slog.String("instance_id", ex.Instance.ID.String()),
			slog.Duration("timeout", d),
			slog.Duration("elapsed", elapsed),
		)
		return job.Failure(
			fmt.Sprintf("job %q exceeded timeout of %s", ex.Instance.JobName, d),
			fmt.Errorf("%w: %w", jobrun.ErrTimeout, cause),
		).WithDuration(elapsed), nil
	}
}

// timedOut reports whether ctx ended because of its own deadline. The
// first cause recorded on ctx wins, so a parent cancelled after the
// deadline fired does not hide the timeout.
func timedOut(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), jobrun.ErrTimeout)
}
