package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/backoff"
	"github.com/xraph/jobrun/job"
)

// RetryOption configures the Retry middleware.
type RetryOption func(*retryOptions)

type retryOptions struct {
	notify func(ex *job.Execution, attempt int, delay time.Duration, cause error)
}

// OnRetry registers fn to be called before each delay between attempts.
// attempt is the attempt that just failed.
func OnRetry(fn func(ex *job.Execution, attempt int, delay time.Duration, cause error)) RetryOption {
	return func(o *retryOptions) { o.notify = fn }
}

// Retry returns middleware that runs the rest of the pipeline up to
// Retry.MaxRetryCount+1 times, sleeping Retry.Delay(n) after failed attempt
// n. Each attempt is recorded on the instance before it starts.
//
// A fault caused by cancellation of the caller's context ends the loop with
// a canceled outcome. When every attempt fails the last captured fault is
// wrapped into a failure outcome; without a fault the last failing outcome
// is returned. Retry never returns a fault.
func Retry(logger *slog.Logger, opts ...RetryOption) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	var o retryOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(ex *job.Execution, next Handler) (job.Outcome, error) {
		policy := ex.Descriptor().Retry
		attempts := policy.Attempts()
		name := ex.Instance.JobName
		ctx := ex.Context()

		var (
			last    job.Outcome
			lastErr error
		)

		for attempt := 1; attempt <= attempts; attempt++ {
			ex.Instance.SetAttempt(attempt)

			out, err := next(ex)

			var cause error
			switch {
			case err == nil && out.IsSuccess():
				if attempt > 1 {
					logger.Info("job recovered after retry",
						slog.String("job_name", name),
						slog.String("instance_id", ex.Instance.ID.String()),
						slog.Int("attempt", attempt),
					)
				}
				return out.WithRetryCount(attempt - 1), nil

			case err == nil && out.Status() == job.StatusCanceled:
				return out.WithRetryCount(attempt - 1), nil

			case err != nil && isCancellation(err) && ctx.Err() != nil:
				logger.Info("job canceled",
					slog.String("job_name", name),
					slog.String("instance_id", ex.Instance.ID.String()),
					slog.Int("attempt", attempt),
				)
				return canceledDuringRun(ctx, name).WithRetryCount(attempt - 1), nil

			case err != nil:
				lastErr = err
				cause = err

			default:
				last = out
				cause = out.Err()
			}

			if attempt == attempts {
				break
			}

			delay := policy.Delay(attempt)
			logger.Warn("job attempt failed, retrying",
				slog.String("job_name", name),
				slog.String("instance_id", ex.Instance.ID.String()),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", attempts),
				slog.Duration("delay", delay),
				slog.Any("error", cause),
			)
			if o.notify != nil {
				o.notify(ex, attempt, delay, cause)
			}

			if err := backoff.Sleep(ctx, delay); err != nil {
				return canceledDuringRun(ctx, name).WithRetryCount(attempt - 1), nil
			}
		}

		retries := attempts - 1
		switch {
		case lastErr != nil:
			msg := fmt.Sprintf("job %q failed: %v", name, lastErr)
			if retries > 0 {
				msg = fmt.Sprintf("job %q failed after %d retries: %v", name, retries, lastErr)
			}
			return job.Failure(msg, fmt.Errorf("%w: %w", jobrun.ErrMaxRetriesExceeded, lastErr)).
				WithRetryCount(retries), nil
		case !last.IsZero():
			return last.WithRetryCount(retries), nil
		default:
			return job.Failure(fmt.Sprintf("job %q failed without an outcome", name), jobrun.ErrMaxRetriesExceeded).
				WithRetryCount(retries), nil
		}
	}
}

func canceledDuringRun(ctx context.Context, name string) job.Outcome {
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return job.Canceled(fmt.Sprintf("job %q canceled: %v", name, cause))
	}
	return job.Canceled(fmt.Sprintf("job %q canceled", name))
}
