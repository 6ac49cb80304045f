package middleware

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"

	"github.com/xraph/jobrun/job"
)

// Throttle returns middleware that rate limits runs per job name with a
// token bucket of the given rate and burst. A run waits for a token while
// observing its context; cancellation while waiting yields a canceled
// outcome and the body is not run.
func Throttle(limit rate.Limit, burst int, logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	if burst < 1 {
		burst = 1
	}

	var mu sync.Mutex
	limiters := make(map[string]*rate.Limiter)
	limiterFor := func(name string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[name]
		if !ok {
			l = rate.NewLimiter(limit, burst)
			limiters[name] = l
		}
		return l
	}

	return func(ex *job.Execution, next Handler) (job.Outcome, error) {
		name := ex.Instance.JobName
		ctx := ex.Context()

		if err := limiterFor(name).Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return job.Canceled(fmt.Sprintf("job %q canceled while throttled", name)), nil
			}
			// Wait fails early when the deadline would pass before a token.
			logger.Warn("job throttled",
				slog.String("job_name", name),
				slog.String("instance_id", ex.Instance.ID.String()),
				slog.String("error", err.Error()),
			)
			return job.Failure(fmt.Sprintf("job %q throttled: %v", name, err), err), nil
		}
		return next(ex)
	}
}
