package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/jobrun/job"
)

// Recover returns middleware that recovers from panics further down the
// chain. A panic becomes a fault and is logged with its stack trace.
func Recover(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ex *job.Execution, next Handler) (out job.Outcome, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("job body panicked",
					slog.String("job_name", ex.Instance.JobName),
					slog.String("instance_id", ex.Instance.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				out = job.Outcome{}
				retErr = fmt.Errorf("panic in job %s: %v", ex.Instance.JobName, r)
			}
		}()
		return next(ex)
	}
}
