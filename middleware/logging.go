package middleware

import (
	"log/slog"
	"time"

	"github.com/xraph/jobrun/job"
)

// Logging returns middleware that logs job start and completion. It never
// alters the outcome, and a fault is logged and returned unchanged.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ex *job.Execution, next Handler) (job.Outcome, error) {
		start := time.Now()
		attrs := []any{
			slog.String("job_name", ex.Instance.JobName),
			slog.String("instance_id", ex.Instance.ID.String()),
			slog.String("trace_id", ex.TraceID),
		}

		logger.Info("job started", append(attrs, slog.Time("started_at", start))...)

		out, err := next(ex)
		elapsed := time.Since(start)

		switch {
		case err != nil:
			logger.Error("job faulted",
				append(attrs,
					slog.Duration("elapsed", elapsed),
					slog.String("error", err.Error()),
				)...,
			)
		case out.IsSuccess():
			logger.Info("job completed",
				append(attrs,
					slog.String("status", string(out.Status())),
					slog.Duration("elapsed", elapsed),
				)...,
			)
		default:
			logger.Warn("job failed",
				append(attrs,
					slog.String("status", string(out.Status())),
					slog.Duration("elapsed", elapsed),
					slog.String("error", out.ErrorMessage()),
				)...,
			)
		}

		return out, err
	}
}
