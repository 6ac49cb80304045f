package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/jobrun/job"
)

// meterName is the instrumentation scope name for jobrun metrics.
const meterName = "github.com/xraph/jobrun"

// Sample is one recorded pipeline run.
type Sample struct {
	JobName    string
	Status     job.Status
	Duration   time.Duration
	RetryCount int
}

// Sink receives metric samples. Record must not block for long; it is
// called inline on the job's goroutine.
type Sink interface {
	Record(ctx context.Context, s Sample)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, s Sample)

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, s Sample) { f(ctx, s) }

// MultiSink fans a sample out to several sinks.
type MultiSink []Sink

// Record implements Sink.
func (m MultiSink) Record(ctx context.Context, s Sample) {
	for _, sink := range m {
		sink.Record(ctx, s)
	}
}

// Metrics returns middleware that forwards exactly one Sample per run to
// sink. A nil sink records to the global OTel MeterProvider.
//
// When next faults, the sample is built from a synthetic failure outcome
// and the original error is returned unchanged, so stages further out still
// see the fault.
func Metrics(sink Sink) Middleware {
	if sink == nil {
		sink = MeterSink(otel.Meter(meterName))
	}
	return func(ex *job.Execution, next Handler) (job.Outcome, error) {
		start := time.Now()
		out, err := next(ex)
		elapsed := time.Since(start)

		recorded := out
		if err != nil {
			recorded = job.Failure(err.Error(), err).
				WithDuration(elapsed).
				WithRetryCount(ex.Instance.RetryCount)
		}

		s := Sample{
			JobName:    ex.Instance.JobName,
			Status:     recorded.Status(),
			Duration:   elapsed,
			RetryCount: recorded.RetryCount(),
		}
		if s.Status == "" {
			s.Status = job.StatusFailed
		}
		if s.RetryCount == 0 {
			s.RetryCount = ex.Instance.RetryCount
		}
		sink.Record(ex.Context(), s)

		return out, err
	}
}

type meterSink struct {
	duration   metric.Float64Histogram
	executions metric.Int64Counter
	retries    metric.Int64Counter
}

// MeterSink returns a Sink that records samples as OTel instruments:
//
//   - jobrun.job.duration (Float64Histogram): run time in seconds,
//     with attributes job_name and status
//   - jobrun.job.executions (Int64Counter): total runs, same attributes
//   - jobrun.job.retries (Int64Counter): retries spent, by job_name
func MeterSink(meter metric.Meter) Sink {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"jobrun.job.duration",
		metric.WithDescription("Duration of job execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"jobrun.job.executions",
		metric.WithDescription("Total number of job executions"),
		metric.WithUnit("{execution}"),
	)
	retries, _ := meter.Int64Counter(
		"jobrun.job.retries",
		metric.WithDescription("Total number of job retries"),
		metric.WithUnit("{retry}"),
	)
	return &meterSink{duration: duration, executions: executions, retries: retries}
}

func (m *meterSink) Record(ctx context.Context, s Sample) {
	attrs := metric.WithAttributes(
		attribute.String("job_name", s.JobName),
		attribute.String("status", string(s.Status)),
	)
	m.duration.Record(ctx, s.Duration.Seconds(), attrs)
	m.executions.Add(ctx, 1, attrs)
	if s.RetryCount > 0 {
		m.retries.Add(ctx, int64(s.RetryCount),
			metric.WithAttributes(attribute.String("job_name", s.JobName)))
	}
}
