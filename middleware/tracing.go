package middleware

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/jobrun/job"
)

// tracerName is the instrumentation scope name for jobrun tracing.
const tracerName = "github.com/xraph/jobrun"

// Tracing returns middleware that wraps the run in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is
// used and this middleware becomes a pass-through.
//
// Span attributes: jobrun.job.name, jobrun.instance.id, jobrun.trace_id,
// jobrun.priority. jobrun.retry_count and jobrun.status are set on
// completion. Faults and failing outcomes set the span status to
// codes.Error.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ex *job.Execution, next Handler) (job.Outcome, error) {
		ctx, span := tracer.Start(ex.Context(), "jobrun.job.execute",
			trace.WithAttributes(
				attribute.String("jobrun.job.name", ex.Instance.JobName),
				attribute.String("jobrun.instance.id", ex.Instance.ID.String()),
				attribute.String("jobrun.trace_id", ex.TraceID),
				attribute.String("jobrun.priority", ex.Descriptor().Priority.String()),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		out, err := next(ex.WithContext(ctx))

		span.SetAttributes(attribute.Int("jobrun.retry_count", ex.Instance.RetryCount))
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case out.IsSuccess():
			span.SetAttributes(attribute.String("jobrun.status", string(out.Status())))
			span.SetStatus(codes.Ok, "")
		default:
			span.SetAttributes(attribute.String("jobrun.status", string(out.Status())))
			if out.Err() != nil {
				span.RecordError(out.Err())
			}
			span.SetStatus(codes.Error, out.ErrorMessage())
		}

		return out, err
	}
}
