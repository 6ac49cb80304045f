// Package observability provides Prometheus metrics for jobrun.
//
// [PrometheusSink] is a middleware.Sink that turns every pipeline run into
// per-job duration, execution and retry series. [MetricsExtension]
// implements the ext lifecycle hooks to track instance outcomes, lock
// contention and the number of instances running right now.
//
// For OpenTelemetry, see middleware.MeterSink and middleware.Tracing.
package observability

// namespace prefixes every metric name.
const namespace = "jobrun"
