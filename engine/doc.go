// Package engine wires the jobrun subsystems together and provides the
// application-level API for registering and running jobs.
//
// The engine owns the job registry, the extension registry and the
// middleware pipeline. Its dependencies (logger, lock provider, metrics
// sinks, instance store) are injected through options at construction time;
// nothing is resolved per call.
//
// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithLogger(logger),
//	    engine.WithLockProvider(redislock.New(client)),
//	    engine.WithSink(observability.NewPrometheusSink(nil)),
//	    engine.WithExtension(observability.NewMetricsExtension(nil)),
//	)
//
// # Registering and Running Jobs
//
//	err := eng.Register(job.NewDescriptor("send-report"), job.BodyFunc(sendReport))
//
//	out, inst, err := eng.Run(ctx, "send-report", map[string]any{"payload": input})
//
// An external trigger loop creates instances with [Engine.NewInstance] when
// a job is due and hands them to [Engine.Execute].
//
// # Pipeline
//
// Every run goes through the same stages, outermost first:
//
//	Logging → Tracing → Metrics → [Throttle] → Lock → Retry → Timeout → Recover → [custom] → body
//
// Tracing is a no-op unless a TracerProvider is configured, and Throttle is
// present only with [WithRateLimit]. Middleware added with [WithMiddleware]
// runs once per attempt, inside the timeout and panic recovery.
//
// # Options
//
//   - [WithLogger]: set the structured logger
//   - [WithConfig]: set node-wide settings
//   - [WithLockProvider]: enable distributed locking
//   - [WithSink]: add a metrics sink
//   - [WithMeterProvider]: record metrics with an OpenTelemetry meter
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithExtension]: register a lifecycle extension
//   - [WithStore]: persist instance history
//   - [WithRateLimit]: throttle runs per job name
//   - [WithMiddleware]: add a per-attempt middleware
package engine
