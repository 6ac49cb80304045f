package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/ext"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
	"github.com/xraph/jobrun/lock"
	mw "github.com/xraph/jobrun/middleware"
	"github.com/xraph/jobrun/store"
	"github.com/xraph/jobrun/store/memory"
)

// instrumentationName is the OTel scope used for engine-built tracers and
// meters.
const instrumentationName = "github.com/xraph/jobrun"

// Engine runs registered jobs through the execution pipeline.
type Engine struct {
	cfg        jobrun.Config
	logger     *slog.Logger
	registry   *job.Registry
	extensions *ext.Registry
	store      job.Store
	locks      lock.Provider
	sinks      []mw.Sink
	mws        []mw.Middleware
	pending    []ext.Extension

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	rateLimit rate.Limit
	rateBurst int

	pipeline mw.Middleware
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and every stage.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithConfig sets node-wide settings. Zero fields keep their defaults.
func WithConfig(cfg jobrun.Config) Option {
	return func(eng *Engine) {
		if cfg.NodeName != "" {
			eng.cfg.NodeName = cfg.NodeName
		}
		if cfg.LockKeyPrefix != "" {
			eng.cfg.LockKeyPrefix = cfg.LockKeyPrefix
		}
		if cfg.LockTTLMargin > 0 {
			eng.cfg.LockTTLMargin = cfg.LockTTLMargin
		}
		if cfg.ReleaseTimeout > 0 {
			eng.cfg.ReleaseTimeout = cfg.ReleaseTimeout
		}
	}
}

// WithLockProvider enables the distributed lock for jobs that do not allow
// concurrent runs. Without a provider the lock stage is bypassed.
func WithLockProvider(p lock.Provider) Option {
	return func(eng *Engine) { eng.locks = p }
}

// WithSink adds a metrics sink. Without any sink, metrics go to the global
// OTel MeterProvider.
func WithSink(s mw.Sink) Option {
	return func(eng *Engine) { eng.sinks = append(eng.sinks, s) }
}

// WithMeterProvider records metrics with the given OTel MeterProvider in
// addition to any configured sinks.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.pending = append(eng.pending, e) }
}

// WithStore persists instance history. Defaults to an in-memory store.
func WithStore(s job.Store) Option {
	return func(eng *Engine) { eng.store = s }
}

// WithRateLimit throttles runs to limit per second per job name, with the
// given burst.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(eng *Engine) {
		eng.rateLimit = limit
		eng.rateBurst = burst
	}
}

// WithMiddleware adds middleware that runs once per attempt, inside the
// timeout and panic recovery.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// New creates an Engine.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		cfg:      jobrun.DefaultConfig(),
		logger:   slog.Default(),
		registry: job.NewRegistry(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = slog.Default()
	}
	if eng.store == nil {
		eng.store = memory.New()
	}
	if eng.rateLimit < 0 {
		return nil, fmt.Errorf("jobrun: negative rate limit %v", eng.rateLimit)
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	for _, e := range eng.pending {
		eng.extensions.Register(e)
	}
	eng.pending = nil

	eng.pipeline = eng.buildPipeline()
	return eng, nil
}

func (eng *Engine) buildPipeline() mw.Middleware {
	logger := eng.logger

	var tracing mw.Middleware
	if eng.tracerProvider != nil {
		tracing = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracing = mw.Tracing()
	}

	sinks := append([]mw.Sink(nil), eng.sinks...)
	if eng.meterProvider != nil {
		sinks = append(sinks, mw.MeterSink(eng.meterProvider.Meter(instrumentationName)))
	}
	var sink mw.Sink
	switch len(sinks) {
	case 0:
	case 1:
		sink = sinks[0]
	default:
		sink = mw.MultiSink(sinks)
	}

	stages := []mw.Middleware{
		mw.Logging(logger),
		tracing,
		mw.Metrics(sink),
	}
	if eng.rateLimit > 0 {
		stages = append(stages, mw.Throttle(eng.rateLimit, eng.rateBurst, logger))
	}
	stages = append(stages,
		mw.Lock(eng.locks, logger,
			mw.WithLockConfig(eng.cfg),
			mw.OnLockContended(func(ex *job.Execution, key string) {
				eng.extensions.EmitLockContended(ex.Context(), ex.Instance, key)
			}),
		),
		mw.Retry(logger,
			mw.OnRetry(func(ex *job.Execution, attempt int, delay time.Duration, cause error) {
				eng.extensions.EmitInstanceRetrying(ex.Context(), ex.Instance, attempt, delay, cause)
			}),
		),
		mw.Timeout(logger),
		mw.Recover(logger),
	)
	stages = append(stages, eng.mws...)

	return mw.Chain(stages...)
}

// Register adds a job to the engine.
func (eng *Engine) Register(d job.Descriptor, body job.Body) error {
	if err := eng.registry.Register(d, body); err != nil {
		return err
	}
	eng.logger.Info("job registered",
		slog.String("job_name", d.Name),
		slog.String("trigger", string(d.TriggerType)),
		slog.Duration("timeout", d.Timeout),
		slog.Int("max_retries", d.Retry.MaxRetryCount),
		slog.Bool("allow_concurrent", d.AllowConcurrent),
	)
	return nil
}

// NewInstance creates and stores a pending instance of the named job.
func (eng *Engine) NewInstance(ctx context.Context, name string, scheduledAt time.Time) (*job.Instance, error) {
	def, ok := eng.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", jobrun.ErrJobNotFound, name)
	}
	if !def.Descriptor.Enabled {
		return nil, fmt.Errorf("%w: %q", jobrun.ErrJobDisabled, name)
	}

	inst := job.NewInstance(def.Descriptor, scheduledAt)
	if err := eng.store.SaveInstance(ctx, inst); err != nil {
		return nil, fmt.Errorf("save instance: %w", err)
	}
	return inst, nil
}

// Execute runs a pending instance through the pipeline and returns its
// outcome. On return the instance is terminal. The returned error is
// non-nil only when the instance could not be run at all.
func (eng *Engine) Execute(ctx context.Context, inst *job.Instance, params map[string]any) (job.Outcome, error) {
	def, ok := eng.registry.Get(inst.JobName)
	if !ok {
		return job.Outcome{}, fmt.Errorf("%w: %q", jobrun.ErrJobNotFound, inst.JobName)
	}

	start := eng.now()
	if err := inst.Start(eng.cfg.NodeName, id.NewTraceID().String(), start); err != nil {
		return job.Outcome{}, err
	}
	eng.save(ctx, inst)
	eng.extensions.EmitInstanceStarted(ctx, inst)

	ex := job.NewExecution(ctx, inst, params)
	out, err := eng.pipeline(ex, mw.Handler(def.Body))
	if err != nil {
		// Retry never returns a fault, so reaching this is a bug in a stage.
		eng.logger.Error("fault escaped the pipeline",
			slog.String("job_name", inst.JobName),
			slog.String("instance_id", inst.ID.String()),
			slog.String("error", err.Error()),
		)
		out = job.Failure(err.Error(), err).WithRetryCount(inst.RetryCount)
	}

	end := eng.now()
	out = out.WithDuration(end.Sub(start))
	if err := inst.Finish(out, end); err != nil {
		return out, err
	}
	eng.save(ctx, inst)

	switch inst.Status {
	case job.StatusSucceeded:
		eng.extensions.EmitInstanceSucceeded(ctx, inst, out.Duration())
	case job.StatusCanceled:
		eng.extensions.EmitInstanceCanceled(ctx, inst, inst.ErrorMessage)
	default:
		eng.extensions.EmitInstanceFailed(ctx, inst, inst.Err)
	}
	return out, nil
}

// Run creates an instance of the named job scheduled now and executes it.
func (eng *Engine) Run(ctx context.Context, name string, params map[string]any) (job.Outcome, *job.Instance, error) {
	inst, err := eng.NewInstance(ctx, name, eng.now())
	if err != nil {
		return job.Outcome{}, nil, err
	}
	out, err := eng.Execute(ctx, inst, params)
	return out, inst, err
}

// Prune removes terminal instances that completed before the cutoff from
// the history store. Stores without pruning support return an error.
func (eng *Engine) Prune(ctx context.Context, before time.Time) (int64, error) {
	p, ok := eng.store.(store.Pruner)
	if !ok {
		return 0, fmt.Errorf("jobrun: store %T does not support pruning", eng.store)
	}
	n, err := p.Prune(ctx, before)
	if err != nil {
		return n, fmt.Errorf("prune history: %w", err)
	}
	eng.logger.Info("pruned instance history",
		slog.Int64("removed", n),
		slog.Time("before", before),
	)
	return n, nil
}

// Shutdown notifies extensions that the engine is stopping.
func (eng *Engine) Shutdown(ctx context.Context) {
	eng.extensions.EmitShutdown(ctx)
}

// save persists inst on a context detached from cancellation so the final
// record is written even when the run was cancelled.
func (eng *Engine) save(ctx context.Context, inst *job.Instance) {
	if err := eng.store.SaveInstance(context.WithoutCancel(ctx), inst); err != nil {
		eng.logger.Warn("failed to save instance",
			slog.String("job_name", inst.JobName),
			slog.String("instance_id", inst.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

// Pipeline returns the assembled middleware chain.
func (eng *Engine) Pipeline() mw.Middleware { return eng.pipeline }

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Store returns the instance store.
func (eng *Engine) Store() job.Store { return eng.store }

// Config returns the node-wide settings in effect.
func (eng *Engine) Config() jobrun.Config { return eng.cfg }
