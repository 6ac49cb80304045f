package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/jobrun/job"
)

// Named entries pair a hook with the extension name captured at
// registration time.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register is not safe to call concurrently with Emit; register every
// extension before running jobs.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	started   []entry[InstanceStarted]
	succeeded []entry[InstanceSucceeded]
	failed    []entry[InstanceFailed]
	canceled  []entry[InstanceCanceled]
	retrying  []entry[InstanceRetrying]
	contended []entry[LockContended]
	shutdown  []entry[Shutdown]
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(InstanceStarted); ok {
		r.started = append(r.started, entry[InstanceStarted]{name, h})
	}
	if h, ok := e.(InstanceSucceeded); ok {
		r.succeeded = append(r.succeeded, entry[InstanceSucceeded]{name, h})
	}
	if h, ok := e.(InstanceFailed); ok {
		r.failed = append(r.failed, entry[InstanceFailed]{name, h})
	}
	if h, ok := e.(InstanceCanceled); ok {
		r.canceled = append(r.canceled, entry[InstanceCanceled]{name, h})
	}
	if h, ok := e.(InstanceRetrying); ok {
		r.retrying = append(r.retrying, entry[InstanceRetrying]{name, h})
	}
	if h, ok := e.(LockContended); ok {
		r.contended = append(r.contended, entry[LockContended]{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, entry[Shutdown]{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitInstanceStarted notifies all extensions that implement InstanceStarted.
func (r *Registry) EmitInstanceStarted(ctx context.Context, inst *job.Instance) {
	for _, e := range r.started {
		if err := e.hook.OnInstanceStarted(ctx, inst); err != nil {
			r.logHookError("OnInstanceStarted", e.name, err)
		}
	}
}

// EmitInstanceSucceeded notifies all extensions that implement InstanceSucceeded.
func (r *Registry) EmitInstanceSucceeded(ctx context.Context, inst *job.Instance, elapsed time.Duration) {
	for _, e := range r.succeeded {
		if err := e.hook.OnInstanceSucceeded(ctx, inst, elapsed); err != nil {
			r.logHookError("OnInstanceSucceeded", e.name, err)
		}
	}
}

// EmitInstanceFailed notifies all extensions that implement InstanceFailed.
func (r *Registry) EmitInstanceFailed(ctx context.Context, inst *job.Instance, jobErr error) {
	for _, e := range r.failed {
		if err := e.hook.OnInstanceFailed(ctx, inst, jobErr); err != nil {
			r.logHookError("OnInstanceFailed", e.name, err)
		}
	}
}

// EmitInstanceCanceled notifies all extensions that implement InstanceCanceled.
func (r *Registry) EmitInstanceCanceled(ctx context.Context, inst *job.Instance, reason string) {
	for _, e := range r.canceled {
		if err := e.hook.OnInstanceCanceled(ctx, inst, reason); err != nil {
			r.logHookError("OnInstanceCanceled", e.name, err)
		}
	}
}

// EmitInstanceRetrying notifies all extensions that implement InstanceRetrying.
func (r *Registry) EmitInstanceRetrying(ctx context.Context, inst *job.Instance, attempt int, delay time.Duration, cause error) {
	for _, e := range r.retrying {
		if err := e.hook.OnInstanceRetrying(ctx, inst, attempt, delay, cause); err != nil {
			r.logHookError("OnInstanceRetrying", e.name, err)
		}
	}
}

// EmitLockContended notifies all extensions that implement LockContended.
func (r *Registry) EmitLockContended(ctx context.Context, inst *job.Instance, key string) {
	for _, e := range r.contended {
		if err := e.hook.OnLockContended(ctx, inst, key); err != nil {
			r.logHookError("OnLockContended", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
