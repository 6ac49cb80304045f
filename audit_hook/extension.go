package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/xraph/jobrun/ext"
	"github.com/xraph/jobrun/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.InstanceStarted   = (*Extension)(nil)
	_ ext.InstanceSucceeded = (*Extension)(nil)
	_ ext.InstanceFailed    = (*Extension)(nil)
	_ ext.InstanceCanceled  = (*Extension)(nil)
	_ ext.InstanceRetrying  = (*Extension)(nil)
	_ ext.LockContended     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement. Callers
// adapt their audit store to it at wiring time.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry in the audit trail.
type AuditEvent struct {
	// What happened
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

// Extension bridges instance lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
// Recorder errors are logged, never returned, so auditing cannot fail a job.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	static   map[string]any
	severity map[string]string
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Instance lifecycle hooks ────────────────────────

// OnInstanceStarted implements ext.InstanceStarted.
func (e *Extension) OnInstanceStarted(ctx context.Context, inst *job.Instance) error {
	return e.record(ctx, ActionInstanceStarted, SeverityInfo, OutcomeSuccess,
		ResourceInstance, inst.ID.String(), CategoryInstance, nil,
		"job_name", inst.JobName,
		"node", inst.ExecutionNode,
		"trace_id", inst.TraceID,
	)
}

// OnInstanceSucceeded implements ext.InstanceSucceeded.
func (e *Extension) OnInstanceSucceeded(ctx context.Context, inst *job.Instance, elapsed time.Duration) error {
	return e.record(ctx, ActionInstanceSucceeded, SeverityInfo, OutcomeSuccess,
		ResourceInstance, inst.ID.String(), CategoryInstance, nil,
		"job_name", inst.JobName,
		"retry_count", inst.RetryCount,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnInstanceFailed implements ext.InstanceFailed.
func (e *Extension) OnInstanceFailed(ctx context.Context, inst *job.Instance, jobErr error) error {
	if jobErr == nil && inst.ErrorMessage != "" {
		jobErr = fmt.Errorf("%s", inst.ErrorMessage)
	}
	return e.record(ctx, ActionInstanceFailed, SeverityCritical, OutcomeFailure,
		ResourceInstance, inst.ID.String(), CategoryInstance, jobErr,
		"job_name", inst.JobName,
		"retry_count", inst.RetryCount,
		"max_retries", inst.Descriptor.Retry.MaxRetryCount,
	)
}

// OnInstanceCanceled implements ext.InstanceCanceled.
func (e *Extension) OnInstanceCanceled(ctx context.Context, inst *job.Instance, reason string) error {
	return e.record(ctx, ActionInstanceCanceled, SeverityWarning, OutcomeCanceled,
		ResourceInstance, inst.ID.String(), CategoryInstance, nil,
		"job_name", inst.JobName,
		"reason", reason,
	)
}

// OnInstanceRetrying implements ext.InstanceRetrying.
func (e *Extension) OnInstanceRetrying(ctx context.Context, inst *job.Instance, attempt int, delay time.Duration, attemptErr error) error {
	return e.record(ctx, ActionInstanceRetrying, SeverityWarning, OutcomeFailure,
		ResourceInstance, inst.ID.String(), CategoryInstance, attemptErr,
		"job_name", inst.JobName,
		"attempt", attempt,
		"delay_ms", delay.Milliseconds(),
	)
}

// OnLockContended implements ext.LockContended.
func (e *Extension) OnLockContended(ctx context.Context, inst *job.Instance, key string) error {
	return e.record(ctx, ActionLockContended, SeverityWarning, OutcomeFailure,
		ResourceLock, key, CategoryLock, nil,
		"job_name", inst.JobName,
		"instance_id", inst.ID.String(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(e.static)+len(kvPairs)/2+1)
	maps.Copy(meta, e.static)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	if sev, ok := e.severity[action]; ok {
		severity = sev
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
