package audithook

import (
	"log/slog"
	"maps"
)

// Option configures an Extension.
type Option func(*Extension)

// WithActions limits the trail to the listed actions. Without it every
// action is recorded; names outside [AllActions] match nothing.
//
//	audithook.New(rec, audithook.WithActions(
//		audithook.ActionInstanceFailed,
//		audithook.ActionLockContended,
//	))
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.enabled[a] = true
		}
	}
}

// WithMetadata adds fixed fields (service, environment, ...) to every
// event. Per-event fields with the same key take precedence.
func WithMetadata(md map[string]any) Option {
	return func(e *Extension) {
		if e.static == nil {
			e.static = make(map[string]any, len(md))
		}
		maps.Copy(e.static, md)
	}
}

// WithSeverity overrides the severity recorded for one action, e.g. to
// downgrade instance.failed for jobs that fail routinely.
func WithSeverity(action, severity string) Option {
	return func(e *Extension) {
		if e.severity == nil {
			e.severity = make(map[string]string)
		}
		e.severity[action] = severity
	}
}

// WithLogger sets the logger used to report recorder errors.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}
