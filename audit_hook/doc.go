// Package audithook is a jobrun extension that bridges instance lifecycle
// events to an audit trail backend.
//
// Every lifecycle hook emits a structured audit event through the
// [Recorder] interface. The extension assigns severity levels (info for
// normal operations, warning for retries and lock contention, critical for
// terminal failures) and metadata such as job name, node, attempt and
// elapsed time.
//
// # Usage
//
//	audit := audithook.New(audithook.RecorderFunc(func(ctx context.Context, evt *audithook.AuditEvent) error {
//	    return trail.Append(ctx, evt.Action, evt.ResourceID, evt.Metadata)
//	}))
//	eng, _ := engine.New(engine.WithExtension(audit))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionInstanceFailed,
//	        audithook.ActionLockContended,
//	    ),
//	)
package audithook
