// Package ext defines the extension system for jobrun.
//
// Extensions are notified of instance lifecycle events and can react to
// them, recording metrics, writing audit logs, paging someone. Each hook
// is a separate interface so extensions opt in only to the events they
// care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnInstanceSucceeded(ctx context.Context, inst *job.Instance, elapsed time.Duration) error {
//	    log.Printf("%s %s succeeded in %s", inst.JobName, inst.ID, elapsed)
//	    return nil
//	}
//
// # Lifecycle Hooks
//
//   - [InstanceStarted]: the instance moved to running
//   - [InstanceSucceeded]: the instance finished successfully
//   - [InstanceFailed]: the instance failed with no retries remaining
//   - [InstanceCanceled]: the caller cancelled the instance
//   - [InstanceRetrying]: an attempt failed and another will follow
//   - [LockContended]: the run was skipped because another node holds the lock
//   - [Shutdown]: the engine is shutting down
//
// Hook errors are logged and never affect the instance.
package ext
