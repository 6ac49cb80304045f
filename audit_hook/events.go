package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionInstanceStarted   = "instance.started"
	ActionInstanceSucceeded = "instance.succeeded"
	ActionInstanceFailed    = "instance.failed"
	ActionInstanceCanceled  = "instance.canceled"
	ActionInstanceRetrying  = "instance.retrying"
	ActionLockContended     = "lock.contended"
)

// Audit event categories group related actions.
const (
	CategoryInstance = "jobrun.instance"
	CategoryLock     = "jobrun.lock"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceInstance = "job_instance"
	ResourceLock     = "job_lock"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionInstanceStarted,
		ActionInstanceSucceeded,
		ActionInstanceFailed,
		ActionInstanceCanceled,
		ActionInstanceRetrying,
		ActionLockContended,
	}
}
