package jobrun

import "errors"

var (
	// Registry errors.
	ErrJobNotFound       = errors.New("jobrun: job not found")
	ErrJobAlreadyExists  = errors.New("jobrun: job already exists")
	ErrJobDisabled       = errors.New("jobrun: job disabled")
	ErrNoBody            = errors.New("jobrun: no job body")
	ErrInvalidDescriptor = errors.New("jobrun: invalid job descriptor")

	// Instance errors.
	ErrInstanceNotFound = errors.New("jobrun: instance not found")
	ErrInvalidState     = errors.New("jobrun: invalid state transition")

	// Execution errors.
	ErrTimeout            = errors.New("jobrun: job timed out")
	ErrCanceled           = errors.New("jobrun: job canceled")
	ErrMaxRetriesExceeded = errors.New("jobrun: max retries exceeded")

	// Lock errors.
	ErrLockNotAcquired = errors.New("jobrun: lock not acquired")
	ErrLockNotHeld     = errors.New("jobrun: lock not held")

	// Worker errors.
	ErrPoolStopped = errors.New("jobrun: worker pool stopped")
)
