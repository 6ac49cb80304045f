package job

import (
	"errors"
	"time"

	"github.com/xraph/jobrun"
)

// Outcome is the immutable result of one pipeline run. Build it with
// Success, Failure or Canceled.
type Outcome struct {
	success    bool
	status     Status
	data       any
	message    string
	err        error
	duration   time.Duration
	retryCount int
}

// Success returns a successful outcome carrying data.
func Success(data any) Outcome {
	return Outcome{success: true, status: StatusSucceeded, data: data}
}

// Failure returns a failed outcome. The message is never empty: it falls
// back to the cause's text and then to a generic message.
func Failure(message string, cause error) Outcome {
	if message == "" && cause != nil {
		message = cause.Error()
	}
	if message == "" {
		message = "job failed"
	}
	if cause == nil {
		cause = errors.New(message)
	}
	return Outcome{status: StatusFailed, message: message, err: cause}
}

// Canceled returns a canceled outcome. Its error wraps jobrun.ErrCanceled.
func Canceled(reason string) Outcome {
	if reason == "" {
		reason = "job canceled"
	}
	return Outcome{status: StatusCanceled, message: reason, err: jobrun.ErrCanceled}
}

// IsSuccess reports whether the run succeeded.
func (o Outcome) IsSuccess() bool { return o.success }

// Status returns succeeded, failed or canceled. The zero Outcome has an
// empty status.
func (o Outcome) Status() Status { return o.status }

// Data returns the payload of a successful run.
func (o Outcome) Data() any { return o.data }

// ErrorMessage returns the failure or cancellation message.
func (o Outcome) ErrorMessage() string { return o.message }

// Err returns the cause of a failure or cancellation.
func (o Outcome) Err() error { return o.err }

// Duration returns the measured run time.
func (o Outcome) Duration() time.Duration { return o.duration }

// RetryCount returns how many attempts preceded the one that produced the
// outcome.
func (o Outcome) RetryCount() int { return o.retryCount }

// IsZero reports whether o was not built by a factory.
func (o Outcome) IsZero() bool { return o.status == "" }

// WithDuration returns a copy of o with the duration set.
func (o Outcome) WithDuration(d time.Duration) Outcome {
	o.duration = d
	return o
}

// WithRetryCount returns a copy of o with the retry count set.
func (o Outcome) WithRetryCount(n int) Outcome {
	o.retryCount = n
	return o
}
