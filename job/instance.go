package job

import (
	"fmt"
	"time"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
)

// Status represents the lifecycle state of a job instance.
type Status string

const (
	// StatusPending means the instance is waiting to be dispatched.
	StatusPending Status = "pending"
	// StatusRunning means a worker is executing the instance.
	StatusRunning Status = "running"
	// StatusSucceeded means the instance finished successfully.
	StatusSucceeded Status = "succeeded"
	// StatusFailed means every allowed attempt failed.
	StatusFailed Status = "failed"
	// StatusCanceled means the caller cancelled the instance.
	StatusCanceled Status = "canceled"
	// StatusPaused is an administrative hold; the pipeline never sets it.
	StatusPaused Status = "paused"
)

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	default:
		return false
	}
}

// Instance is the runtime record of one scheduled execution of a job.
type Instance struct {
	ID            id.InstanceID  `json:"id"`
	JobName       string         `json:"job_name"`
	Descriptor    Descriptor     `json:"descriptor"`
	Status        Status         `json:"status"`
	ScheduledAt   time.Time      `json:"scheduled_at"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	CompletedAt   *time.Time     `json:"completed_at,omitempty"`
	Duration      *time.Duration `json:"duration,omitempty"`
	Attempt       int            `json:"attempt"`
	RetryCount    int            `json:"retry_count"`
	ErrorMessage  string         `json:"error_message,omitempty"`
	Err           error          `json:"-"`
	ExecutionNode string         `json:"execution_node,omitempty"`
	TraceID       string         `json:"trace_id,omitempty"`
}

// NewInstance creates a pending instance of the described job.
func NewInstance(d Descriptor, scheduledAt time.Time) *Instance {
	return &Instance{
		ID:          id.NewInstanceID(),
		JobName:     d.Name,
		Descriptor:  d,
		Status:      StatusPending,
		ScheduledAt: scheduledAt,
	}
}

// Start moves a pending instance to running and stamps where and when it
// runs.
func (i *Instance) Start(node, traceID string, now time.Time) error {
	if i.Status != StatusPending {
		return transitionErr(i.Status, StatusRunning)
	}
	i.Status = StatusRunning
	i.StartedAt = &now
	i.ExecutionNode = node
	i.TraceID = traceID
	i.Attempt = 0
	i.RetryCount = 0
	return nil
}

// SetAttempt records the attempt about to run. Attempts are 1-indexed;
// RetryCount is the number of attempts before it.
func (i *Instance) SetAttempt(attempt int) {
	i.Attempt = attempt
	if attempt > 1 {
		i.RetryCount = attempt - 1
	} else {
		i.RetryCount = 0
	}
}

// Finish applies a terminal outcome to a running instance.
func (i *Instance) Finish(o Outcome, now time.Time) error {
	if i.Status != StatusRunning {
		return transitionErr(i.Status, o.Status())
	}
	status := o.Status()
	if !status.IsTerminal() {
		status = StatusFailed
	}

	i.Status = status
	i.CompletedAt = &now
	if i.StartedAt != nil {
		d := now.Sub(*i.StartedAt)
		if o.Duration() > 0 {
			d = o.Duration()
		}
		i.Duration = &d
	}
	i.RetryCount = o.RetryCount()
	i.ErrorMessage = ""
	i.Err = nil
	if status != StatusSucceeded {
		i.ErrorMessage = o.ErrorMessage()
		i.Err = o.Err()
	}
	return nil
}

// Pause puts a pending instance on administrative hold.
func (i *Instance) Pause() error {
	if i.Status != StatusPending {
		return transitionErr(i.Status, StatusPaused)
	}
	i.Status = StatusPaused
	return nil
}

// Resume returns a paused instance to pending.
func (i *Instance) Resume() error {
	if i.Status != StatusPaused {
		return transitionErr(i.Status, StatusPending)
	}
	i.Status = StatusPending
	return nil
}

// Clone returns a deep copy safe to hand to another goroutine.
func (i *Instance) Clone() *Instance {
	c := *i
	if i.StartedAt != nil {
		t := *i.StartedAt
		c.StartedAt = &t
	}
	if i.CompletedAt != nil {
		t := *i.CompletedAt
		c.CompletedAt = &t
	}
	if i.Duration != nil {
		d := *i.Duration
		c.Duration = &d
	}
	if i.Descriptor.Tags != nil {
		c.Descriptor.Tags = append([]string(nil), i.Descriptor.Tags...)
	}
	return &c
}

func transitionErr(from, to Status) error {
	return fmt.Errorf("%w: %s → %s", jobrun.ErrInvalidState, from, to)
}
