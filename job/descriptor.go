package job

import (
	"fmt"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/xraph/jobrun"
)

// TriggerType is how a job becomes due.
type TriggerType string

const (
	// TriggerCron fires on a cron expression.
	TriggerCron TriggerType = "cron"
	// TriggerInterval fires at a fixed interval.
	TriggerInterval TriggerType = "interval"
	// TriggerDelay fires once after a delay.
	TriggerDelay TriggerType = "delay"
	// TriggerManual fires only when requested.
	TriggerManual TriggerType = "manual"
)

// Priority orders due instances of different jobs.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Descriptor is the static definition of a job. It is a value: once
// NewDescriptor returns it, copies handed to the registry and instances
// cannot be changed through the original.
type Descriptor struct {
	// Name is the unique key of the job.
	Name string `json:"name"`

	Description string `json:"description,omitempty"`

	TriggerType    TriggerType   `json:"trigger_type"`
	CronExpression string        `json:"cron_expression,omitempty"`
	Interval       time.Duration `json:"interval,omitempty"`
	Delay          time.Duration `json:"delay,omitempty"`

	Priority Priority `json:"priority"`

	// AllowConcurrent lets several instances of this job run at once.
	// When false, at most one instance runs cluster-wide.
	AllowConcurrent bool `json:"allow_concurrent"`

	// Timeout bounds each attempt. Zero or negative disables the bound.
	Timeout time.Duration `json:"timeout,omitempty"`

	Retry RetryPolicy `json:"retry"`

	Enabled bool `json:"enabled"`

	Tags []string `json:"tags,omitempty"`
}

// NewDescriptor creates a descriptor with defaults applied before opts:
// manual trigger, normal priority, no concurrency, five minute timeout,
// DefaultRetryPolicy, enabled.
func NewDescriptor(name string, opts ...Option) Descriptor {
	d := Descriptor{
		Name:        name,
		TriggerType: TriggerManual,
		Priority:    PriorityNormal,
		Timeout:     5 * time.Minute,
		Retry:       DefaultRetryPolicy(),
		Enabled:     true,
	}
	for _, opt := range opts {
		opt(&d)
	}
	if d.Tags != nil {
		d.Tags = append([]string(nil), d.Tags...)
	}
	return d
}

// TimeoutMilliseconds returns the timeout as whole milliseconds.
func (d Descriptor) TimeoutMilliseconds() int64 {
	return d.Timeout.Milliseconds()
}

// Validate reports whether the descriptor is well formed. The returned error
// wraps jobrun.ErrInvalidDescriptor.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return invalid("name is empty")
	}
	if d.Timeout < 0 {
		return invalid("timeout %v is negative", d.Timeout)
	}
	if err := d.Retry.Validate(); err != nil {
		return err
	}

	switch d.TriggerType {
	case TriggerCron:
		if strings.TrimSpace(d.CronExpression) == "" {
			return invalid("cron trigger requires an expression")
		}
		if _, err := cronlib.ParseStandard(d.CronExpression); err != nil {
			return invalid("cron expression %q: %v", d.CronExpression, err)
		}
	case TriggerInterval:
		if d.Interval <= 0 {
			return invalid("interval trigger requires a positive interval")
		}
	case TriggerDelay:
		if d.Delay < 0 {
			return invalid("delay %v is negative", d.Delay)
		}
	case TriggerManual:
	default:
		return invalid("unknown trigger type %q", d.TriggerType)
	}
	return nil
}

// Next returns the next time the job is due strictly after the given time.
// Manual jobs and invalid cron expressions return the zero time.
func (d Descriptor) Next(after time.Time) time.Time {
	switch d.TriggerType {
	case TriggerCron:
		sched, err := cronlib.ParseStandard(d.CronExpression)
		if err != nil {
			return time.Time{}
		}
		return sched.Next(after)
	case TriggerInterval:
		return after.Add(d.Interval)
	case TriggerDelay:
		return after.Add(d.Delay)
	default:
		return time.Time{}
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", jobrun.ErrInvalidDescriptor, fmt.Sprintf(format, args...))
}
