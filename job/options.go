package job

import "time"

// Option is a functional option for configuring a descriptor.
type Option func(*Descriptor)

// WithDescription sets a human-readable description.
func WithDescription(s string) Option {
	return func(d *Descriptor) {
		d.Description = s
	}
}

// WithCron makes the job fire on a cron expression.
func WithCron(expr string) Option {
	return func(d *Descriptor) {
		d.TriggerType = TriggerCron
		d.CronExpression = expr
	}
}

// WithInterval makes the job fire every interval.
func WithInterval(every time.Duration) Option {
	return func(d *Descriptor) {
		d.TriggerType = TriggerInterval
		d.Interval = every
	}
}

// WithDelay makes the job fire once after delay.
func WithDelay(delay time.Duration) Option {
	return func(d *Descriptor) {
		d.TriggerType = TriggerDelay
		d.Delay = delay
	}
}

// WithPriority sets the job priority.
func WithPriority(p Priority) Option {
	return func(d *Descriptor) {
		d.Priority = p
	}
}

// WithAllowConcurrent allows several instances of the job to run at once.
func WithAllowConcurrent(allow bool) Option {
	return func(d *Descriptor) {
		d.AllowConcurrent = allow
	}
}

// WithTimeout sets the per-attempt execution deadline. Zero disables it.
func WithTimeout(t time.Duration) Option {
	return func(d *Descriptor) {
		d.Timeout = t
	}
}

// WithRetryPolicy sets the retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(d *Descriptor) {
		d.Retry = p
	}
}

// WithMaxRetries sets only the retry count of the current policy.
func WithMaxRetries(n int) Option {
	return func(d *Descriptor) {
		d.Retry.MaxRetryCount = n
	}
}

// WithEnabled enables or disables the job.
func WithEnabled(enabled bool) Option {
	return func(d *Descriptor) {
		d.Enabled = enabled
	}
}

// WithTags attaches free-form tags.
func WithTags(tags ...string) Option {
	return func(d *Descriptor) {
		d.Tags = append(d.Tags, tags...)
	}
}
