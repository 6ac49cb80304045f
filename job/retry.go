package job

import (
	"time"

	"github.com/xraph/jobrun/backoff"
)

// RetryPolicy controls how many times a failed attempt is repeated and how
// long to wait between attempts.
type RetryPolicy struct {
	// MaxRetryCount is the number of attempts after the first. Zero means
	// exactly one attempt.
	MaxRetryCount int `json:"max_retry_count"`

	// Interval is the delay after the first failed attempt.
	Interval time.Duration `json:"retry_interval"`

	// Exponential grows the delay by Multiplier each attempt.
	Exponential bool `json:"use_exponential_backoff"`

	// Multiplier is the exponential growth factor. Values below 1 are
	// treated as 2; exactly 1 keeps the delay flat.
	Multiplier float64 `json:"backoff_multiplier,omitempty"`

	// Jitter draws each exponential delay uniformly from [0, delay].
	// Requires Exponential.
	Jitter bool `json:"backoff_jitter,omitempty"`

	// Linear grows the delay by Interval each attempt. Mutually exclusive
	// with Exponential.
	Linear bool `json:"linear_backoff,omitempty"`

	// MaxInterval caps growing delays. Zero means no cap. A flat interval
	// is never capped.
	MaxInterval time.Duration `json:"max_retry_interval,omitempty"`
}

// NoRetry returns a policy that runs the job exactly once.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// DefaultRetryPolicy returns 3 retries starting at one second, doubling,
// capped at one minute.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetryCount: 3,
		Interval:      time.Second,
		Exponential:   true,
		Multiplier:    2,
		MaxInterval:   time.Minute,
	}
}

// FixedRetryPolicy returns a policy with n retries spaced by interval.
func FixedRetryPolicy(n int, interval time.Duration) RetryPolicy {
	return RetryPolicy{MaxRetryCount: n, Interval: interval}
}

// Attempts returns the total number of attempts the policy allows.
func (p RetryPolicy) Attempts() int {
	if p.MaxRetryCount < 0 {
		return 1
	}
	return p.MaxRetryCount + 1
}

// Strategy returns the backoff strategy described by the policy.
func (p RetryPolicy) Strategy() backoff.Strategy {
	switch {
	case p.Exponential && p.Jitter:
		return backoff.NewExponentialWithJitter(p.Interval, p.Multiplier, p.MaxInterval)
	case p.Exponential:
		return backoff.NewExponentialWithMultiplier(p.Interval, p.Multiplier, p.MaxInterval)
	case p.Linear:
		return backoff.NewLinear(p.Interval, p.MaxInterval)
	default:
		return backoff.NewConstant(p.Interval)
	}
}

// Delay returns the wait after attempt n (1-indexed) fails:
// min(Interval × Multiplier^(n-1), MaxInterval) when exponential,
// min(Interval × n, MaxInterval) when linear, otherwise the flat Interval.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.Strategy().Delay(attempt)
}

// Validate reports negative counts or intervals and conflicting growth modes.
func (p RetryPolicy) Validate() error {
	if p.MaxRetryCount < 0 {
		return invalid("max retry count %d is negative", p.MaxRetryCount)
	}
	if p.Interval < 0 {
		return invalid("retry interval %v is negative", p.Interval)
	}
	if p.MaxInterval < 0 {
		return invalid("max retry interval %v is negative", p.MaxInterval)
	}
	if p.Exponential && p.Linear {
		return invalid("retry policy cannot be both exponential and linear")
	}
	if p.Jitter && !p.Exponential {
		return invalid("retry jitter requires exponential backoff")
	}
	return nil
}
