// Package job defines the static and runtime records a job execution works
// with: the immutable [Descriptor], the per-firing [Instance] and its state
// machine, the [RetryPolicy], the immutable [Outcome], and the [Execution]
// context passed through every pipeline stage.
//
// # Descriptor
//
// A [Descriptor] is created once at registration time:
//
//	d := job.NewDescriptor("rebuild-index",
//	    job.WithCron("*/15 * * * *"),
//	    job.WithTimeout(2*time.Minute),
//	    job.WithRetryPolicy(job.RetryPolicy{
//	        MaxRetryCount: 3,
//	        Interval:      time.Second,
//	        Exponential:   true,
//	        Multiplier:    2,
//	        MaxInterval:   30 * time.Second,
//	    }),
//	)
//
// # Instance lifecycle
//
//	pending → running → succeeded
//	pending → running → failed
//	pending → running → canceled
//	pending ⇄ paused           (administrative, outside the pipeline)
//
// # Outcome
//
// Outcomes are values built by [Success], [Failure] or [Canceled] and never
// mutated; [Outcome.WithDuration] and [Outcome.WithRetryCount] return copies.
package job
