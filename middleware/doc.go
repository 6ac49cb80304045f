// Package middleware provides the stages of the job execution pipeline.
//
// A [Middleware] wraps the rest of the pipeline, which ends in the job body.
// Stages are composed with [Chain], right-to-left: the first middleware in
// the list is the outermost wrapper.
//
// The reference order, outermost first, is
//
//	Logging → Metrics → Lock → Retry → Timeout → body
//
// Logging and Metrics see the whole run including every retry. The lock is
// held across all retries so no other node runs the same job mid-retry.
// Each attempt gets its own timeout window because Timeout sits inside Retry.
// Reordering these stages changes failure semantics; engine.Engine always
// assembles them in this order.
//
// # Built-in Middleware
//
//   - [Logging]: logs start, completion, failure and faults
//   - [Metrics]: forwards one [Sample] per run to a [Sink]
//   - [Lock]: cluster-wide mutual exclusion for non-concurrent jobs
//   - [Retry]: the attempt loop with backoff between attempts
//   - [Timeout]: per-attempt deadline, reported as a failure
//   - [Tracing]: wraps the run in an OpenTelemetry span
//   - [Throttle]: per-job token bucket rate limit
//   - [Recover]: catches panics in the body and turns them into faults
//
// # Outcomes and faults
//
// A handler returns a [job.Outcome] for expected results and a non-nil
// error for faults. Stages that only observe (Logging, Metrics, Tracing)
// return exactly what they received. Retry converts exhausted faults into a
// failure outcome and external cancellation into a canceled outcome.
//
// # Writing Custom Middleware
//
//	func Audit(w io.Writer) middleware.Middleware {
//	    return func(ex *job.Execution, next middleware.Handler) (job.Outcome, error) {
//	        out, err := next(ex)
//	        fmt.Fprintln(w, ex.Instance.JobName, out.Status())
//	        return out, err
//	    }
//	}
//
// A stage that needs a different cancellation signal must pass
// ex.WithContext(ctx) downstream and never modify ex itself.
package middleware
