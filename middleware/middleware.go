package middleware

import (
	"context"
	"errors"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/job"
)

// Handler is the rest of the pipeline, ending in the job body.
type Handler func(ex *job.Execution) (job.Outcome, error)

// Middleware wraps a Handler with cross-cutting logic. It MUST call next to
// continue the chain unless it is deliberately short-circuiting (lock
// contention, throttling).
type Middleware func(ex *job.Execution, next Handler) (job.Outcome, error)

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, metrics, retry) executes as:
//
//	logging → metrics → retry → handler
func Chain(mws ...Middleware) Middleware {
	return func(ex *job.Execution, next Handler) (job.Outcome, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ex *job.Execution) (job.Outcome, error) {
				return mw(ex, prev)
			}
		}
		return h(ex)
	}
}

// Build folds mws over body and returns the resulting handler.
func Build(body job.Body, mws ...Middleware) Handler {
	chain := Chain(mws...)
	return func(ex *job.Execution) (job.Outcome, error) {
		return chain(ex, Handler(body))
	}
}

// isCancellation reports whether err signals that the run was cut short
// rather than failing on its own.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, jobrun.ErrCanceled) ||
		errors.Is(err, jobrun.ErrTimeout)
}
