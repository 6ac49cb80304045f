package job

import (
	"context"
	"time"
)

// Execution is the context passed through every pipeline stage. It carries
// the instance being run, read-mostly parameters, a correlation id and the
// cancellation signal.
//
// A stage that needs a different cancellation signal calls WithContext and
// hands the copy downstream; the original is never modified.
type Execution struct {
	Instance  *Instance
	Params    map[string]any
	TraceID   string
	StartedAt time.Time

	ctx context.Context
}

// NewExecution creates the execution context for inst. The trace id is taken
// from the instance.
func NewExecution(ctx context.Context, inst *Instance, params map[string]any) *Execution {
	if params == nil {
		params = map[string]any{}
	}
	return &Execution{
		Instance:  inst,
		Params:    params,
		TraceID:   inst.TraceID,
		StartedAt: time.Now(),
		ctx:       ctx,
	}
}

// Context returns the execution's cancellation context. It is never nil.
func (e *Execution) Context() context.Context {
	if e.ctx != nil {
		return e.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of e with its context changed to ctx.
// The copy shares the instance and parameters with e.
func (e *Execution) WithContext(ctx context.Context) *Execution {
	if ctx == nil {
		panic("job: nil context")
	}
	e2 := new(Execution)
	*e2 = *e
	e2.ctx = ctx
	return e2
}

// Descriptor returns the descriptor of the instance being run.
func (e *Execution) Descriptor() Descriptor {
	return e.Instance.Descriptor
}

// Param returns a parameter by key.
func (e *Execution) Param(key string) (any, bool) {
	v, ok := e.Params[key]
	return v, ok
}
