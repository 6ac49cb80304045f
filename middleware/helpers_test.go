package middleware_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
	"github.com/xraph/jobrun/middleware"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newExecution(t *testing.T, ctx context.Context, d job.Descriptor) *job.Execution {
	t.Helper()
	inst := job.NewInstance(d, time.Now())
	if err := inst.Start("test-node", id.NewTraceID().String(), time.Now()); err != nil {
		t.Fatalf("start instance: %v", err)
	}
	return job.NewExecution(ctx, inst, nil)
}

func succeed(_ *job.Execution) (job.Outcome, error) {
	return job.Success("ok"), nil
}

// recordingSink collects samples for assertions.
type recordingSink struct {
	samples []middleware.Sample
}

func (r *recordingSink) Record(_ context.Context, s middleware.Sample) {
	r.samples = append(r.samples, s)
}
