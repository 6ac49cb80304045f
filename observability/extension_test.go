package observability_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/xraph/jobrun/job"
	"github.com/xraph/jobrun/middleware"
	"github.com/xraph/jobrun/observability"
)

func newTestInstance() *job.Instance {
	return job.NewInstance(job.NewDescriptor("send-email"), time.Now())
}

func TestMetricsExtension_Name(t *testing.T) {
	e := observability.NewMetricsExtension(prometheus.NewRegistry())
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_Lifecycle(t *testing.T) {
	e := observability.NewMetricsExtension(prometheus.NewRegistry())
	ctx := context.Background()
	inst := newTestInstance()

	for range 3 {
		if err := e.OnInstanceStarted(ctx, inst); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if got := testutil.ToFloat64(e.Running.WithLabelValues("send-email")); got != 3 {
		t.Errorf("Running = %v, want 3", got)
	}

	_ = e.OnInstanceSucceeded(ctx, inst, time.Second)
	_ = e.OnInstanceFailed(ctx, inst, errors.New("boom"))
	_ = e.OnInstanceCanceled(ctx, inst, "stop")

	if got := testutil.ToFloat64(e.Started.WithLabelValues("send-email")); got != 3 {
		t.Errorf("Started = %v, want 3", got)
	}
	for _, status := range []string{"succeeded", "failed", "canceled"} {
		if got := testutil.ToFloat64(e.Finished.WithLabelValues("send-email", status)); got != 1 {
			t.Errorf("Finished[%s] = %v, want 1", status, got)
		}
	}
	if got := testutil.ToFloat64(e.Running.WithLabelValues("send-email")); got != 0 {
		t.Errorf("Running = %v, want 0", got)
	}
}

func TestMetricsExtension_RetryAndContention(t *testing.T) {
	e := observability.NewMetricsExtension(prometheus.NewRegistry())
	ctx := context.Background()
	inst := newTestInstance()

	_ = e.OnInstanceRetrying(ctx, inst, 1, time.Second, errors.New("transient"))
	_ = e.OnInstanceRetrying(ctx, inst, 2, time.Second, errors.New("transient"))
	_ = e.OnLockContended(ctx, inst, "job:lock:send-email")

	if got := testutil.ToFloat64(e.Retried.WithLabelValues("send-email")); got != 2 {
		t.Errorf("Retried = %v, want 2", got)
	}
	if got := testutil.ToFloat64(e.LockContended.WithLabelValues("send-email")); got != 1 {
		t.Errorf("LockContended = %v, want 1", got)
	}
}

func TestPrometheusSink_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := observability.NewPrometheusSink(reg)
	ctx := context.Background()

	sink.Record(ctx, middleware.Sample{JobName: "report", Status: job.StatusSucceeded, Duration: 50 * time.Millisecond})
	sink.Record(ctx, middleware.Sample{JobName: "report", Status: job.StatusFailed, Duration: time.Second, RetryCount: 2})

	if got := testutil.ToFloat64(sink.Executions.WithLabelValues("report", "succeeded")); got != 1 {
		t.Errorf("executions[succeeded] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sink.Executions.WithLabelValues("report", "failed")); got != 1 {
		t.Errorf("executions[failed] = %v, want 1", got)
	}
	if got := testutil.ToFloat64(sink.Retries.WithLabelValues("report")); got != 2 {
		t.Errorf("retries = %v, want 2", got)
	}

	expected := `
# HELP jobrun_job_retries_total Total number of retries spent by jobs
# TYPE jobrun_job_retries_total counter
jobrun_job_retries_total{job_name="report"} 2
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "jobrun_job_retries_total"); err != nil {
		t.Fatal(err)
	}
	if n := testutil.CollectAndCount(sink.Duration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

func TestPrometheusSink_WithMetricsMiddleware(t *testing.T) {
	sink := observability.NewPrometheusSink(prometheus.NewRegistry())
	inst := newTestInstance()
	if err := inst.Start("node", "trc", time.Now()); err != nil {
		t.Fatal(err)
	}
	ex := job.NewExecution(context.Background(), inst, nil)

	_, _ = middleware.Metrics(sink)(ex, func(_ *job.Execution) (job.Outcome, error) {
		return job.Outcome{}, errors.New("fault")
	})

	if got := testutil.ToFloat64(sink.Executions.WithLabelValues("send-email", "failed")); got != 1 {
		t.Errorf("executions[failed] = %v, want 1", got)
	}
}
