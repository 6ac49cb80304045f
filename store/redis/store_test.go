package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, opts...), mr
}

func finish(t *testing.T, inst *job.Instance, o job.Outcome, at time.Time) {
	t.Helper()
	if err := inst.Start("node-1", "trc_1", at); err != nil {
		t.Fatalf("Start: %v", err)
	}
	inst.SetAttempt(2)
	if err := inst.Finish(o, at.Add(1500*time.Millisecond)); err != nil {
		t.Fatalf("Finish: %v", err)
	}
}

func TestSaveAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}

	d := job.NewDescriptor("report",
		job.WithTimeout(30*time.Second),
		job.WithPriority(job.PriorityHigh),
		job.WithTags("nightly"),
	)
	inst := job.NewInstance(d, base)
	finish(t, inst, job.Failure("smtp down", nil).WithRetryCount(1), base)

	if err := s.SaveInstance(ctx, inst); err != nil {
		t.Fatalf("SaveInstance: %v", err)
	}
	got, err := s.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}

	if got.ID.String() != inst.ID.String() || got.JobName != "report" {
		t.Fatalf("unexpected instance %+v", got)
	}
	if got.Status != job.StatusFailed || got.ErrorMessage != "smtp down" {
		t.Errorf("status/error = %v / %q", got.Status, got.ErrorMessage)
	}
	if got.RetryCount != 1 || got.Attempt != 2 {
		t.Errorf("retry/attempt = %d / %d", got.RetryCount, got.Attempt)
	}
	if got.ExecutionNode != "node-1" || got.TraceID != "trc_1" {
		t.Errorf("node/trace = %q / %q", got.ExecutionNode, got.TraceID)
	}
	if !got.ScheduledAt.Equal(base) || !got.StartedAt.Equal(base) {
		t.Errorf("timestamps = %v / %v", got.ScheduledAt, got.StartedAt)
	}
	if got.Duration == nil || *got.Duration != 1500*time.Millisecond {
		t.Errorf("Duration = %v", got.Duration)
	}
	if got.Descriptor.Timeout != 30*time.Second || got.Descriptor.Priority != job.PriorityHigh {
		t.Errorf("descriptor = %+v", got.Descriptor)
	}
	if len(got.Descriptor.Tags) != 1 || got.Descriptor.Tags[0] != "nightly" {
		t.Errorf("tags = %v", got.Descriptor.Tags)
	}
}

func TestSaveReplacesAndClearsFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	inst := job.NewInstance(job.NewDescriptor("report"), base)
	if err := inst.Start("node-1", "trc_1", base); err != nil {
		t.Fatalf("Start: %v", err)
	}
	inst.ErrorMessage = "stale"
	_ = s.SaveInstance(ctx, inst)

	if err := inst.Finish(job.Success(nil), base.Add(time.Second)); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	_ = s.SaveInstance(ctx, inst)

	got, err := s.GetInstance(ctx, inst.ID)
	if err != nil {
		t.Fatalf("GetInstance: %v", err)
	}
	if got.Status != job.StatusSucceeded || got.ErrorMessage != "" {
		t.Fatalf("status/error = %v / %q", got.Status, got.ErrorMessage)
	}

	all, _ := s.ListInstances(ctx, job.ListOpts{})
	if len(all) != 1 {
		t.Fatalf("expected one indexed instance, got %d", len(all))
	}
}

func TestGetNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.GetInstance(context.Background(), id.NewInstanceID())
	if !errors.Is(err, jobrun.ErrInstanceNotFound) {
		t.Fatalf("expected ErrInstanceNotFound, got %v", err)
	}
}

func TestListInstances(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	a1 := job.NewInstance(job.NewDescriptor("a"), base)
	a2 := job.NewInstance(job.NewDescriptor("a"), base.Add(time.Minute))
	b1 := job.NewInstance(job.NewDescriptor("b"), base.Add(2*time.Minute))
	finish(t, a2, job.Failure("x", nil), base)
	for _, inst := range []*job.Instance{a1, a2, b1} {
		if err := s.SaveInstance(ctx, inst); err != nil {
			t.Fatalf("SaveInstance: %v", err)
		}
	}

	tests := []struct {
		name string
		opts job.ListOpts
		want []*job.Instance
	}{
		{"all newest first", job.ListOpts{}, []*job.Instance{b1, a2, a1}},
		{"by job", job.ListOpts{JobName: "a"}, []*job.Instance{a2, a1}},
		{"by status", job.ListOpts{Status: job.StatusFailed}, []*job.Instance{a2}},
		{"limit", job.ListOpts{Limit: 2}, []*job.Instance{b1, a2}},
		{"offset", job.ListOpts{Offset: 1, Limit: 1}, []*job.Instance{a2}},
		{"offset past end", job.ListOpts{Offset: 5}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListInstances(ctx, tt.opts)
			if err != nil {
				t.Fatalf("ListInstances: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d instances, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID.String() != tt.want[i].ID.String() {
					t.Errorf("[%d] = %s, want %s", i, got[i].ID, tt.want[i].ID)
				}
			}
		})
	}
}

func TestPrune(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	old := job.NewInstance(job.NewDescriptor("a"), base)
	finish(t, old, job.Success(nil), base)
	recent := job.NewInstance(job.NewDescriptor("a"), base)
	finish(t, recent, job.Success(nil), base.Add(time.Hour))
	pending := job.NewInstance(job.NewDescriptor("a"), base)
	for _, inst := range []*job.Instance{old, recent, pending} {
		_ = s.SaveInstance(ctx, inst)
	}

	n, err := s.Prune(ctx, base.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("pruned %d, want 1", n)
	}
	if mr.Exists(s.instanceKey(old.ID.String())) {
		t.Fatal("old instance hash should be gone")
	}
	if left, _ := s.ListInstances(ctx, job.ListOpts{}); len(left) != 2 {
		t.Fatalf("%d instances left, want 2", len(left))
	}
}

func TestPrefix(t *testing.T) {
	s, mr := newTestStore(t, WithPrefix("tenant-a:"))
	inst := job.NewInstance(job.NewDescriptor("a"), base)
	if err := s.SaveInstance(context.Background(), inst); err != nil {
		t.Fatalf("SaveInstance: %v", err)
	}
	if !mr.Exists("tenant-a:instance:" + inst.ID.String()) {
		t.Fatalf("expected prefixed key, have %v", mr.Keys())
	}
}

func TestConnectionError(t *testing.T) {
	s, mr := newTestStore(t)
	mr.Close()

	err := s.SaveInstance(context.Background(), job.NewInstance(job.NewDescriptor("a"), base))
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if errors.Is(err, jobrun.ErrInstanceNotFound) {
		t.Fatalf("connection error misreported as not found: %v", err)
	}
}
