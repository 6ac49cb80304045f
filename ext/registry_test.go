package ext_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/xraph/jobrun/ext"
	"github.com/xraph/jobrun/job"
)

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnInstanceStarted(_ context.Context, _ *job.Instance) error {
	e.calls = append(e.calls, "OnInstanceStarted")
	return nil
}

func (e *allHooksExt) OnInstanceSucceeded(_ context.Context, _ *job.Instance, _ time.Duration) error {
	e.calls = append(e.calls, "OnInstanceSucceeded")
	return nil
}

func (e *allHooksExt) OnInstanceFailed(_ context.Context, _ *job.Instance, _ error) error {
	e.calls = append(e.calls, "OnInstanceFailed")
	return nil
}

func (e *allHooksExt) OnInstanceCanceled(_ context.Context, _ *job.Instance, _ string) error {
	e.calls = append(e.calls, "OnInstanceCanceled")
	return nil
}

func (e *allHooksExt) OnInstanceRetrying(_ context.Context, _ *job.Instance, _ int, _ time.Duration, _ error) error {
	e.calls = append(e.calls, "OnInstanceRetrying")
	return nil
}

func (e *allHooksExt) OnLockContended(_ context.Context, _ *job.Instance, _ string) error {
	e.calls = append(e.calls, "OnLockContended")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// startOnlyExt implements just InstanceStarted.
type startOnlyExt struct {
	calls []string
}

func (e *startOnlyExt) Name() string { return "start-only" }

func (e *startOnlyExt) OnInstanceStarted(_ context.Context, _ *job.Instance) error {
	e.calls = append(e.calls, "OnInstanceStarted")
	return nil
}

// failingExt returns errors from its hooks.
type failingExt struct{}

func (failingExt) Name() string { return "failing" }

func (failingExt) OnInstanceFailed(_ context.Context, _ *job.Instance, _ error) error {
	return errors.New("hook exploded")
}

// orderExt records its name into a shared slice.
type orderExt struct {
	name string
	log  *[]string
}

func (e *orderExt) Name() string { return e.name }

func (e *orderExt) OnInstanceSucceeded(_ context.Context, _ *job.Instance, _ time.Duration) error {
	*e.log = append(*e.log, e.name)
	return nil
}

func testInstance() *job.Instance {
	return job.NewInstance(job.NewDescriptor("test-job"), time.Now())
}

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	so := &startOnlyExt{}
	r.Register(all)
	r.Register(so)

	ctx := context.Background()
	inst := testInstance()

	r.EmitInstanceStarted(ctx, inst)
	if len(all.calls) != 1 || len(so.calls) != 1 {
		t.Fatalf("expected both to see OnInstanceStarted: %v %v", all.calls, so.calls)
	}

	r.EmitInstanceSucceeded(ctx, inst, time.Second)
	if len(all.calls) != 2 || all.calls[1] != "OnInstanceSucceeded" {
		t.Fatalf("all: expected OnInstanceSucceeded as 2nd, got %v", all.calls)
	}
	if len(so.calls) != 1 {
		t.Fatalf("start-only: should still have 1 call, got %v", so.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	inst := testInstance()

	r.EmitInstanceStarted(ctx, inst)
	r.EmitInstanceRetrying(ctx, inst, 1, time.Second, errors.New("transient"))
	r.EmitLockContended(ctx, inst, "job:lock:test-job")
	r.EmitInstanceSucceeded(ctx, inst, time.Second)
	r.EmitInstanceFailed(ctx, inst, errors.New("fail"))
	r.EmitInstanceCanceled(ctx, inst, "stop")
	r.EmitShutdown(ctx)

	expected := []string{
		"OnInstanceStarted", "OnInstanceRetrying", "OnLockContended",
		"OnInstanceSucceeded", "OnInstanceFailed", "OnInstanceCanceled",
		"OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	var buf bytes.Buffer
	r := ext.NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	r.Register(failingExt{})
	after := &allHooksExt{}
	r.Register(after)

	r.EmitInstanceFailed(context.Background(), testInstance(), errors.New("job error"))

	if !strings.Contains(buf.String(), "hook exploded") || !strings.Contains(buf.String(), "extension=failing") {
		t.Fatalf("expected hook error to be logged, got:\n%s", buf.String())
	}
	if len(after.calls) != 1 {
		t.Fatal("a failing hook must not stop later extensions")
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(nil)
	ctx := context.Background()
	inst := testInstance()

	r.EmitInstanceStarted(ctx, inst)
	r.EmitInstanceSucceeded(ctx, inst, 0)
	r.EmitInstanceFailed(ctx, inst, nil)
	r.EmitInstanceCanceled(ctx, inst, "")
	r.EmitInstanceRetrying(ctx, inst, 1, 0, nil)
	r.EmitLockContended(ctx, inst, "")
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		r.Register(&orderExt{name: name, log: &order})
	}

	r.EmitInstanceSucceeded(context.Background(), testInstance(), time.Second)

	if strings.Join(order, ",") != "first,second,third" {
		t.Fatalf("order = %v", order)
	}
}
