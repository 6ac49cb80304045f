package middleware_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/job"
	"github.com/xraph/jobrun/lock"
	"github.com/xraph/jobrun/middleware"
)

// contendedProvider never grants a lock.
type contendedProvider struct{}

func (contendedProvider) TryAcquire(context.Context, string, time.Duration) (lock.Token, error) {
	return nil, nil
}

// erroringProvider fails every acquisition.
type erroringProvider struct{ err error }

func (p erroringProvider) TryAcquire(context.Context, string, time.Duration) (lock.Token, error) {
	return nil, p.err
}

// spyProvider grants every lock and records what it was asked for.
type spyProvider struct {
	mu       sync.Mutex
	key      string
	ttl      time.Duration
	released atomic.Int32
	relCtx   context.Context
	relErr   error
}

func (p *spyProvider) TryAcquire(_ context.Context, key string, ttl time.Duration) (lock.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.key, p.ttl = key, ttl
	return &spyToken{p: p, key: key}, nil
}

type spyToken struct {
	p   *spyProvider
	key string
}

func (t *spyToken) Key() string   { return t.key }
func (t *spyToken) Owner() string { return "spy" }
func (t *spyToken) Release(ctx context.Context) error {
	t.p.released.Add(1)
	t.p.relCtx = ctx
	return t.p.relErr
}

func TestLock_BypassWhenConcurrentAllowed(t *testing.T) {
	ex := newExecution(t, context.Background(), job.NewDescriptor("free", job.WithAllowConcurrent(true)))
	out, err := middleware.Lock(contendedProvider{}, discardLogger())(ex, succeed)
	if err != nil || !out.IsSuccess() {
		t.Fatalf("expected bypass, got %v / %v", out.Status(), err)
	}
}

func TestLock_BypassWithoutProvider(t *testing.T) {
	ex := newExecution(t, context.Background(), job.NewDescriptor("solo"))
	out, err := middleware.Lock(nil, discardLogger())(ex, succeed)
	if err != nil || !out.IsSuccess() {
		t.Fatalf("expected bypass, got %v / %v", out.Status(), err)
	}
}

func TestLock_KeyAndTTL(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		opts    []middleware.LockOption
		wantKey string
		wantTTL time.Duration
	}{
		{"default margin", 30 * time.Second, nil, "job:lock:nightly", 35 * time.Second},
		{"no timeout", 0, nil, "job:lock:nightly", 5 * time.Second},
		{"negative timeout", -time.Second, nil, "job:lock:nightly", 5 * time.Second},
		{
			"custom", time.Minute,
			[]middleware.LockOption{middleware.WithLockKeyPrefix("x:"), middleware.WithLockTTLMargin(time.Second)},
			"x:nightly", time.Minute + time.Second,
		},
		{
			"from config", time.Second,
			[]middleware.LockOption{middleware.WithLockConfig(jobrun.Config{LockKeyPrefix: "cfg:", LockTTLMargin: 2 * time.Second})},
			"cfg:nightly", 3 * time.Second,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &spyProvider{}
			ex := newExecution(t, context.Background(), job.NewDescriptor("nightly", job.WithTimeout(tt.timeout)))

			if _, err := middleware.Lock(p, discardLogger(), tt.opts...)(ex, succeed); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.key != tt.wantKey {
				t.Errorf("key = %q, want %q", p.key, tt.wantKey)
			}
			if p.ttl != tt.wantTTL {
				t.Errorf("ttl = %v, want %v", p.ttl, tt.wantTTL)
			}
		})
	}
}

func TestLock_ContendedSkipsBody(t *testing.T) {
	ex := newExecution(t, context.Background(), job.NewDescriptor("nightly"))
	called := false
	var contendedKey string

	out, err := middleware.Lock(contendedProvider{}, discardLogger(),
		middleware.OnLockContended(func(_ *job.Execution, key string) { contendedKey = key }),
	)(ex, func(_ *job.Execution) (job.Outcome, error) {
		called = true
		return job.Success(nil), nil
	})
	if err != nil {
		t.Fatalf("unexpected fault: %v", err)
	}
	if called {
		t.Fatal("body must not run without the lock")
	}
	if out.IsSuccess() || !errors.Is(out.Err(), jobrun.ErrLockNotAcquired) {
		t.Fatalf("expected lock failure, got %v: %v", out.Status(), out.Err())
	}
	if out.ErrorMessage() == "" {
		t.Error("expected a descriptive message")
	}
	if contendedKey != "job:lock:nightly" {
		t.Errorf("contended key = %q", contendedKey)
	}
}

func TestLock_ProviderError(t *testing.T) {
	boom := errors.New("redis down")

	t.Run("live context", func(t *testing.T) {
		ex := newExecution(t, context.Background(), job.NewDescriptor("nightly"))
		out, err := middleware.Lock(erroringProvider{boom}, discardLogger())(ex, succeed)
		if err != nil {
			t.Fatalf("unexpected fault: %v", err)
		}
		if out.Status() != job.StatusFailed || !errors.Is(out.Err(), boom) || !errors.Is(out.Err(), jobrun.ErrLockNotAcquired) {
			t.Fatalf("unexpected outcome %v: %v", out.Status(), out.Err())
		}
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		ex := newExecution(t, ctx, job.NewDescriptor("nightly"))
		out, err := middleware.Lock(erroringProvider{context.Canceled}, discardLogger())(ex, succeed)
		if err != nil {
			t.Fatalf("unexpected fault: %v", err)
		}
		if out.Status() != job.StatusCanceled {
			t.Fatalf("expected canceled, got %v", out.Status())
		}
	})
}

func TestLock_ReleasedOnEveryExitPath(t *testing.T) {
	t.Run("normal return", func(t *testing.T) {
		p := &spyProvider{}
		ex := newExecution(t, context.Background(), job.NewDescriptor("j"))
		_, _ = middleware.Lock(p, discardLogger())(ex, succeed)
		if p.released.Load() != 1 {
			t.Fatalf("released %d times", p.released.Load())
		}
	})

	t.Run("fault", func(t *testing.T) {
		p := &spyProvider{}
		ex := newExecution(t, context.Background(), job.NewDescriptor("j"))
		want := errors.New("boom")
		_, err := middleware.Lock(p, discardLogger())(ex, func(_ *job.Execution) (job.Outcome, error) {
			return job.Outcome{}, want
		})
		if err != want {
			t.Fatalf("expected fault to pass through, got %v", err)
		}
		if p.released.Load() != 1 {
			t.Fatalf("released %d times", p.released.Load())
		}
	})

	t.Run("panic", func(t *testing.T) {
		p := &spyProvider{}
		ex := newExecution(t, context.Background(), job.NewDescriptor("j"))
		func() {
			defer func() {
				if recover() == nil {
					t.Fatal("expected panic to propagate")
				}
			}()
			_, _ = middleware.Lock(p, discardLogger())(ex, func(_ *job.Execution) (job.Outcome, error) {
				panic("kaboom")
			})
		}()
		if p.released.Load() != 1 {
			t.Fatalf("released %d times", p.released.Load())
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		p := &spyProvider{}
		ctx, cancel := context.WithCancel(context.Background())
		ex := newExecution(t, ctx, job.NewDescriptor("j"))
		_, _ = middleware.Lock(p, discardLogger())(ex, func(ex *job.Execution) (job.Outcome, error) {
			cancel()
			return job.Outcome{}, ex.Context().Err()
		})
		if p.released.Load() != 1 {
			t.Fatalf("released %d times", p.released.Load())
		}
		if p.relCtx.Err() != nil {
			t.Fatal("release must run on a context that survives job cancellation")
		}
	})
}

func TestLock_ReleaseErrorDoesNotMaskResult(t *testing.T) {
	p := &spyProvider{relErr: errors.New("release failed")}
	ex := newExecution(t, context.Background(), job.NewDescriptor("j"))

	out, err := middleware.Lock(p, discardLogger())(ex, succeed)
	if err != nil || !out.IsSuccess() {
		t.Fatalf("release failure leaked into result: %v / %v", out.Status(), err)
	}
}

func TestLock_MutualExclusion(t *testing.T) {
	provider := lock.NewMemory()
	stage := middleware.Lock(provider, discardLogger())
	d := job.NewDescriptor("exclusive")

	var (
		running atomic.Int32
		overlap atomic.Bool
		ran     atomic.Int32
		wg      sync.WaitGroup
	)
	body := func(_ *job.Execution) (job.Outcome, error) {
		if running.Add(1) > 1 {
			overlap.Store(true)
		}
		ran.Add(1)
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return job.Success(nil), nil
	}

	exs := make([]*job.Execution, 32)
	for i := range exs {
		exs[i] = newExecution(t, context.Background(), d)
	}
	for _, ex := range exs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = stage(ex, body)
		}()
	}
	wg.Wait()

	if overlap.Load() {
		t.Fatal("two instances held the lock at the same time")
	}
	if ran.Load() == 0 {
		t.Fatal("expected at least one instance to run")
	}
}
