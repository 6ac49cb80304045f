package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/lock"
)

func setupProvider(t *testing.T, opts ...Option) (*Provider, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, opts...), mr
}

func TestAcquireRelease(t *testing.T) {
	p, mr := setupProvider(t)
	ctx := context.Background()

	tok, err := p.TryAcquire(ctx, lock.Key("nightly"), time.Minute)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if tok == nil {
		t.Fatal("expected lock to be acquired")
	}

	got, err := mr.Get("job:lock:nightly")
	if err != nil {
		t.Fatalf("miniredis Get: %v", err)
	}
	if got != tok.Owner() {
		t.Errorf("stored owner = %q, want %q", got, tok.Owner())
	}
	if ttl := mr.TTL("job:lock:nightly"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}

	contended, err := p.TryAcquire(ctx, lock.Key("nightly"), time.Minute)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if contended != nil {
		t.Fatal("expected second acquisition to fail")
	}

	if err := tok.Release(ctx); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if mr.Exists("job:lock:nightly") {
		t.Fatal("expected key to be deleted on release")
	}
	if err := tok.Release(ctx); err != nil {
		t.Fatalf("second Release: %v", err)
	}
}

func TestExpiredLockIsNotDeletedByStaleHolder(t *testing.T) {
	p, mr := setupProvider(t)
	ctx := context.Background()

	stale, err := p.TryAcquire(ctx, "k", time.Second)
	if err != nil || stale == nil {
		t.Fatalf("expected first lock, got %v / %v", stale, err)
	}

	mr.FastForward(2 * time.Second)

	fresh, err := p.TryAcquire(ctx, "k", time.Minute)
	if err != nil || fresh == nil {
		t.Fatalf("expected lock after expiry, got %v / %v", fresh, err)
	}

	if err := stale.Release(ctx); !errors.Is(err, jobrun.ErrLockNotHeld) {
		t.Fatalf("expected ErrLockNotHeld, got %v", err)
	}

	owner, err := p.Owner(ctx, "k")
	if err != nil {
		t.Fatalf("Owner: %v", err)
	}
	if owner != fresh.Owner() {
		t.Fatalf("owner = %q, want fresh holder %q", owner, fresh.Owner())
	}
}

func TestPrefix(t *testing.T) {
	p, mr := setupProvider(t, WithPrefix("svc:"))

	tok, err := p.TryAcquire(context.Background(), lock.Key("a"), time.Minute)
	if err != nil || tok == nil {
		t.Fatalf("expected lock, got %v / %v", tok, err)
	}
	if !mr.Exists("svc:job:lock:a") {
		t.Fatal("expected prefixed key")
	}
	if tok.Key() != "job:lock:a" {
		t.Errorf("Key = %q, want unprefixed key", tok.Key())
	}
}

func TestConnectionError(t *testing.T) {
	p, mr := setupProvider(t)
	mr.Close()

	tok, err := p.TryAcquire(context.Background(), "k", time.Second)
	if err == nil {
		t.Fatal("expected error when redis is down")
	}
	if tok != nil {
		t.Fatal("expected nil token on error")
	}
}

func TestConcurrentAcquire(t *testing.T) {
	p, _ := setupProvider(t)
	ctx := context.Background()

	var (
		wins atomic.Int32
		wg   sync.WaitGroup
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := p.TryAcquire(ctx, "race", time.Minute)
			if err != nil {
				t.Errorf("TryAcquire: %v", err)
				return
			}
			if tok != nil {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins.Load())
	}
}

func TestReleaseCanBeRetriedAfterFailure(t *testing.T) {
	p, mr := setupProvider(t)
	ctx := context.Background()

	tok, err := p.TryAcquire(ctx, "flaky", time.Minute)
	if err != nil || tok == nil {
		t.Fatalf("expected lock, got %v / %v", tok, err)
	}

	mr.SetError("connection reset")
	if err := tok.Release(ctx); err == nil {
		t.Fatal("expected release to fail while redis errors")
	}
	mr.SetError("")

	if !mr.Exists("job:lock:flaky") {
		t.Fatal("lease should survive the failed release")
	}
	if err := tok.Release(ctx); err != nil {
		t.Fatalf("retried Release: %v", err)
	}
	if mr.Exists("job:lock:flaky") {
		t.Fatal("expected key to be deleted by the retried release")
	}
}

func TestReleaseAfterLeaseLostIsFinal(t *testing.T) {
	p, mr := setupProvider(t)
	ctx := context.Background()

	tok, err := p.TryAcquire(ctx, "lost", time.Second)
	if err != nil || tok == nil {
		t.Fatalf("expected lock, got %v / %v", tok, err)
	}
	mr.FastForward(2 * time.Second)

	if err := tok.Release(ctx); !errors.Is(err, jobrun.ErrLockNotHeld) {
		t.Fatalf("expected ErrLockNotHeld, got %v", err)
	}
	if err := tok.Release(ctx); err != nil {
		t.Fatalf("release after ErrLockNotHeld should be a no-op, got %v", err)
	}
}
