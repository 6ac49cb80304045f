// Package redis implements lock.Provider on Redis.
//
// A lock is a plain string key set with SET NX PX whose value is a unique
// owner token. Release runs a compare-and-delete script so a holder whose
// TTL lapsed cannot remove a lock someone else has since taken.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	provider := redislock.New(client)
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/lock"
)

var _ lock.Provider = (*Provider)(nil)

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Option configures the Provider.
type Option func(*Provider)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// WithPrefix namespaces every key written by the provider.
func WithPrefix(prefix string) Option {
	return func(p *Provider) { p.prefix = prefix }
}

// Provider is a Redis-backed lock provider.
type Provider struct {
	client goredis.Cmdable
	logger *slog.Logger
	prefix string
}

// New creates a Redis lock provider. The caller owns the client lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Provider {
	p := &Provider{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// TryAcquire implements lock.Provider.
func (p *Provider) TryAcquire(ctx context.Context, key string, ttl time.Duration) (lock.Token, error) {
	if ttl < time.Millisecond {
		ttl = time.Millisecond
	}
	full := p.prefix + key
	owner := id.NewLockID().String()

	ok, err := p.client.SetNX(ctx, full, owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("jobrun/redis: acquire %q: %w", key, err)
	}
	if !ok {
		p.logger.Debug("lock held elsewhere", slog.String("key", full))
		return nil, nil
	}
	return &token{p: p, key: key, full: full, owner: owner}, nil
}

// Owner returns the current owner value stored at key, or "" when the key is
// not locked.
func (p *Provider) Owner(ctx context.Context, key string) (string, error) {
	v, err := p.client.Get(ctx, p.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("jobrun/redis: owner %q: %w", key, err)
	}
	return v, nil
}

type token struct {
	p        *Provider
	key      string
	full     string
	owner    string
	mu       sync.Mutex
	released bool
}

func (t *token) Key() string   { return t.key }
func (t *token) Owner() string { return t.owner }

// Release gives the lease back. A failed call leaves the token
// releasable so the caller may retry; once the lease is gone further
// calls return nil.
func (t *token) Release(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return nil
	}
	n, err := releaseScript.Run(ctx, t.p.client, []string{t.full}, t.owner).Int64()
	if err != nil {
		return fmt.Errorf("jobrun/redis: release %q: %w", t.key, err)
	}
	t.released = true
	if n == 0 {
		return jobrun.ErrLockNotHeld
	}
	return nil
}
