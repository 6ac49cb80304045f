package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
)

var _ Provider = (*Memory)(nil)

type memoryEntry struct {
	owner   string
	expires time.Time
}

// Memory is an in-process Provider. It gives mutual exclusion between
// goroutines of one process only.
type Memory struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	now  func() time.Time
}

// NewMemory creates an empty in-process lock table.
func NewMemory() *Memory {
	return &Memory{
		held: make(map[string]memoryEntry),
		now:  time.Now,
	}
}

// TryAcquire implements Provider.
func (m *Memory) TryAcquire(ctx context.Context, key string, ttl time.Duration) (Token, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.held[key]; ok && now.Before(e.expires) {
		return nil, nil
	}

	owner := id.NewLockID().String()
	m.held[key] = memoryEntry{owner: owner, expires: now.Add(ttl)}
	return &memoryToken{m: m, key: key, owner: owner}, nil
}

// Held reports whether key is currently locked.
func (m *Memory) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.held[key]
	return ok && m.now().Before(e.expires)
}

func (m *Memory) release(key, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.held[key]
	if !ok || e.owner != owner {
		return jobrun.ErrLockNotHeld
	}
	delete(m.held, key)
	return nil
}

type memoryToken struct {
	m        *Memory
	key      string
	owner    string
	released atomic.Bool
}

func (t *memoryToken) Key() string   { return t.key }
func (t *memoryToken) Owner() string { return t.owner }

func (t *memoryToken) Release(_ context.Context) error {
	if !t.released.CompareAndSwap(false, true) {
		return nil
	}
	return t.m.release(t.key, t.owner)
}
