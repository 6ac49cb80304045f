// Package memory provides an in-memory job.Store for instance history.
// Safe for concurrent access. Intended for tests, development and
// single-node deployments that do not need history across restarts.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
	"github.com/xraph/jobrun/store"
)

var _ store.Store = (*Store)(nil)

// Store is an in-memory instance history.
type Store struct {
	mu        sync.RWMutex
	instances map[string]*job.Instance
}

// New returns a new empty Store.
func New() *Store {
	return &Store{instances: make(map[string]*job.Instance)}
}

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// SaveInstance stores a copy of inst, replacing any previous record.
func (m *Store) SaveInstance(_ context.Context, inst *job.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.instances[inst.ID.String()] = inst.Clone()
	return nil
}

// GetInstance returns a copy of the stored instance.
func (m *Store) GetInstance(_ context.Context, instanceID id.InstanceID) (*job.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[instanceID.String()]
	if !ok {
		return nil, jobrun.ErrInstanceNotFound
	}
	return inst.Clone(), nil
}

// ListInstances returns matching instances, newest ScheduledAt first.
func (m *Store) ListInstances(_ context.Context, opts job.ListOpts) ([]*job.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*job.Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		if opts.JobName != "" && inst.JobName != opts.JobName {
			continue
		}
		if opts.Status != "" && inst.Status != opts.Status {
			continue
		}
		result = append(result, inst.Clone())
	}

	// Tie-break on ID so output is deterministic.
	sort.Slice(result, func(i, k int) bool {
		if !result[i].ScheduledAt.Equal(result[k].ScheduledAt) {
			return result[i].ScheduledAt.After(result[k].ScheduledAt)
		}
		return result[i].ID.String() > result[k].ID.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result, nil
}

// Prune deletes terminal instances that completed before the cutoff and
// returns how many were removed.
func (m *Store) Prune(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for k, inst := range m.instances {
		if inst.Status.IsTerminal() && inst.CompletedAt != nil && inst.CompletedAt.Before(before) {
			delete(m.instances, k)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored instances.
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.instances)
}
