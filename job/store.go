package job

import (
	"context"

	"github.com/xraph/jobrun/id"
)

// ListOpts controls pagination and filtering for instance list queries.
type ListOpts struct {
	// JobName filters by job. Empty means all jobs.
	JobName string
	// Status filters by instance status. Empty means all statuses.
	Status Status
	// Limit is the maximum number of instances to return. Zero means no limit.
	Limit int
	// Offset is the number of instances to skip.
	Offset int
}

// Store defines the persistence contract for execution history.
type Store interface {
	// SaveInstance inserts or replaces the instance record.
	SaveInstance(ctx context.Context, inst *Instance) error

	// GetInstance retrieves an instance by ID.
	GetInstance(ctx context.Context, instanceID id.InstanceID) (*Instance, error)

	// ListInstances returns instances ordered by ScheduledAt, newest first.
	ListInstances(ctx context.Context, opts ListOpts) ([]*Instance, error)
}
