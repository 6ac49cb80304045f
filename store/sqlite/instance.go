package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
)

type instanceModel struct {
	grove.BaseModel `grove:"table:jobrun_instances"`

	ID            string `grove:"id,pk"`
	JobName       string `grove:"job_name,notnull"`
	Descriptor    string `grove:"descriptor,notnull"`
	Status        string `grove:"status,notnull"`
	ScheduledAt   int64  `grove:"scheduled_at,notnull"`
	StartedAt     *int64 `grove:"started_at"`
	CompletedAt   *int64 `grove:"completed_at"`
	Duration      *int64 `grove:"duration"`
	Attempt       int    `grove:"attempt,notnull"`
	RetryCount    int    `grove:"retry_count,notnull"`
	ErrorMessage  string `grove:"error_message,notnull"`
	ExecutionNode string `grove:"execution_node,notnull"`
	TraceID       string `grove:"trace_id,notnull"`
	UpdatedAt     int64  `grove:"updated_at,notnull"`
}

func toInstanceModel(inst *job.Instance) (*instanceModel, error) {
	desc, err := json.Marshal(inst.Descriptor)
	if err != nil {
		return nil, err
	}
	m := &instanceModel{
		ID:            inst.ID.String(),
		JobName:       inst.JobName,
		Descriptor:    string(desc),
		Status:        string(inst.Status),
		ScheduledAt:   inst.ScheduledAt.UnixNano(),
		StartedAt:     nanos(inst.StartedAt),
		CompletedAt:   nanos(inst.CompletedAt),
		Attempt:       inst.Attempt,
		RetryCount:    inst.RetryCount,
		ErrorMessage:  inst.ErrorMessage,
		ExecutionNode: inst.ExecutionNode,
		TraceID:       inst.TraceID,
		UpdatedAt:     time.Now().UnixNano(),
	}
	if inst.Duration != nil {
		d := int64(*inst.Duration)
		m.Duration = &d
	}
	return m, nil
}

func fromInstanceModel(m *instanceModel) (*job.Instance, error) {
	parsedID, err := id.ParseInstanceID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("jobrun/sqlite: parse instance id %q: %w", m.ID, err)
	}
	inst := &job.Instance{
		ID:            parsedID,
		JobName:       m.JobName,
		Status:        job.Status(m.Status),
		ScheduledAt:   time.Unix(0, m.ScheduledAt).UTC(),
		StartedAt:     fromNanos(m.StartedAt),
		CompletedAt:   fromNanos(m.CompletedAt),
		Attempt:       m.Attempt,
		RetryCount:    m.RetryCount,
		ErrorMessage:  m.ErrorMessage,
		ExecutionNode: m.ExecutionNode,
		TraceID:       m.TraceID,
	}
	if err := json.Unmarshal([]byte(m.Descriptor), &inst.Descriptor); err != nil {
		return nil, fmt.Errorf("jobrun/sqlite: unmarshal descriptor of %s: %w", m.ID, err)
	}
	if m.Duration != nil {
		d := time.Duration(*m.Duration)
		inst.Duration = &d
	}
	return inst, nil
}

// SaveInstance inserts the instance or replaces the stored record.
func (s *Store) SaveInstance(ctx context.Context, inst *job.Instance) error {
	m, err := toInstanceModel(inst)
	if err != nil {
		return fmt.Errorf("jobrun/sqlite: marshal descriptor: %w", err)
	}
	_, err = s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("job_name = EXCLUDED.job_name").
		Set("descriptor = EXCLUDED.descriptor").
		Set("status = EXCLUDED.status").
		Set("scheduled_at = EXCLUDED.scheduled_at").
		Set("started_at = EXCLUDED.started_at").
		Set("completed_at = EXCLUDED.completed_at").
		Set("duration = EXCLUDED.duration").
		Set("attempt = EXCLUDED.attempt").
		Set("retry_count = EXCLUDED.retry_count").
		Set("error_message = EXCLUDED.error_message").
		Set("execution_node = EXCLUDED.execution_node").
		Set("trace_id = EXCLUDED.trace_id").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobrun/sqlite: save instance: %w", err)
	}
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID id.InstanceID) (*job.Instance, error) {
	m := new(instanceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", instanceID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrun.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("jobrun/sqlite: get instance: %w", err)
	}
	return fromInstanceModel(m)
}

// ListInstances returns matching instances, newest ScheduledAt first.
func (s *Store) ListInstances(ctx context.Context, opts job.ListOpts) ([]*job.Instance, error) {
	var models []instanceModel
	q := s.sdb.NewSelect(&models)
	if opts.JobName != "" {
		q = q.Where("job_name = ?", opts.JobName)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	q = q.OrderExpr("scheduled_at DESC, id DESC")

	switch {
	case opts.Limit > 0:
		q = q.Limit(opts.Limit)
	case opts.Offset > 0:
		// SQLite rejects OFFSET without LIMIT.
		q = q.Limit(math.MaxInt)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobrun/sqlite: list instances: %w", err)
	}

	result := make([]*job.Instance, 0, len(models))
	for i := range models {
		inst, err := fromInstanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, inst)
	}
	return result, nil
}

// Prune deletes terminal instances that completed before the cutoff and
// returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*instanceModel)(nil)).
		Where("status IN (?, ?, ?)",
			string(job.StatusSucceeded), string(job.StatusFailed), string(job.StatusCanceled)).
		Where("completed_at < ?", before.UnixNano()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobrun/sqlite: prune instances: %w", err)
	}
	return res.RowsAffected()
}

func nanos(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	n := t.UnixNano()
	return &n
}

func fromNanos(n *int64) *time.Time {
	if n == nil {
		return nil
	}
	t := time.Unix(0, *n).UTC()
	return &t
}
