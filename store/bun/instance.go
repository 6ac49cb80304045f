package bunstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
)

type instanceModel struct {
	bun.BaseModel `bun:"table:jobrun_instances"`

	ID            string          `bun:"id,pk"`
	JobName       string          `bun:"job_name,notnull"`
	Descriptor    json.RawMessage `bun:"descriptor,type:jsonb,notnull"`
	Status        string          `bun:"status,notnull"`
	ScheduledAt   time.Time       `bun:"scheduled_at,notnull"`
	StartedAt     *time.Time      `bun:"started_at"`
	CompletedAt   *time.Time      `bun:"completed_at"`
	Duration      *int64          `bun:"duration"`
	Attempt       int             `bun:"attempt,notnull"`
	RetryCount    int             `bun:"retry_count,notnull"`
	ErrorMessage  string          `bun:"error_message,notnull"`
	ExecutionNode string          `bun:"execution_node,notnull"`
	TraceID       string          `bun:"trace_id,notnull"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull,default:current_timestamp"`
}

func toInstanceModel(inst *job.Instance) (*instanceModel, error) {
	desc, err := json.Marshal(inst.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("jobrun/bun: marshal descriptor: %w", err)
	}
	m := &instanceModel{
		ID:            inst.ID.String(),
		JobName:       inst.JobName,
		Descriptor:    desc,
		Status:        string(inst.Status),
		ScheduledAt:   inst.ScheduledAt,
		StartedAt:     inst.StartedAt,
		CompletedAt:   inst.CompletedAt,
		Attempt:       inst.Attempt,
		RetryCount:    inst.RetryCount,
		ErrorMessage:  inst.ErrorMessage,
		ExecutionNode: inst.ExecutionNode,
		TraceID:       inst.TraceID,
		UpdatedAt:     time.Now().UTC(),
	}
	if inst.Duration != nil {
		ns := int64(*inst.Duration)
		m.Duration = &ns
	}
	return m, nil
}

func fromInstanceModel(m *instanceModel) (*job.Instance, error) {
	parsedID, err := id.ParseInstanceID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("jobrun/bun: parse instance id %q: %w", m.ID, err)
	}

	inst := &job.Instance{
		ID:            parsedID,
		JobName:       m.JobName,
		Status:        job.Status(m.Status),
		ScheduledAt:   m.ScheduledAt,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
		Attempt:       m.Attempt,
		RetryCount:    m.RetryCount,
		ErrorMessage:  m.ErrorMessage,
		ExecutionNode: m.ExecutionNode,
		TraceID:       m.TraceID,
	}
	if err := json.Unmarshal(m.Descriptor, &inst.Descriptor); err != nil {
		return nil, fmt.Errorf("jobrun/bun: unmarshal descriptor: %w", err)
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
		return err
	}
	_, err = s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
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
		return fmt.Errorf("jobrun/bun: save instance: %w", err)
	}
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID id.InstanceID) (*job.Instance, error) {
	m := new(instanceModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", instanceID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrun.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("jobrun/bun: get instance: %w", err)
	}
	return fromInstanceModel(m)
}

// ListInstances returns matching instances, newest ScheduledAt first.
func (s *Store) ListInstances(ctx context.Context, opts job.ListOpts) ([]*job.Instance, error) {
	var models []instanceModel
	q := s.db.NewSelect().Model(&models).
		OrderExpr("scheduled_at DESC, id DESC")
	if opts.JobName != "" {
		q = q.Where("job_name = ?", opts.JobName)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobrun/bun: list instances: %w", err)
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
	res, err := s.db.NewDelete().Model((*instanceModel)(nil)).
		Where("status IN (?)", bun.In([]string{
			string(job.StatusSucceeded), string(job.StatusFailed), string(job.StatusCanceled),
		})).
		Where("completed_at < ?", before).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobrun/bun: prune instances: %w", err)
	}
	return res.RowsAffected()
}
