package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
)

const instanceColumns = `
	id, job_name, descriptor, status, scheduled_at, started_at, completed_at,
	duration, attempt, retry_count, error_message, execution_node, trace_id`

// SaveInstance inserts the instance or replaces the stored record.
func (s *Store) SaveInstance(ctx context.Context, inst *job.Instance) error {
	desc, err := json.Marshal(inst.Descriptor)
	if err != nil {
		return fmt.Errorf("jobrun/postgres: marshal descriptor: %w", err)
	}

	var duration *int64
	if inst.Duration != nil {
		ns := int64(*inst.Duration)
		duration = &ns
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobrun_instances (`+instanceColumns+`, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (id) DO UPDATE SET
			job_name = EXCLUDED.job_name,
			descriptor = EXCLUDED.descriptor,
			status = EXCLUDED.status,
			scheduled_at = EXCLUDED.scheduled_at,
			started_at = EXCLUDED.started_at,
			completed_at = EXCLUDED.completed_at,
			duration = EXCLUDED.duration,
			attempt = EXCLUDED.attempt,
			retry_count = EXCLUDED.retry_count,
			error_message = EXCLUDED.error_message,
			execution_node = EXCLUDED.execution_node,
			trace_id = EXCLUDED.trace_id,
			updated_at = NOW()`,
		inst.ID.String(), inst.JobName, desc, string(inst.Status),
		inst.ScheduledAt, inst.StartedAt, inst.CompletedAt,
		duration, inst.Attempt, inst.RetryCount,
		inst.ErrorMessage, inst.ExecutionNode, inst.TraceID,
	)
	if err != nil {
		return fmt.Errorf("jobrun/postgres: save instance: %w", err)
	}
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID id.InstanceID) (*job.Instance, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+instanceColumns+` FROM jobrun_instances WHERE id = $1`,
		instanceID.String(),
	)

	inst, err := scanInstance(row)
	if err != nil {
		if isNoRows(err) {
			return nil, jobrun.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("jobrun/postgres: get instance: %w", err)
	}
	return inst, nil
}

// ListInstances returns matching instances, newest ScheduledAt first.
func (s *Store) ListInstances(ctx context.Context, opts job.ListOpts) ([]*job.Instance, error) {
	// LIMIT NULL means no limit.
	var limit *int
	if opts.Limit > 0 {
		limit = &opts.Limit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+instanceColumns+`
		FROM jobrun_instances
		WHERE ($1 = '' OR job_name = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY scheduled_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		opts.JobName, string(opts.Status), limit, max(opts.Offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("jobrun/postgres: list instances: %w", err)
	}
	defer rows.Close()

	var result []*job.Instance
	for rows.Next() {
		inst, scanErr := scanInstance(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("jobrun/postgres: scan instance: %w", scanErr)
		}
		result = append(result, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("jobrun/postgres: list instances: %w", err)
	}
	return result, nil
}

// Prune deletes terminal instances that completed before the cutoff and
// returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM jobrun_instances
		WHERE status IN ('succeeded', 'failed', 'canceled')
		  AND completed_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("jobrun/postgres: prune instances: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanInstance(row pgx.Row) (*job.Instance, error) {
	var (
		inst     job.Instance
		rawID    string
		status   string
		desc     []byte
		duration *int64
	)
	err := row.Scan(
		&rawID, &inst.JobName, &desc, &status,
		&inst.ScheduledAt, &inst.StartedAt, &inst.CompletedAt,
		&duration, &inst.Attempt, &inst.RetryCount,
		&inst.ErrorMessage, &inst.ExecutionNode, &inst.TraceID,
	)
	if err != nil {
		return nil, err
	}

	if inst.ID, err = id.ParseInstanceID(rawID); err != nil {
		return nil, fmt.Errorf("parse instance id: %w", err)
	}
	if err := json.Unmarshal(desc, &inst.Descriptor); err != nil {
		return nil, fmt.Errorf("unmarshal descriptor: %w", err)
	}
	inst.Status = job.Status(status)
	if duration != nil {
		d := time.Duration(*duration)
		inst.Duration = &d
	}
	return &inst, nil
}
