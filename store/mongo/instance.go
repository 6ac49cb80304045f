package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
)

type instanceModel struct {
	grove.BaseModel `grove:"table:jobrun_instances" bson:"-"`

	ID            string         `grove:"id,pk" bson:"_id"`
	JobName       string         `bson:"job_name"`
	Descriptor    job.Descriptor `bson:"descriptor"`
	Status        string         `bson:"status"`
	ScheduledAt   time.Time      `bson:"scheduled_at"`
	StartedAt     *time.Time     `bson:"started_at,omitempty"`
	CompletedAt   *time.Time     `bson:"completed_at,omitempty"`
	Duration      *int64         `bson:"duration,omitempty"`
	Attempt       int            `bson:"attempt"`
	RetryCount    int            `bson:"retry_count"`
	ErrorMessage  string         `bson:"error_message,omitempty"`
	ExecutionNode string         `bson:"execution_node,omitempty"`
	TraceID       string         `bson:"trace_id,omitempty"`
	UpdatedAt     time.Time      `bson:"updated_at"`
}

func toInstanceModel(inst *job.Instance) *instanceModel {
	m := &instanceModel{
		ID:            inst.ID.String(),
		JobName:       inst.JobName,
		Descriptor:    inst.Descriptor,
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
	return m
}

func fromInstanceModel(m *instanceModel) (*job.Instance, error) {
	parsedID, err := id.ParseInstanceID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("jobrun/mongo: parse instance id %q: %w", m.ID, err)
	}
	inst := &job.Instance{
		ID:            parsedID,
		JobName:       m.JobName,
		Descriptor:    m.Descriptor,
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
	if m.Duration != nil {
		d := time.Duration(*m.Duration)
		inst.Duration = &d
	}
	return inst, nil
}

// SaveInstance inserts the instance or replaces the stored document.
func (s *Store) SaveInstance(ctx context.Context, inst *job.Instance) error {
	m := toInstanceModel(inst)
	_, err := s.mdb.Collection(s.col).ReplaceOne(ctx,
		bson.M{"_id": m.ID}, m,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("jobrun/mongo: save instance: %w", err)
	}
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID id.InstanceID) (*job.Instance, error) {
	var m instanceModel
	err := s.mdb.NewFind(&m).
		Collection(s.col).
		Filter(bson.M{"_id": instanceID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, jobrun.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("jobrun/mongo: get instance: %w", err)
	}
	return fromInstanceModel(&m)
}

// ListInstances returns matching instances, newest ScheduledAt first.
func (s *Store) ListInstances(ctx context.Context, opts job.ListOpts) ([]*job.Instance, error) {
	filter := bson.M{}
	if opts.JobName != "" {
		filter["job_name"] = opts.JobName
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	var models []instanceModel
	q := s.mdb.NewFind(&models).
		Collection(s.col).
		Filter(filter).
		Sort(bson.D{
			{Key: "scheduled_at", Value: -1},
			{Key: "_id", Value: -1},
		})
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobrun/mongo: list instances: %w", err)
	}

	result := make([]*job.Instance, 0, len(models))
	for i := range models {
		inst, convErr := fromInstanceModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		result = append(result, inst)
	}
	return result, nil
}

// Prune deletes terminal instances that completed before the cutoff and
// returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*instanceModel)(nil)).
		Collection(s.col).
		Filter(bson.M{
			"status": bson.M{"$in": []string{
				string(job.StatusSucceeded), string(job.StatusFailed), string(job.StatusCanceled),
			}},
			"completed_at": bson.M{"$lt": before},
		}).
		Many().
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobrun/mongo: prune instances: %w", err)
	}
	return res.DeletedCount(), nil
}
