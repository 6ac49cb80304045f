package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/jobrun"
	"github.com/xraph/jobrun/id"
	"github.com/xraph/jobrun/job"
)

// SaveInstance writes the instance Hash and indexes it, replacing any
// previous record with the same ID.
func (s *Store) SaveInstance(ctx context.Context, inst *job.Instance) error {
	iID := inst.ID.String()
	key := s.instanceKey(iID)

	fields, err := instanceToMap(inst)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	// Drop fields a previous save set that this one leaves empty.
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.ZAdd(ctx, s.indexKey(), goredis.Z{
		Score:  float64(inst.ScheduledAt.UnixMilli()),
		Member: iID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobrun/redis: save instance: %w", err)
	}
	return nil
}

// GetInstance retrieves an instance by ID.
func (s *Store) GetInstance(ctx context.Context, instanceID id.InstanceID) (*job.Instance, error) {
	return s.getInstanceByKey(ctx, s.instanceKey(instanceID.String()))
}

// ListInstances returns matching instances, newest ScheduledAt first.
func (s *Store) ListInstances(ctx context.Context, opts job.ListOpts) ([]*job.Instance, error) {
	ids, err := s.client.ZRevRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("jobrun/redis: list instances zrevrange: %w", err)
	}

	result := make([]*job.Instance, 0, len(ids))
	for _, iID := range ids {
		inst, getErr := s.getInstanceByKey(ctx, s.instanceKey(iID))
		if getErr != nil {
			continue // skip missing
		}
		if opts.JobName != "" && inst.JobName != opts.JobName {
			continue
		}
		if opts.Status != "" && inst.Status != opts.Status {
			continue
		}
		result = append(result, inst)
	}

	// Scores are millisecond precision; order exactly in Go.
	sort.SliceStable(result, func(i, k int) bool {
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
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("jobrun/redis: prune zrange: %w", err)
	}

	var n int64
	for _, iID := range ids {
		inst, getErr := s.getInstanceByKey(ctx, s.instanceKey(iID))
		if getErr != nil {
			continue
		}
		if !inst.Status.IsTerminal() || inst.CompletedAt == nil || !inst.CompletedAt.Before(before) {
			continue
		}

		pipe := s.client.TxPipeline()
		pipe.Del(ctx, s.instanceKey(iID))
		pipe.ZRem(ctx, s.indexKey(), iID)
		if _, err := pipe.Exec(ctx); err != nil {
			return n, fmt.Errorf("jobrun/redis: prune instance: %w", err)
		}
		n++
	}
	return n, nil
}

// ── helpers ──

func instanceToMap(inst *job.Instance) (map[string]interface{}, error) {
	desc, err := json.Marshal(inst.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("jobrun/redis: marshal descriptor: %w", err)
	}

	m := map[string]interface{}{
		"id":             inst.ID.String(),
		"job_name":       inst.JobName,
		"descriptor":     string(desc),
		"status":         string(inst.Status),
		"scheduled_at":   inst.ScheduledAt.Format(time.RFC3339Nano),
		"attempt":        strconv.Itoa(inst.Attempt),
		"retry_count":    strconv.Itoa(inst.RetryCount),
		"error_message":  inst.ErrorMessage,
		"execution_node": inst.ExecutionNode,
		"trace_id":       inst.TraceID,
		"updated_at":     time.Now().UTC().Format(time.RFC3339Nano),
	}
	if inst.StartedAt != nil {
		m["started_at"] = inst.StartedAt.Format(time.RFC3339Nano)
	}
	if inst.CompletedAt != nil {
		m["completed_at"] = inst.CompletedAt.Format(time.RFC3339Nano)
	}
	if inst.Duration != nil {
		m["duration"] = strconv.FormatInt(int64(*inst.Duration), 10)
	}
	return m, nil
}

func (s *Store) getInstanceByKey(ctx context.Context, key string) (*job.Instance, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("jobrun/redis: get instance: %w", err)
	}
	if len(vals) == 0 {
		return nil, jobrun.ErrInstanceNotFound
	}
	return mapToInstance(vals)
}

func mapToInstance(m map[string]string) (*job.Instance, error) {
	iID, err := id.ParseInstanceID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("jobrun/redis: parse instance id: %w", err)
	}

	var desc job.Descriptor
	if err := json.Unmarshal([]byte(m["descriptor"]), &desc); err != nil {
		return nil, fmt.Errorf("jobrun/redis: unmarshal descriptor: %w", err)
	}

	attempt, _ := strconv.Atoi(m["attempt"])                          //nolint:errcheck // best-effort parse from trusted Redis data
	retryCount, _ := strconv.Atoi(m["retry_count"])                   //nolint:errcheck // best-effort parse from trusted Redis data
	scheduledAt, _ := time.Parse(time.RFC3339Nano, m["scheduled_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	inst := &job.Instance{
		ID:            iID,
		JobName:       m["job_name"],
		Descriptor:    desc,
		Status:        job.Status(m["status"]),
		ScheduledAt:   scheduledAt,
		Attempt:       attempt,
		RetryCount:    retryCount,
		ErrorMessage:  m["error_message"],
		ExecutionNode: m["execution_node"],
		TraceID:       m["trace_id"],
	}

	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		inst.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		inst.CompletedAt = &t
	}
	if v := m["duration"]; v != "" {
		ns, _ := strconv.ParseInt(v, 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data
		d := time.Duration(ns)
		inst.Duration = &d
	}
	return inst, nil
}
