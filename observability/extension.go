package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xraph/jobrun/ext"
	"github.com/xraph/jobrun/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.InstanceStarted   = (*MetricsExtension)(nil)
	_ ext.InstanceSucceeded = (*MetricsExtension)(nil)
	_ ext.InstanceFailed    = (*MetricsExtension)(nil)
	_ ext.InstanceCanceled  = (*MetricsExtension)(nil)
	_ ext.InstanceRetrying  = (*MetricsExtension)(nil)
	_ ext.LockContended     = (*MetricsExtension)(nil)
)

// MetricsExtension records instance lifecycle metrics. Register it as a
// jobrun extension to track outcomes, retries, lock contention and the
// number of running instances.
type MetricsExtension struct {
	Started       *prometheus.CounterVec
	Finished      *prometheus.CounterVec
	Retried       *prometheus.CounterVec
	LockContended *prometheus.CounterVec
	Running       *prometheus.GaugeVec
}

// NewMetricsExtension registers the extension's collectors with reg. A nil
// reg uses prometheus.DefaultRegisterer.
func NewMetricsExtension(reg prometheus.Registerer) *MetricsExtension {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &MetricsExtension{
		Started: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_started_total",
			Help:      "Total number of job instances started",
		}, []string{"job_name"}),
		Finished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_finished_total",
			Help:      "Total number of job instances reaching a terminal status",
		}, []string{"job_name", "status"}),
		Retried: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instance_retries_total",
			Help:      "Total number of attempts followed by a retry",
		}, []string{"job_name"}),
		LockContended: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contended_total",
			Help:      "Total number of runs skipped because the job lock was held",
		}, []string{"job_name"}),
		Running: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "instances_running",
			Help:      "Number of job instances currently running",
		}, []string{"job_name"}),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInstanceStarted implements ext.InstanceStarted.
func (m *MetricsExtension) OnInstanceStarted(_ context.Context, inst *job.Instance) error {
	m.Started.WithLabelValues(inst.JobName).Inc()
	m.Running.WithLabelValues(inst.JobName).Inc()
	return nil
}

// OnInstanceSucceeded implements ext.InstanceSucceeded.
func (m *MetricsExtension) OnInstanceSucceeded(_ context.Context, inst *job.Instance, _ time.Duration) error {
	m.finished(inst, job.StatusSucceeded)
	return nil
}

// OnInstanceFailed implements ext.InstanceFailed.
func (m *MetricsExtension) OnInstanceFailed(_ context.Context, inst *job.Instance, _ error) error {
	m.finished(inst, job.StatusFailed)
	return nil
}

// OnInstanceCanceled implements ext.InstanceCanceled.
func (m *MetricsExtension) OnInstanceCanceled(_ context.Context, inst *job.Instance, _ string) error {
	m.finished(inst, job.StatusCanceled)
	return nil
}

// OnInstanceRetrying implements ext.InstanceRetrying.
func (m *MetricsExtension) OnInstanceRetrying(_ context.Context, inst *job.Instance, _ int, _ time.Duration, _ error) error {
	m.Retried.WithLabelValues(inst.JobName).Inc()
	return nil
}

// OnLockContended implements ext.LockContended.
func (m *MetricsExtension) OnLockContended(_ context.Context, inst *job.Instance, _ string) error {
	m.LockContended.WithLabelValues(inst.JobName).Inc()
	return nil
}

func (m *MetricsExtension) finished(inst *job.Instance, status job.Status) {
	m.Finished.WithLabelValues(inst.JobName, string(status)).Inc()
	m.Running.WithLabelValues(inst.JobName).Dec()
}
