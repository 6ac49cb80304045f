package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/xraph/jobrun/middleware"
)

var _ middleware.Sink = (*PrometheusSink)(nil)

// PrometheusSink records middleware samples as Prometheus series.
type PrometheusSink struct {
	Duration   *prometheus.HistogramVec
	Executions *prometheus.CounterVec
	Retries    *prometheus.CounterVec
}

// NewPrometheusSink registers the sink's collectors with reg. A nil reg
// uses prometheus.DefaultRegisterer.
//
// Buckets run from 10ms to roughly 163s.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &PrometheusSink{
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Job execution duration in seconds, including retries",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 15),
			},
			[]string{"job_name", "status"},
		),
		Executions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_executions_total",
				Help:      "Total number of job executions",
			},
			[]string{"job_name", "status"},
		),
		Retries: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_retries_total",
				Help:      "Total number of retries spent by jobs",
			},
			[]string{"job_name"},
		),
	}
}

// Record implements middleware.Sink.
func (s *PrometheusSink) Record(_ context.Context, sample middleware.Sample) {
	status := string(sample.Status)
	s.Duration.WithLabelValues(sample.JobName, status).Observe(sample.Duration.Seconds())
	s.Executions.WithLabelValues(sample.JobName, status).Inc()
	if sample.RetryCount > 0 {
		s.Retries.WithLabelValues(sample.JobName).Add(float64(sample.RetryCount))
	}
}
