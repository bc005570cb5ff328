// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_requests_total",
			Help: "Chat requests answered, by response tier",
		},
		[]string{"tier", "domain"},
	)

	ChatRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_request_errors_total",
			Help: "Chat requests that ended in an error response",
		},
		[]string{"error_code"},
	)

	PlanExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_plan_executions_total",
			Help: "Query plans executed, by table and outcome",
		},
		[]string{"table", "status"},
	)

	PlanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_plan_duration_seconds",
			Help:    "Duration of a single query plan execution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_stage_duration_seconds",
			Help:    "Duration of traced pipeline stages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage", "status"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_generation_duration_seconds",
			Help:    "Duration of text generation calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
		[]string{"tier", "status"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)
)
