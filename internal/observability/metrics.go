package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	adminRequestsTotal  *prometheus.CounterVec
	adminLatencySeconds *prometheus.HistogramVec
	adminErrorsTotal    *prometheus.CounterVec

	taskRunsTotal       *prometheus.CounterVec
	taskDurationSeconds *prometheus.HistogramVec
	taskSkippedTotal    *prometheus.CounterVec

	sweepEntityFailures *prometheus.CounterVec
	answerEvaluations   *prometheus.CounterVec
	eventsPublished     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the pipeline.
func RegisterMetrics() {
	registerOnce.Do(func() {
		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_errors_total",
			Help: "Total number of error responses returned by admin endpoints.",
		}, []string{"method", "route", "status"})

		taskRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_task_runs_total",
			Help: "Scheduled task executions by outcome.",
		}, []string{"task", "outcome"})

		taskDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_task_duration_seconds",
			Help:    "Wall-clock duration of scheduled task executions.",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 300},
		}, []string{"task"})

		taskSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_task_skipped_total",
			Help: "Ticks skipped because the previous run still held the task lock.",
		}, []string{"task"})

		sweepEntityFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statistics_entity_failures_total",
			Help: "Aggregate recalculations that failed during a sweep.",
		}, []string{"entity"})

		answerEvaluations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "answer_evaluations_total",
			Help: "Submitted answers by evaluation source.",
		}, []string{"source"})

		eventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_events_published_total",
			Help: "Pipeline events published to the brokers.",
		}, []string{"type"})

		prometheus.MustRegister(
			adminRequestsTotal, adminLatencySeconds, adminErrorsTotal,
			taskRunsTotal, taskDurationSeconds, taskSkippedTotal,
			sweepEntityFailures, answerEvaluations, eventsPublished,
		)
	})
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for admin error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}

// TaskRuns counts scheduled executions labelled by task and outcome.
func TaskRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return taskRunsTotal
}

// TaskDuration observes scheduled execution time.
func TaskDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return taskDurationSeconds
}

// TaskSkipped counts overlapping ticks.
func TaskSkipped() *prometheus.CounterVec {
	RegisterMetrics()
	return taskSkippedTotal
}

// SweepEntityFailures counts per-entity failures of the statistics sweep.
func SweepEntityFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return sweepEntityFailures
}

// AnswerEvaluations counts graded answers by source.
func AnswerEvaluations() *prometheus.CounterVec {
	RegisterMetrics()
	return answerEvaluations
}

// EventsPublished counts broker publications by event type.
func EventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsPublished
}
