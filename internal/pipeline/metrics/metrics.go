package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TaskEvents mirrors the status tracker counters, labelled by counter name
	TaskEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_task_events_total",
			Help: "Task lifecycle events by counter",
		},
		[]string{"counter"},
	)

	// TasksInProgress tracks started tasks without a terminal outcome
	TasksInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_tasks_in_progress",
			Help: "Started tasks that have not reached a terminal outcome",
		},
	)

	// RequestsTotal tracks upstream calls per endpoint and outcome class
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_requests_total",
			Help: "Total number of upstream requests",
		},
		[]string{"endpoint", "outcome"},
	)

	// RequestLatency tracks upstream call latency
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatcher_request_latency_seconds",
			Help:    "Upstream request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// RequestsInFlight tracks concurrent upstream calls
	RequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_requests_in_flight",
			Help: "Upstream requests currently outstanding",
		},
	)

	// RetriesScheduled counts tasks sent back for another attempt
	RetriesScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_retries_scheduled_total",
			Help: "Total number of retries scheduled",
		},
	)

	// MalformedLines counts input lines skipped by the feeder
	MalformedLines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_malformed_lines_total",
			Help: "Input lines skipped because they could not become a task",
		},
	)

	// SinkErrors counts failed durable-log appends per stream
	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_sink_errors_total",
			Help: "Failed outcome log appends",
		},
		[]string{"stream"},
	)

	// DBConnectionPoolUsage tracks the postgres sink pool usage percentage
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_db_connection_pool_usage_percent",
			Help: "Database connection pool usage percentage",
		},
	)
)
