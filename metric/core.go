package metric

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Namespace for all middleware metrics
const Namespace = "ros3"

// Metrics contains all core middleware metrics (not application-specific)
type Metrics struct {
	// Bus metrics
	MessagesPublished *prometheus.CounterVec
	BytesPublished    *prometheus.CounterVec
	MessagesDelivered *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	QueueDepth        *prometheus.GaugeVec
	Subscribers       *prometheus.GaugeVec

	// Codec metrics
	SerializationErrors *prometheus.CounterVec

	// Executor metrics
	TasksSubmitted  *prometheus.CounterVec
	TasksCompleted  *prometheus.CounterVec
	TaskLatency     *prometheus.HistogramVec
	DeadlineMisses  prometheus.Counter
	DeadlineOverrun prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all core metrics
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bus",
				Name:      "messages_published_total",
				Help:      "Total number of messages published per topic",
			},
			[]string{"topic", "format"},
		),

		BytesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bus",
				Name:      "bytes_published_total",
				Help:      "Total encoded payload bytes published per topic",
			},
			[]string{"topic"},
		),

		MessagesDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bus",
				Name:      "messages_delivered_total",
				Help:      "Total number of messages received by subscribers per topic",
			},
			[]string{"topic"},
		),

		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "bus",
				Name:      "messages_dropped_total",
				Help:      "Messages dropped by overflow policy per topic",
			},
			[]string{"topic", "policy"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "bus",
				Name:      "queue_depth",
				Help:      "Current delivery queue depth per topic",
			},
			[]string{"topic"},
		),

		Subscribers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "bus",
				Name:      "subscribers",
				Help:      "Currently registered subscribers per topic",
			},
			[]string{"topic"},
		),

		SerializationErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "codec",
				Name:      "errors_total",
				Help:      "Encode and decode failures per wire format",
			},
			[]string{"format", "op"},
		),

		TasksSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "executor",
				Name:      "tasks_submitted_total",
				Help:      "Tasks submitted per scheduling lane",
			},
			[]string{"lane"},
		),

		TasksCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "executor",
				Name:      "tasks_completed_total",
				Help:      "Tasks finished per lane and outcome",
			},
			[]string{"lane", "status"},
		),

		TaskLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "executor",
				Name:      "task_latency_seconds",
				Help:      "Schedule-to-completion latency per lane",
				Buckets: []float64{
					0.00005, 0.0001, 0.00025, 0.0005, 0.001,
					0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0,
				},
			},
			[]string{"lane"},
		),

		DeadlineMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "executor",
				Name:      "deadline_misses_total",
				Help:      "Completed tasks whose execution exceeded their deadline",
			},
		),

		DeadlineOverrun: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Subsystem: "executor",
				Name:      "deadline_overrun_seconds",
				Help:      "How far past their deadline missed tasks completed",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
		),
	}
}
