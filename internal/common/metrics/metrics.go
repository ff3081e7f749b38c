// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_received_total",
			Help: "Total number of messages received from the queue",
		},
	)

	MessagesHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_handled_total",
			Help: "Messages by outcome (query, validation_failed, skipped, non_target, failed)",
		},
		[]string{"outcome"},
	)

	MessagesDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_deleted_total",
			Help: "Total number of messages deleted after processing",
		},
	)

	ProcessingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_processing_failures_total",
			Help: "Per-message and loop failures by error code",
		},
		[]string{"error_code"},
	)

	PollErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_poll_errors_total",
			Help: "Receive failures that triggered the error backoff",
		},
	)

	ModelCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "genai_completion_calls_total",
			Help: "Completion endpoint calls by pipeline stage and status",
		},
		[]string{"stage", "status"},
	)

	ModelCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genai_completion_duration_seconds",
			Help:    "Duration of completion endpoint calls in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		},
		[]string{"stage"},
	)

	MessageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "queue_message_duration_seconds",
			Help: "End-to-end duration of handling one message in seconds",
		},
	)
)
