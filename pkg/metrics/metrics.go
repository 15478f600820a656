// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration served by the stub service.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests served by the stub service.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TransportDuration tracks conversation service call duration.
	TransportDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retention_transport_duration_seconds",
			Help:    "Conversation service call duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"operation", "result"},
	)

	// ConversationsTotal tracks conversations started, by cancellation reason.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_conversations_total",
			Help: "Total retention conversations started",
		},
		[]string{"reason"},
	)

	// MessagesTotal tracks messages appended to conversations.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_messages_total",
			Help: "Total conversation messages",
		},
		[]string{"sender"},
	)

	// OffersPresented tracks offers shown to users, by offer type.
	OffersPresented = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_offers_presented_total",
			Help: "Total retention offers presented",
		},
		[]string{"type"},
	)

	// OutcomesTotal tracks final conversation outcomes.
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_outcomes_total",
			Help: "Total conversation outcomes",
		},
		[]string{"outcome"},
	)

	// ChatErrorsTotal tracks failed actions surfaced to the user.
	ChatErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_chat_errors_total",
			Help: "Total chat action failures",
		},
		[]string{"action"},
	)

	// TelemetryDropped tracks lifecycle events a sink failed to deliver.
	TelemetryDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retention_telemetry_dropped_total",
			Help: "Telemetry events that could not be delivered",
		},
		[]string{"sink"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordTransport records metrics for a conversation service call.
func RecordTransport(operation, result string, duration float64) {
	TransportDuration.WithLabelValues(operation, result).Observe(duration)
}
