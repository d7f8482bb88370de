// Package metrics provides Prometheus instrumentation for the chat server.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "route", "status"},
	)

	// ConnectionsActive tracks open WebSocket connections.
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections_active",
			Help: "Number of open WebSocket connections",
		},
	)

	// AgentsOnline tracks the size of the agent presence set.
	AgentsOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_agents_online",
			Help: "Number of connections marked as human agents",
		},
	)

	// MessagesTotal counts persisted messages by sender role.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Persisted chat messages",
		},
		[]string{"role"},
	)

	// MessageErrorsTotal counts messages rejected or failed before broadcast.
	MessageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_message_errors_total",
			Help: "Messages that were rejected or failed to persist",
		},
		[]string{"reason"},
	)

	// ResponderRepliesTotal counts automated replies by intent and outcome.
	ResponderRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_responder_replies_total",
			Help: "Automated responder replies",
		},
		[]string{"intent", "outcome"},
	)

	// ResponderDuration tracks time spent producing an automated reply.
	ResponderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_responder_duration_seconds",
			Help:    "Automated responder latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	// GroundingRejectsTotal counts product links replaced by the placeholder.
	GroundingRejectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_grounding_rejects_total",
			Help: "Generated product links that referenced items outside the lookup set",
		},
	)

	// CatalogLookupsTotal counts catalog lookups by the tier that produced the result.
	CatalogLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_catalog_lookups_total",
			Help: "Catalog lookups by resolving tier",
		},
		[]string{"tier"},
	)

	// ContextEntries tracks live conversation context entries.
	ContextEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_context_entries",
			Help: "Conversation context entries currently held",
		},
	)
)

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request.
func RecordRequest(method, route string, status int, duration time.Duration) {
	RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordReply records the outcome of one automated responder turn.
func RecordReply(intent, outcome, provider string, duration time.Duration) {
	ResponderRepliesTotal.WithLabelValues(intent, outcome).Inc()
	ResponderDuration.WithLabelValues(provider).Observe(duration.Seconds())
}
