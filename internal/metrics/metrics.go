// Package metrics holds the Prometheus collectors of the messaging service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_messages_sent_total",
			Help: "Messages appended, by message type",
		},
		[]string{"type"},
	)

	ConversationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_conversations_created_total",
			Help: "Conversations created, by type",
		},
		[]string{"type"},
	)

	MarkReads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "messaging_mark_read_total",
			Help: "Successful read watermark advances",
		},
	)

	NotificationsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messaging_notifications_dispatched_total",
			Help: "Notification creations, by outcome (created, failed, dropped)",
		},
		[]string{"outcome"},
	)

	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "messaging_realtime_connections",
			Help: "Open WebSocket connections",
		},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func RecordNotification(outcome string) {
	NotificationsDispatched.WithLabelValues(outcome).Inc()
}

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
