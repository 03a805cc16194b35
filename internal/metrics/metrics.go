package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesReceived counts inbound chat messages by variant (webhook, poll).
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoreply_messages_received_total",
			Help: "Inbound chat messages by source variant.",
		},
		[]string{"variant"},
	)

	// Replies counts computed replies by how they were produced (rule, default, ai).
	Replies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoreply_replies_total",
			Help: "Replies by reply source.",
		},
		[]string{"source"},
	)

	DuplicatesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoreply_duplicates_dropped_total",
			Help: "Messages skipped because their id was already seen.",
		},
		[]string{"variant"},
	)

	GenerationFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoreply_generation_failures_total",
			Help: "Completion calls that failed, timed out or returned nothing.",
		},
	)

	SinkFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "autoreply_sink_failures_total",
			Help: "Replies that could not be delivered.",
		},
		[]string{"sink"},
	)

	ScanFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "autoreply_scan_failures_total",
			Help: "Chat surface scans that returned an error.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesReceived,
		Replies,
		DuplicatesDropped,
		GenerationFailures,
		SinkFailures,
		ScanFailures,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
