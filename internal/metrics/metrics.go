// Package metrics provides Prometheus metrics for the facemirror server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facemirror_status_polls_total",
			Help: "Total number of status file polls",
		},
		[]string{"result"}, // changed | unchanged
	)

	pollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "facemirror_status_poll_duration_seconds",
			Help:    "Status file poll duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	statusUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "facemirror_status_updates_total",
			Help: "Total number of status records republished to clients",
		},
	)

	broadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "facemirror_ws_broadcasts_total",
			Help: "Total number of WebSocket messages broadcast, by type",
		},
		[]string{"type"},
	)

	wsClientsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "facemirror_ws_clients_active",
			Help: "Number of currently connected WebSocket clients",
		},
	)
)

// RecordPoll records one poll of the status file.
func RecordPoll(changed bool, d time.Duration) {
	result := "unchanged"
	if changed {
		result = "changed"
	}
	pollsTotal.WithLabelValues(result).Inc()
	pollDuration.Observe(d.Seconds())
}

// RecordStatusUpdate records a republished status record.
func RecordStatusUpdate() {
	statusUpdatesTotal.Inc()
}

// RecordBroadcast records a broadcast message by type.
func RecordBroadcast(msgType string) {
	broadcastsTotal.WithLabelValues(msgType).Inc()
}

// SetWSClientsActive sets the active WebSocket client gauge.
func SetWSClientsActive(n int) {
	wsClientsActive.Set(float64(n))
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
