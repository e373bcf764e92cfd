package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FriendTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppchat_friend_transitions_total",
			Help: "Friendship transitions by kind and result",
		},
		[]string{"kind", "result"},
	)

	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppchat_dispatch_total",
			Help: "Live event pushes by event and outcome (delivered, offline, dropped)",
		},
		[]string{"event", "outcome"},
	)

	ConnectionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ppchat_ws_connections_active",
			Help: "Registered live connections on this node",
		},
	)

	MessagesRelayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ppchat_messages_relayed_total",
			Help: "Chat messages handled by the relay by result",
		},
		[]string{"result"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ppchat_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		FriendTransitions,
		DispatchTotal,
		ConnectionsActive,
		MessagesRelayed,
		HTTPRequestDuration,
	)
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
