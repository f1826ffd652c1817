package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveFeeds counts open live query feeds.
	ActiveFeeds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clinic_live_feeds_active",
			Help: "Number of open live query feeds",
		},
	)

	SnapshotsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_live_snapshots_total",
			Help: "Snapshots delivered to live query subscribers",
		},
		[]string{"collection", "result"},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "clinic_websocket_connections",
			Help: "Open realtime websocket connections",
		},
	)

	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_retention_messages_deleted_total",
			Help: "Chat messages purged by the retention sweeper",
		},
	)

	RetentionThreadFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "clinic_retention_thread_failures_total",
			Help: "Threads whose purge batch failed",
		},
	)

	RetentionRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clinic_retention_runs_total",
			Help: "Retention sweeps by trigger",
		},
		[]string{"trigger"},
	)
)
