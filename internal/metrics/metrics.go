// Package metrics holds the Prometheus collectors of the editor service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionRejections counts proposed connections refused by the
	// validator, by reason.
	ConnectionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowcanvas_connection_rejections_total",
		Help: "Proposed connections rejected by the validator, by reason",
	}, []string{"reason"})

	// GroupTransitions counts attachment lifecycle transitions.
	GroupTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowcanvas_group_transitions_total",
		Help: "Attachment lifecycle transitions, by transition",
	}, []string{"transition"})

	// Commands counts editor commands by input kind and outcome.
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowcanvas_commands_total",
		Help: "Editor commands by input and result",
	}, []string{"input", "result"})

	// PersistenceFailures counts commands the store refused, by store call.
	PersistenceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flowcanvas_persistence_failures_total",
		Help: "Persistence failures by store call",
	}, []string{"call"})

	// PersistenceDuration tracks how long a command takes to reach the store.
	PersistenceDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flowcanvas_persistence_duration_seconds",
		Help:    "Time to persist one command",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
	})

	// OutboxDepth is the number of commands waiting to be persisted.
	OutboxDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowcanvas_outbox_depth",
		Help: "Commands waiting to be persisted",
	})

	// Sessions is the number of open editor sessions.
	Sessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flowcanvas_sessions",
		Help: "Open editor sessions",
	})
)

// ObserveSince records the time elapsed since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
