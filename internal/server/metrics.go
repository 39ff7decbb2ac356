package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the server's Prometheus instruments.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	ActionsTotal      *prometheus.CounterVec
	HandsCompleted    *prometheus.CounterVec
	TimerExpirations  prometheus.Counter
	BroadcastLatency  prometheus.Histogram
	BroadcastDrops    prometheus.Counter
	EventsAppended    prometheus.Counter
}

// NewMetrics registers the instruments with the given registerer; pass
// prometheus.DefaultRegisterer in production or a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "holdem",
			Name:      "active_connections",
			Help:      "Currently open WebSocket connections.",
		}),
		ActionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holdem",
			Name:      "actions_total",
			Help:      "Player actions applied, by action type.",
		}, []string{"action"}),
		HandsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "holdem",
			Name:      "hands_completed_total",
			Help:      "Hands completed, by outcome.",
		}, []string{"outcome"}),
		TimerExpirations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "holdem",
			Name:      "timer_expirations_total",
			Help:      "Action timers that expired into a forced fold.",
		}),
		// Buckets bracket the 100ms end-to-end latency target.
		BroadcastLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "holdem",
			Name:      "broadcast_latency_seconds",
			Help:      "Time from broadcast enqueue to last connection send.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		BroadcastDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "holdem",
			Name:      "broadcast_drops_total",
			Help:      "Messages dropped because a connection could not accept them.",
		}),
		EventsAppended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "holdem",
			Name:      "events_appended_total",
			Help:      "Hand events appended to the event store.",
		}),
	}
}
