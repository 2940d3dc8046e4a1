package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Remote contract calls
	RemoteCalls       *prometheus.CounterVec
	RemoteCallLatency *prometheus.HistogramVec

	// State-changing calls awaiting confirmation
	Confirmations       *prometheus.CounterVec
	ConfirmationLatency *prometheus.HistogramVec

	// Broker
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	PublishLatency  prometheus.Histogram

	SessionConnected prometheus.Gauge
}

// NewMetrics creates and registers all application metrics on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RemoteCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contract",
			Name:      "calls_total",
			Help:      "Total number of remote contract calls",
		}, []string{"method", "status"}),
		RemoteCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "contract",
			Name:      "call_duration_seconds",
			Help:      "Duration of remote contract calls",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"method"}),

		Confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contract",
			Name:      "confirmations_total",
			Help:      "Total number of awaited transaction confirmations",
		}, []string{"method", "status"}),
		ConfirmationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "contract",
			Name:      "confirmation_duration_seconds",
			Help:      "Time spent waiting for a transaction to be mined",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 15, 30, 60, 120, 300},
		}, []string{"method"}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Total number of published session events",
		}, []string{"type", "status"}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "dropped_total",
			Help:      "Events dropped because the publish queue was full",
		}),
		PublishLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "publish_duration_seconds",
			Help:      "Duration of broker publishes",
			Buckets:   prometheus.DefBuckets,
		}),

		SessionConnected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connected",
			Help:      "1 when the wallet session is connected",
		}),
	}
}

// ForTests returns metrics registered on a throwaway registry.
func ForTests() *Metrics {
	return NewMetrics("test", prometheus.NewRegistry())
}
