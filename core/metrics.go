package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the exchange metrics. A nil *Metrics records nothing.
type Metrics struct {
	MessagesRouted   *prometheus.CounterVec
	RoutingFailures  *prometheus.CounterVec
	FailuresDropped  prometheus.Counter
	MessagesExecuted *prometheus.CounterVec
	DeliveryLatency  *prometheus.HistogramVec
	QueueDepth       *prometheus.GaugeVec
}

// NewMetrics creates the exchange metrics under the given namespace.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		MessagesRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "routed_total",
				Help:      "Total number of messages forwarded by the router",
			},
			[]string{"source", "destination"},
		),

		RoutingFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "failures_total",
				Help:      "Total number of messages dropped by the router",
			},
			[]string{"reason"},
		),

		FailuresDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "router",
				Name:      "failure_reports_dropped_total",
				Help:      "Routing failures not published because the failure channel was full",
			},
		),

		MessagesExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "executed_total",
				Help:      "Total number of messages executed by world workers",
			},
			[]string{"world", "kind", "outcome"},
		),

		DeliveryLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "messages",
				Name:      "delivery_latency_seconds",
				Help:      "Time from message creation to forwarding by the router",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"destination"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Messages waiting in a world queue",
			},
			[]string{"world", "direction"},
		),
	}
}

// Register registers every collector with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesRouted,
		m.RoutingFailures,
		m.FailuresDropped,
		m.MessagesExecuted,
		m.DeliveryLatency,
		m.QueueDepth,
	}
}

func (m *Metrics) routed(src, dst WorldID, createdAt time.Time) {
	if m == nil {
		return
	}
	m.MessagesRouted.WithLabelValues(string(src), string(dst)).Inc()
	m.DeliveryLatency.WithLabelValues(string(dst)).Observe(time.Since(createdAt).Seconds())
}

func (m *Metrics) routingFailed(reason RoutingReason) {
	if m == nil {
		return
	}
	m.RoutingFailures.WithLabelValues(string(reason)).Inc()
}

func (m *Metrics) failureDropped() {
	if m == nil {
		return
	}
	m.FailuresDropped.Inc()
}

func (m *Metrics) executed(id WorldID, kind CommandKind, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.MessagesExecuted.WithLabelValues(string(id), kind.String(), outcome).Inc()
}

func (m *Metrics) depth(id WorldID, direction string, n int) {
	if m == nil {
		return
	}
	m.QueueDepth.WithLabelValues(string(id), direction).Set(float64(n))
}
