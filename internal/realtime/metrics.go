package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "statusrelay"

var (
	connectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Number of live viewer connections",
		},
	)

	broadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "broadcasts_total",
			Help:      "Total broadcasts by event type and target kind",
		},
		[]string{"type", "target"},
	)

	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "deliveries_total",
			Help:      "Total per-connection broadcast deliveries by result",
		},
		[]string{"result"},
	)

	inboundEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "inbound_events_total",
			Help:      "Total inbound connection events by event name and result",
		},
		[]string{"event", "result"},
	)
)

func recordBroadcast(kind, target string, delivered, failed int) {
	broadcastsTotal.WithLabelValues(kind, target).Inc()
	deliveriesTotal.WithLabelValues("success").Add(float64(delivered))
	deliveriesTotal.WithLabelValues("failed").Add(float64(failed))
}

func recordInbound(event, result string) {
	inboundEventsTotal.WithLabelValues(event, result).Inc()
}
