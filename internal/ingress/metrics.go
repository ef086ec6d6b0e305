package ingress

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codespot_ingress_messages_total",
			Help: "Broker messages delivered to the handler by source and result",
		},
		[]string{"source", "result"},
	)

	handleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codespot_ingress_handle_duration_seconds",
			Help:    "Time the handler spent on one message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codespot_ingress_reconnects_total",
			Help: "Broker connections re-established after a loss",
		},
	)
)
