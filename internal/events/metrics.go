package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codespot_events_total",
			Help: "Frame events by outcome",
		},
		[]string{"outcome"}, // outcome: done, malformed, missing_frame, failed, panic
	)

	eventDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "codespot_event_duration_seconds",
			Help:    "Wall time spent on one frame event",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 25, 60},
		},
	)
)
