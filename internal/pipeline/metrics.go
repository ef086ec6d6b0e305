package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codespot_pipeline_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"stage"}, // stage: detect, cluster, assemble, validate
	)

	detectionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codespot_detection_failures_total",
			Help: "Detection calls that failed or timed out",
		},
	)

	regionsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codespot_regions_total",
			Help: "Merged regions by resolved orientation",
		},
		[]string{"orientation"}, // orientation: horizontal, vertical, rejected
	)

	codesAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "codespot_codes_accepted_total",
			Help: "Candidate codes that passed validation",
		},
	)
)
