package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var indexUpdates = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "codespot_index_updates_total",
		Help: "Registration updates sent to the search index",
	},
	[]string{"result"}, // result: ok, failed, cancelled
)
