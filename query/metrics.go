package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdeck_query_cache_hits_total",
			Help: "Reads served from fresh cached data",
		},
		[]string{"family"},
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdeck_query_cache_misses_total",
			Help: "Reads that needed a fetch or joined one in flight",
		},
		[]string{"family"},
	)

	cacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blogdeck_query_cache_fetches_total",
			Help: "Underlying fetches issued, after deduplication",
		},
		[]string{"family", "result"},
	)
)
