package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache-aside hits by category
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcost_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"category"}, // "teams", "matches", "match_details", "flight", "hotel"
	)

	// CacheMisses tracks cache-aside misses by category
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcost_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"category"},
	)

	// StoreErrors tracks backend I/O failures
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcost_cache_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"backend", "operation"}, // "get", "set", "delete", "clear_expired", "clear_all"
	)

	// Evictions tracks removed entries by reason
	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcost_cache_evictions_total",
			Help: "Total number of cache entries removed",
		},
		[]string{"backend", "reason"}, // "lazy", "sweep", "clear"
	)
)
