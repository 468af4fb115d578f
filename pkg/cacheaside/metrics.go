package cacheaside

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderFailures tracks loader errors absorbed into empty results
	ProviderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcost_provider_failures_total",
			Help: "Total number of upstream provider failures absorbed by cache-aside wrappers",
		},
		[]string{"operation"},
	)

	// DecodeFailures tracks cached payloads that could not be decoded
	DecodeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tripcost_cache_decode_failures_total",
			Help: "Total number of cached payloads that failed to decode",
		},
		[]string{"operation"},
	)
)
