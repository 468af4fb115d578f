// Package metrics exposes the Prometheus registry shared by tripcost.
// Collectors are declared next to the code they measure (cache, cacheaside,
// ledger, upstream, ratelimit, jobs) and registered via promauto; this
// package serves them and lists what exists.
package metrics

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "tripcost"

// Registry is the registerer every package's promauto collectors use.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what Registry holds.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Names returns the sorted names of the tripcost metric families that have
// been observed at least once. Vector metrics without children are absent.
func Names() ([]string, error) {
	families, err := Gatherer.Gather()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), Namespace+"_") {
			names = append(names, f.GetName())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Metric families
//
// Cache-aside (pkg/cache, pkg/cacheaside):
//   - tripcost_cache_hits_total{category}
//   - tripcost_cache_misses_total{category}
//   - tripcost_cache_errors_total{operation}
//   - tripcost_cache_evictions_total{backend,reason}
//   - tripcost_cache_decode_failures_total{category}
//   - tripcost_provider_failures_total{operation}
//
// Sweeper (internal/jobs):
//   - tripcost_cache_swept_total
//   - tripcost_cache_sweep_failures_total
//
// Request ledger (pkg/ledger):
//   - tripcost_ledger_records_total{cache_hit}
//   - tripcost_ledger_dropped_total
//   - tripcost_ledger_queue_depth
//
// Upstream APIs (pkg/upstream, pkg/ratelimit):
//   - tripcost_upstream_requests_total{upstream,status}
//   - tripcost_upstream_request_duration_seconds{upstream}
//   - tripcost_upstream_errors_total{upstream,class}
//   - tripcost_upstream_retries_total{upstream,error_class}
//   - tripcost_upstream_retry_backoff_seconds{upstream,error_class}
//   - tripcost_upstream_retry_exhausted_total{upstream,error_class}
//   - tripcost_upstream_quota_remaining{upstream}
//   - tripcost_upstream_quota_blocks_total{upstream}
//   - tripcost_upstream_quota_warnings_total{upstream}
//
// Example queries:
//
//   # Cache hit rate per category
//   sum by (category) (rate(tripcost_cache_hits_total[5m])) /
//   (sum by (category) (rate(tripcost_cache_hits_total[5m])) +
//    sum by (category) (rate(tripcost_cache_misses_total[5m])))
//
//   # api-sports daily quota running low
//   tripcost_upstream_quota_remaining{upstream="football"} < 20
//
//   # P95 upstream latency
//   histogram_quantile(0.95, sum by (le, upstream) (rate(tripcost_upstream_request_duration_seconds_bucket[5m])))
