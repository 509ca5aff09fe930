// Package metrics exposes Prometheus counters for the cache layer.
//
// The silently-drop and swallow-write-failure leniency policies are
// intentional; these counters are what makes them observable.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts bulk keyword lookups by outcome:
	// hit, partial, miss, error.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataforseo_cache_lookups_total",
			Help: "Bulk keyword cache lookups by outcome.",
		},
		[]string{"outcome"},
	)

	// UpstreamCalls counts calls that reached the DataForSEO API, by tool.
	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataforseo_upstream_calls_total",
			Help: "Upstream API calls by tool.",
		},
		[]string{"tool"},
	)

	// DroppedItems counts batch items dropped for lacking a resolvable
	// keyword.
	DroppedItems = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataforseo_cache_dropped_items_total",
			Help: "Malformed batch items silently dropped at the cache boundary.",
		},
	)

	// SwallowedWriteFailures counts cache writes that failed and were
	// logged instead of propagated.
	SwallowedWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataforseo_cache_write_failures_total",
			Help: "Cache writes that failed and were swallowed.",
		},
	)

	// CachedKeywordsServed counts keyword items answered from cache
	// without an upstream call.
	CachedKeywordsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataforseo_cached_keywords_served_total",
			Help: "Keyword items served from cache.",
		},
	)
)
