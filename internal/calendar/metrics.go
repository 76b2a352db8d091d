package calendar

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks years served from the store without a fetch
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_cache_hits_total",
			Help: "Total number of year lookups served from the cache store",
		},
		[]string{"backend"}, // "file", "redis", "memory"
	)

	// CacheMisses tracks years that had to be fetched because they were not cached
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "holiday_cache_misses_total",
			Help: "Total number of year lookups missing from the cache store",
		},
	)

	// Fetches tracks remote fetch attempts by result
	Fetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_fetches_total",
			Help: "Total number of remote holiday data fetches",
		},
		[]string{"result"}, // "ok", "error"
	)

	// Refreshes tracks refetches of an already cached current year
	Refreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_refreshes_total",
			Help: "Total number of refreshes of a cached year",
		},
		[]string{"result"}, // "ok", "degraded"
	)

	// StoreCorruptions tracks loads that found an unreadable store
	StoreCorruptions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_store_corruptions_total",
			Help: "Total number of cache store loads that found corrupt content",
		},
		[]string{"backend"},
	)

	// StoreErrors tracks failed store operations
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_store_errors_total",
			Help: "Total number of cache store operation errors",
		},
		[]string{"backend", "operation"}, // operation: "load", "save"
	)

	// Queries tracks query engine calls by operation and outcome
	Queries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "holiday_queries_total",
			Help: "Total number of calendar queries",
		},
		[]string{"operation", "outcome"}, // outcome: "ok", "invalid_date", "unavailable", "error"
	)
)
