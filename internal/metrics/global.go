package metrics

import (
	"sync"
	"time"
)

var (
	globalCollector *Collector
	once            sync.Once
)

// Global returns the global metrics collector.
func Global() *Collector {
	once.Do(func() {
		globalCollector = NewCollector()
	})
	return globalCollector
}

// IncCounter increments a global counter by 1.
func IncCounter(name string) {
	Global().Counter(name).Inc()
}

// AddCounter adds n to a global counter.
func AddCounter(name string, n int64) {
	Global().Counter(name).Add(n)
}

// SetGauge sets a global gauge value.
func SetGauge(name string, v float64) {
	Global().Gauge(name).Set(v)
}

// ObserveDuration records d on a global timer.
func ObserveDuration(name string, d time.Duration) {
	Global().Timer(name).Observe(d)
}

// StartTimer starts a global timer.
func StartTimer(name string) *TimerContext {
	return Global().Timer(name).Start()
}

// Metric names for codingrules
const (
	// API metrics
	MetricAPIRequests = "codingrules_api_requests_total"
	MetricAPIErrors   = "codingrules_api_errors_total"
	MetricAPIRetries  = "codingrules_api_retries_total"
	MetricAPILatency  = "codingrules_api_latency"

	// Cache metrics
	MetricCacheHits   = "codingrules_cache_hits_total"
	MetricCacheMisses = "codingrules_cache_misses_total"

	// Domain metrics
	MetricRulesFetched   = "codingrules_rules_fetched_total"
	MetricRowsReconciled = "codingrules_activation_rows_total"
	MetricRulesChanged   = "codingrules_rule_mutations_total"
	MetricStaleResponses = "codingrules_stale_responses_total"

	// Process metrics, recorded when profiling
	MetricCommandDuration = "codingrules_command_duration"
	MetricHeapAlloc       = "codingrules_heap_alloc_bytes"
	MetricHeapSys         = "codingrules_heap_sys_bytes"
	MetricGCRuns          = "codingrules_gc_runs"
)
