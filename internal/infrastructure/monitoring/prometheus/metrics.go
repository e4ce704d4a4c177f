package prometheus

import (
	"strconv"
	"time"

	"github.com/turtacn/KnotWeave/pkg/errors"
)

// EngineMetrics holds every metric the engine records.
type EngineMetrics struct {
	// HTTP boundary
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// gRPC boundary
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Engine operations (build, evolve, compatibility, weave, stability)
	OperationsTotal   CounterVec
	OperationDuration HistogramVec
	KnotCrossings     HistogramVec

	// Computation cache
	CacheHitsTotal         CounterVec
	CacheMissesTotal       CounterVec
	CacheEvictionsTotal    CounterVec
	CacheComputationsTotal CounterVec
	CacheComputeDuration   HistogramVec
	CacheTimeoutsTotal     CounterVec
	CacheEntries           GaugeVec

	ErrorsTotal CounterVec
}

// Default Buckets
var (
	DefaultHTTPDurationBuckets    = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}
	DefaultComputeDurationBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5}
	DefaultCrossingBuckets        = []float64{0, 2, 4, 8, 16, 32, 48, 64, 96, 128}
)

// NewEngineMetrics registers all engine metrics on collector.
func NewEngineMetrics(collector MetricsCollector) *EngineMetrics {
	m := &EngineMetrics{}

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "route", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "route")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	m.OperationsTotal = collector.RegisterCounter("operations_total", "Engine operations by outcome", "operation", "status")
	m.OperationDuration = collector.RegisterHistogram("operation_duration_seconds", "Engine operation duration", DefaultComputeDurationBuckets, "operation")
	m.KnotCrossings = collector.RegisterHistogram("knot_crossings", "Crossing number of built knots", DefaultCrossingBuckets, "entity_type")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.CacheEvictionsTotal = collector.RegisterCounter("cache_evictions_total", "Cache evictions", "cache", "reason")
	m.CacheComputationsTotal = collector.RegisterCounter("cache_computations_total", "Computations run on cache miss", "cache", "status")
	m.CacheComputeDuration = collector.RegisterHistogram("cache_compute_duration_seconds", "Duration of computations run on cache miss", DefaultComputeDurationBuckets, "cache")
	m.CacheTimeoutsTotal = collector.RegisterCounter("cache_wait_timeouts_total", "Single-flight waits that timed out", "cache")
	m.CacheEntries = collector.RegisterGauge("cache_entries", "Live cache entries", "cache")

	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Errors by component and code", "component", "code")

	return m
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// CacheAccess records a hit or a miss.
func (m *EngineMetrics) CacheAccess(cache string, hit bool) {
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// CacheEviction records an eviction; reason is "capacity" or "expired".
func (m *EngineMetrics) CacheEviction(cache, reason string) {
	m.CacheEvictionsTotal.WithLabelValues(cache, reason).Inc()
}

// CacheComputed records one computation run on a miss.
func (m *EngineMetrics) CacheComputed(cache string, d time.Duration, err error) {
	m.CacheComputationsTotal.WithLabelValues(cache, status(err)).Inc()
	m.CacheComputeDuration.WithLabelValues(cache).Observe(d.Seconds())
}

// CacheTimeout records a single-flight wait that gave up.
func (m *EngineMetrics) CacheTimeout(cache string) {
	m.CacheTimeoutsTotal.WithLabelValues(cache).Inc()
}

// CacheSize publishes the current entry count.
func (m *EngineMetrics) CacheSize(cache string, n int) {
	m.CacheEntries.WithLabelValues(cache).Set(float64(n))
}

// StartOperation starts timing one engine operation.  It is safe on a nil
// receiver; the returned timer then only measures.
func (m *EngineMetrics) StartOperation(op string) *Timer {
	if m == nil {
		return NewTimer(nil)
	}
	return NewTimer(m.OperationDuration.WithLabelValues(op))
}

// FinishOperation stops timer and records the outcome and, on failure, the
// error code.  It returns the elapsed time.
func (m *EngineMetrics) FinishOperation(op string, timer *Timer, err error) time.Duration {
	d := timer.ObserveDuration()
	if m == nil {
		return d
	}
	m.OperationsTotal.WithLabelValues(op, status(err)).Inc()
	if err != nil {
		m.ErrorsTotal.WithLabelValues(op, errors.GetCode(err).String()).Inc()
	}
	return d
}

// ObserveKnot records the crossing number of a freshly built knot.
func (m *EngineMetrics) ObserveKnot(entityType string, crossings uint32) {
	m.KnotCrossings.WithLabelValues(entityType).Observe(float64(crossings))
}

// RecordHTTPRequest records one served HTTP request.
func (m *EngineMetrics) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// RecordGRPCRequest records one served gRPC call.
func (m *EngineMetrics) RecordGRPCRequest(service, method, code string, d time.Duration) {
	m.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	m.GRPCRequestDuration.WithLabelValues(service, method).Observe(d.Seconds())
}
