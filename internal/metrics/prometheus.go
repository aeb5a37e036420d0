// Package metrics provides Prometheus collectors for notifier runs and the
// daemon's status server.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	// Namespace for all notifier metrics
	namespace = "shodan_notifier"

	// Subsystems
	subsystemLookup   = "lookup"
	subsystemSnapshot = "snapshot"
	subsystemPublish  = "publish"
	subsystemRun      = "run"
	subsystemAPI      = "api"
)

// Label values shared by callers.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusSkipped = "skipped"

	ModeFirstRun    = "first_run"
	ModeIncremental = "incremental"
)

// PrometheusMetrics holds all Prometheus metric collectors. A nil
// *PrometheusMetrics is valid and records nothing.
type PrometheusMetrics struct {
	// Lookup metrics
	lookupsTotal   *prometheus.CounterVec
	lookupDuration prometheus.Histogram

	// Snapshot metrics
	snapshotRows prometheus.Gauge
	diffRows     *prometheus.GaugeVec

	// Publish metrics
	publishTotal *prometheus.CounterVec

	// Run metrics
	runsTotal   *prometheus.CounterVec
	runDuration prometheus.Histogram
	lastSuccess prometheus.Gauge

	// API metrics
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	mu       sync.RWMutex
	lastRun  time.Time
	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new Prometheus metrics instance with all collectors
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		registry: registry,
	}

	pm.initLookupMetrics()
	pm.initSnapshotMetrics()
	pm.initRunMetrics()
	pm.initAPIMetrics()

	pm.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

func (pm *PrometheusMetrics) initLookupMetrics() {
	pm.lookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemLookup,
			Name:      "total",
			Help:      "Total number of host lookups by result",
		},
		[]string{"status"},
	)

	pm.lookupDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemLookup,
			Name:      "duration_seconds",
			Help:      "Duration of host lookups in seconds, pacing excluded",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
	)
}

func (pm *PrometheusMetrics) initSnapshotMetrics() {
	pm.snapshotRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSnapshot,
			Name:      "rows",
			Help:      "Number of rows in the latest snapshot",
		},
	)

	pm.diffRows = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSnapshot,
			Name:      "diff_rows",
			Help:      "Rows added or removed by the latest incremental run",
		},
		[]string{"change"},
	)

	pm.publishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemPublish,
			Name:      "total",
			Help:      "Total number of report deliveries by provider and status",
		},
		[]string{"provider", "status"},
	)
}

func (pm *PrometheusMetrics) initRunMetrics() {
	pm.runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "total",
			Help:      "Total number of pipeline runs by mode and status",
		},
		[]string{"mode", "status"},
	)

	pm.runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "duration_seconds",
			Help:      "Duration of pipeline runs in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	pm.lastSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemRun,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that saved a snapshot",
		},
	)
}

func (pm *PrometheusMetrics) initAPIMetrics() {
	pm.httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "requests_total",
			Help:      "Total number of status server requests",
		},
		[]string{"method", "path", "status"},
	)

	pm.httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemAPI,
			Name:      "request_duration_seconds",
			Help:      "Duration of status server requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(pm.lookupsTotal)
	pm.registry.MustRegister(pm.lookupDuration)
	pm.registry.MustRegister(pm.snapshotRows)
	pm.registry.MustRegister(pm.diffRows)
	pm.registry.MustRegister(pm.publishTotal)
	pm.registry.MustRegister(pm.runsTotal)
	pm.registry.MustRegister(pm.runDuration)
	pm.registry.MustRegister(pm.lastSuccess)
	pm.registry.MustRegister(pm.httpRequests)
	pm.registry.MustRegister(pm.httpDuration)
}

// GetRegistry returns the Prometheus registry for HTTP handler
func (pm *PrometheusMetrics) GetRegistry() *prometheus.Registry {
	return pm.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (pm *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(pm.registry, promhttp.HandlerOpts{})
}

// IncrementLookups counts one lookup with the given status.
func (pm *PrometheusMetrics) IncrementLookups(status string) {
	if pm == nil {
		return
	}
	pm.lookupsTotal.WithLabelValues(status).Inc()
}

// RecordLookupDuration records one lookup's duration.
func (pm *PrometheusMetrics) RecordLookupDuration(duration time.Duration) {
	if pm == nil {
		return
	}
	pm.lookupDuration.Observe(duration.Seconds())
}

// SetSnapshotRows sets the number of rows in the latest snapshot.
func (pm *PrometheusMetrics) SetSnapshotRows(count int) {
	if pm == nil {
		return
	}
	pm.snapshotRows.Set(float64(count))
}

// SetDiffRows sets the added and removed row gauges.
func (pm *PrometheusMetrics) SetDiffRows(added, removed int) {
	if pm == nil {
		return
	}
	pm.diffRows.WithLabelValues("added").Set(float64(added))
	pm.diffRows.WithLabelValues("removed").Set(float64(removed))
}

// IncrementPublish counts one delivery attempt.
func (pm *PrometheusMetrics) IncrementPublish(provider, status string) {
	if pm == nil {
		return
	}
	pm.publishTotal.WithLabelValues(provider, status).Inc()
}

// RecordRun counts a finished run and its duration. Successful runs also
// move the last success timestamp.
func (pm *PrometheusMetrics) RecordRun(mode, status string, finished time.Time, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.runsTotal.WithLabelValues(mode, status).Inc()
	pm.runDuration.Observe(duration.Seconds())

	pm.mu.Lock()
	pm.lastRun = finished
	pm.mu.Unlock()

	if status == StatusSuccess {
		pm.lastSuccess.Set(float64(finished.Unix()))
	}
}

// GetLastRun returns when the last run finished.
func (pm *PrometheusMetrics) GetLastRun() time.Time {
	if pm == nil {
		return time.Time{}
	}
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.lastRun
}

// IncrementHTTPRequests increments HTTP request counter
func (pm *PrometheusMetrics) IncrementHTTPRequests(method, path, status string) {
	if pm == nil {
		return
	}
	pm.httpRequests.WithLabelValues(method, path, status).Inc()
}

// RecordHTTPDuration records HTTP request duration
func (pm *PrometheusMetrics) RecordHTTPDuration(method, path string, duration time.Duration) {
	if pm == nil {
		return
	}
	pm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// Push sends the registry to a Pushgateway, replacing the job's group.
func (pm *PrometheusMetrics) Push(ctx context.Context, gatewayURL, job string) error {
	if pm == nil || gatewayURL == "" {
		return nil
	}
	return push.New(gatewayURL, job).
		Gatherer(pm.registry).
		PushContext(ctx)
}
