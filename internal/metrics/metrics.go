package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warroom"

// Metrics exposes application metrics that are safe to scrape via Prometheus.
// A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	storeMutations      *prometheus.CounterVec
	snapshotLoads       *prometheus.CounterVec
	geocodeLookups      *prometheus.CounterVec
	mapSessions         prometheus.Gauge
}

// New creates a fresh Metrics registry with HTTP, store, geocoding and map
// session metrics registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by the war room API",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by the war room API",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	storeMutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_mutations_total",
		Help:      "State store mutations by operation and outcome",
	}, []string{"op", "outcome"})

	snapshotLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_loads_total",
		Help:      "Snapshot load attempts by source and outcome",
	}, []string{"source", "outcome"})

	geocodeLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "geocode_lookups_total",
		Help:      "Geocoding lookups by outcome (hit, miss, shared, error)",
	}, []string{"outcome"})

	mapSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "map_sessions_active",
		Help:      "Live map websocket sessions",
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		storeMutations,
		snapshotLoads,
		geocodeLookups,
		mapSessions,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		storeMutations:      storeMutations,
		snapshotLoads:       snapshotLoads,
		geocodeLookups:      geocodeLookups,
		mapSessions:         mapSessions,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) ObserveStoreMutation(op, outcome string) {
	if m == nil {
		return
	}
	m.storeMutations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveSnapshotLoad(source, outcome string) {
	if m == nil {
		return
	}
	m.snapshotLoads.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveGeocodeLookup(outcome string) {
	if m == nil {
		return
	}
	m.geocodeLookups.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncMapSessions() {
	if m == nil {
		return
	}
	m.mapSessions.Inc()
}

func (m *Metrics) DecMapSessions() {
	if m == nil {
		return
	}
	m.mapSessions.Dec()
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
