// Package metrics exposes Prometheus counters for a single analysis run.
// A run is short-lived, so metrics are written to a node-exporter textfile
// instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vaultfee"

// Metrics holds all collectors of a run. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RPCCalls         *prometheus.CounterVec
	RPCErrors        *prometheus.CounterVec
	RPCLatency       *prometheus.HistogramVec
	PriceCacheHits   prometheus.Counter
	PriceCacheMisses prometheus.Counter
	PriceStoreHits   prometheus.Counter
	EventsFetched    *prometheus.CounterVec
	RunDuration      prometheus.Gauge
}

// New creates collectors registered on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RPCCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Total number of JSON-RPC calls",
		}, []string{"method"}),
		RPCErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_errors_total",
			Help:      "Total number of failed JSON-RPC calls",
		}, []string{"method"}),
		RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_latency_seconds",
			Help:      "JSON-RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		PriceCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_hits_total",
			Help:      "Price-per-share lookups served from the in-run cache",
		}),
		PriceCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_cache_misses_total",
			Help:      "Price-per-share lookups that required a fetch",
		}),
		PriceStoreHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "price_store_hits_total",
			Help:      "Price-per-share misses served from the sample store",
		}),
		EventsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_fetched_total",
			Help:      "Vault events fetched from the event store",
		}, []string{"kind"}),
		RunDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last analysis run",
		}),
	}

	m.registry.MustRegister(
		m.RPCCalls,
		m.RPCErrors,
		m.RPCLatency,
		m.PriceCacheHits,
		m.PriceCacheMisses,
		m.PriceStoreHits,
		m.EventsFetched,
		m.RunDuration,
	)
	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRPC records one JSON-RPC call.
func (m *Metrics) ObserveRPC(method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.RPCCalls.WithLabelValues(method).Inc()
	m.RPCLatency.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		m.RPCErrors.WithLabelValues(method).Inc()
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.PriceCacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.PriceCacheMisses.Inc()
	}
}

func (m *Metrics) StoreHit() {
	if m != nil {
		m.PriceStoreHits.Inc()
	}
}

// AddEvents records n fetched events of the given kind.
func (m *Metrics) AddEvents(kind string, n int) {
	if m != nil {
		m.EventsFetched.WithLabelValues(kind).Add(float64(n))
	}
}

// SetRunDuration records the wall time of the run.
func (m *Metrics) SetRunDuration(d time.Duration) {
	if m != nil {
		m.RunDuration.Set(d.Seconds())
	}
}

// WriteTextfile writes all collectors in the text exposition format,
// atomically replacing path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
