package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// value gathers the registry and returns the counter value of name with the
// given label values, in label order.
func value(t *testing.T, m *Metrics, name string, labels ...string) float64 {
	t.Helper()

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			match := true
			for i, p := range pairs {
				if p.GetValue() != labels[i] {
					match = false
				}
			}
			if !match {
				continue
			}
			if c := metric.GetCounter(); c != nil {
				return c.GetValue()
			}
			return metric.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return 0
}

func TestObserveRPC(t *testing.T) {
	m := New()

	m.ObserveRPC("eth_call", 10*time.Millisecond, nil)
	m.ObserveRPC("eth_call", 10*time.Millisecond, errors.New("boom"))
	m.ObserveRPC("eth_blockNumber", time.Millisecond, nil)

	assert.Equal(t, 2.0, value(t, m, "vaultfee_rpc_calls_total", "eth_call"))
	assert.Equal(t, 1.0, value(t, m, "vaultfee_rpc_errors_total", "eth_call"))
	assert.Equal(t, 1.0, value(t, m, "vaultfee_rpc_calls_total", "eth_blockNumber"))
}

func TestCacheCounters(t *testing.T) {
	m := New()

	m.CacheHit()
	m.CacheHit()
	m.CacheMiss()
	m.StoreHit()
	m.AddEvents("deposit", 3)

	assert.Equal(t, 2.0, value(t, m, "vaultfee_price_cache_hits_total"))
	assert.Equal(t, 1.0, value(t, m, "vaultfee_price_cache_misses_total"))
	assert.Equal(t, 1.0, value(t, m, "vaultfee_price_store_hits_total"))
	assert.Equal(t, 3.0, value(t, m, "vaultfee_events_fetched_total", "deposit"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.ObserveRPC("eth_call", time.Second, nil)
		m.CacheHit()
		m.CacheMiss()
		m.StoreHit()
		m.AddEvents("deposit", 1)
		m.SetRunDuration(time.Second)
	})
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "never.prom")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.CacheMiss()

	path := filepath.Join(t.TempDir(), "vaultfee.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "vaultfee_price_cache_misses_total 1")
}
