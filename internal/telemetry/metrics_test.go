package telemetry

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	m.ObserveRun("rsi", 20*time.Millisecond, 3, nil)
	m.ObserveRun("rsi", 5*time.Millisecond, 0, errors.New("boom"))
	m.ObserveFetch("alpaca", time.Second, errors.New("timeout"))
	m.CacheLookup("redis", true)
	m.CacheLookup("redis", false)
	m.CacheLookup("redis", false)
	m.SetBreakerState("alpaca", 2)

	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("rsi", "ok")); got != 1 {
		t.Errorf("runs ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.RunsTotal.WithLabelValues("rsi", "error")); got != 1 {
		t.Errorf("runs error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TradesTotal.WithLabelValues("rsi")); got != 3 {
		t.Errorf("trades = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.FetchErrors.WithLabelValues("alpaca")); got != 1 {
		t.Errorf("fetch errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CacheRequests.WithLabelValues("redis", "miss")); got != 2 {
		t.Errorf("cache misses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.BreakerState.WithLabelValues("alpaca")); got != 2 {
		t.Errorf("breaker state = %v, want 2", got)
	}

	if n := testutil.CollectAndCount(m.RunDuration); n != 1 {
		t.Errorf("run duration series = %d, want 1", n)
	}
}

func TestNewMetricsTwiceOnSameRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewMetrics(reg); err != nil {
		t.Fatalf("first NewMetrics: %v", err)
	}
	if _, err := NewMetrics(reg); err != nil {
		t.Fatalf("second NewMetrics: %v", err)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRun("sma_crossover", time.Second, 1, nil)
	m.ObserveFetch("store", time.Second, nil)
	m.CacheLookup("redis", true)
	m.SetBreakerState("alpaca", 0)
}

func TestNewMetricsSharesExistingCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, _ := NewMetrics(reg)
	b, _ := NewMetrics(reg)

	b.CacheLookup("redis", true)
	if got := testutil.ToFloat64(a.CacheRequests.WithLabelValues("redis", "hit")); got != 1 {
		t.Errorf("shared cache hits = %v, want 1", got)
	}
}
