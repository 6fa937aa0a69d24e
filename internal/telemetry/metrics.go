// Package telemetry holds the Prometheus metrics recorded by simulations and
// market data fetches. A nil *Metrics is valid and records nothing.
package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for tradesim.
type Metrics struct {
	// Simulation metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	TradesTotal *prometheus.CounterVec

	// Market data metrics
	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec
	CacheRequests *prometheus.CounterVec
	BreakerState  *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_runs_total",
				Help: "Total number of backtest runs by strategy and outcome",
			},
			[]string{"strategy", "status"},
		),

		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradesim_run_duration_seconds",
				Help:    "Wall time of a backtest run including data fetch",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"strategy"},
		),

		TradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_trades_total",
				Help: "Total number of simulated round-trip trades by strategy",
			},
			[]string{"strategy"},
		),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradesim_fetch_duration_seconds",
				Help:    "Duration of market data fetches by source",
				Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),

		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_fetch_errors_total",
				Help: "Total number of failed market data fetches by source",
			},
			[]string{"source"},
		),

		CacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_cache_requests_total",
				Help: "Bar cache lookups by cache and result (hit or miss)",
			},
			[]string{"cache", "result"},
		),

		BreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradesim_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
	}

	if reg == nil {
		return m, nil
	}
	var err error
	if m.RunsTotal, err = register(reg, m.RunsTotal); err != nil {
		return nil, err
	}
	if m.RunDuration, err = register(reg, m.RunDuration); err != nil {
		return nil, err
	}
	if m.TradesTotal, err = register(reg, m.TradesTotal); err != nil {
		return nil, err
	}
	if m.FetchDuration, err = register(reg, m.FetchDuration); err != nil {
		return nil, err
	}
	if m.FetchErrors, err = register(reg, m.FetchErrors); err != nil {
		return nil, err
	}
	if m.CacheRequests, err = register(reg, m.CacheRequests); err != nil {
		return nil, err
	}
	if m.BreakerState, err = register(reg, m.BreakerState); err != nil {
		return nil, err
	}
	return m, nil
}

// register adds c to reg. If an identical collector is already registered,
// the existing one is returned so that several Metrics values share series.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveRun records one completed or failed simulation.
func (m *Metrics) ObserveRun(strategy string, d time.Duration, trades int, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunsTotal.WithLabelValues(strategy, status).Inc()
	m.RunDuration.WithLabelValues(strategy).Observe(d.Seconds())
	if err == nil {
		m.TradesTotal.WithLabelValues(strategy).Add(float64(trades))
	}
}

// ObserveFetch records one market data fetch against source.
func (m *Metrics) ObserveFetch(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.FetchDuration.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		m.FetchErrors.WithLabelValues(source).Inc()
	}
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheRequests.WithLabelValues(cache, result).Inc()
}

// SetBreakerState records the numeric breaker state for name.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}
