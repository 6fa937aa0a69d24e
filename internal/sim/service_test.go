package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
	"tradesim/internal/store"
	"tradesim/internal/strategy"
	"tradesim/internal/telemetry"
)

var (
	jan2 = time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	may1 = time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
)

func waveTable(t *testing.T, symbol string, n int) *domain.PriceTable {
	t.Helper()
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := 100 + 10*math.Sin(float64(i)/5)
		bars[i] = domain.Bar{Symbol: symbol, Timestamp: jan2.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000}
	}
	tbl, err := domain.NewPriceTable(symbol, bars)
	require.NoError(t, err)
	return tbl
}

// fakeProvider serves wave tables and fails the first failures calls with err.
type fakeProvider struct {
	t        *testing.T
	mu       sync.Mutex
	calls    int
	failures int
	err      error
	missing  map[string]bool
}

func (f *fakeProvider) Fetch(_ context.Context, ticker string, _, _ time.Time) (*domain.PriceTable, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	if f.missing[ticker] {
		return nil, fmt.Errorf("%w: no bars for %s", domain.ErrDataUnavailable, ticker)
	}
	if n <= f.failures {
		return nil, f.err
	}
	return waveTable(f.t, ticker, 120), nil
}

func newTestService(p *fakeProvider, m *telemetry.Metrics) *Service {
	return NewService(p, Options{
		RiskFreeRate:  0.02,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
		Workers:       3,
		Metrics:       m,
	})
}

func smaRequest(ticker string) Request {
	return Request{
		Ticker:   ticker,
		Strategy: strategy.KindSMACrossover,
		Params:   strategy.Params{"short_window": 5, "long_window": 20},
		Start:    jan2,
		End:      may1,
	}
}

func TestServiceRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := telemetry.NewMetrics(reg)
	require.NoError(t, err)
	p := &fakeProvider{t: t}
	svc := newTestService(p, m)

	rep, err := svc.Run(context.Background(), smaRequest(" aapl"))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, rep.ID)
	assert.Equal(t, "AAPL", rep.Request.Ticker)
	assert.Equal(t, backtest.DefaultConfig(), rep.Request.Config, "zero config takes defaults")
	assert.Equal(t, 120, rep.Bars)
	assert.Len(t, rep.Result.Equity, rep.Bars)
	assert.Greater(t, rep.Summary.TotalTrades, 0)
	assert.Equal(t, rep.Summary.TotalTrades, rep.Performance.TotalTrades)
	assert.Equal(t, len(rep.Result.Trades), rep.Summary.TotalTrades)
	assert.InDelta(t, rep.Result.FinalCash, rep.Result.FinalEquity(), 1e-9)
	assert.Greater(t, rep.Performance.Years, 0.3)
	assert.Equal(t, 1, p.calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("sma_crossover", "ok")))
	assert.Equal(t, float64(rep.Summary.TotalTrades), testutil.ToFloat64(m.TradesTotal.WithLabelValues("sma_crossover")))
}

func TestServiceRunIsDeterministic(t *testing.T) {
	svc := newTestService(&fakeProvider{t: t}, nil)
	a, err := svc.Run(context.Background(), smaRequest("MSFT"))
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), smaRequest("MSFT"))
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Result.Equity, b.Result.Equity)
	assert.Equal(t, a.Performance, b.Performance)
}

func TestServiceRunConfigurationErrorsSkipFetch(t *testing.T) {
	cases := map[string]func(*Request){
		"blank ticker":     func(r *Request) { r.Ticker = "" },
		"missing dates":    func(r *Request) { r.Start = time.Time{} },
		"reversed range":   func(r *Request) { r.Start, r.End = r.End, r.Start },
		"unknown strategy": func(r *Request) { r.Strategy = "momentum" },
		"unknown param":    func(r *Request) { r.Params = strategy.Params{"fast": 3} },
		"param range":      func(r *Request) { r.Params = strategy.Params{"long_window": 500} },
		"bad capital":      func(r *Request) { r.Config = backtest.Config{InitialCapital: -1, PositionSize: 1} },
		"bad size":         func(r *Request) { r.Config = backtest.Config{InitialCapital: 1000, PositionSize: 2} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := &fakeProvider{t: t}
			req := smaRequest("AAPL")
			mutate(&req)

			_, err := newTestService(p, nil).Run(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrConfiguration)
			assert.Zero(t, p.calls)
		})
	}
}

func TestServiceRunRetriesTransientErrors(t *testing.T) {
	p := &fakeProvider{t: t, failures: 2, err: errors.New("connection reset")}
	rep, err := newTestService(p, nil).Run(context.Background(), smaRequest("AAPL"))
	require.NoError(t, err)
	assert.NotNil(t, rep)
	assert.Equal(t, 3, p.calls)

	p = &fakeProvider{t: t, failures: 5, err: errors.New("connection reset")}
	_, err = newTestService(p, nil).Run(context.Background(), smaRequest("AAPL"))
	assert.EqualError(t, err, "fetching AAPL: connection reset")
	assert.Equal(t, 3, p.calls)
}

func TestServiceRunDataUnavailableIsNotRetried(t *testing.T) {
	p := &fakeProvider{t: t, missing: map[string]bool{"NONE": true}}
	_, err := newTestService(p, nil).Run(context.Background(), smaRequest("NONE"))
	assert.ErrorIs(t, err, domain.ErrDataUnavailable)
	assert.Equal(t, 1, p.calls)
}

func TestRunBatch(t *testing.T) {
	p := &fakeProvider{t: t, missing: map[string]bool{"NONE": true}}
	svc := newTestService(p, nil)

	reqs := Grid([]string{"AAPL", "NONE", "MSFT"},
		[]strategy.Kind{strategy.KindSMACrossover, strategy.KindRSI},
		jan2, may1,
		map[strategy.Kind]strategy.Params{strategy.KindSMACrossover: {"short_window": 5, "long_window": 20}},
		backtest.Config{InitialCapital: 10000, PositionSize: 0.5, CommissionRate: 0})
	require.Len(t, reqs, 6)

	items := svc.RunBatch(context.Background(), reqs)
	require.Len(t, items, 6)
	for i, it := range items {
		assert.Equal(t, reqs[i], it.Request, "order preserved")
		if reqs[i].Ticker == "NONE" {
			assert.ErrorIs(t, it.Err, domain.ErrDataUnavailable)
			assert.Nil(t, it.Report)
			continue
		}
		require.NoError(t, it.Err)
		assert.Equal(t, reqs[i].Strategy, it.Report.Request.Strategy)
		assert.Equal(t, 10000.0, it.Report.Request.Config.InitialCapital)
	}

	assert.Empty(t, svc.RunBatch(context.Background(), nil))
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := newTestService(&fakeProvider{t: t}, nil).RunBatch(ctx, []Request{smaRequest("AAPL"), smaRequest("MSFT")})
	for _, it := range items {
		assert.ErrorIs(t, it.Err, context.Canceled)
	}
}

func TestReportFields(t *testing.T) {
	rep, err := newTestService(&fakeProvider{t: t}, nil).Run(context.Background(), smaRequest("AAPL"))
	require.NoError(t, err)

	f := rep.Fields(false)
	assert.Equal(t, "AAPL", f["ticker"])
	assert.Equal(t, "2023-01-02", f["start"])
	assert.NotContains(t, f, "equity")
	trades, ok := f["trades"].([]any)
	require.True(t, ok)
	assert.Len(t, trades, rep.Summary.TotalTrades)

	f = rep.Fields(true)
	assert.Len(t, f["equity"], rep.Bars)

	assert.Equal(t, "inf", Number(math.Inf(1)))
	assert.Equal(t, "-inf", Number(math.Inf(-1)))
	assert.Equal(t, "nan", Number(math.NaN()))
	assert.Equal(t, 1.5, Number(1.5))
}

func TestStrategies(t *testing.T) {
	defs := newTestService(&fakeProvider{t: t}, nil).Strategies()
	require.Len(t, defs, 4)
	assert.Equal(t, strategy.KindBollinger, defs[0].Kind)
}

func TestRequestWithPreset(t *testing.T) {
	p := store.Preset{Name: "fast", Strategy: "SMA Crossover", Params: map[string]float64{"short_window": 5, "long_window": 20}}

	req, err := Request{Ticker: "AAPL", Params: strategy.Params{"short_window": 8}}.WithPreset(p)
	require.NoError(t, err)
	assert.Equal(t, strategy.KindSMACrossover, req.Strategy)
	assert.Equal(t, strategy.Params{"short_window": 8, "long_window": 20}, req.Params)

	_, err = Request{Strategy: strategy.KindRSI}.WithPreset(p)
	assert.ErrorIs(t, err, domain.ErrConfiguration)

	_, err = Request{}.WithPreset(store.Preset{Name: "bad", Strategy: "momentum"})
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
