package performance

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tradesim/internal/domain"
)

func TestTotalReturn(t *testing.T) {
	assert.Equal(t, 50.0, TotalReturn([]float64{100, 150}))
	assert.InDelta(t, -20.0, TotalReturn([]float64{100, 130, 80}), 1e-12)
	assert.Equal(t, 0.0, TotalReturn([]float64{100}))
	assert.Equal(t, 0.0, TotalReturn(nil))
	assert.Equal(t, 0.0, TotalReturn([]float64{0, 10}))
}

func TestReturns(t *testing.T) {
	eq := []float64{100, 110, 99}
	r := Returns(eq)
	assert.Len(t, r, 2)
	assert.InDelta(t, 0.1, r[0], 1e-12)
	assert.InDelta(t, -0.1, r[1], 1e-12)
	assert.Equal(t, []float64{100, 110, 99}, eq, "input mutated")

	assert.Nil(t, Returns([]float64{1}))
	assert.Len(t, Returns([]float64{0, 5, 10}), 1)
}

func TestMaxDrawdown(t *testing.T) {
	assert.Equal(t, 50.0, MaxDrawdown([]float64{100, 50, 100}))
	assert.InDelta(t, 25.0, MaxDrawdown([]float64{100, 120, 90, 110, 100}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 2, 3, 4}))
	assert.Equal(t, 0.0, MaxDrawdown(nil))
	assert.Equal(t, 0.0, MaxDrawdown([]float64{5, 5, 5}))
}

func TestCalmarZeroWhenNoDrawdown(t *testing.T) {
	assert.Equal(t, 0.0, CalmarRatio([]float64{100, 110, 120}, 1))
	assert.Equal(t, 0.0, RecoveryFactor([]float64{100, 110, 120}))

	// 100 -> 50 -> 121 over two years: CAGR 10%, drawdown 50%.
	assert.InDelta(t, 0.2, CalmarRatio([]float64{100, 50, 121}, 2), 1e-9)
	assert.InDelta(t, 0.42, RecoveryFactor([]float64{100, 50, 121}), 1e-9)
}

func TestCAGR(t *testing.T) {
	assert.InDelta(t, 10.0, CAGR([]float64{100, 121}, 2), 1e-9)
	assert.Equal(t, 0.0, CAGR([]float64{100, 121}, 0))
	assert.Equal(t, 0.0, CAGR([]float64{100, 121}, -1))
	assert.Equal(t, 0.0, CAGR([]float64{100}, 1))
	assert.Equal(t, -100.0, CAGR([]float64{100, -5}, 1))
}

func TestSharpeRatio(t *testing.T) {
	assert.Equal(t, 0.0, SharpeRatio(nil, DefaultRiskFreeRate))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01}, DefaultRiskFreeRate))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01, 0.01, 0.01}, DefaultRiskFreeRate))

	r := []float64{0.01, -0.01, 0.02, 0}
	// mean 0.005, sample variance 0.0005/3
	want := (0.005*252 - 0.02) / (math.Sqrt(0.0005/3) * math.Sqrt(252))
	assert.InDelta(t, want, SharpeRatio(r, 0.02), 1e-9)
}

func TestSortinoRatio(t *testing.T) {
	// One negative return is not enough for a sample deviation.
	assert.Equal(t, 0.0, SortinoRatio([]float64{0.01, -0.01, 0.02}, 0))
	assert.Equal(t, 0.0, SortinoRatio([]float64{0.01, 0.02}, 0))
	assert.Equal(t, 0.0, SortinoRatio([]float64{-0.01, -0.01, 0.03}, 0))

	r := []float64{0.03, -0.01, -0.03, 0.05}
	// mean 0.01; downside {-0.01, -0.03} sample std sqrt(0.0002)
	want := (0.01*252 - 0.02) / (math.Sqrt(0.0002) * math.Sqrt(252))
	assert.InDelta(t, want, SortinoRatio(r, 0.02), 1e-9)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestSharpeRatioConstantReturns(t *testing.T) {
	for _, v := range []float64{0.001, 0.01, 0.1, -0.002, 0.0003} {
		for _, n := range []int{3, 10, 252} {
			assert.Equal(t, 0.0, SharpeRatio(repeat(v, n), DefaultRiskFreeRate), "value %v repeated %d times", v, n)
		}
	}
}

func TestSortinoRatioConstantDownside(t *testing.T) {
	assert.Equal(t, 0.0, SortinoRatio([]float64{0.02, -0.003, -0.003, -0.003, 0.01}, 0.02))

	r := append(repeat(0.004, 20), repeat(-0.0007, 15)...)
	assert.Equal(t, 0.0, SortinoRatio(r, DefaultRiskFreeRate))
}

func trades(pnls ...float64) domain.TradeLog {
	out := make(domain.TradeLog, len(pnls))
	for i, p := range pnls {
		out[i] = domain.ClosedTrade{PnL: p}
	}
	return out
}

func TestTradeMetrics(t *testing.T) {
	log := trades(30, -10, 20, -20, 0)
	assert.Equal(t, 40.0, WinRate(log))
	assert.InDelta(t, 50.0/30.0, ProfitFactor(log), 1e-12)
	assert.InDelta(t, 4.0, AverageTrade(log), 1e-12)

	assert.Equal(t, 0.0, WinRate(nil))
	assert.Equal(t, 0.0, AverageTrade(nil))
	assert.Equal(t, 0.0, ProfitFactor(nil))
	assert.Equal(t, 0.0, ProfitFactor(trades(0, 0)))
	assert.True(t, math.IsInf(ProfitFactor(trades(5, 1)), 1))
	assert.Equal(t, 0.0, ProfitFactor(trades(-5)))
}

func TestCompute(t *testing.T) {
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	curve := domain.EquityCurve{
		{Timestamp: start, Equity: 100},
		{Timestamp: start.AddDate(1, 0, 0), Equity: 50},
		{Timestamp: start.AddDate(2, 0, 0), Equity: 121},
	}
	rep := Compute(curve, trades(21), DefaultRiskFreeRate)

	assert.InDelta(t, 2.0, rep.Years, 0.01)
	assert.InDelta(t, 21.0, rep.TotalReturn, 1e-9)
	assert.InDelta(t, 50.0, rep.MaxDrawdown, 1e-9)
	assert.InDelta(t, 10.0, rep.CAGR, 0.05)
	assert.Equal(t, 100.0, rep.WinRate)
	assert.Equal(t, 1, rep.TotalTrades)

	empty := Compute(nil, nil, DefaultRiskFreeRate)
	assert.Equal(t, Report{}, empty)
}
