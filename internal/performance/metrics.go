// Package performance computes portfolio statistics from an equity curve and
// a trade log. All functions are pure: they never mutate their inputs and
// return 0 for degenerate input instead of an error.
package performance

import (
	"math"

	"tradesim/internal/domain"
)

const (
	TradingDaysPerYear  = 252
	DefaultRiskFreeRate = 0.02
)

// TotalReturn is (last/first - 1) in percent.
func TotalReturn(equity []float64) float64 {
	if len(equity) < 2 || !(equity[0] > 0) {
		return 0
	}
	return (equity[len(equity)-1]/equity[0] - 1) * 100
}

// Returns is the bar-over-bar fractional change series, one element shorter
// than equity. Steps whose predecessor is not positive are skipped.
func Returns(equity []float64) []float64 {
	if len(equity) < 2 {
		return nil
	}
	out := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if !(prev > 0) {
			continue
		}
		out = append(out, equity[i]/prev-1)
	}
	return out
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stdEpsilon is the deviation below which a series counts as constant.
// Rounding in the mean leaves a residue around 1e-18 for repeated values.
const stdEpsilon = 1e-12

// sampleStd uses n-1 in the denominator; callers guarantee len(xs) >= 2.
// Constant series return exactly 0.
func sampleStd(xs []float64) float64 {
	m := mean(xs)
	var ss float64
	constant := true
	for _, x := range xs {
		if x != xs[0] {
			constant = false
		}
		d := x - m
		ss += d * d
	}
	if constant {
		return 0
	}
	std := math.Sqrt(ss / float64(len(xs)-1))
	if std <= stdEpsilon*math.Max(1, math.Abs(m)) {
		return 0
	}
	return std
}

// SharpeRatio annualizes daily returns over 252 trading days and subtracts
// the annual risk-free rate rf.
func SharpeRatio(returns []float64, rf float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	vol := sampleStd(returns) * math.Sqrt(TradingDaysPerYear)
	if vol == 0 || math.IsNaN(vol) {
		return 0
	}
	return (mean(returns)*TradingDaysPerYear - rf) / vol
}

// SortinoRatio is SharpeRatio with the sample deviation of negative returns
// only in the denominator.
func SortinoRatio(returns []float64, rf float64) float64 {
	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return 0
	}
	dd := sampleStd(downside) * math.Sqrt(TradingDaysPerYear)
	if dd == 0 || math.IsNaN(dd) {
		return 0
	}
	return (mean(returns)*TradingDaysPerYear - rf) / dd
}

// MaxDrawdown is the largest peak-to-trough decline in percent, reported as
// a non-negative number.
func MaxDrawdown(equity []float64) float64 {
	var peak, worst float64
	for i, v := range equity {
		if i == 0 || v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak; dd < worst {
			worst = dd
		}
	}
	return math.Abs(worst) * 100
}

// CAGR is the compound annual growth rate in percent over years.
func CAGR(equity []float64, years float64) float64 {
	if len(equity) < 2 || !(years > 0) || !(equity[0] > 0) {
		return 0
	}
	last := equity[len(equity)-1]
	if last <= 0 {
		return -100
	}
	return (math.Pow(last/equity[0], 1/years) - 1) * 100
}

// CalmarRatio is CAGR / MaxDrawdown.
func CalmarRatio(equity []float64, years float64) float64 {
	dd := MaxDrawdown(equity)
	if dd == 0 {
		return 0
	}
	return CAGR(equity, years) / dd
}

// RecoveryFactor is TotalReturn / MaxDrawdown.
func RecoveryFactor(equity []float64) float64 {
	dd := MaxDrawdown(equity)
	if dd == 0 {
		return 0
	}
	return TotalReturn(equity) / dd
}

// WinRate is the percentage of trades with positive PnL.
func WinRate(trades domain.TradeLog) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.IsWin() {
			wins++
		}
	}
	return float64(wins) / float64(len(trades)) * 100
}

// ProfitFactor is gross profit over gross loss. It is +Inf when there are
// profits and no losses.
func ProfitFactor(trades domain.TradeLog) float64 {
	var profit, loss float64
	for _, t := range trades {
		switch {
		case t.PnL > 0:
			profit += t.PnL
		case t.PnL < 0:
			loss -= t.PnL
		}
	}
	if loss == 0 {
		if profit > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}

// AverageTrade is the mean trade PnL.
func AverageTrade(trades domain.TradeLog) float64 {
	if len(trades) == 0 {
		return 0
	}
	return mean(trades.PnLs())
}
