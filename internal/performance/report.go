package performance

import (
	"tradesim/internal/domain"
	"tradesim/internal/util"
)

// Report aggregates every metric for one run.
type Report struct {
	TotalReturn    float64 `json:"total_return"`
	CAGR           float64 `json:"cagr"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	SortinoRatio   float64 `json:"sortino_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	CalmarRatio    float64 `json:"calmar_ratio"`
	RecoveryFactor float64 `json:"recovery_factor"`
	WinRate        float64 `json:"win_rate"`
	ProfitFactor   float64 `json:"profit_factor"`
	AverageTrade   float64 `json:"average_trade"`
	TotalTrades    int     `json:"total_trades"`
	Years          float64 `json:"years"`
}

// Compute builds a Report. The period length in years is taken from the
// first and last timestamps of curve.
func Compute(curve domain.EquityCurve, trades domain.TradeLog, rf float64) Report {
	equity := curve.Values()
	returns := Returns(equity)

	var years float64
	if len(curve) >= 2 {
		years = util.YearFraction(curve[0].Timestamp, curve[len(curve)-1].Timestamp)
	}

	return Report{
		TotalReturn:    TotalReturn(equity),
		CAGR:           CAGR(equity, years),
		SharpeRatio:    SharpeRatio(returns, rf),
		SortinoRatio:   SortinoRatio(returns, rf),
		MaxDrawdown:    MaxDrawdown(equity),
		CalmarRatio:    CalmarRatio(equity, years),
		RecoveryFactor: RecoveryFactor(equity),
		WinRate:        WinRate(trades),
		ProfitFactor:   ProfitFactor(trades),
		AverageTrade:   AverageTrade(trades),
		TotalTrades:    len(trades),
		Years:          years,
	}
}
