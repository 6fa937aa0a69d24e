package sim

import (
	"math"
	"time"
)

// Number renders f for JSON-like encodings, which cannot carry non-finite
// values: those become "inf", "-inf" or "nan".
func Number(f float64) any {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	return f
}

// Fields renders the report as a map of JSON-compatible values, suitable for
// encoding/json and structpb. The equity curve is included only when
// withEquity is set.
func (r *Report) Fields(withEquity bool) map[string]any {
	params := make(map[string]any, len(r.Request.Params))
	for k, v := range r.Request.Params {
		params[k] = Number(v)
	}

	s, p := r.Summary, r.Performance
	out := map[string]any{
		"id":         r.ID.String(),
		"ticker":     r.Request.Ticker,
		"strategy":   string(r.Request.Strategy),
		"params":     params,
		"start":      r.Request.Start.Format(time.DateOnly),
		"end":        r.Request.End.Format(time.DateOnly),
		"bars":       float64(r.Bars),
		"elapsed_ms": float64(r.Elapsed.Milliseconds()),
		"config": map[string]any{
			"initial_capital": r.Request.Config.InitialCapital,
			"position_size":   r.Request.Config.PositionSize,
			"commission_rate": r.Request.Config.CommissionRate,
		},
		"summary": map[string]any{
			"total_trades":   float64(s.TotalTrades),
			"winning_trades": float64(s.WinningTrades),
			"losing_trades":  float64(s.LosingTrades),
			"win_rate":       Number(s.WinRate),
			"avg_win":        Number(s.AvgWin),
			"avg_loss":       Number(s.AvgLoss),
			"profit_factor":  Number(s.ProfitFactor),
			"total_return":   Number(s.TotalReturn),
			"total_fees":     Number(s.TotalFees),
		},
		"performance": map[string]any{
			"total_return":    Number(p.TotalReturn),
			"cagr":            Number(p.CAGR),
			"sharpe_ratio":    Number(p.SharpeRatio),
			"sortino_ratio":   Number(p.SortinoRatio),
			"max_drawdown":    Number(p.MaxDrawdown),
			"calmar_ratio":    Number(p.CalmarRatio),
			"recovery_factor": Number(p.RecoveryFactor),
			"win_rate":        Number(p.WinRate),
			"profit_factor":   Number(p.ProfitFactor),
			"average_trade":   Number(p.AverageTrade),
			"total_trades":    float64(p.TotalTrades),
			"years":           Number(p.Years),
		},
	}

	if r.Result == nil {
		return out
	}
	out["final_cash"] = Number(r.Result.FinalCash)
	out["final_equity"] = Number(r.Result.FinalEquity())

	rows := r.Result.Rows()
	trades := make([]any, 0, len(rows))
	for _, t := range rows {
		trades = append(trades, map[string]any{
			"entry_date":    t.EntryDate.Format(time.DateOnly),
			"entry_price":   t.EntryPrice,
			"exit_date":     t.ExitDate.Format(time.DateOnly),
			"exit_price":    t.ExitPrice,
			"side":          string(t.Side),
			"size":          t.Size,
			"pnl":           Number(t.PnL),
			"pnl_pct":       Number(t.PnLPct),
			"status":        t.Status,
			"duration_days": math.Floor(t.Duration.Hours() / 24),
		})
	}
	out["trades"] = trades

	if withEquity {
		equity := make([]any, 0, len(r.Result.Equity))
		for _, pt := range r.Result.Equity {
			equity = append(equity, map[string]any{
				"date":   pt.Timestamp.Format(time.DateOnly),
				"equity": Number(pt.Equity),
			})
		}
		out["equity"] = equity
	}
	return out
}
