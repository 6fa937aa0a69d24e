package backtest

import (
	"math"
	"time"

	"tradesim/internal/domain"
)

// Result is the output of one Engine.Run call.
type Result struct {
	Symbol    string
	Config    Config
	Equity    domain.EquityCurve
	Trades    domain.TradeLog
	FinalCash float64
}

// TradeLog returns a copy of the closed trades; never nil.
func (r *Result) TradeLog() domain.TradeLog {
	out := make(domain.TradeLog, len(r.Trades))
	copy(out, r.Trades)
	return out
}

// FinalEquity is the last equity point, equal to FinalCash after
// finalization.
func (r *Result) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return r.Config.InitialCapital
	}
	return r.Equity[len(r.Equity)-1].Equity
}

// Summary condenses the trade log and final cash.
type Summary struct {
	TotalTrades   int     `json:"total_trades"`
	WinningTrades int     `json:"winning_trades"`
	LosingTrades  int     `json:"losing_trades"`
	WinRate       float64 `json:"win_rate"`
	AvgWin        float64 `json:"avg_win"`
	AvgLoss       float64 `json:"avg_loss"`
	ProfitFactor  float64 `json:"profit_factor"`
	TotalReturn   float64 `json:"total_return"`
	TotalFees     float64 `json:"total_fees"`
}

// Summary computes win rate, average win/loss and the average-based profit
// factor |avg win / avg loss|. The profit factor is +Inf when there are
// winners and no losers, and 0 when there are no trades.
func (r *Result) Summary() Summary {
	s := Summary{TotalTrades: len(r.Trades)}
	if r.Config.InitialCapital > 0 {
		s.TotalReturn = (r.FinalCash - r.Config.InitialCapital) / r.Config.InitialCapital * 100
	}
	if s.TotalTrades == 0 {
		return s
	}

	var winSum, lossSum float64
	for _, t := range r.Trades {
		s.TotalFees += t.Commission
		switch {
		case t.IsWin():
			s.WinningTrades++
			winSum += t.PnL
		case t.IsLoss():
			s.LosingTrades++
			lossSum += t.PnL
		}
	}

	s.WinRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	if s.WinningTrades > 0 {
		s.AvgWin = winSum / float64(s.WinningTrades)
	}
	if s.LosingTrades > 0 {
		s.AvgLoss = lossSum / float64(s.LosingTrades)
	}

	switch {
	case s.LosingTrades > 0:
		s.ProfitFactor = math.Abs(s.AvgWin / s.AvgLoss)
	case s.WinningTrades > 0:
		s.ProfitFactor = math.Inf(1)
	}
	return s
}

// TradeRow is one exported row of the trade log.
type TradeRow struct {
	EntryDate  time.Time     `json:"entry_date"`
	EntryPrice float64       `json:"entry_price"`
	ExitDate   time.Time     `json:"exit_date"`
	ExitPrice  float64       `json:"exit_price"`
	Side       domain.Side   `json:"side"`
	Size       float64       `json:"size"`
	PnL        float64       `json:"pnl"`
	PnLPct     float64       `json:"pnl_pct"`
	Status     string        `json:"status"`
	Duration   time.Duration `json:"duration"`
}

// Rows renders the trade log as tabular rows. Trades liquidated at the end
// of the data carry status "closed_eod".
func (r *Result) Rows() []TradeRow {
	rows := make([]TradeRow, 0, len(r.Trades))
	for _, t := range r.Trades {
		status := "closed"
		if t.Forced {
			status = "closed_eod"
		}
		rows = append(rows, TradeRow{
			EntryDate:  t.EntryTime,
			EntryPrice: t.EntryPrice,
			ExitDate:   t.ExitTime,
			ExitPrice:  t.ExitPrice,
			Side:       t.Side,
			Size:       t.Size,
			PnL:        t.PnL,
			PnLPct:     t.PnLPct,
			Status:     status,
			Duration:   t.Duration(),
		})
	}
	return rows
}
