// Package domain defines the core value types shared by the backtest engine,
// the signal providers and the market-data layer.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Bar is a single OHLCV row of a daily price series.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"timestamp"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     float64   `json:"volume"`
	TradeCount int64     `json:"trade_count,omitempty"`
	VWAP       float64   `json:"vwap,omitempty"`
}

// ---------------------------------------------------------------------------
// Signals
// ---------------------------------------------------------------------------

// Signal is the per-bar instruction emitted by a strategy.
type Signal int8

const (
	SignalNone Signal = iota
	SignalBuy
	SignalSell
)

// String returns "none", "buy" or "sell".
func (s Signal) String() string {
	switch s {
	case SignalBuy:
		return "buy"
	case SignalSell:
		return "sell"
	default:
		return "none"
	}
}

// Valid reports whether s is one of SignalNone, SignalBuy or SignalSell.
func (s Signal) Valid() bool {
	return s == SignalNone || s == SignalBuy || s == SignalSell
}

// ParseSignal converts a label into a Signal. The empty string and "hold"
// map to SignalNone.
func ParseSignal(label string) (Signal, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "buy":
		return SignalBuy, nil
	case "sell":
		return SignalSell, nil
	case "", "none", "hold":
		return SignalNone, nil
	default:
		return SignalNone, fmt.Errorf("%w: unknown signal %q", ErrConfiguration, label)
	}
}

// SignalSeries holds one Signal per bar, aligned by position with the
// PriceTable it was generated from.
type SignalSeries []Signal

// Count returns how many entries equal s.
func (ss SignalSeries) Count(s Signal) int {
	n := 0
	for _, v := range ss {
		if v == s {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Positions and trades
// ---------------------------------------------------------------------------

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Position is the single open position held by a backtest run.
type Position struct {
	EntryTime       time.Time
	EntryPrice      float64
	Size            float64
	Side            Side
	EntryCommission float64
}

// MarkToMarket values the position at price. Shorts use the linear
// approximation size × (2×entry − price).
func (p *Position) MarkToMarket(price float64) float64 {
	if p.Side == SideShort {
		return p.Size * (2*p.EntryPrice - price)
	}
	return p.Size * price
}

// PnL returns the unrealised profit of the position at price.
func (p *Position) PnL(price float64) float64 {
	if p.Side == SideShort {
		return (p.EntryPrice - price) * p.Size
	}
	return (price - p.EntryPrice) * p.Size
}

// Close turns the position into an immutable ClosedTrade.
func (p *Position) Close(exitTime time.Time, exitPrice, exitCommission float64, forced bool) ClosedTrade {
	pnl := p.PnL(exitPrice)
	var pnlPct float64
	if notional := p.EntryPrice * p.Size; notional != 0 {
		pnlPct = pnl / notional * 100
	}
	return ClosedTrade{
		EntryTime:  p.EntryTime,
		EntryPrice: p.EntryPrice,
		ExitTime:   exitTime,
		ExitPrice:  exitPrice,
		Size:       p.Size,
		Side:       p.Side,
		PnL:        pnl,
		PnLPct:     pnlPct,
		Commission: p.EntryCommission + exitCommission,
		Forced:     forced,
	}
}

// ClosedTrade is a completed round trip. PnL is gross of commission.
type ClosedTrade struct {
	EntryTime  time.Time `json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	ExitTime   time.Time `json:"exit_time"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"`
	Side       Side      `json:"side"`
	PnL        float64   `json:"pnl"`
	PnLPct     float64   `json:"pnl_pct"`
	Commission float64   `json:"commission"`
	Forced     bool      `json:"forced"`
}

// NetPnL is PnL minus entry and exit commission.
func (t ClosedTrade) NetPnL() float64 { return t.PnL - t.Commission }

// Duration is the holding period.
func (t ClosedTrade) Duration() time.Duration { return t.ExitTime.Sub(t.EntryTime) }

func (t ClosedTrade) IsWin() bool  { return t.PnL > 0 }
func (t ClosedTrade) IsLoss() bool { return t.PnL < 0 }

// TradeLog is the ordered list of closed trades of one run.
type TradeLog []ClosedTrade

// PnLs returns the gross PnL of every trade in order.
func (tl TradeLog) PnLs() []float64 {
	out := make([]float64, len(tl))
	for i, t := range tl {
		out[i] = t.PnL
	}
	return out
}

// ---------------------------------------------------------------------------
// Equity
// ---------------------------------------------------------------------------

// EquityPoint is total portfolio value at the close of one bar.
type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
}

// EquityCurve has exactly one point per input bar.
type EquityCurve []EquityPoint

// Values returns the equity column.
func (ec EquityCurve) Values() []float64 {
	out := make([]float64, len(ec))
	for i, p := range ec {
		out[i] = p.Equity
	}
	return out
}

// Span returns the time between the first and last points.
func (ec EquityCurve) Span() time.Duration {
	if len(ec) < 2 {
		return 0
	}
	return ec[len(ec)-1].Timestamp.Sub(ec[0].Timestamp)
}
