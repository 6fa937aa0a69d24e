// Package backtest simulates a single-asset long/short position driven by a
// per-bar signal series and records the resulting equity curve and trade log.
package backtest

import (
	"fmt"
	"log/slog"
	"math"

	"tradesim/internal/domain"
)

// Config holds the capital and cost parameters of a run.
type Config struct {
	InitialCapital float64 `json:"initial_capital"`
	// PositionSize is the fraction of available cash committed per entry.
	PositionSize   float64 `json:"position_size"`
	CommissionRate float64 `json:"commission_rate"`
}

// DefaultConfig returns 100k capital, full-cash sizing and 10 bps commission.
func DefaultConfig() Config {
	return Config{
		InitialCapital: 100000,
		PositionSize:   1.0,
		CommissionRate: 0.001,
	}
}

// Validate checks parameter ranges.
func (c Config) Validate() error {
	if !(c.InitialCapital > 0) || math.IsInf(c.InitialCapital, 0) {
		return fmt.Errorf("%w: initial capital must be positive, got %v", domain.ErrConfiguration, c.InitialCapital)
	}
	if !(c.PositionSize > 0 && c.PositionSize <= 1) {
		return fmt.Errorf("%w: position size must be in (0, 1], got %v", domain.ErrConfiguration, c.PositionSize)
	}
	if !(c.CommissionRate >= 0) || math.IsInf(c.CommissionRate, 0) {
		return fmt.Errorf("%w: commission rate must be >= 0, got %v", domain.ErrConfiguration, c.CommissionRate)
	}
	return nil
}

// Engine runs simulations. It holds only immutable configuration, so one
// Engine may serve concurrent runs; all mutable state lives inside Run.
type Engine struct {
	cfg Config
	log *slog.Logger
}

// New creates an Engine. The configuration is validated by Run.
func New(cfg Config) *Engine {
	return &Engine{
		cfg: cfg,
		log: slog.Default().With("component", "backtest"),
	}
}

// WithLogger returns a copy of the engine that logs to l.
func (e *Engine) WithLogger(l *slog.Logger) *Engine {
	cp := *e
	cp.log = l.With("component", "backtest")
	return &cp
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// ledger is the per-run mutable state: cash and the single position slot.
type ledger struct {
	cash   float64
	rate   float64
	frac   float64
	pos    *domain.Position
	trades domain.TradeLog
}

func (l *ledger) equity(price float64) float64 {
	if l.pos == nil {
		return l.cash
	}
	return l.cash + l.pos.MarkToMarket(price)
}

// open commits cash × frac to a new position. The notional leaves cash and
// the entry commission is charged on top of it.
func (l *ledger) open(bar domain.Bar, side domain.Side) bool {
	if l.cash <= 0 {
		return false
	}
	price := bar.Close
	size := l.cash * l.frac / price
	commission := price * size * l.rate
	l.cash -= size*price + commission
	l.pos = &domain.Position{
		EntryTime:       bar.Timestamp,
		EntryPrice:      price,
		Size:            size,
		Side:            side,
		EntryCommission: commission,
	}
	return true
}

// close liquidates the open position at the bar close: cash receives the
// mark-to-market value less exit commission.
func (l *ledger) close(bar domain.Bar, forced bool) domain.ClosedTrade {
	price := bar.Close
	commission := price * l.pos.Size * l.rate
	l.cash += l.pos.MarkToMarket(price) - commission
	trade := l.pos.Close(bar.Timestamp, price, commission, forced)
	l.trades = append(l.trades, trade)
	l.pos = nil
	return trade
}

// Run simulates the strategy over table. Bar 0 anchors the equity curve at
// the initial capital and never trades. On every later bar an open position
// is checked for exit (long on Sell, short on Buy); a bar that starts flat
// opens a long on Buy and a short on Sell. A bar that closes a position
// never reopens one. Any position still open after the last bar is
// force-closed at its close.
func (e *Engine) Run(table *domain.PriceTable, signals domain.SignalSeries) (*Result, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	n := table.Len()
	if n == 0 {
		return nil, fmt.Errorf("%w: empty price table", domain.ErrData)
	}
	if len(signals) != n {
		return nil, fmt.Errorf("%w: %d signals for %d bars", domain.ErrConfiguration, len(signals), n)
	}
	for i, s := range signals {
		if !s.Valid() {
			return nil, fmt.Errorf("%w: invalid signal %d at bar %d", domain.ErrConfiguration, int8(s), i)
		}
	}

	led := &ledger{
		cash: e.cfg.InitialCapital,
		rate: e.cfg.CommissionRate,
		frac: e.cfg.PositionSize,
	}
	curve := make(domain.EquityCurve, n)
	curve[0] = domain.EquityPoint{Timestamp: table.First().Timestamp, Equity: e.cfg.InitialCapital}

	e.log.Debug("starting backtest",
		"symbol", table.Symbol(),
		"bars", n,
		"initialCapital", e.cfg.InitialCapital,
		"positionSize", e.cfg.PositionSize,
		"commission", e.cfg.CommissionRate,
	)

	for i := 1; i < n; i++ {
		bar := table.Bar(i)
		sig := signals[i]

		if led.pos != nil {
			exit := (led.pos.Side == domain.SideLong && sig == domain.SignalSell) ||
				(led.pos.Side == domain.SideShort && sig == domain.SignalBuy)
			if exit {
				tr := led.close(bar, false)
				e.log.Debug("closed position", "bar", i, "side", tr.Side, "exit", tr.ExitPrice, "pnl", tr.PnL)
			}
		} else if sig != domain.SignalNone {
			// An entry on the last bar would be liquidated on the same bar.
			if i == n-1 {
				e.log.Debug("skipping entry on final bar", "bar", i, "signal", sig)
			} else {
				side := domain.SideLong
				if sig == domain.SignalSell {
					side = domain.SideShort
				}
				if led.open(bar, side) {
					e.log.Debug("opened position", "bar", i, "side", side, "entry", bar.Close, "size", led.pos.Size)
				} else {
					e.log.Warn("no cash available for entry", "bar", i, "cash", led.cash)
				}
			}
		}

		curve[i] = domain.EquityPoint{Timestamp: bar.Timestamp, Equity: led.equity(bar.Close)}
	}

	if led.pos != nil {
		last := table.Last()
		tr := led.close(last, true)
		curve[n-1].Equity = led.cash
		e.log.Debug("force-closed position at end of data", "side", tr.Side, "exit", tr.ExitPrice, "pnl", tr.PnL)
	}

	return &Result{
		Symbol:    table.Symbol(),
		Config:    e.cfg,
		Equity:    curve,
		Trades:    led.trades,
		FinalCash: led.cash,
	}, nil
}
