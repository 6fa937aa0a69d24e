package builtins

import (
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

var _ strategy.Strategy = (*RSI)(nil)

// RSI buys when the index falls through the oversold level and sells when it
// rises through the overbought level.
type RSI struct {
	period     int
	overbought float64
	oversold   float64
}

func NewRSI(period int, overbought, oversold float64) (*RSI, error) {
	if period < 1 {
		return nil, fmt.Errorf("%w: rsi period must be positive", domain.ErrConfiguration)
	}
	if oversold >= overbought {
		return nil, fmt.Errorf("%w: oversold (%g) must be below overbought (%g)", domain.ErrConfiguration, oversold, overbought)
	}
	return &RSI{period: period, overbought: overbought, oversold: oversold}, nil
}

func newRSI(p strategy.Params) (strategy.Strategy, error) {
	return NewRSI(p.Int("period"), p["overbought"], p["oversold"])
}

func (r *RSI) Kind() strategy.Kind { return strategy.KindRSI }

func (r *RSI) GenerateSignals(table *domain.PriceTable) (domain.SignalSeries, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	rsi := strategy.RSI(table.Closes(), r.period)
	out := make(domain.SignalSeries, len(rsi))
	for i := max(r.period, 1); i < len(rsi); i++ {
		switch {
		case rsi[i] < r.oversold && rsi[i-1] >= r.oversold:
			out[i] = domain.SignalBuy
		case rsi[i] > r.overbought && rsi[i-1] <= r.overbought:
			out[i] = domain.SignalSell
		}
	}
	return out, nil
}
