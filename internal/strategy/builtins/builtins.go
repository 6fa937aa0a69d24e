// Package builtins provides the strategy implementations that ship with
// tradesim and the single constructor that dispatches on strategy.Kind.
package builtins

import (
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

var registry = newRegistry()

func newRegistry() *strategy.Registry {
	r := strategy.NewRegistry()
	r.Register(strategy.Definition{
		Kind:        strategy.KindSMACrossover,
		Description: "Buy when the short moving average crosses above the long one, sell on the opposite cross.",
		Params: []strategy.ParamSpec{
			{Name: "short_window", Default: 20, Min: 1, Max: 100, Integer: true},
			{Name: "long_window", Default: 50, Min: 1, Max: 200, Integer: true},
		},
	}, newSMACross)
	r.Register(strategy.Definition{
		Kind:        strategy.KindRSI,
		Description: "Buy when RSI drops below the oversold level, sell when it rises above the overbought level.",
		Params: []strategy.ParamSpec{
			{Name: "period", Default: 14, Min: 1, Max: 50, Integer: true},
			{Name: "overbought", Default: 70, Min: 50, Max: 100},
			{Name: "oversold", Default: 30, Min: 0, Max: 50},
		},
	}, newRSI)
	r.Register(strategy.Definition{
		Kind:        strategy.KindMACD,
		Description: "Buy when the MACD line crosses above its signal line, sell on the opposite cross.",
		Params: []strategy.ParamSpec{
			{Name: "fast_period", Default: 12, Min: 1, Max: 50, Integer: true},
			{Name: "slow_period", Default: 26, Min: 1, Max: 100, Integer: true},
			{Name: "signal_period", Default: 9, Min: 1, Max: 50, Integer: true},
		},
	}, newMACD)
	r.Register(strategy.Definition{
		Kind:        strategy.KindBollinger,
		Description: "Buy when the close falls through the lower band, sell when it rises through the upper band.",
		Params: []strategy.ParamSpec{
			{Name: "window", Default: 20, Min: 5, Max: 100, Integer: true},
			{Name: "num_std", Default: 2, Min: 1, Max: 4},
		},
	}, newBollinger)
	return r
}

// New builds the strategy for kind with params; missing parameters take
// their defaults.
func New(kind strategy.Kind, params strategy.Params) (strategy.Strategy, error) {
	return registry.New(kind, params)
}

// Registry returns the registry of built-in strategies.
func Registry() *strategy.Registry {
	return registry
}

func checkTable(table *domain.PriceTable) error {
	if table.Len() == 0 {
		return fmt.Errorf("%w: empty price table", domain.ErrData)
	}
	return nil
}

// crossSignals emits Buy where a crosses above b and Sell where it crosses
// below, for bars at or after warmup. Comparisons involving NaN yield None.
func crossSignals(a, b []float64, warmup int) domain.SignalSeries {
	out := make(domain.SignalSeries, len(a))
	for i := max(warmup, 1); i < len(a); i++ {
		switch {
		case a[i] > b[i] && a[i-1] <= b[i-1]:
			out[i] = domain.SignalBuy
		case a[i] < b[i] && a[i-1] >= b[i-1]:
			out[i] = domain.SignalSell
		}
	}
	return out
}
