package builtins

import (
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

var _ strategy.Strategy = (*MACD)(nil)

// MACD trades crossings of the MACD line (fast EMA minus slow EMA) and its
// EMA signal line.
type MACD struct {
	fast, slow, signal int
}

// NewMACD validates the periods and returns the strategy.
func NewMACD(fast, slow, signal int) (*MACD, error) {
	if fast < 1 || slow < 1 || signal < 1 {
		return nil, fmt.Errorf("%w: macd periods must be positive", domain.ErrConfiguration)
	}
	if fast >= slow {
		return nil, fmt.Errorf("%w: fast_period (%d) must be less than slow_period (%d)", domain.ErrConfiguration, fast, slow)
	}
	return &MACD{fast: fast, slow: slow, signal: signal}, nil
}

func newMACD(p strategy.Params) (strategy.Strategy, error) {
	return NewMACD(p.Int("fast_period"), p.Int("slow_period"), p.Int("signal_period"))
}

func (m *MACD) Kind() strategy.Kind { return strategy.KindMACD }

// Lines returns the MACD and signal lines for closes.
func (m *MACD) Lines(closes []float64) (macd, signal []float64) {
	fast := strategy.EMA(closes, m.fast)
	slow := strategy.EMA(closes, m.slow)
	macd = make([]float64, len(closes))
	for i := range closes {
		macd[i] = fast[i] - slow[i]
	}
	return macd, strategy.EMA(macd, m.signal)
}

func (m *MACD) GenerateSignals(table *domain.PriceTable) (domain.SignalSeries, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	macd, signal := m.Lines(table.Closes())
	return crossSignals(macd, signal, m.slow), nil
}
