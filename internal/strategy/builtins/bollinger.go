package builtins

import (
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

var _ strategy.Strategy = (*Bollinger)(nil)

// Bollinger buys the close that drops through the lower band and sells the
// close that rises through the upper band.
type Bollinger struct {
	window int
	numStd float64
}

func NewBollinger(window int, numStd float64) (*Bollinger, error) {
	if window < 2 || !(numStd > 0) {
		return nil, fmt.Errorf("%w: bollinger needs window >= 2 and num_std > 0", domain.ErrConfiguration)
	}
	return &Bollinger{window: window, numStd: numStd}, nil
}

func newBollinger(p strategy.Params) (strategy.Strategy, error) {
	return NewBollinger(p.Int("window"), p["num_std"])
}

func (b *Bollinger) Kind() strategy.Kind { return strategy.KindBollinger }

// Bands returns the upper and lower bands for closes.
func (b *Bollinger) Bands(closes []float64) (upper, lower []float64) {
	mid := strategy.SMA(closes, b.window)
	std := strategy.RollingStd(closes, b.window)
	upper = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i] = mid[i] + b.numStd*std[i]
		lower[i] = mid[i] - b.numStd*std[i]
	}
	return upper, lower
}

func (b *Bollinger) GenerateSignals(table *domain.PriceTable) (domain.SignalSeries, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	closes := table.Closes()
	upper, lower := b.Bands(closes)
	out := make(domain.SignalSeries, len(closes))
	for i := b.window; i < len(closes); i++ {
		switch {
		case closes[i] < lower[i] && closes[i-1] >= lower[i-1]:
			out[i] = domain.SignalBuy
		case closes[i] > upper[i] && closes[i-1] <= upper[i-1]:
			out[i] = domain.SignalSell
		}
	}
	return out, nil
}
