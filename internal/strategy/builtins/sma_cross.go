package builtins

import (
	"fmt"

	"tradesim/internal/domain"
	"tradesim/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Strategy = (*SMACross)(nil)

// SMACross implements a simple moving average crossover strategy. It generates
// a buy signal when the short-period SMA crosses above the long-period SMA,
// and a sell signal when it crosses below.
type SMACross struct {
	shortPeriod int
	longPeriod  int
}

// NewSMACross creates a new SMACross strategy with the specified short and
// long moving average periods.
func NewSMACross(short, long int) (*SMACross, error) {
	if short < 1 || long < 1 {
		return nil, fmt.Errorf("%w: sma windows must be positive", domain.ErrConfiguration)
	}
	if short >= long {
		return nil, fmt.Errorf("%w: short_window (%d) must be less than long_window (%d)", domain.ErrConfiguration, short, long)
	}
	return &SMACross{
		shortPeriod: short,
		longPeriod:  long,
	}, nil
}

func newSMACross(p strategy.Params) (strategy.Strategy, error) {
	return NewSMACross(p.Int("short_window"), p.Int("long_window"))
}

// Kind returns strategy.KindSMACrossover.
func (s *SMACross) Kind() strategy.Kind {
	return strategy.KindSMACrossover
}

// GenerateSignals returns None for the first longPeriod bars.
func (s *SMACross) GenerateSignals(table *domain.PriceTable) (domain.SignalSeries, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	closes := table.Closes()
	short := strategy.SMA(closes, s.shortPeriod)
	long := strategy.SMA(closes, s.longPeriod)
	return crossSignals(short, long, s.longPeriod), nil
}
