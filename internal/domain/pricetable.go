package domain

import (
	"fmt"
	"math"
	"time"
)

// PriceTable is an immutable, validated, time-ordered sequence of bars. It is
// shared read-only between signal providers and the backtest engine.
type PriceTable struct {
	symbol string
	bars   []Bar
}

// NewPriceTable copies bars and validates them. It fails with ErrData when
// the series is empty, a price is non-finite or non-positive, a volume is
// negative, or timestamps are not strictly increasing.
func NewPriceTable(symbol string, bars []Bar) (*PriceTable, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: empty price series for %q", ErrData, symbol)
	}
	for i := range bars {
		if err := validateBar(&bars[i]); err != nil {
			return nil, fmt.Errorf("bar %d (%s): %w", i, bars[i].Timestamp.Format(time.DateOnly), err)
		}
		if i > 0 && !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("%w: bar %d timestamp %s is not after %s",
				ErrData, i, bars[i].Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}

	cp := make([]Bar, len(bars))
	copy(cp, bars)
	return &PriceTable{symbol: symbol, bars: cp}, nil
}

func validateBar(b *Bar) error {
	prices := [...]struct {
		name  string
		value float64
	}{
		{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close},
	}
	for _, p := range prices {
		if math.IsNaN(p.value) || math.IsInf(p.value, 0) {
			return fmt.Errorf("%w: non-finite %s price", ErrData, p.name)
		}
		if p.value <= 0 {
			return fmt.Errorf("%w: non-positive %s price %v", ErrData, p.name, p.value)
		}
	}
	if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
		return fmt.Errorf("%w: invalid volume %v", ErrData, b.Volume)
	}
	return nil
}

// Symbol returns the ticker the table was built for.
func (t *PriceTable) Symbol() string { return t.symbol }

// Len returns the number of bars. A nil table has length 0.
func (t *PriceTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.bars)
}

// Bar returns the i-th bar by value.
func (t *PriceTable) Bar(i int) Bar { return t.bars[i] }

// First returns the earliest bar.
func (t *PriceTable) First() Bar { return t.bars[0] }

// Last returns the latest bar.
func (t *PriceTable) Last() Bar { return t.bars[len(t.bars)-1] }

// Bars returns a copy of all bars.
func (t *PriceTable) Bars() []Bar {
	out := make([]Bar, len(t.bars))
	copy(out, t.bars)
	return out
}

// Closes returns a fresh slice of close prices.
func (t *PriceTable) Closes() []float64 {
	out := make([]float64, len(t.bars))
	for i := range t.bars {
		out[i] = t.bars[i].Close
	}
	return out
}

// Timestamps returns a fresh slice of bar timestamps.
func (t *PriceTable) Timestamps() []time.Time {
	out := make([]time.Time, len(t.bars))
	for i := range t.bars {
		out[i] = t.bars[i].Timestamp
	}
	return out
}
