// Package marketdata retrieves daily bars and turns them into validated price
// tables. Providers compose: an Alpaca source can sit behind a Parquet
// read-through store, which can sit behind a Redis cache.
package marketdata

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"tradesim/internal/domain"
)

// Provider fetches the daily bars of ticker in [start, end].
type Provider interface {
	// Fetch returns ErrDataUnavailable (wrapped) when the range yields no
	// usable rows.
	Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceTable, error)
}

// BarSource is a raw bar fetcher without cleaning or table construction.
type BarSource interface {
	FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceTable, error)

func (f ProviderFunc) Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceTable, error) {
	return f(ctx, ticker, start, end)
}

// NormalizeTicker upper-cases and trims a ticker symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// checkRange validates the common Fetch arguments.
func checkRange(ticker string, start, end time.Time) error {
	if NormalizeTicker(ticker) == "" {
		return fmt.Errorf("%w: ticker is required", domain.ErrConfiguration)
	}
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", domain.ErrConfiguration)
	}
	if end.Before(start) {
		return fmt.Errorf("%w: end %s before start %s", domain.ErrConfiguration,
			end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return nil
}

// DayRange widens [start, end] to whole UTC days: start at midnight and end
// at the last instant of its day.
func DayRange(start, end time.Time) (time.Time, time.Time) {
	sy, sm, sd := start.Date()
	ey, em, ed := end.Date()
	return time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC),
		time.Date(ey, em, ed, 23, 59, 59, int(time.Second-time.Millisecond), time.UTC)
}

func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// Clean drops bars with missing or invalid values, sorts by timestamp and
// keeps the last bar for a repeated timestamp. Volume must be finite and
// non-negative. The input slice is not modified.
func Clean(bars []domain.Bar) []domain.Bar {
	out := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Timestamp.IsZero() {
			continue
		}
		if !usable(b.Open) || !usable(b.High) || !usable(b.Low) || !usable(b.Close) {
			continue
		}
		if math.IsNaN(b.Volume) || math.IsInf(b.Volume, 0) || b.Volume < 0 {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	dedup := out[:0]
	for _, b := range out {
		if n := len(dedup); n > 0 && dedup[n-1].Timestamp.Equal(b.Timestamp) {
			dedup[n-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}

// BuildTable cleans bars and constructs the price table for ticker.
func BuildTable(ticker string, start, end time.Time, bars []domain.Bar) (*domain.PriceTable, error) {
	cleaned := Clean(bars)
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("%w: no usable bars for %s between %s and %s", domain.ErrDataUnavailable,
			ticker, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}
	return domain.NewPriceTable(ticker, cleaned)
}

// SourceProvider turns a BarSource into a Provider.
type SourceProvider struct {
	Source BarSource
}

func (p SourceProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceTable, error) {
	if err := checkRange(ticker, start, end); err != nil {
		return nil, err
	}
	ticker = NormalizeTicker(ticker)
	start, end = DayRange(start, end)
	bars, err := p.Source.FetchBars(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	return BuildTable(ticker, start, end, bars)
}
