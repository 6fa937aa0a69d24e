// Package gather prefetches daily bars for a ticker universe into the local
// bar store so later backtests read from disk.
package gather

import (
	"context"
	"time"

	"tradesim/internal/domain"
)

// Gatherer is the interface for all data gathering processes.
type Gatherer interface {
	// Name returns the gatherer identifier.
	Name() string
	// Run performs one gathering pass. It returns early if ctx is cancelled.
	Run(ctx context.Context) error
}

// DateRange represents a time range for data fetching.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// String renders the range as "start:end" in date-only form.
func (r DateRange) String() string {
	return r.Start.Format(time.DateOnly) + ":" + r.End.Format(time.DateOnly)
}

// MultiBarSource fetches daily bars for several tickers in one request,
// keyed by upper-case ticker. Tickers with no data are absent from the map.
type MultiBarSource interface {
	FetchMultiBars(ctx context.Context, tickers []string, start, end time.Time) (map[string][]domain.Bar, error)
}

// Invalidator drops cached data for a ticker after it was refreshed.
type Invalidator interface {
	Invalidate(ctx context.Context, ticker string) error
}
