package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/store"
	"tradesim/internal/telemetry"
	"tradesim/internal/util"
)

var _ Provider = (*StoreProvider)(nil)

// spanSlack is how far the stored bars may start after the requested start
// (or end before the requested end) and still count as covering the range
// when no coverage log is available. It absorbs weekends and holidays.
const spanSlack = 5 * 24 * time.Hour

// minFill is the share of weekdays between the first and last stored bar
// that must be present for the span to count as complete.
const minFill = 0.8

// StoreProvider reads bars from a BarStore. With a Source set it is a
// read-through cache: ranges the store does not cover are fetched from the
// Source and written to the store first.
type StoreProvider struct {
	bars     store.BarStore
	coverage store.CoverageStore
	source   BarSource
	metrics  *telemetry.Metrics
	log      *slog.Logger
	now      func() time.Time
}

// NewStoreProvider creates a StoreProvider. coverage and source may be nil.
func NewStoreProvider(bars store.BarStore, coverage store.CoverageStore, source BarSource, metrics *telemetry.Metrics) *StoreProvider {
	return &StoreProvider{
		bars:     bars,
		coverage: coverage,
		source:   source,
		metrics:  metrics,
		log:      slog.Default().With("component", "bar-store"),
		now:      time.Now,
	}
}

// Fetch implements Provider.
func (p *StoreProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (*domain.PriceTable, error) {
	if err := checkRange(ticker, start, end); err != nil {
		return nil, err
	}
	ticker = NormalizeTicker(ticker)
	start, end = DayRange(start, end)

	began := time.Now()
	bars, err := p.bars.ReadBars(ctx, ticker, start, end)
	if err != nil {
		p.metrics.ObserveFetch("store", time.Since(began), err)
		return nil, fmt.Errorf("reading stored bars for %s: %w", ticker, err)
	}

	if p.source != nil {
		covered, err := p.covered(ctx, ticker, start, end, bars)
		if err != nil {
			return nil, err
		}
		p.metrics.CacheLookup("parquet", covered)
		if !covered {
			if bars, err = p.refresh(ctx, ticker, start, end); err != nil {
				return nil, err
			}
		}
	}
	p.metrics.ObserveFetch("store", time.Since(began), nil)

	return BuildTable(ticker, start, end, bars)
}

func (p *StoreProvider) covered(ctx context.Context, ticker string, start, end time.Time, bars []domain.Bar) (bool, error) {
	if p.coverage != nil {
		ok, err := p.coverage.Covered(ctx, ticker, start, end)
		if err != nil {
			return false, fmt.Errorf("checking coverage for %s: %w", ticker, err)
		}
		return ok, nil
	}
	if len(bars) == 0 {
		return false, nil
	}
	first, last := bars[0].Timestamp, bars[len(bars)-1].Timestamp
	if first.Sub(start) > spanSlack || end.Sub(last) > spanSlack {
		return false, nil
	}
	return float64(len(bars)) >= minFill*float64(util.TradingDays(first, last)), nil
}

// refresh fetches the range from the source, stores it and reads it back.
func (p *StoreProvider) refresh(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error) {
	fetched, err := p.source.FetchBars(ctx, ticker, start, end)
	if err != nil {
		return nil, err
	}
	cleaned := Clean(fetched)
	if err := p.bars.WriteBars(ctx, cleaned); err != nil {
		return nil, fmt.Errorf("storing bars for %s: %w", ticker, err)
	}

	// A range reaching into today may still gain a bar, so only finished
	// ranges are recorded.
	if p.coverage != nil && end.Before(dayStart(p.now())) {
		if err := p.coverage.RecordCoverage(ctx, ticker, start, end); err != nil {
			p.log.Warn("recording coverage failed", "ticker", ticker, "err", err)
		}
	}
	p.log.Debug("refreshed bars", "ticker", ticker, "bars", len(cleaned),
		"start", start.Format(time.DateOnly), "end", end.Format(time.DateOnly))

	return p.bars.ReadBars(ctx, ticker, start, end)
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
