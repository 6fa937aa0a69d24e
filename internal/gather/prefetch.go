package gather

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"tradesim/internal/domain"
	"tradesim/internal/marketdata"
	"tradesim/internal/store"
)

var _ Gatherer = (*Prefetcher)(nil)

// PrefetchOptions configures a Prefetcher.
type PrefetchOptions struct {
	Tickers    []string
	Range      DateRange
	BatchSize  int // tickers per request (100)
	MaxWorkers int // concurrent requests (4)
	// DataDir holds the progress files, under <DataDir>/daily.
	DataDir string
	// Coverage, when set, skips tickers already covering Range and records
	// coverage for gathered ones.
	Coverage store.CoverageStore
	// Cache, when set, is invalidated for every ticker written.
	Cache Invalidator
}

// Prefetcher downloads daily bars for a ticker universe into a BarStore in
// batches, with a bounded worker pool. It is resumable: tickers that came
// back empty are remembered until the range changes, and a completed range
// is not fetched again.
type Prefetcher struct {
	source MultiBarSource
	bars   store.BarStore
	opts   PrefetchOptions
	log    *slog.Logger
}

// PrefetchStats summarises one Run.
type PrefetchStats struct {
	Tickers int
	Hits    int64
	Empty   int64
	Failed  int64
	Bars    int64
}

// NewPrefetcher creates a Prefetcher writing to bars.
func NewPrefetcher(source MultiBarSource, bars store.BarStore, opts PrefetchOptions) *Prefetcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 4
	}
	return &Prefetcher{
		source: source,
		bars:   bars,
		opts:   opts,
		log:    slog.Default().With("gatherer", "prefetch"),
	}
}

// Name returns the gatherer identifier.
func (p *Prefetcher) Name() string { return "prefetch" }

// Run implements Gatherer.
func (p *Prefetcher) Run(ctx context.Context) error {
	_, err := p.Prefetch(ctx)
	return err
}

// Prefetch gathers the configured range and reports what it did.
func (p *Prefetcher) Prefetch(ctx context.Context) (PrefetchStats, error) {
	var stats PrefetchStats
	rng := p.opts.Range
	if rng.Start.IsZero() || rng.End.IsZero() || rng.End.Before(rng.Start) {
		return stats, fmt.Errorf("%w: invalid prefetch range %s", domain.ErrConfiguration, rng)
	}
	start, end := marketdata.DayRange(rng.Start, rng.End)
	key := rng.String()

	// 1. Set up progress tracker.
	tracker, err := newProgressTracker(filepath.Join(p.opts.DataDir, "daily"))
	if err != nil {
		return stats, fmt.Errorf("creating progress tracker: %w", err)
	}
	defer tracker.Close()

	// 2. Check idempotency.
	if tracker.IsCompleted(key) {
		p.log.Info("already completed", "range", key)
		return stats, nil
	}

	// 3. A different range makes .tried-empty stale.
	if last := tracker.LastCompleted(); last != "" && last != key {
		if err := tracker.Reset(); err != nil {
			return stats, fmt.Errorf("resetting tracker: %w", err)
		}
	}

	// 4. Build the remaining set.
	remaining, err := p.remaining(ctx, tracker, start, end)
	if err != nil {
		return stats, err
	}
	stats.Tickers = len(remaining)

	totalBatches := (len(remaining) + p.opts.BatchSize - 1) / p.opts.BatchSize
	p.log.Info("starting prefetch",
		"range", key,
		"total", len(p.opts.Tickers),
		"remaining", len(remaining),
		"batches", totalBatches,
	)

	if len(remaining) == 0 {
		if err := tracker.MarkCompleted(key); err != nil {
			return stats, fmt.Errorf("marking completed: %w", err)
		}
		return stats, nil
	}

	// 5. Split into batches.
	var batches [][]string
	for i := 0; i < len(remaining); i += p.opts.BatchSize {
		batches = append(batches, remaining[i:min(i+p.opts.BatchSize, len(remaining))])
	}

	// 6. Feed batches to workers.
	batchCh := make(chan int, len(batches))
	for i := range batches {
		batchCh <- i
	}
	close(batchCh)

	var (
		wg       sync.WaitGroup
		hits     atomic.Int64
		empty    atomic.Int64
		failed   atomic.Int64
		barCount atomic.Int64
		runStart = time.Now()
	)

	workers := min(p.opts.MaxWorkers, len(batches))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batchIdx := range batchCh {
				if ctx.Err() != nil {
					return
				}
				batch := batches[batchIdx]
				label := fmt.Sprintf("%d/%d", batchIdx+1, totalBatches)

				h, e, n, err := p.gatherBatch(ctx, tracker, batch, start, end)
				if err != nil {
					failed.Add(int64(len(batch)))
					p.log.Error("batch failed", "batch", label, "err", err)
					continue
				}
				hits.Add(h)
				empty.Add(e)
				barCount.Add(n)

				p.log.Info("batch done",
					"batch", label,
					"hits", h,
					"empty", e,
					"elapsed", time.Since(runStart).Round(time.Second),
				)
			}
		}()
	}
	wg.Wait()

	stats.Hits, stats.Empty, stats.Failed, stats.Bars = hits.Load(), empty.Load(), failed.Load(), barCount.Load()
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}

	// 7. Only a clean pass is marked completed so failed batches are retried.
	if stats.Failed == 0 {
		if err := tracker.MarkCompleted(key); err != nil {
			return stats, fmt.Errorf("marking completed: %w", err)
		}
	}

	p.log.Info("prefetch complete",
		"hits", stats.Hits,
		"empty", stats.Empty,
		"failed", stats.Failed,
		"bars", stats.Bars,
		"elapsed", time.Since(runStart).Round(time.Second),
	)
	if stats.Failed > 0 {
		return stats, fmt.Errorf("prefetch: %d tickers failed", stats.Failed)
	}
	return stats, nil
}

// remaining returns the normalized, de-duplicated tickers that still need
// fetching.
func (p *Prefetcher) remaining(ctx context.Context, tracker *progressTracker, start, end time.Time) ([]string, error) {
	seen := make(map[string]struct{}, len(p.opts.Tickers))
	var out []string
	for _, t := range p.opts.Tickers {
		ticker := marketdata.NormalizeTicker(t)
		if ticker == "" {
			continue
		}
		if _, dup := seen[ticker]; dup {
			continue
		}
		seen[ticker] = struct{}{}

		if tracker.IsTriedEmpty(ticker) {
			continue
		}
		if p.opts.Coverage != nil {
			ok, err := p.opts.Coverage.Covered(ctx, ticker, start, end)
			if err != nil {
				return nil, fmt.Errorf("checking coverage for %s: %w", ticker, err)
			}
			if ok {
				continue
			}
		}
		out = append(out, ticker)
	}
	return out, nil
}

// gatherBatch fetches one batch, writes the bars, records coverage and marks
// tickers that came back empty.
func (p *Prefetcher) gatherBatch(ctx context.Context, tracker *progressTracker, batch []string, start, end time.Time) (hits, empty, bars int64, err error) {
	multi, err := p.source.FetchMultiBars(ctx, batch, start, end)
	if err != nil {
		return 0, 0, 0, err
	}

	var all []domain.Bar
	var hitTickers, emptyTickers []string
	for _, ticker := range batch {
		cleaned := marketdata.Clean(multi[ticker])
		if len(cleaned) == 0 {
			emptyTickers = append(emptyTickers, ticker)
			continue
		}
		hitTickers = append(hitTickers, ticker)
		all = append(all, cleaned...)
	}

	if len(all) > 0 {
		if err := p.bars.WriteBars(ctx, all); err != nil {
			return 0, 0, 0, fmt.Errorf("writing bars: %w", err)
		}
	}

	for _, ticker := range hitTickers {
		if p.opts.Coverage != nil {
			if err := p.opts.Coverage.RecordCoverage(ctx, ticker, start, end); err != nil {
				p.log.Warn("recording coverage failed", "ticker", ticker, "err", err)
			}
		}
		if p.opts.Cache != nil {
			if err := p.opts.Cache.Invalidate(ctx, ticker); err != nil {
				p.log.Warn("cache invalidation failed", "ticker", ticker, "err", err)
			}
		}
	}

	if len(emptyTickers) > 0 {
		if err := tracker.MarkEmpty(emptyTickers); err != nil {
			p.log.Error("marking empty failed", "err", err)
		}
	}
	return int64(len(hitTickers)), int64(len(emptyTickers)), int64(len(all)), nil
}
