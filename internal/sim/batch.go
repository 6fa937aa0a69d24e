package sim

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"tradesim/internal/backtest"
	"tradesim/internal/strategy"
)

// BatchItem is the outcome of one request in a batch. Exactly one of Report
// and Err is set.
type BatchItem struct {
	Request Request
	Report  *Report
	Err     error
}

// RunBatch runs reqs on a bounded worker pool. Items are returned in request
// order; a failing request does not stop the others.
func (s *Service) RunBatch(ctx context.Context, reqs []Request) []BatchItem {
	items := make([]BatchItem, len(reqs))
	if len(reqs) == 0 {
		return items
	}

	jobs := make(chan int, len(reqs))
	for i := range reqs {
		jobs <- i
	}
	close(jobs)

	var (
		wg       sync.WaitGroup
		done     atomic.Int64
		failed   atomic.Int64
		runStart = time.Now()
	)

	workers := min(s.opts.Workers, len(reqs))
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				items[i].Request = reqs[i]
				if err := ctx.Err(); err != nil {
					items[i].Err = err
					failed.Add(1)
					continue
				}
				rep, err := s.Run(ctx, reqs[i])
				items[i].Report, items[i].Err = rep, err
				if err != nil {
					failed.Add(1)
					s.log.Warn("batch item failed", "ticker", reqs[i].Ticker, "strategy", reqs[i].Strategy, "err", err)
				}
				done.Add(1)
			}
		}()
	}
	wg.Wait()

	s.log.Info("batch complete",
		"requests", len(reqs),
		"completed", done.Load(),
		"failed", failed.Load(),
		"elapsed", time.Since(runStart).Round(time.Millisecond),
	)
	return items
}

// Grid expands tickers × strategies into requests sharing the same range,
// parameters and engine configuration.
func Grid(tickers []string, kinds []strategy.Kind, start, end time.Time, params map[strategy.Kind]strategy.Params, cfg backtest.Config) []Request {
	reqs := make([]Request, 0, len(tickers)*len(kinds))
	for _, t := range tickers {
		for _, k := range kinds {
			reqs = append(reqs, Request{
				Ticker:   t,
				Strategy: k,
				Params:   params[k],
				Start:    start,
				End:      end,
				Config:   cfg,
			})
		}
	}
	return reqs
}
