// Package sim runs end-to-end simulations: fetch prices, generate signals,
// run the backtest engine and compute performance metrics.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tradesim/internal/backtest"
	"tradesim/internal/domain"
	"tradesim/internal/marketdata"
	"tradesim/internal/performance"
	"tradesim/internal/strategy"
	"tradesim/internal/strategy/builtins"
	"tradesim/internal/telemetry"
	"tradesim/internal/util"
)

// Request describes one simulation. A zero Config takes the service
// defaults.
type Request struct {
	Ticker   string          `json:"ticker"`
	Strategy strategy.Kind   `json:"strategy"`
	Params   strategy.Params `json:"params,omitempty"`
	Start    time.Time       `json:"start"`
	End      time.Time       `json:"end"`
	Config   backtest.Config `json:"config"`
}

// Report is the outcome of one simulation.
type Report struct {
	ID          uuid.UUID          `json:"id"`
	Request     Request            `json:"request"`
	Bars        int                `json:"bars"`
	Result      *backtest.Result   `json:"-"`
	Summary     backtest.Summary   `json:"summary"`
	Performance performance.Report `json:"performance"`
	Elapsed     time.Duration      `json:"elapsed"`
}

// Options configures a Service.
type Options struct {
	// Defaults applies to requests with a zero Config.
	Defaults      backtest.Config
	RiskFreeRate  float64
	RetryAttempts int
	RetryDelay    time.Duration
	Workers       int
	Metrics       *telemetry.Metrics
}

// Service orchestrates simulations against a market data provider. It is
// safe for concurrent use.
type Service struct {
	provider marketdata.Provider
	opts     Options
	log      *slog.Logger
}

// NewService creates a Service.
func NewService(provider marketdata.Provider, opts Options) *Service {
	if opts.Defaults == (backtest.Config{}) {
		opts.Defaults = backtest.DefaultConfig()
	}
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	return &Service{
		provider: provider,
		opts:     opts,
		log:      slog.Default().With("component", "sim"),
	}
}

// Defaults returns the engine configuration used for requests with a zero
// Config.
func (s *Service) Defaults() backtest.Config { return s.opts.Defaults }

// Strategies lists the available strategies.
func (s *Service) Strategies() []strategy.Definition {
	return builtins.Registry().List()
}

// normalize fills defaults and validates req without touching the network.
func (s *Service) normalize(req Request) (Request, strategy.Strategy, error) {
	req.Ticker = marketdata.NormalizeTicker(req.Ticker)
	if req.Ticker == "" {
		return req, nil, fmt.Errorf("%w: ticker is required", domain.ErrConfiguration)
	}
	if req.Start.IsZero() || req.End.IsZero() {
		return req, nil, fmt.Errorf("%w: start and end dates are required", domain.ErrConfiguration)
	}
	if req.End.Before(req.Start) {
		return req, nil, fmt.Errorf("%w: end %s before start %s", domain.ErrConfiguration,
			req.End.Format(time.DateOnly), req.Start.Format(time.DateOnly))
	}
	if req.Config == (backtest.Config{}) {
		req.Config = s.opts.Defaults
	}
	if err := req.Config.Validate(); err != nil {
		return req, nil, err
	}

	strat, err := builtins.New(req.Strategy, req.Params)
	if err != nil {
		return req, nil, err
	}
	return req, strat, nil
}

// Run executes one simulation. Configuration problems fail before any data
// is fetched. Provider errors other than ErrDataUnavailable are retried.
func (s *Service) Run(ctx context.Context, req Request) (rep *Report, err error) {
	began := time.Now()
	defer func() {
		trades := 0
		if rep != nil {
			trades = rep.Summary.TotalTrades
		}
		s.opts.Metrics.ObserveRun(string(req.Strategy), time.Since(began), trades, err)
	}()

	req, strat, err := s.normalize(req)
	if err != nil {
		return nil, err
	}

	var table *domain.PriceTable
	err = util.RetryIf(ctx, s.opts.RetryAttempts, s.opts.RetryDelay, retryable, func() error {
		t, ferr := s.provider.Fetch(ctx, req.Ticker, req.Start, req.End)
		if ferr != nil {
			s.log.Warn("fetch failed", "ticker", req.Ticker, "err", ferr)
			return ferr
		}
		table = t
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", req.Ticker, err)
	}

	signals, err := strat.GenerateSignals(table)
	if err != nil {
		return nil, fmt.Errorf("generating %s signals: %w", req.Strategy, err)
	}

	result, err := backtest.New(req.Config).WithLogger(s.log).Run(table, signals)
	if err != nil {
		return nil, err
	}

	rep = &Report{
		ID:          uuid.New(),
		Request:     req,
		Bars:        table.Len(),
		Result:      result,
		Summary:     result.Summary(),
		Performance: performance.Compute(result.Equity, result.Trades, s.opts.RiskFreeRate),
		Elapsed:     time.Since(began),
	}
	s.log.Info("simulation complete",
		"id", rep.ID,
		"ticker", req.Ticker,
		"strategy", req.Strategy,
		"bars", rep.Bars,
		"trades", rep.Summary.TotalTrades,
		"total_return", rep.Performance.TotalReturn,
		"elapsed", rep.Elapsed.Round(time.Millisecond),
	)
	return rep, nil
}

// retryable reports whether a fetch error may succeed on a later attempt.
func retryable(err error) bool {
	return !errors.Is(err, domain.ErrDataUnavailable) &&
		!errors.Is(err, domain.ErrConfiguration) &&
		!errors.Is(err, domain.ErrData) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
