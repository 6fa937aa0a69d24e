package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	alpacamd "github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"tradesim/internal/domain"
	"tradesim/internal/telemetry"
	"tradesim/internal/util"
)

// Compile-time interface checks.
var _ BarSource = (*AlpacaSource)(nil)

// barsClient is the subset of *alpacamd.Client used here.
type barsClient interface {
	GetBars(symbol string, req alpacamd.GetBarsRequest) ([]alpacamd.Bar, error)
	GetMultiBars(symbols []string, req alpacamd.GetBarsRequest) (map[string][]alpacamd.Bar, error)
}

// AlpacaOptions configures an AlpacaSource.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string
	Feed            string
	RateLimitPerMin int
	// BreakerFailures is the number of consecutive failures that opens the
	// circuit.
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Metrics         *telemetry.Metrics
}

// AlpacaSource fetches daily bars from the Alpaca market data API. Requests
// are paced by a token bucket and guarded by a circuit breaker.
type AlpacaSource struct {
	client  barsClient
	feed    string
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	metrics *telemetry.Metrics
	log     *slog.Logger
}

// NewAlpacaSource creates an AlpacaSource using the Alpaca SDK client.
func NewAlpacaSource(opts AlpacaOptions) *AlpacaSource {
	clientOpts := alpacamd.ClientOpts{
		APIKey:    opts.APIKey,
		APISecret: opts.APISecret,
	}
	if opts.DataURL != "" {
		clientOpts.BaseURL = opts.DataURL
	}
	return newAlpacaSource(alpacamd.NewClient(clientOpts), opts)
}

func newAlpacaSource(client barsClient, opts AlpacaOptions) *AlpacaSource {
	if opts.Feed == "" {
		opts.Feed = "sip"
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout == 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	s := &AlpacaSource{
		client:  client,
		feed:    opts.Feed,
		limiter: util.NewRateLimiter(opts.RateLimitPerMin),
		metrics: opts.Metrics,
		log:     slog.Default().With("component", "alpaca"),
	}

	failures := opts.BreakerFailures
	st := gobreaker.Settings{
		Name:    "alpaca",
		Timeout: opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			s.log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			s.metrics.SetBreakerState(name, breakerStateValue(to))
		},
	}
	s.breaker = gobreaker.NewCircuitBreaker(st)
	return s
}

func breakerStateValue(st gobreaker.State) int {
	switch st {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// request builds a daily-bar request. The SIP feed rejects queries for the
// most recent 15 minutes, so end is clamped.
func (s *AlpacaSource) request(start, end time.Time) alpacamd.GetBarsRequest {
	start, end = DayRange(start, end)
	if limit := time.Now().Add(-16 * time.Minute); end.After(limit) {
		end = limit
	}
	return alpacamd.GetBarsRequest{
		TimeFrame: alpacamd.OneDay,
		Start:     start,
		End:       end,
		Feed:      alpacamd.Feed(s.feed),
	}
}

// call waits for a rate-limit token and runs fn through the breaker.
func (s *AlpacaSource) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	began := time.Now()
	out, err := s.breaker.Execute(fn)
	s.metrics.ObserveFetch("alpaca", time.Since(began), err)
	return out, err
}

// FetchBars returns the daily bars of ticker in [start, end].
func (s *AlpacaSource) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error) {
	ticker = NormalizeTicker(ticker)
	out, err := s.call(ctx, func() (interface{}, error) {
		return s.client.GetBars(ticker, s.request(start, end))
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetBars %s: %w", ticker, err)
	}
	alpacaBars := out.([]alpacamd.Bar)
	s.log.Debug("fetched bars", "ticker", ticker, "bars", len(alpacaBars))
	return convertBars(ticker, alpacaBars), nil
}

// FetchMultiBars fetches daily bars for several tickers in one API call.
func (s *AlpacaSource) FetchMultiBars(ctx context.Context, tickers []string, start, end time.Time) (map[string][]domain.Bar, error) {
	symbols := make([]string, len(tickers))
	for i, t := range tickers {
		symbols[i] = NormalizeTicker(t)
	}
	out, err := s.call(ctx, func() (interface{}, error) {
		return s.client.GetMultiBars(symbols, s.request(start, end))
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca GetMultiBars: %w", err)
	}

	multi := out.(map[string][]alpacamd.Bar)
	result := make(map[string][]domain.Bar, len(multi))
	for symbol, bars := range multi {
		sym := NormalizeTicker(symbol)
		result[sym] = convertBars(sym, bars)
	}
	return result, nil
}

func convertBars(symbol string, in []alpacamd.Bar) []domain.Bar {
	bars := make([]domain.Bar, 0, len(in))
	for _, ab := range in {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     float64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	return bars
}
