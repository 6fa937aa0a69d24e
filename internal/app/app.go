// Package app assembles the runtime shared by the tradesim binaries: stores,
// the market data provider chain, metrics and the simulation service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"tradesim/internal/backtest"
	"tradesim/internal/config"
	"tradesim/internal/domain"
	"tradesim/internal/gather"
	"tradesim/internal/marketdata"
	"tradesim/internal/sim"
	"tradesim/internal/store"
	"tradesim/internal/telemetry"
)

// App holds the long-lived dependencies of a tradesim process.
type App struct {
	Config   *config.Config
	Log      *slog.Logger
	Registry *prometheus.Registry
	Metrics  *telemetry.Metrics
	Bars     *store.ParquetStore
	DB       *store.SQLiteStore
	// Alpaca is nil when market_data.source is "store".
	Alpaca   *marketdata.AlpacaSource
	Cache    *marketdata.CachingProvider
	Provider marketdata.Provider
	Sim      *sim.Service

	rdb *redis.Client
}

// New opens the stores and builds the provider chain
// Redis cache -> Parquet read-through store -> Alpaca.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: prometheus.NewRegistry(),
		Bars:     store.NewParquetStore(cfg.Storage.DataDir),
	}

	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m, err := telemetry.NewMetrics(a.Registry)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}
	a.Metrics = m

	if a.DB, err = store.NewSQLiteStore(cfg.Storage.SQLitePath); err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", cfg.Storage.SQLitePath, err)
	}

	md := cfg.MarketData
	var inner marketdata.Provider
	switch md.Source {
	case "alpaca":
		a.Alpaca = marketdata.NewAlpacaSource(marketdata.AlpacaOptions{
			APIKey:          cfg.Alpaca.APIKey,
			APISecret:       cfg.Alpaca.APISecret,
			DataURL:         cfg.Alpaca.DataURL,
			Feed:            md.Feed,
			RateLimitPerMin: md.RateLimitPerMin,
			BreakerFailures: md.BreakerFailures,
			Metrics:         m,
		})
		inner = marketdata.NewStoreProvider(a.Bars, a.DB, a.Alpaca, m)
	case "store":
		inner = marketdata.NewStoreProvider(a.Bars, nil, nil, m)
	default:
		a.DB.Close()
		return nil, fmt.Errorf("%w: unknown market_data.source %q", domain.ErrConfiguration, md.Source)
	}

	a.rdb = connectRedis(ctx, cfg.Redis, log)
	a.Cache = marketdata.NewCachingProvider(a.rdb, md.CacheTTL, inner, "tradesim:bars", m)
	a.Provider = a.Cache

	a.Sim = sim.NewService(a.Provider, sim.Options{
		Defaults: backtest.Config{
			InitialCapital: cfg.Backtest.InitialCapital,
			PositionSize:   cfg.Backtest.PositionSize,
			CommissionRate: cfg.Backtest.Commission,
		},
		RiskFreeRate:  cfg.Backtest.RiskFree(),
		RetryAttempts: md.RetryAttempts,
		Workers:       cfg.Backtest.Workers,
		Metrics:       m,
	})

	log.Info("runtime ready",
		"source", md.Source,
		"data_dir", cfg.Storage.DataDir,
		"redis", a.rdb != nil,
	)
	return a, nil
}

// connectRedis returns a client for cfg, or nil when Redis is not
// configured or unreachable.
func connectRedis(ctx context.Context, cfg config.Redis, log *slog.Logger) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Warn("redis unavailable, bar cache disabled", "addr", cfg.Addr, "err", err)
		rdb.Close()
		return nil
	}
	log.Info("redis connected", "addr", cfg.Addr)
	return rdb
}

// Prefetcher returns a Prefetcher filling the bar store for tickers over rng.
// It needs the Alpaca source.
func (a *App) Prefetcher(tickers []string, rng gather.DateRange) (*gather.Prefetcher, error) {
	if a.Alpaca == nil {
		return nil, fmt.Errorf("%w: prefetch needs market_data.source alpaca", domain.ErrConfiguration)
	}
	return gather.NewPrefetcher(a.Alpaca, a.Bars, gather.PrefetchOptions{
		Tickers:    tickers,
		Range:      rng,
		BatchSize:  a.Config.MarketData.BatchSize,
		MaxWorkers: a.Config.Backtest.Workers,
		DataDir:    a.Config.Storage.DataDir,
		Coverage:   a.DB,
		Cache:      a.Cache,
	}), nil
}

// LatestTradingDay returns the last finished trading session, from the
// Alpaca calendar when credentials are configured and otherwise the previous
// weekday.
func (a *App) LatestTradingDay(now time.Time) time.Time {
	if a.Config.Alpaca.APIKey != "" {
		cal := gather.NewAlpacaCalendar(a.Config.Alpaca.APIKey, a.Config.Alpaca.APISecret, a.Config.Alpaca.BaseURL)
		day, err := gather.LatestFinishedTradingDay(cal, now)
		if err == nil {
			return day
		}
		a.Log.Warn("trading calendar unavailable, using previous weekday", "err", err)
	}
	return gather.PreviousWeekday(now)
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	if a.rdb != nil {
		a.rdb.Close()
	}
	return a.DB.Close()
}
