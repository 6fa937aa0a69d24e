package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"tradesim/internal/api"
	"tradesim/internal/app"
	"tradesim/internal/config"
	"tradesim/internal/util"
)

func main() {
	cfg, err := config.LoadDefault()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("initializing", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	srv := api.NewServer(api.NewHandler(a.Sim, a.DB), api.ServerOptions{
		GRPCAddr:    cfg.GRPCAddr(),
		MetricsAddr: cfg.MetricsAddr(),
		Gatherer:    a.Registry,
	})

	logger.Info("tradesim server starting",
		"grpc", cfg.GRPCAddr(),
		"metrics", cfg.MetricsAddr(),
		"source", cfg.MarketData.Source,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		logger.Error("server error", "error", err)
		a.Close()
		os.Exit(1)
	}
	logger.Info("tradesim server stopped")
}
