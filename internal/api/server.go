// Package api serves the Backtest gRPC service and the Prometheus metrics
// endpoint.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	GRPCAddr string
	// MetricsAddr serves /metrics over HTTP; empty disables it.
	MetricsAddr string
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// ShutdownTimeout bounds graceful shutdown (5s).
	ShutdownTimeout time.Duration
}

// Server hosts the gRPC and metrics listeners.
type Server struct {
	opts    ServerOptions
	grpc    *grpc.Server
	metrics *http.Server
	log     *slog.Logger
}

// NewServer creates a Server exposing h.
func NewServer(h BacktestServer, opts ServerOptions) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		opts: opts,
		log:  slog.Default().With("component", "server"),
	}
	s.grpc = grpc.NewServer(grpc.UnaryInterceptor(s.logUnary))
	RegisterBacktestServer(s.grpc, h)

	if opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		s.metrics = &http.Server{
			Addr:              opts.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return s
}

// GRPCServer exposes the underlying gRPC server, e.g. to serve on a custom
// listener.
func (s *Server) GRPCServer() *grpc.Server { return s.grpc }

// ListenAndServe starts the gRPC and metrics listeners and blocks until ctx
// is cancelled or a listener fails. On return both servers are stopped.
func (s *Server) ListenAndServe(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.opts.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.opts.GRPCAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve is ListenAndServe on an existing gRPC listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		s.log.Info("gRPC server listening", "addr", lis.Addr().String())
		if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- fmt.Errorf("gRPC server: %w", err)
		}
	}()

	if s.metrics != nil {
		go func() {
			s.log.Info("metrics server listening", "addr", s.metrics.Addr)
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.log.Info("shutting down")
	case runErr = <-errCh:
		s.log.Error("server error", "err", runErr)
	}

	s.shutdown()
	return runErr
}

func (s *Server) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()

	if s.metrics != nil {
		if err := s.metrics.Shutdown(shutdownCtx); err != nil {
			s.log.Error("metrics shutdown error", "err", err)
		}
	}

	stopped := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		s.grpc.Stop()
	}
}

// logUnary logs every unary call with its outcome code and latency.
func (s *Server) logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	began := time.Now()
	resp, err := handler(ctx, req)
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelWarn
	}
	s.log.Log(ctx, level, "rpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"elapsed", time.Since(began).Round(time.Millisecond),
	)
	return resp, err
}
