// Package api serves the calendar over gRPC and exposes Prometheus metrics
// over HTTP.
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
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"tradecal/internal/calendar"
	"tradecal/internal/config"
	"tradecal/internal/domain"
	"tradecal/internal/sim"
)

// Server hosts the CalendarService gRPC endpoint and the /metrics endpoint.
type Server struct {
	grpcAddr    string
	metricsAddr string

	grpc    *grpc.Server
	metrics *http.Server
	log     *slog.Logger
}

// NewServer creates a Server configured from cfg, answering from env. A
// fresh Prometheus registry is used so multiple servers can coexist in tests.
func NewServer(cfg *config.Config, env *calendar.Environment) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := NewMetrics(reg)

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(m.UnaryInterceptor()))
	svc := NewCalendarService(env, m,
		sim.WithCapitalBase(cfg.Simulation.CapitalBase),
		sim.WithEmissionRate(domain.Frequency(cfg.Simulation.EmissionRate)),
		sim.WithDataFrequency(domain.Frequency(cfg.Simulation.DataFrequency)),
	)
	RegisterCalendarServer(gs, svc)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &Server{
		grpcAddr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.GRPCPort),
		metricsAddr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		grpc:        gs,
		metrics:     &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		log:         slog.Default().With("component", "api-server"),
	}
}

// ListenAndServe starts the gRPC and metrics listeners and blocks until the
// context is cancelled or a listener fails. On cancellation it shuts both
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	grpcLis, err := net.Listen("tcp", s.grpcAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.grpcAddr, err)
	}
	metricsLis, err := net.Listen("tcp", s.metricsAddr)
	if err != nil {
		grpcLis.Close()
		return fmt.Errorf("listening on %s: %w", s.metricsAddr, err)
	}
	return s.Serve(ctx, grpcLis, metricsLis)
}

// Serve runs on already-open listeners. metricsLis may be nil.
func (s *Server) Serve(ctx context.Context, grpcLis, metricsLis net.Listener) error {
	errCh := make(chan error, 2)

	go func() {
		s.log.Info("grpc listening", "addr", grpcLis.Addr().String())
		errCh <- s.grpc.Serve(grpcLis)
	}()
	if metricsLis != nil {
		go func() {
			s.log.Info("metrics listening", "addr", metricsLis.Addr().String())
			if err := s.metrics.Serve(metricsLis); !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errCh:
		s.grpc.Stop()
		_ = s.metrics.Close()
		return fmt.Errorf("server stopped: %w", err)
	}
}

// Shutdown stops accepting new connections and waits for in-flight requests
// to complete, falling back to a hard stop when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.grpc.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.grpc.Stop()
	}

	if err := s.metrics.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down metrics: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}
