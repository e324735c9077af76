package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tradecal/internal/api"
	"tradecal/internal/app"
	"tradecal/internal/calendar"
	"tradecal/internal/config"
	"tradecal/internal/util"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(cfg)
	if err != nil {
		log.Fatalf("failed to open storage: %v", err)
	}
	defer stores.Close()

	idx, err := app.BuildIndex(ctx, cfg, stores)
	if err != nil {
		log.Fatalf("failed to build calendar: %v", err)
	}
	calendar.SetActive(idx)

	slog.Info("tradecal-server starting",
		"host", cfg.Server.Host,
		"grpcPort", cfg.Server.GRPCPort,
		"metricsPort", cfg.Server.MetricsPort,
	)
	if err := api.NewServer(cfg, calendar.Default).ListenAndServe(ctx); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
