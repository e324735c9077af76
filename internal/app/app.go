// Package app wires configuration into a ready calendar Index.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"tradecal/internal/calendar"
	"tradecal/internal/config"
	"tradecal/internal/marketdata"
	"tradecal/internal/store"
)

// Stores are the storage backends opened for a run.
type Stores struct {
	Parquet *store.ParquetStore
	SQLite  *store.SQLiteStore // nil unless session caching is enabled
}

// Close releases any open database handles.
func (s *Stores) Close() error {
	if s.SQLite != nil {
		return s.SQLite.Close()
	}
	return nil
}

// OpenStores opens the configured storage.
func OpenStores(cfg *config.Config) (*Stores, error) {
	st := &Stores{Parquet: store.NewParquetStore(cfg.Storage.DataDir)}
	if cfg.Calendar.CacheSessions {
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLitePath), 0o755); err != nil {
			return nil, fmt.Errorf("creating sqlite dir: %w", err)
		}
		db, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening session cache: %w", err)
		}
		st.SQLite = db
	}
	return st, nil
}

// Provider builds the configured calendar provider, wrapped in the session
// cache when one is open.
func Provider(cfg *config.Config, st *Stores) (calendar.Provider, error) {
	var p calendar.Provider
	switch cfg.Calendar.Provider {
	case "nyse":
		p = calendar.NewNYSEProvider()
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, errors.New("alpaca calendar provider requires api_key and api_secret")
		}
		ap, err := calendar.NewAlpacaProvider(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL)
		if err != nil {
			return nil, err
		}
		p = ap
	default:
		return nil, fmt.Errorf("unknown calendar provider %q", cfg.Calendar.Provider)
	}

	if st.SQLite != nil {
		return calendar.NewCachedProvider(p, st.SQLite), nil
	}
	return p, nil
}

// Loader builds the benchmark/treasury loader for the configured source, or
// returns nil for source "none".
func Loader(cfg *config.Config, st *Stores) (calendar.Loader, error) {
	var bars marketdata.BarSource
	switch cfg.Benchmark.Source {
	case "none":
		return nil, nil
	case "parquet":
		bars = marketdata.NewStoredBars(st.Parquet)
	case "alpaca":
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, errors.New("alpaca benchmark source requires api_key and api_secret")
		}
		bars = marketdata.NewAlpacaBars(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret,
			cfg.Alpaca.DataURL, cfg.Benchmark.RateLimitPerMin, st.Parquet)
	default:
		return nil, fmt.Errorf("unknown benchmark source %q", cfg.Benchmark.Source)
	}
	return marketdata.NewLoader(bars, st.Parquet), nil
}

// BuildIndex constructs the calendar Index described by cfg.
func BuildIndex(ctx context.Context, cfg *config.Config, st *Stores) (*calendar.Index, error) {
	start, end, err := cfg.Window()
	if err != nil {
		return nil, err
	}
	provider, err := Provider(cfg, st)
	if err != nil {
		return nil, err
	}
	loader, err := Loader(cfg, st)
	if err != nil {
		return nil, err
	}

	opts := []calendar.Option{
		calendar.WithProvider(provider),
		calendar.WithBenchmark(cfg.Calendar.BenchmarkSymbol),
		calendar.WithExchangeTZ(cfg.Calendar.ExchangeTZ),
		calendar.WithWindow(start, end),
	}
	if loader != nil {
		opts = append(opts, calendar.WithLoader(loader))
	}

	idx, err := calendar.NewIndex(ctx, opts...)
	if err != nil {
		return nil, err
	}
	slog.Info("calendar index ready",
		"provider", idx.Provider(),
		"benchmark", idx.BenchmarkSymbol(),
		"first", idx.FirstTradingDay().Format("2006-01-02"),
		"last", idx.LastTradingDay().Format("2006-01-02"),
		"days", idx.Len(),
		"earlyCloses", len(idx.EarlyCloses()),
	)
	return idx, nil
}
