package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tradecal.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"TRADECAL_PROVIDER", "TRADECAL_BENCHMARK", "TRADECAL_START_DATE", "TRADECAL_END_DATE",
		"TRADECAL_GRPC_PORT", "DATA_DIR", "SQLITE_PATH", "ALPACA_API_KEY", "ALPACA_API_SECRET",
		"ALPACA_BASE_URL", "ALPACA_DATA_URL", "LOG_LEVEL", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
calendar:
  provider: "alpaca"
  exchange_tz: "America/New_York"
  benchmark_symbol: "QQQ"
  start_date: "2020-01-02"
  end_date: "2024-12-31"
  cache_sessions: true
benchmark:
  source: "alpaca"
  rate_limit_per_min: 100
simulation:
  capital_base: 250000
  emission_rate: "minute"
  data_frequency: "minute"
storage:
  data_dir: "/tmp/tradecal/data"
  sqlite_path: "/tmp/tradecal/tradecal.db"
server:
  host: "127.0.0.1"
  grpc_port: 9090
  metrics_port: 9091
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
  data_url: "https://data.alpaca.markets"
logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Calendar --
	if cfg.Calendar.Provider != "alpaca" {
		t.Errorf("Calendar.Provider = %q, want %q", cfg.Calendar.Provider, "alpaca")
	}
	if cfg.Calendar.BenchmarkSymbol != "QQQ" {
		t.Errorf("Calendar.BenchmarkSymbol = %q, want %q", cfg.Calendar.BenchmarkSymbol, "QQQ")
	}
	if !cfg.Calendar.CacheSessions {
		t.Error("Calendar.CacheSessions = false, want true")
	}

	// -- Benchmark --
	if cfg.Benchmark.Source != "alpaca" {
		t.Errorf("Benchmark.Source = %q, want %q", cfg.Benchmark.Source, "alpaca")
	}
	if cfg.Benchmark.RateLimitPerMin != 100 {
		t.Errorf("Benchmark.RateLimitPerMin = %d, want %d", cfg.Benchmark.RateLimitPerMin, 100)
	}

	// -- Simulation --
	if cfg.Simulation.CapitalBase != 250000 {
		t.Errorf("Simulation.CapitalBase = %f, want %f", cfg.Simulation.CapitalBase, 250000.0)
	}
	if cfg.Simulation.DataFrequency != "minute" {
		t.Errorf("Simulation.DataFrequency = %q, want %q", cfg.Simulation.DataFrequency, "minute")
	}

	// -- Storage --
	if cfg.Storage.DataDir != "/tmp/tradecal/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/tmp/tradecal/data")
	}
	if cfg.Storage.SQLitePath != "/tmp/tradecal/tradecal.db" {
		t.Errorf("Storage.SQLitePath = %q, want %q", cfg.Storage.SQLitePath, "/tmp/tradecal/tradecal.db")
	}

	// -- Server --
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.GRPCPort != 9090 {
		t.Errorf("Server.GRPCPort = %d, want %d", cfg.Server.GRPCPort, 9090)
	}
	if cfg.Server.MetricsPort != 9091 {
		t.Errorf("Server.MetricsPort = %d, want %d", cfg.Server.MetricsPort, 9091)
	}

	// -- Alpaca --
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Alpaca.BaseURL != "https://paper-api.alpaca.markets" {
		t.Errorf("Alpaca.BaseURL = %q, want %q", cfg.Alpaca.BaseURL, "https://paper-api.alpaca.markets")
	}

	// -- Logging --
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(writeConfig(t, "storage:\n  data_dir: \"/data\"\n"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Calendar.Provider != "nyse" {
		t.Errorf("Calendar.Provider = %q, want %q", cfg.Calendar.Provider, "nyse")
	}
	if cfg.Calendar.ExchangeTZ != "America/New_York" {
		t.Errorf("Calendar.ExchangeTZ = %q, want %q", cfg.Calendar.ExchangeTZ, "America/New_York")
	}
	if cfg.Calendar.BenchmarkSymbol != "SPY" {
		t.Errorf("Calendar.BenchmarkSymbol = %q, want %q", cfg.Calendar.BenchmarkSymbol, "SPY")
	}
	if cfg.Simulation.CapitalBase != 10000 {
		t.Errorf("Simulation.CapitalBase = %f, want %f", cfg.Simulation.CapitalBase, 10000.0)
	}
	if cfg.Simulation.EmissionRate != "daily" {
		t.Errorf("Simulation.EmissionRate = %q, want %q", cfg.Simulation.EmissionRate, "daily")
	}
	if cfg.Storage.DataDir != "/data" {
		t.Errorf("Storage.DataDir = %q, want %q", cfg.Storage.DataDir, "/data")
	}
	if cfg.Server.GRPCPort != 50061 {
		t.Errorf("Server.GRPCPort = %d, want %d", cfg.Server.GRPCPort, 50061)
	}
	if cfg.Benchmark.Source != "parquet" {
		t.Errorf("Benchmark.Source = %q, want %q", cfg.Benchmark.Source, "parquet")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
alpaca:
  api_key: "yaml-key"
  api_secret: "yaml-secret"
storage:
  data_dir: "/original/data"
calendar:
  benchmark_symbol: "SPY"
`)

	t.Setenv("ALPACA_API_KEY", "env-key")
	t.Setenv("DATA_DIR", "/env/data")
	t.Setenv("TRADECAL_BENCHMARK", "QQQ")
	t.Setenv("TRADECAL_GRPC_PORT", "7000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "yaml-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "yaml-secret")
	}
	if cfg.Storage.DataDir != "/env/data" {
		t.Errorf("Storage.DataDir = %q, want %q (env override)", cfg.Storage.DataDir, "/env/data")
	}
	if cfg.Calendar.BenchmarkSymbol != "QQQ" {
		t.Errorf("Calendar.BenchmarkSymbol = %q, want %q (env override)", cfg.Calendar.BenchmarkSymbol, "QQQ")
	}
	if cfg.Server.GRPCPort != 7000 {
		t.Errorf("Server.GRPCPort = %d, want %d (env override)", cfg.Server.GRPCPort, 7000)
	}

	// Canonical SDK names win.
	t.Setenv("APCA_API_KEY_ID", "sdk-key")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Alpaca.APIKey != "sdk-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (SDK env)", cfg.Alpaca.APIKey, "sdk-key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() on a missing file returned nil error")
	}
}

func TestPath(t *testing.T) {
	t.Setenv("TRADECAL_CONFIG", "")
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("TRADECAL_CONFIG", "/etc/tradecal.yaml")
	if got := Path(); got != "/etc/tradecal.yaml" {
		t.Errorf("Path() = %q, want %q", got, "/etc/tradecal.yaml")
	}
}

func TestWindow(t *testing.T) {
	cfg := &Config{Calendar: CalendarConfig{StartDate: "2020-01-02", EndDate: "2020-12-31"}}
	start, end, err := cfg.Window()
	if err != nil {
		t.Fatalf("Window() returned error: %v", err)
	}
	if want := time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC); !start.Equal(want) {
		t.Errorf("start = %v, want %v", start, want)
	}
	if want := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC); !end.Equal(want) {
		t.Errorf("end = %v, want %v", end, want)
	}

	cfg.Calendar.EndDate = ""
	_, end, err = cfg.Window()
	if err != nil {
		t.Fatalf("Window() returned error: %v", err)
	}
	if end.Hour() != 0 || end.After(time.Now()) {
		t.Errorf("end = %v, want today's UTC midnight", end)
	}

	cfg.Calendar.StartDate = "01/02/2020"
	if _, _, err := cfg.Window(); err == nil {
		t.Error("Window() with a malformed start returned nil error")
	}
}
