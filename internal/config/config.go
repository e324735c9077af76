package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when TRADECAL_CONFIG is unset.
const DefaultPath = "config/tradecal.yaml"

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tradecal.
type Config struct {
	Calendar   CalendarConfig   `yaml:"calendar"`
	Benchmark  BenchmarkConfig  `yaml:"benchmark"`
	Simulation SimulationConfig `yaml:"simulation"`
	Storage    Storage          `yaml:"storage"`
	Server     Server           `yaml:"server"`
	Alpaca     Alpaca           `yaml:"alpaca"`
	Logging    Logging          `yaml:"logging"`
}

// CalendarConfig selects the calendar source and window.
type CalendarConfig struct {
	Provider        string `yaml:"provider"` // nyse | alpaca
	ExchangeTZ      string `yaml:"exchange_tz"`
	BenchmarkSymbol string `yaml:"benchmark_symbol"`
	StartDate       string `yaml:"start_date"`
	EndDate         string `yaml:"end_date"` // empty means today
	CacheSessions   bool   `yaml:"cache_sessions"`
}

// BenchmarkConfig controls where benchmark bars come from.
type BenchmarkConfig struct {
	Source          string `yaml:"source"` // alpaca | parquet | none
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// SimulationConfig holds the pass-through run defaults.
type SimulationConfig struct {
	CapitalBase   float64 `yaml:"capital_base"`
	EmissionRate  string  `yaml:"emission_rate"`
	DataFrequency string  `yaml:"data_frequency"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Server holds network listener configuration.
type Server struct {
	Host        string `yaml:"host"`
	GRPCPort    int    `yaml:"grpc_port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// Alpaca holds credentials and endpoints for the Alpaca APIs.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Path returns the config file location from TRADECAL_CONFIG, or DefaultPath.
func Path() string {
	if v := os.Getenv("TRADECAL_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides and
// defaults. A .env file in the working directory is loaded first if present;
// it never overrides variables already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)
	setDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRADECAL_PROVIDER"); v != "" {
		cfg.Calendar.Provider = v
	}
	if v := os.Getenv("TRADECAL_BENCHMARK"); v != "" {
		cfg.Calendar.BenchmarkSymbol = v
	}
	if v := os.Getenv("TRADECAL_START_DATE"); v != "" {
		cfg.Calendar.StartDate = v
	}
	if v := os.Getenv("TRADECAL_END_DATE"); v != "" {
		cfg.Calendar.EndDate = v
	}
	if v := os.Getenv("TRADECAL_GRPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.GRPCPort = port
		}
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority, canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

func setDefaults(cfg *Config) {
	if cfg.Calendar.Provider == "" {
		cfg.Calendar.Provider = "nyse"
	}
	if cfg.Calendar.ExchangeTZ == "" {
		cfg.Calendar.ExchangeTZ = "America/New_York"
	}
	if cfg.Calendar.BenchmarkSymbol == "" {
		cfg.Calendar.BenchmarkSymbol = "SPY"
	}
	if cfg.Calendar.StartDate == "" {
		cfg.Calendar.StartDate = "1990-01-02"
	}
	if cfg.Benchmark.Source == "" {
		cfg.Benchmark.Source = "parquet"
	}
	if cfg.Benchmark.RateLimitPerMin == 0 {
		cfg.Benchmark.RateLimitPerMin = 200
	}
	if cfg.Simulation.CapitalBase == 0 {
		cfg.Simulation.CapitalBase = 10000
	}
	if cfg.Simulation.EmissionRate == "" {
		cfg.Simulation.EmissionRate = "daily"
	}
	if cfg.Simulation.DataFrequency == "" {
		cfg.Simulation.DataFrequency = "daily"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "data"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/tradecal.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = 50061
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9102
	}
	if cfg.Alpaca.BaseURL == "" {
		cfg.Alpaca.BaseURL = "https://api.alpaca.markets"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Window parses the calendar window. A blank end date means today (UTC).
func (c *Config) Window() (start, end time.Time, err error) {
	start, err = time.Parse(time.DateOnly, c.Calendar.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing calendar.start_date %q: %w", c.Calendar.StartDate, err)
	}
	if c.Calendar.EndDate == "" {
		now := time.Now().UTC()
		return start, time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	end, err = time.Parse(time.DateOnly, c.Calendar.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing calendar.end_date %q: %w", c.Calendar.EndDate, err)
	}
	return start, end, nil
}
