package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"tradecal/internal/api"
	"tradecal/internal/app"
	"tradecal/internal/config"
	"tradecal/internal/domain"
	"tradecal/internal/marketdata"
	"tradecal/internal/sim"
	"tradecal/internal/store"
	"tradecal/internal/util"
	"tradecal/pkg/tradecal"
)

const version = "0.1.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tradecal <command> [options] [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                   Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  info                      Describe the active calendar\n")
		fmt.Fprintf(os.Stderr, "  session <date>            Show the open and close of a trading day\n")
		fmt.Fprintf(os.Stderr, "  next <time>               Show the next session after a date or instant\n")
		fmt.Fprintf(os.Stderr, "  distance <a> <b>          Count trading days between two dates\n")
		fmt.Fprintf(os.Stderr, "  window <start> <end>      Align a simulation period to the calendar\n")
		fmt.Fprintf(os.Stderr, "  minutes <date>            List the market minutes of a trading day\n")
		fmt.Fprintf(os.Stderr, "  symbols                   List benchmark symbols with stored bars\n")
		fmt.Fprintf(os.Stderr, "  import-treasury <csv>     Load a Treasury yield-curve CSV into storage\n")
		fmt.Fprintf(os.Stderr, "\nQuery commands accept -addr to ask a running tradecal-server instead of\n")
		fmt.Fprintf(os.Stderr, "building the calendar from %s.\n\n", config.DefaultPath)
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	var err error
	switch cmd {
	case "version":
		fmt.Printf("tradecal %s\n", version)
	case "info":
		err = runInfo(ctx, args)
	case "session":
		err = runSession(ctx, args, false)
	case "next":
		err = runSession(ctx, args, true)
	case "distance":
		err = runDistance(ctx, args)
	case "window":
		err = runWindow(ctx, args)
	case "minutes":
		err = runMinutes(ctx, args)
	case "symbols":
		err = runSymbols(ctx, args)
	case "import-treasury":
		err = runImportTreasury(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		flag.Usage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd, err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// Backends
// ---------------------------------------------------------------------------

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.Path())
	if err != nil {
		return nil, err
	}
	util.SetDefault(util.NewLogger(cfg.Logging.Level, cfg.Logging.Format))
	return cfg, nil
}

// openBackend dials addr when set, otherwise builds the calendar locally.
func openBackend(ctx context.Context, addr string) (backend, func(), error) {
	if addr != "" {
		c, err := tradecal.Dial(addr)
		if err != nil {
			return nil, nil, err
		}
		return c, func() { c.Close() }, nil
	}
	b, cleanup, err := openLocal(ctx)
	if err != nil {
		return nil, nil, err
	}
	return b, cleanup, nil
}

func openLocal(ctx context.Context) (localBackend, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return localBackend{}, nil, err
	}
	stores, err := app.OpenStores(cfg)
	if err != nil {
		return localBackend{}, nil, err
	}
	idx, err := app.BuildIndex(ctx, cfg, stores)
	if err != nil {
		stores.Close()
		return localBackend{}, nil, err
	}
	return localBackend{
		idx: idx,
		defaults: []sim.Option{
			sim.WithCapitalBase(cfg.Simulation.CapitalBase),
			sim.WithEmissionRate(domain.Frequency(cfg.Simulation.EmissionRate)),
			sim.WithDataFrequency(domain.Frequency(cfg.Simulation.DataFrequency)),
		},
	}, func() { stores.Close() }, nil
}

func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	addr := fs.String("addr", "", "tradecal-server address (host:port); empty builds the calendar locally")
	return fs, addr
}

// parseArgs parses exactly n positional times after the flags.
func parseArgs(fs *flag.FlagSet, args []string, names ...string) ([]time.Time, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != len(names) {
		return nil, fmt.Errorf("want %d argument(s) %v, got %d", len(names), names, fs.NArg())
	}
	out := make([]time.Time, len(names))
	for i, name := range names {
		t, err := api.ParseTime(fs.Arg(i))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out[i] = t
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func runInfo(ctx context.Context, args []string) error {
	fs, addr := newFlagSet("info")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	b, cleanup, err := openBackend(ctx, *addr)
	if err != nil {
		return err
	}
	defer cleanup()

	info, err := b.Info(ctx)
	if err != nil {
		return err
	}
	renderInfo(os.Stdout, info)
	return nil
}

func runSession(ctx context.Context, args []string, next bool) error {
	name := "session"
	if next {
		name = "next"
	}
	fs, addr := newFlagSet(name)
	ts, err := parseArgs(fs, args, "date")
	if err != nil {
		return err
	}
	b, cleanup, err := openBackend(ctx, *addr)
	if err != nil {
		return err
	}
	defer cleanup()

	lookup := b.OpenAndClose
	if next {
		lookup = b.NextOpenAndClose
	}
	open, closeAt, err := lookup(ctx, ts[0])
	if err != nil {
		return err
	}
	renderSession(os.Stdout, open, closeAt)
	return nil
}

func runDistance(ctx context.Context, args []string) error {
	fs, addr := newFlagSet("distance")
	ts, err := parseArgs(fs, args, "a", "b")
	if err != nil {
		return err
	}
	b, cleanup, err := openBackend(ctx, *addr)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := b.TradingDayDistance(ctx, ts[0], ts[1])
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func runWindow(ctx context.Context, args []string) error {
	fs, addr := newFlagSet("window")
	capital := fs.Float64("capital", 0, "starting capital (0 keeps the configured default)")
	emission := fs.String("emission-rate", "", "emission rate: daily or minute")
	frequency := fs.String("data-frequency", "", "data frequency: daily or minute")
	days := fs.Bool("days", false, "list every trading day in the window")
	ts, err := parseArgs(fs, args, "start", "end")
	if err != nil {
		return err
	}
	b, cleanup, err := openBackend(ctx, *addr)
	if err != nil {
		return err
	}
	defer cleanup()

	w, err := b.SimulationWindow(ctx, ts[0], ts[1], tradecal.WindowRequest{
		CapitalBase:   *capital,
		EmissionRate:  *emission,
		DataFrequency: *frequency,
	})
	if err != nil {
		return err
	}
	renderWindow(os.Stdout, w, *days)
	return nil
}

func runMinutes(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("minutes", flag.ExitOnError)
	summary := fs.Bool("summary", false, "print only the first, last and count")
	ts, err := parseArgs(fs, args, "date")
	if err != nil {
		return err
	}
	b, cleanup, err := openLocal(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	minutes, err := b.idx.MarketMinutes(ts[0])
	if err != nil {
		return err
	}
	return renderMinutes(os.Stdout, minutes, *summary)
}

func runSymbols(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("symbols", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	symbols, err := store.NewParquetStore(cfg.Storage.DataDir).ListSymbols(ctx, string(domain.MarketUS))
	if err != nil {
		return err
	}
	for _, s := range symbols {
		fmt.Println(s)
	}
	return nil
}

func runImportTreasury(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import-treasury", flag.ExitOnError)
	dataDir := fs.String("data-dir", "", "parquet data directory (default: storage.data_dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("want a CSV path, got %d argument(s)", fs.NArg())
	}

	dir := *dataDir
	if dir == "" {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dir = cfg.Storage.DataDir
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	curves, err := importTreasury(ctx, f, store.NewParquetStore(dir))
	if err != nil {
		return err
	}
	fmt.Printf("imported %d treasury curves into %s\n", len(curves), dir)
	if len(curves) > 0 {
		renderCurve(os.Stdout, curves[len(curves)-1])
	}
	return nil
}

// importTreasury parses a Treasury CSV and stores its curves, returning them
// oldest first.
func importTreasury(ctx context.Context, r io.Reader, st store.TreasuryStore) ([]domain.TreasuryCurve, error) {
	curves, err := marketdata.ReadTreasuryCSV(r)
	if err != nil {
		return nil, err
	}
	if err := st.WriteTreasuryCurves(ctx, curves); err != nil {
		return nil, fmt.Errorf("writing treasury curves: %w", err)
	}
	return curves, nil
}
