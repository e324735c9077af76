package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"tradecal/internal/calendar"
	"tradecal/internal/domain"
	"tradecal/internal/store"
)

var _ calendar.Loader = (*Loader)(nil)

// lookbackDays is how far before the first trading day bars are requested,
// so the first day has a prior close to compute a return against.
const lookbackDays = 10

// Loader builds benchmark returns from a BarSource and reads treasury curves
// from a TreasuryStore.
type Loader struct {
	bars     BarSource
	treasury store.TreasuryStore
	log      *slog.Logger
}

// NewLoader creates a Loader. treasury may be nil, in which case no curves
// are returned.
func NewLoader(bars BarSource, treasury store.TreasuryStore) *Loader {
	return &Loader{
		bars:     bars,
		treasury: treasury,
		log:      slog.Default().With("component", "marketdata-loader"),
	}
}

// Load returns one close-to-close benchmark return per trading day and the
// treasury curves dated within the trading-day range. A trading day without
// a benchmark bar gets a zero return.
func (l *Loader) Load(ctx context.Context, req calendar.LoadRequest) ([]domain.BenchmarkReturn, []domain.TreasuryCurve, error) {
	if req.Frequency != domain.FrequencyDaily {
		return nil, nil, fmt.Errorf("unsupported frequency %q", req.Frequency)
	}
	if len(req.TradingDays) == 0 {
		return nil, nil, nil
	}
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}

	first := req.TradingDays[0]
	last := req.TradingDays[len(req.TradingDays)-1]

	var (
		bars   []domain.Bar
		curves []domain.TreasuryCurve
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bars, err = l.bars.DailyBars(gctx, req.BenchmarkSymbol, first.AddDate(0, 0, -lookbackDays), last.AddDate(0, 0, 1))
		if err != nil {
			return fmt.Errorf("loading %s bars: %w", req.BenchmarkSymbol, err)
		}
		return nil
	})
	if l.treasury != nil {
		g.Go(func() error {
			var err error
			curves, err = l.treasury.ReadTreasuryCurves(gctx, first, last)
			if err != nil {
				return fmt.Errorf("loading treasury curves: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	returns, missing := dailyReturns(bars, req.TradingDays, loc)
	if missing > 0 {
		l.log.Warn("benchmark bars missing, using zero return",
			"symbol", req.BenchmarkSymbol, "days", missing)
	}

	l.log.Info("loaded reference series",
		"symbol", req.BenchmarkSymbol,
		"returns", len(returns),
		"curves", len(curves),
	)
	return returns, curves, nil
}

// dailyReturns aligns bars to days by their exchange-local date and returns
// close/previous close - 1 for each day. The previous close is the latest bar
// before the day, which may come from the lookback.
func dailyReturns(bars []domain.Bar, days []time.Time, loc *time.Location) ([]domain.BenchmarkReturn, int) {
	sorted := make([]domain.Bar, len(bars))
	copy(sorted, bars)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	keys := make([]time.Time, len(sorted))
	for i, b := range sorted {
		local := b.Timestamp.In(loc)
		keys[i] = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	}

	out := make([]domain.BenchmarkReturn, len(days))
	missing := 0
	for i, d := range days {
		d = calendar.NormalizeDate(d)
		out[i] = domain.BenchmarkReturn{Date: d}

		j := sort.Search(len(keys), func(k int) bool { return !keys[k].Before(d) })
		if j == len(keys) || !keys[j].Equal(d) {
			missing++
			continue
		}
		if j == 0 || sorted[j-1].Close == 0 {
			continue
		}
		out[i].Return = sorted[j].Close/sorted[j-1].Close - 1
	}
	return out, missing
}
