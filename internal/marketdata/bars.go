// Package marketdata loads the reference series a calendar index carries:
// benchmark daily returns and treasury yield curves.
package marketdata

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"golang.org/x/time/rate"

	"tradecal/internal/domain"
	"tradecal/internal/store"
	"tradecal/internal/util"
)

// BarSource supplies daily OHLCV bars for a single symbol.
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)
}

// Compile-time interface checks.
var _ BarSource = (*AlpacaBars)(nil)
var _ BarSource = (*StoredBars)(nil)

// ---------------------------------------------------------------------------
// AlpacaBars
// ---------------------------------------------------------------------------

// barsClient is the slice of the Alpaca market-data client AlpacaBars uses.
type barsClient interface {
	GetBars(symbol string, req marketdata.GetBarsRequest) ([]marketdata.Bar, error)
}

// AlpacaBars fetches daily bars from the Alpaca market-data API. Requests
// are paced by a per-minute limiter and retried with backoff. When a
// BarStore is set, fetched bars are written through to it.
type AlpacaBars struct {
	client      barsClient
	limiter     *rate.Limiter
	cache       store.BarStore
	feed        string
	maxAttempts int
	baseDelay   time.Duration
	log         *slog.Logger
}

// NewAlpacaBars creates a bar source for the given credentials. dataURL may
// be empty to use the default endpoint; cache may be nil.
func NewAlpacaBars(apiKey, apiSecret, dataURL string, rateLimitPerMin int, cache store.BarStore) *AlpacaBars {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return newAlpacaBars(marketdata.NewClient(opts), rateLimitPerMin, cache)
}

func newAlpacaBars(client barsClient, rateLimitPerMin int, cache store.BarStore) *AlpacaBars {
	if rateLimitPerMin <= 0 {
		rateLimitPerMin = 200
	}
	return &AlpacaBars{
		client:      client,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(rateLimitPerMin)), 1),
		cache:       cache,
		feed:        "sip",
		maxAttempts: 3,
		baseDelay:   time.Second,
		log:         slog.Default().With("component", "alpaca-bars"),
	}
}

// DailyBars returns the symbol's daily bars with timestamps in [start, end].
func (a *AlpacaBars) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	symbol = strings.ToUpper(symbol)

	var raw []marketdata.Bar
	err := util.RetryNotify(ctx, a.maxAttempts, a.baseDelay, func() error {
		if err := a.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		raw, err = a.client.GetBars(symbol, marketdata.GetBarsRequest{
			TimeFrame: marketdata.OneDay,
			Start:     start,
			End:       end,
			Feed:      a.feed,
		})
		return err
	}, func(attempt int, err error, wait time.Duration) {
		a.log.Warn("GetBars failed, retrying", "symbol", symbol, "attempt", attempt, "wait", wait, "err", err)
	})
	if err != nil {
		return nil, fmt.Errorf("GetBars %s: %w", symbol, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Symbol:     symbol,
			Timestamp:  ab.Timestamp.UTC(),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}

	if a.cache != nil && len(bars) > 0 {
		if err := a.cache.WriteBars(ctx, bars); err != nil {
			a.log.Warn("bar cache write failed", "symbol", symbol, "err", err)
		}
	}
	a.log.Debug("fetched bars", "symbol", symbol, "bars", len(bars))
	return bars, nil
}

// ---------------------------------------------------------------------------
// StoredBars
// ---------------------------------------------------------------------------

// StoredBars serves bars previously written to a BarStore.
type StoredBars struct {
	store  store.BarStore
	market domain.Market
}

// NewStoredBars creates an offline bar source over s for the US market.
func NewStoredBars(s store.BarStore) *StoredBars {
	return &StoredBars{store: s, market: domain.MarketUS}
}

// DailyBars reads the symbol's bars from the store.
func (s *StoredBars) DailyBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error) {
	bars, err := s.store.ReadBars(ctx, strings.ToUpper(symbol), string(s.market), start, end)
	if err != nil {
		return nil, fmt.Errorf("reading stored bars for %s: %w", symbol, err)
	}
	return bars, nil
}
