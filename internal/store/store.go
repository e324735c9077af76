// Package store defines storage interfaces for persisting and retrieving
// benchmark bars, treasury curves and cached calendar sessions.
package store

import (
	"context"
	"time"

	"tradecal/internal/domain"
)

// BarStore persists and retrieves OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol and market within [start, end].
	ReadBars(ctx context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols available in the given market.
	ListSymbols(ctx context.Context, market string) ([]string, error)
}

// TreasuryStore persists and retrieves daily treasury curves.
type TreasuryStore interface {
	// WriteTreasuryCurves persists a batch of curves, replacing any curve
	// already stored for the same date.
	WriteTreasuryCurves(ctx context.Context, curves []domain.TreasuryCurve) error

	// ReadTreasuryCurves returns curves dated within [start, end], ordered
	// by date.
	ReadTreasuryCurves(ctx context.Context, start, end time.Time) ([]domain.TreasuryCurve, error)
}

// SessionStore caches calendar sessions per provider.
type SessionStore interface {
	// SaveSessions stores sessions for provider and records that the range
	// [start, end] is fully covered.
	SaveSessions(ctx context.Context, provider string, start, end time.Time, sessions []domain.Session) error

	// LoadSessions returns the cached sessions within [start, end]. The bool
	// is false when no saved range covers [start, end].
	LoadSessions(ctx context.Context, provider string, start, end time.Time) ([]domain.Session, bool, error)
}
