package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tradecal/internal/domain"
)

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")

	// Test barPath produces the expected layout.
	ts := time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)
	bp := ps.barPath("spy", "us", ts)

	wantBarPath := filepath.Join("/data", "us", "daily", "SPY", "2024.parquet")
	if bp != wantBarPath {
		t.Errorf("barPath mismatch:\n  got  %s\n  want %s", bp, wantBarPath)
	}

	// Test treasuryPath produces the expected layout.
	tp := ps.treasuryPath(2024)

	wantTreasuryPath := filepath.Join("/data", "treasury", "2024.parquet")
	if tp != wantTreasuryPath {
		t.Errorf("treasuryPath mismatch:\n  got  %s\n  want %s", tp, wantTreasuryPath)
	}
	if !strings.HasSuffix(tp, "2024.parquet") {
		t.Errorf("treasuryPath should end in year file '2024.parquet': %s", tp)
	}
}

func TestParquetStoreWriteReadBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{
			Symbol:    "SPY",
			Timestamp: time.Date(2024, 1, 2, 5, 0, 0, 0, time.UTC),
			Open:      472.16, High: 473.67, Low: 470.49, Close: 472.65,
			Volume: 123623700, TradeCount: 900000, VWAP: 472.1,
		},
		{
			Symbol:    "SPY",
			Timestamp: time.Date(2024, 1, 3, 5, 0, 0, 0, time.UTC),
			Open:      470.43, High: 471.19, Low: 468.17, Close: 468.79,
			Volume: 103585900, TradeCount: 850000, VWAP: 469.5,
		},
	}

	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "SPY", "us", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars, want 2", len(got))
	}
	if got[0].Close != 472.65 {
		t.Errorf("first bar Close = %v, want 472.65", got[0].Close)
	}
	if got[1].Close != 468.79 {
		t.Errorf("second bar Close = %v, want 468.79", got[1].Close)
	}
	if got[0].Timestamp.Location() != time.UTC {
		t.Errorf("ReadBars timestamp location = %v, want UTC", got[0].Timestamp.Location())
	}
}

func TestParquetStoreMergeBars(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	day := time.Date(2024, 3, 1, 5, 0, 0, 0, time.UTC)
	first := []domain.Bar{{Symbol: "SPY", Timestamp: day, Close: 512.0}}
	if err := ps.WriteBars(ctx, first); err != nil {
		t.Fatalf("WriteBars (first): %v", err)
	}

	// Same timestamp again plus a new day: the rewrite replaces, the new day appends.
	second := []domain.Bar{
		{Symbol: "SPY", Timestamp: day, Close: 512.5},
		{Symbol: "SPY", Timestamp: day.AddDate(0, 0, 3), Close: 515.0},
	}
	if err := ps.WriteBars(ctx, second); err != nil {
		t.Fatalf("WriteBars (second): %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	got, err := ps.ReadBars(ctx, "SPY", "us", start, end)
	if err != nil {
		t.Fatalf("ReadBars: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadBars returned %d bars after merge, want 2", len(got))
	}
	if got[0].Close != 512.5 {
		t.Errorf("merged bar Close = %v, want 512.5", got[0].Close)
	}
}

func TestParquetStoreListSymbols(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	bars := []domain.Bar{
		{Symbol: "SPY", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 472.65},
		{Symbol: "QQQ", Timestamp: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 402.0},
	}
	if err := ps.WriteBars(ctx, bars); err != nil {
		t.Fatalf("WriteBars: %v", err)
	}

	symbols, err := ps.ListSymbols(ctx, "us")
	if err != nil {
		t.Fatalf("ListSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("ListSymbols returned %d symbols, want 2", len(symbols))
	}
	if symbols[0] != "QQQ" || symbols[1] != "SPY" {
		t.Errorf("ListSymbols = %v, want [QQQ SPY]", symbols)
	}
}

func TestParquetStoreTreasuryRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ps := NewParquetStore(dir)
	ctx := context.Background()

	curves := []domain.TreasuryCurve{
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Rates: map[string]float64{"3month": 0.0540, "10year": 0.0391}},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Rates: map[string]float64{"3month": 0.0546, "10year": 0.0395}},
		{Date: time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC), Rates: map[string]float64{"10year": 0.0388}},
	}
	if err := ps.WriteTreasuryCurves(ctx, curves); err != nil {
		t.Fatalf("WriteTreasuryCurves: %v", err)
	}

	got, err := ps.ReadTreasuryCurves(ctx,
		time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("ReadTreasuryCurves: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadTreasuryCurves returned %d curves, want 2", len(got))
	}
	if !got[0].Date.Equal(time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first curve date = %v, want 2023-12-29", got[0].Date)
	}
	if _, ok := got[0].Rates["3month"]; ok {
		t.Error("2023-12-29 curve should not carry an unquoted 3month rate")
	}
	if got[1].Rates["10year"] != 0.0395 {
		t.Errorf("2024-01-02 10year = %v, want 0.0395", got[1].Rates["10year"])
	}
}

func TestSQLiteStoreOpen(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore(%q) returned error: %v", dbPath, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			t.Errorf("Close() returned error: %v", cerr)
		}
	}()

	// Verify the store is usable by pinging the database.
	if err := store.db.Ping(); err != nil {
		t.Fatalf("db.Ping() returned error: %v", err)
	}
}

func TestSQLiteStoreSessions(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	day := func(d int) time.Time { return time.Date(2024, 7, d, 0, 0, 0, 0, time.UTC) }
	sessions := []domain.Session{
		{Day: day(2), Open: day(2).Add(13*time.Hour + 30*time.Minute), Close: day(2).Add(20 * time.Hour)},
		{Day: day(3), Open: day(3).Add(13*time.Hour + 30*time.Minute), Close: day(3).Add(17 * time.Hour), EarlyClose: true},
		{Day: day(5), Open: day(5).Add(13*time.Hour + 30*time.Minute), Close: day(5).Add(20 * time.Hour)},
	}

	if _, ok, err := store.LoadSessions(ctx, "nyse", day(1), day(5)); err != nil || ok {
		t.Fatalf("LoadSessions before save = (ok=%v, err=%v), want miss", ok, err)
	}

	if err := store.SaveSessions(ctx, "nyse", day(1), day(7), sessions); err != nil {
		t.Fatalf("SaveSessions: %v", err)
	}

	got, ok, err := store.LoadSessions(ctx, "nyse", day(2), day(4))
	if err != nil {
		t.Fatalf("LoadSessions: %v", err)
	}
	if !ok {
		t.Fatal("LoadSessions reported a miss inside the saved range")
	}
	if len(got) != 2 {
		t.Fatalf("LoadSessions returned %d sessions, want 2", len(got))
	}
	if !got[1].EarlyClose {
		t.Error("2024-07-03 should round-trip as an early close")
	}
	if !got[1].Close.Equal(sessions[1].Close) {
		t.Errorf("close = %v, want %v", got[1].Close, sessions[1].Close)
	}

	// A range extending past the saved coverage is a miss.
	if _, ok, _ := store.LoadSessions(ctx, "nyse", day(2), day(9)); ok {
		t.Error("LoadSessions should miss when the range exceeds coverage")
	}
	// Coverage is per provider.
	if _, ok, _ := store.LoadSessions(ctx, "alpaca", day(2), day(4)); ok {
		t.Error("LoadSessions should miss for a different provider")
	}
}
