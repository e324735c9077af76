package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"tradecal/internal/domain"
)

// Compile-time interface checks.
var _ BarStore = (*ParquetStore)(nil)
var _ TreasuryStore = (*ParquetStore)(nil)

// ParquetStore implements BarStore and TreasuryStore using Parquet files on disk.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol     string  `parquet:"symbol"`
	Timestamp  int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open       float64 `parquet:"open"`
	High       float64 `parquet:"high"`
	Low        float64 `parquet:"low"`
	Close      float64 `parquet:"close"`
	Volume     int64   `parquet:"volume"`
	TradeCount int64   `parquet:"trade_count"`
	VWAP       float64 `parquet:"vwap"`
}

// TreasuryRecord is the Parquet schema for one day of the treasury curve.
// A nil tenor was not quoted that day.
type TreasuryRecord struct {
	Date   int64    `parquet:"date,timestamp(millisecond)"` // Unix ms, UTC midnight
	Month1 *float64 `parquet:"1month,optional"`
	Month2 *float64 `parquet:"2month,optional"`
	Month3 *float64 `parquet:"3month,optional"`
	Month4 *float64 `parquet:"4month,optional"`
	Month6 *float64 `parquet:"6month,optional"`
	Year1  *float64 `parquet:"1year,optional"`
	Year2  *float64 `parquet:"2year,optional"`
	Year3  *float64 `parquet:"3year,optional"`
	Year5  *float64 `parquet:"5year,optional"`
	Year7  *float64 `parquet:"7year,optional"`
	Year10 *float64 `parquet:"10year,optional"`
	Year20 *float64 `parquet:"20year,optional"`
	Year30 *float64 `parquet:"30year,optional"`
}

// tenorFields maps each tenor key to its column in a TreasuryRecord.
func (r *TreasuryRecord) tenorFields() map[string]**float64 {
	return map[string]**float64{
		"1month": &r.Month1, "2month": &r.Month2, "3month": &r.Month3,
		"4month": &r.Month4, "6month": &r.Month6,
		"1year": &r.Year1, "2year": &r.Year2, "3year": &r.Year3, "5year": &r.Year5,
		"7year": &r.Year7, "10year": &r.Year10, "20year": &r.Year20, "30year": &r.Year30,
	}
}

func treasuryToRecord(c domain.TreasuryCurve) TreasuryRecord {
	day := time.Date(c.Date.Year(), c.Date.Month(), c.Date.Day(), 0, 0, 0, 0, time.UTC)
	r := TreasuryRecord{Date: day.UnixMilli()}
	fields := r.tenorFields()
	for tenor, rate := range c.Rates {
		if f, ok := fields[tenor]; ok {
			v := rate
			*f = &v
		}
	}
	return r
}

func recordToTreasury(r TreasuryRecord) domain.TreasuryCurve {
	c := domain.TreasuryCurve{
		Date:  time.UnixMilli(r.Date).UTC(),
		Rates: make(map[string]float64),
	}
	for tenor, f := range r.tenorFields() {
		if *f != nil {
			c.Rates[tenor] = **f
		}
	}
	return c
}

// ---------------------------------------------------------------------------
// BarStore implementation
// ---------------------------------------------------------------------------

// WriteBars writes bar data to Parquet files organized by symbol and year.
// Each symbol+year combination produces a separate file at:
//
//	<DataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) WriteBars(_ context.Context, bars []domain.Bar) error {
	if len(bars) == 0 {
		return nil
	}
	// Benchmarks are US listings; other markets go through WriteBarsForMarket.
	return s.WriteBarsForMarket(bars, string(domain.MarketUS))
}

// WriteBarsForMarket writes bars to Parquet grouped by symbol and year under
// the given market directory.
func (s *ParquetStore) WriteBarsForMarket(bars []domain.Bar, market string) error {
	type key struct {
		symbol string
		year   int
	}
	groups := make(map[key][]BarRecord)
	for _, b := range bars {
		k := key{symbol: strings.ToUpper(b.Symbol), year: b.Timestamp.UTC().Year()}
		groups[k] = append(groups[k], BarRecord{
			Symbol:     strings.ToUpper(b.Symbol),
			Timestamp:  b.Timestamp.UnixMilli(),
			Open:       b.Open,
			High:       b.High,
			Low:        b.Low,
			Close:      b.Close,
			Volume:     b.Volume,
			TradeCount: b.TradeCount,
			VWAP:       b.VWAP,
		})
	}

	for k, records := range groups {
		path := s.barPath(k.symbol, market, time.Date(k.year, 1, 1, 0, 0, 0, 0, time.UTC))

		// Read existing records to merge.
		existing, _ := readParquetFile[BarRecord](path)
		merged := mergeBarRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing bars for %s/%d: %w", k.symbol, k.year, err)
		}
	}
	return nil
}

// ReadBars reads bar data from Parquet files for the given symbol and time range.
func (s *ParquetStore) ReadBars(_ context.Context, symbol string, market string, start, end time.Time) ([]domain.Bar, error) {
	var bars []domain.Bar
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		path := s.barPath(symbol, market, time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC))

		records, err := readParquetFile[BarRecord](path)
		if err != nil {
			// No file for this year.
			continue
		}

		for _, r := range records {
			ts := time.UnixMilli(r.Timestamp).UTC()
			if ts.Before(start) || ts.After(end) {
				continue
			}
			bars = append(bars, domain.Bar{
				Symbol:     r.Symbol,
				Timestamp:  ts,
				Open:       r.Open,
				High:       r.High,
				Low:        r.Low,
				Close:      r.Close,
				Volume:     r.Volume,
				TradeCount: r.TradeCount,
				VWAP:       r.VWAP,
			})
		}
	}
	return bars, nil
}

// ListSymbols lists all symbols that have bar data in the given market.
func (s *ParquetStore) ListSymbols(_ context.Context, market string) ([]string, error) {
	dir := filepath.Join(s.DataDir, market, "daily")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var symbols []string
	for _, e := range entries {
		if e.IsDir() {
			symbols = append(symbols, e.Name())
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// ---------------------------------------------------------------------------
// TreasuryStore implementation
// ---------------------------------------------------------------------------

// WriteTreasuryCurves writes curves to one Parquet file per year at
// <DataDir>/treasury/<YYYY>.parquet, merging with what is already on disk.
func (s *ParquetStore) WriteTreasuryCurves(_ context.Context, curves []domain.TreasuryCurve) error {
	if len(curves) == 0 {
		return nil
	}

	groups := make(map[int][]TreasuryRecord)
	for _, c := range curves {
		year := c.Date.Year()
		groups[year] = append(groups[year], treasuryToRecord(c))
	}

	for year, records := range groups {
		path := s.treasuryPath(year)

		existing, _ := readParquetFile[TreasuryRecord](path)
		merged := mergeTreasuryRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing treasury curves for %d: %w", year, err)
		}
	}
	return nil
}

// ReadTreasuryCurves reads curves dated within [start, end].
func (s *ParquetStore) ReadTreasuryCurves(_ context.Context, start, end time.Time) ([]domain.TreasuryCurve, error) {
	var curves []domain.TreasuryCurve
	for year := start.UTC().Year(); year <= end.UTC().Year(); year++ {
		records, err := readParquetFile[TreasuryRecord](s.treasuryPath(year))
		if err != nil {
			continue
		}
		for _, r := range records {
			c := recordToTreasury(r)
			if c.Date.Before(start) || c.Date.After(end) {
				continue
			}
			curves = append(curves, c)
		}
	}
	sort.Slice(curves, func(i, j int) bool {
		return curves[i].Date.Before(curves[j].Date)
	})
	return curves, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// barPath returns the filesystem path for a bar Parquet file.
// Layout: <dataDir>/<market>/daily/<SYMBOL>/<YYYY>.parquet
func (s *ParquetStore) barPath(symbol, market string, t time.Time) string {
	year := fmt.Sprintf("%d", t.Year())
	return filepath.Join(s.DataDir, market, "daily", strings.ToUpper(symbol), year+".parquet")
}

// treasuryPath returns the filesystem path for a treasury Parquet file.
// Layout: <dataDir>/treasury/<YYYY>.parquet
func (s *ParquetStore) treasuryPath(year int) string {
	return filepath.Join(s.DataDir, "treasury", fmt.Sprintf("%d.parquet", year))
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeBarRecords deduplicates bar records by (symbol, timestamp), preferring
// new records over existing ones.
func mergeBarRecords(existing, incoming []BarRecord) []BarRecord {
	type key struct {
		symbol string
		ts     int64
	}
	seen := make(map[key]BarRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[key{r.Symbol, r.Timestamp}] = r
	}
	for _, r := range incoming {
		seen[key{r.Symbol, r.Timestamp}] = r
	}

	merged := make([]BarRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})
	return merged
}

// mergeTreasuryRecords deduplicates treasury records by date, preferring new
// records over existing ones. Results are sorted by date.
func mergeTreasuryRecords(existing, incoming []TreasuryRecord) []TreasuryRecord {
	seen := make(map[int64]TreasuryRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.Date] = r
	}
	for _, r := range incoming {
		seen[r.Date] = r
	}

	merged := make([]TreasuryRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date < merged[j].Date
	})
	return merged
}
