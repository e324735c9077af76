// Package calendar answers "when/whether" questions about an exchange
// calendar: which days trade, when the market opens and closes, and how an
// arbitrary timestamp maps onto the ordered sequence of trading days.
//
// All lookups are keyed by the UTC calendar date of a timestamp (see
// NormalizeDate). The exchange time zone is carried for display and
// conversion only.
package calendar

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"time"

	_ "time/tzdata" // exchange zones must resolve on hosts without zoneinfo

	"tradecal/internal/domain"
)

const (
	DefaultBenchmark  = "SPY"
	DefaultExchangeTZ = "America/New_York"
)

// DefaultStart is the first day requested from the provider when no window
// is configured.
var DefaultStart = time.Date(1990, time.January, 2, 0, 0, 0, 0, time.UTC)

// LoadRequest describes the reference series an Index needs from a Loader.
type LoadRequest struct {
	Frequency       domain.Frequency
	TradingDays     []time.Time
	BenchmarkSymbol string
	Location        *time.Location
}

// Loader supplies the benchmark returns and treasury curves aligned to a
// trading-day sequence.
type Loader interface {
	Load(ctx context.Context, req LoadRequest) ([]domain.BenchmarkReturn, []domain.TreasuryCurve, error)
}

// Option configures NewIndex.
type Option func(*options)

type options struct {
	provider   Provider
	loader     Loader
	benchmark  string
	exchangeTZ string
	start, end time.Time
}

// WithProvider sets the calendar data source. The default is NYSE rules.
func WithProvider(p Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithLoader sets the benchmark/treasury loader. Without one the index
// carries no reference series.
func WithLoader(l Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithBenchmark sets the benchmark symbol passed to the loader.
func WithBenchmark(symbol string) Option {
	return func(o *options) { o.benchmark = symbol }
}

// WithExchangeTZ sets the IANA zone of the exchange.
func WithExchangeTZ(name string) Option {
	return func(o *options) { o.exchangeTZ = name }
}

// WithWindow restricts the calendar to [start, end]. A zero bound keeps the
// default on that side.
func WithWindow(start, end time.Time) Option {
	return func(o *options) {
		o.start = start
		o.end = end
	}
}

// Index is an immutable, ordered view of an exchange calendar together with
// the reference series aligned to it. It is safe for concurrent reads.
type Index struct {
	days        []time.Time      // UTC midnights, strictly increasing
	sessions    []domain.Session // sessions[i].Day == days[i]
	earlyCloses []time.Time

	loc       *time.Location
	provider  string
	benchmark string

	benchmarkReturns []domain.BenchmarkReturn
	treasuryCurves   []domain.TreasuryCurve
}

// NewIndex pulls sessions from the provider for the configured window, then
// loads the reference series for the resulting trading days.
func NewIndex(ctx context.Context, opts ...Option) (*Index, error) {
	o := options{
		benchmark:  DefaultBenchmark,
		exchangeTZ: DefaultExchangeTZ,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.start.IsZero() {
		o.start = DefaultStart
	}
	if o.end.IsZero() {
		o.end = NormalizeDate(time.Now())
	}
	if o.start.After(o.end) {
		return nil, configErrorf("calendar start %s falls after end %s",
			o.start.Format(time.DateOnly), o.end.Format(time.DateOnly))
	}

	loc, err := time.LoadLocation(o.exchangeTZ)
	if err != nil {
		return nil, configErrorf("loading exchange zone %q: %v", o.exchangeTZ, err)
	}
	if o.provider == nil {
		o.provider = NewNYSEProvider()
	}

	raw, err := o.provider.Sessions(ctx, o.start, o.end)
	if err != nil {
		return nil, fmt.Errorf("loading %s sessions: %w", o.provider.Name(), err)
	}

	idx, err := newIndex(raw, loc)
	if err != nil {
		return nil, err
	}
	idx.provider = o.provider.Name()
	idx.benchmark = o.benchmark

	if o.loader != nil {
		returns, curves, err := o.loader.Load(ctx, LoadRequest{
			Frequency:       domain.FrequencyDaily,
			TradingDays:     idx.TradingDays(),
			BenchmarkSymbol: o.benchmark,
			Location:        loc,
		})
		if err != nil {
			return nil, fmt.Errorf("loading market data for %s: %w", o.benchmark, err)
		}
		idx.benchmarkReturns = returns
		idx.treasuryCurves = restrictCurves(curves, NormalizeDate(o.start), NormalizeDate(o.end))
	}

	return idx, nil
}

// FromSessions builds an Index directly from sessions, without reference
// series. Sessions are normalized, sorted and deduplicated (last one wins).
func FromSessions(sessions []domain.Session, loc *time.Location) (*Index, error) {
	if loc == nil {
		loc = time.UTC
	}
	return newIndex(sessions, loc)
}

func newIndex(raw []domain.Session, loc *time.Location) (*Index, error) {
	if len(raw) == 0 {
		return nil, configErrorf("no trading days returned by provider")
	}

	byDay := make(map[int64]domain.Session, len(raw))
	for _, s := range raw {
		s.Day = NormalizeDate(s.Day)
		if s.Close.Before(s.Open) {
			return nil, configErrorf("session %s closes before it opens", s.Day.Format(time.DateOnly))
		}
		byDay[s.Day.Unix()] = s
	}

	sessions := make([]domain.Session, 0, len(byDay))
	for _, s := range byDay {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Day.Before(sessions[j].Day)
	})

	idx := &Index{
		days:     make([]time.Time, len(sessions)),
		sessions: sessions,
		loc:      loc,
	}
	for i, s := range sessions {
		idx.days[i] = s.Day
		if s.EarlyClose {
			idx.earlyCloses = append(idx.earlyCloses, s.Day)
		}
	}
	return idx, nil
}

func restrictCurves(curves []domain.TreasuryCurve, start, end time.Time) []domain.TreasuryCurve {
	out := make([]domain.TreasuryCurve, 0, len(curves))
	for _, c := range curves {
		d := NormalizeDate(c.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// NormalizeDate converts t to UTC and strips the time of day. The result is
// the key used for every comparison and lookup in an Index.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeDate is the method form of the package-level NormalizeDate.
func (idx *Index) NormalizeDate(t time.Time) time.Time {
	return NormalizeDate(t)
}

// ---------------------------------------------------------------------------
// Searches
// ---------------------------------------------------------------------------

// searchLeft returns the leftmost position whose day is >= day, or len(days).
// Every positional lookup goes through it so that exact matches resolve the
// same way everywhere.
func (idx *Index) searchLeft(day time.Time) int {
	return sort.Search(len(idx.days), func(i int) bool {
		return !idx.days[i].Before(day)
	})
}

// position returns the position of day if it is a trading day.
func (idx *Index) position(day time.Time) (int, bool) {
	i := idx.searchLeft(day)
	return i, i < len(idx.days) && idx.days[i].Equal(day)
}

// IsTradingDay reports whether t's normalized date is a trading day.
func (idx *Index) IsTradingDay(t time.Time) bool {
	_, ok := idx.position(NormalizeDate(t))
	return ok
}

// IsMarketHours reports whether t falls on a trading day within that day's
// [open, close], bounds included.
func (idx *Index) IsMarketHours(t time.Time) bool {
	i, ok := idx.position(NormalizeDate(t))
	if !ok {
		return false
	}
	s := idx.sessions[i]
	return !t.Before(s.Open) && !t.After(s.Close)
}

// NextTradingDay returns the first trading day strictly after t's normalized
// date. The bool is false once the calendar is exhausted.
func (idx *Index) NextTradingDay(t time.Time) (time.Time, bool) {
	i := idx.searchLeft(NormalizeDate(t).AddDate(0, 0, 1))
	if i == len(idx.days) {
		return time.Time{}, false
	}
	return idx.days[i], true
}

// PreviousTradingDay returns the last trading day strictly before t's
// normalized date.
func (idx *Index) PreviousTradingDay(t time.Time) (time.Time, bool) {
	i := idx.searchLeft(NormalizeDate(t)) - 1
	if i < 0 {
		return time.Time{}, false
	}
	return idx.days[i], true
}

// NextOpenAndClose returns the session bounds of NextTradingDay(t). Past the
// end of the calendar it returns a *NoFurtherDataError.
func (idx *Index) NextOpenAndClose(t time.Time) (time.Time, time.Time, error) {
	next, ok := idx.NextTradingDay(t)
	if !ok {
		return time.Time{}, time.Time{}, &NoFurtherDataError{LastTradingDay: idx.LastTradingDay()}
	}
	return idx.OpenAndClose(next)
}

// OpenAndClose returns the market open and close of day. A day that is not
// a trading day yields ErrNotTradingDay.
func (idx *Index) OpenAndClose(day time.Time) (time.Time, time.Time, error) {
	d := NormalizeDate(day)
	i, ok := idx.position(d)
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s", ErrNotTradingDay, d.Format(time.DateOnly))
	}
	s := idx.sessions[i]
	return s.Open, s.Close, nil
}

// MarketMinutes returns the minutes of day's session from open to close
// inclusive, one minute apart. The sequence is lazy and may be ranged over
// any number of times.
func (idx *Index) MarketMinutes(day time.Time) (iter.Seq[time.Time], error) {
	mktOpen, mktClose, err := idx.OpenAndClose(day)
	if err != nil {
		return nil, err
	}
	return func(yield func(time.Time) bool) {
		for m := mktOpen; !m.After(mktClose); m = m.Add(time.Minute) {
			if !yield(m) {
				return
			}
		}
	}, nil
}

// TradingDayDistance returns index(b) - index(a), where each index is the
// position of the first trading day on or after the normalized date. The
// bool is false when either date lies beyond the last trading day.
func (idx *Index) TradingDayDistance(a, b time.Time) (int, bool) {
	i := idx.searchLeft(NormalizeDate(a))
	if i == len(idx.days) {
		return 0, false
	}
	j := idx.searchLeft(NormalizeDate(b))
	if j == len(idx.days) {
		return 0, false
	}
	return j - i, true
}

// IndexOf returns the position of t's normalized date if it is a trading
// day, otherwise the position of the preceding trading day. Dates before the
// first trading day yield -1.
func (idx *Index) IndexOf(t time.Time) int {
	i, ok := idx.position(NormalizeDate(t))
	if ok {
		return i
	}
	return i - 1
}

// ---------------------------------------------------------------------------
// Accessors
// ---------------------------------------------------------------------------

// Len returns the number of trading days.
func (idx *Index) Len() int { return len(idx.days) }

// TradingDays returns a copy of the ordered trading days.
func (idx *Index) TradingDays() []time.Time { return slices.Clone(idx.days) }

// Slice returns the trading days at positions [from, to], both inclusive,
// clamped to the calendar.
func (idx *Index) Slice(from, to int) []time.Time {
	from = max(from, 0)
	to = min(to, len(idx.days)-1)
	if from > to {
		return nil
	}
	return slices.Clone(idx.days[from : to+1])
}

// Day returns the trading day at position i.
func (idx *Index) Day(i int) time.Time { return idx.days[i] }

// FirstTradingDay returns the earliest trading day.
func (idx *Index) FirstTradingDay() time.Time { return idx.days[0] }

// LastTradingDay returns the latest trading day.
func (idx *Index) LastTradingDay() time.Time { return idx.days[len(idx.days)-1] }

// EarlyCloses returns the trading days with a shortened session.
func (idx *Index) EarlyCloses() []time.Time { return slices.Clone(idx.earlyCloses) }

// IsEarlyClose reports whether t's normalized date is an early-close day.
func (idx *Index) IsEarlyClose(t time.Time) bool {
	i, ok := idx.position(NormalizeDate(t))
	return ok && idx.sessions[i].EarlyClose
}

// Location returns the exchange time zone.
func (idx *Index) Location() *time.Location { return idx.loc }

// Provider returns the name of the provider the index was built from.
func (idx *Index) Provider() string { return idx.provider }

// BenchmarkSymbol returns the benchmark the reference series belong to.
func (idx *Index) BenchmarkSymbol() string { return idx.benchmark }

// BenchmarkReturns returns the benchmark's daily returns.
func (idx *Index) BenchmarkReturns() []domain.BenchmarkReturn {
	return slices.Clone(idx.benchmarkReturns)
}

// BenchmarkReturnsBetween returns the benchmark returns dated within
// [start, end] by calendar date.
func (idx *Index) BenchmarkReturnsBetween(start, end time.Time) []domain.BenchmarkReturn {
	s, e := NormalizeDate(start), NormalizeDate(end)
	var out []domain.BenchmarkReturn
	for _, r := range idx.benchmarkReturns {
		d := NormalizeDate(r.Date)
		if d.Before(s) || d.After(e) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// TreasuryCurves returns the treasury curves within the index window.
func (idx *Index) TreasuryCurves() []domain.TreasuryCurve {
	return slices.Clone(idx.treasuryCurves)
}

// UTCInExchange returns t expressed in the exchange time zone.
func (idx *Index) UTCInExchange(t time.Time) time.Time {
	return t.In(idx.loc)
}

// ExchangeInUTC interprets t's wall clock as exchange time and returns the
// corresponding UTC instant.
func (idx *Index) ExchangeInUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), idx.loc).UTC()
}
