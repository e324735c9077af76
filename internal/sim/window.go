// Package sim aligns a requested simulation period to an exchange calendar.
package sim

import (
	"fmt"
	"time"

	"tradecal/internal/calendar"
	"tradecal/internal/domain"
)

// Run configuration defaults.
const (
	DefaultCapitalBase   = 10000.0
	DefaultEmissionRate  = domain.FrequencyDaily
	DefaultDataFrequency = domain.FrequencyDaily
)

// Option configures a Window.
type Option func(*Window)

// WithCapitalBase sets the starting capital passed through to the run.
func WithCapitalBase(v float64) Option {
	return func(w *Window) { w.capitalBase = v }
}

// WithEmissionRate sets how often the run emits performance packets.
func WithEmissionRate(f domain.Frequency) Option {
	return func(w *Window) { w.emissionRate = f }
}

// WithDataFrequency sets the bar frequency the run consumes.
func WithDataFrequency(f domain.Frequency) Option {
	return func(w *Window) { w.dataFrequency = f }
}

// Window is the set of trading days and session bounds a simulation run
// iterates over. It is immutable after New returns.
type Window struct {
	periodStart time.Time
	periodEnd   time.Time

	firstOpen   time.Time
	lastClose   time.Time
	tradingDays []time.Time

	capitalBase   float64
	emissionRate  domain.Frequency
	dataFrequency domain.Frequency
}

// New snaps [start, end] to idx: the window opens at the first trading day on
// or after start and closes at the last trading day on or before end.
//
// It fails with calendar.ErrConfiguration when start is after end, when the
// period lies outside the calendar, or when it contains no trading day.
func New(idx *calendar.Index, start, end time.Time, opts ...Option) (*Window, error) {
	if idx == nil {
		return nil, fmt.Errorf("%w: no calendar index", calendar.ErrConfiguration)
	}
	s, e := calendar.NormalizeDate(start), calendar.NormalizeDate(end)
	if s.After(e) {
		return nil, fmt.Errorf("%w: period start %s is after period end %s",
			calendar.ErrConfiguration, s.Format(time.DateOnly), e.Format(time.DateOnly))
	}
	if s.After(idx.LastTradingDay()) || e.Before(idx.FirstTradingDay()) {
		return nil, fmt.Errorf("%w: period %s to %s is outside known history %s to %s",
			calendar.ErrConfiguration,
			s.Format(time.DateOnly), e.Format(time.DateOnly),
			idx.FirstTradingDay().Format(time.DateOnly), idx.LastTradingDay().Format(time.DateOnly))
	}

	// First trading day on or after s, last trading day on or before e.
	from := idx.IndexOf(s)
	if !idx.IsTradingDay(s) {
		from++
	}
	to := idx.IndexOf(e)
	if from > to {
		return nil, fmt.Errorf("%w: period %s to %s contains no trading days",
			calendar.ErrConfiguration, s.Format(time.DateOnly), e.Format(time.DateOnly))
	}

	days := idx.Slice(from, to)
	firstOpen, _, err := idx.OpenAndClose(days[0])
	if err != nil {
		return nil, err
	}
	_, lastClose, err := idx.OpenAndClose(days[len(days)-1])
	if err != nil {
		return nil, err
	}

	w := &Window{
		periodStart:   start,
		periodEnd:     end,
		firstOpen:     firstOpen,
		lastClose:     lastClose,
		tradingDays:   days,
		capitalBase:   DefaultCapitalBase,
		emissionRate:  DefaultEmissionRate,
		dataFrequency: DefaultDataFrequency,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// FromActive builds a Window against the Index active in calendar.Default.
func FromActive(start, end time.Time, opts ...Option) (*Window, error) {
	return New(calendar.Active(), start, end, opts...)
}

// PeriodStart returns the requested start as given.
func (w *Window) PeriodStart() time.Time { return w.periodStart }

// PeriodEnd returns the requested end as given.
func (w *Window) PeriodEnd() time.Time { return w.periodEnd }

// FirstOpen returns the market open of the first trading day in the window.
func (w *Window) FirstOpen() time.Time { return w.firstOpen }

// LastClose returns the market close of the last trading day in the window.
func (w *Window) LastClose() time.Time { return w.lastClose }

// TradingDays returns a copy of the window's trading days.
func (w *Window) TradingDays() []time.Time {
	out := make([]time.Time, len(w.tradingDays))
	copy(out, w.tradingDays)
	return out
}

// DaysInPeriod returns the number of trading days in the window.
func (w *Window) DaysInPeriod() int { return len(w.tradingDays) }

func (w *Window) CapitalBase() float64 { return w.capitalBase }
func (w *Window) EmissionRate() domain.Frequency { return w.emissionRate }
func (w *Window) DataFrequency() domain.Frequency { return w.dataFrequency }
func (w *Window) FirstTradingDay() time.Time { return w.tradingDays[0] }
func (w *Window) LastTradingDay() time.Time { return w.tradingDays[len(w.tradingDays)-1] }

// BenchmarkReturns returns idx's benchmark returns dated within the window.
func (w *Window) BenchmarkReturns(idx *calendar.Index) []domain.BenchmarkReturn {
	return idx.BenchmarkReturnsBetween(w.FirstTradingDay(), w.LastTradingDay())
}

func (w *Window) String() string {
	return fmt.Sprintf(
		"SimulationWindow(capital_base=%g, period_start=%s, period_end=%s, first_open=%s, last_close=%s, days_in_period=%d, emission_rate=%s, data_frequency=%s)",
		w.capitalBase,
		w.periodStart.Format(time.RFC3339),
		w.periodEnd.Format(time.RFC3339),
		w.firstOpen.Format(time.RFC3339),
		w.lastClose.Format(time.RFC3339),
		len(w.tradingDays),
		w.emissionRate,
		w.dataFrequency,
	)
}
