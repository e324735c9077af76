package calendar

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfiguration is wrapped by every error caused by malformed
// construction arguments: an inverted period, an empty calendar, or a period
// lying wholly outside known history.
var ErrConfiguration = errors.New("calendar: configuration error")

// ErrNotTradingDay is returned by open/close lookups for a day that is not in
// the calendar. Lookups never coerce to a neighbouring trading day.
var ErrNotTradingDay = errors.New("calendar: not a trading day")

// ErrNoFurtherData matches any *NoFurtherDataError via errors.Is.
var ErrNoFurtherData = errors.New("calendar: no further data")

// NoFurtherDataError reports an attempt to step past the last trading day.
// Callers iterating a simulation to its natural end treat it as the stop
// signal.
type NoFurtherDataError struct {
	LastTradingDay time.Time
}

func (e *NoFurtherDataError) Error() string {
	return fmt.Sprintf("attempt to backtest beyond available history; last successful date: %s",
		e.LastTradingDay.Format(time.DateOnly))
}

// Is reports whether target is ErrNoFurtherData.
func (e *NoFurtherDataError) Is(target error) bool {
	return target == ErrNoFurtherData
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
