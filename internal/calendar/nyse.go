package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/aa"
	"github.com/rickar/cal/v2/us"

	"tradecal/internal/domain"
)

var _ Provider = (*NYSEProvider)(nil)

// NYSE holidays that differ from the federal calendar.
var (
	// The exchange does not close the preceding Friday when New Year's Day
	// falls on a Saturday.
	nyseNewYear = &cal.Holiday{
		Name:     "New Year's Day",
		Month:    time.January,
		Day:      1,
		Observed: []cal.AltDay{{Day: time.Sunday, Offset: 1}},
		Func:     cal.CalcDayOfMonth,
	}

	// The exchange first closed for Martin Luther King Jr. Day in 1998.
	nyseMlkDay = func() *cal.Holiday {
		h := *us.MlkDay
		h.StartYear = 1998
		return &h
	}()

	nyseJuneteenth = func() *cal.Holiday {
		h := *us.Juneteenth
		h.StartYear = 2022
		return &h
	}()
)

// unscheduledClosures are full-day closings outside the holiday rules.
var unscheduledClosures = []string{
	"1994-04-27", // Nixon funeral
	"2001-09-11", "2001-09-12", "2001-09-13", "2001-09-14",
	"2004-06-11", // Reagan funeral
	"2007-01-02", // Ford funeral
	"2012-10-29", "2012-10-30", // Hurricane Sandy
	"2018-12-05", // G.H.W. Bush funeral
	"2025-01-09", // Carter funeral
}

// NYSEProvider generates New York Stock Exchange sessions from holiday rules:
// 09:30-16:00 exchange time, 13:00 close on scheduled early-close days.
type NYSEProvider struct {
	bc     *cal.BusinessCalendar
	loc    *time.Location
	closed map[string]struct{}
}

// NewNYSEProvider builds the rule set. It panics if the exchange zone is
// missing, which cannot happen with the embedded tzdata.
func NewNYSEProvider() *NYSEProvider {
	loc, err := time.LoadLocation(DefaultExchangeTZ)
	if err != nil {
		panic(fmt.Sprintf("loading %s: %v", DefaultExchangeTZ, err))
	}

	bc := cal.NewBusinessCalendar()
	bc.AddHoliday(
		nyseNewYear,
		nyseMlkDay,
		us.PresidentsDay,
		aa.GoodFriday,
		us.MemorialDay,
		nyseJuneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)

	closed := make(map[string]struct{}, len(unscheduledClosures))
	for _, d := range unscheduledClosures {
		closed[d] = struct{}{}
	}
	return &NYSEProvider{bc: bc, loc: loc, closed: closed}
}

// Name returns "nyse".
func (p *NYSEProvider) Name() string { return "nyse" }

// Sessions walks [start, end] one calendar day at a time and emits a session
// for every exchange workday.
func (p *NYSEProvider) Sessions(_ context.Context, start, end time.Time) ([]domain.Session, error) {
	s, e := NormalizeDate(start), NormalizeDate(end)

	var sessions []domain.Session
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		if !p.isTradingDay(d) {
			continue
		}
		closeHour := 16
		early := p.isEarlyClose(d)
		if early {
			closeHour = 13
		}
		sessions = append(sessions, domain.Session{
			Day:        d,
			Open:       p.at(d, 9, 30),
			Close:      p.at(d, closeHour, 0),
			EarlyClose: early,
		})
	}
	return sessions, nil
}

// isTradingDay evaluates the rules for the UTC-midnight key d.
func (p *NYSEProvider) isTradingDay(d time.Time) bool {
	if _, ok := p.closed[d.Format(time.DateOnly)]; ok {
		return false
	}
	// Evaluate in exchange time so holiday rules see the local date.
	local := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, p.loc)
	return p.bc.IsWorkday(local)
}

// isEarlyClose reports the scheduled 13:00 closes: July 3, the day after
// Thanksgiving and Christmas Eve.
func (p *NYSEProvider) isEarlyClose(d time.Time) bool {
	switch {
	case d.Month() == time.July && d.Day() == 3:
		return true
	case d.Month() == time.December && d.Day() == 24:
		return true
	case d.Month() == time.November:
		return d.Equal(thanksgiving(d.Year()).AddDate(0, 0, 1))
	}
	return false
}

// at returns hh:mm exchange time on day d as a UTC instant.
func (p *NYSEProvider) at(d time.Time, hh, mm int) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), hh, mm, 0, 0, p.loc).UTC()
}

// thanksgiving returns the fourth Thursday of November as a UTC midnight.
func thanksgiving(year int) time.Time {
	first := time.Date(year, time.November, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(time.Thursday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+21)
}
