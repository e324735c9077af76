package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"tradecal/internal/domain"
	"tradecal/internal/util"
)

var _ Provider = (*AlpacaProvider)(nil)

// calendarClient is the slice of the Alpaca trading client the provider uses.
type calendarClient interface {
	GetCalendar(req alpaca.GetCalendarRequest) ([]alpaca.CalendarDay, error)
}

// AlpacaProvider reads exchange sessions from the Alpaca trading calendar
// API. Alpaca reports open and close as exchange wall-clock times.
type AlpacaProvider struct {
	client      calendarClient
	loc         *time.Location
	maxAttempts int
	baseDelay   time.Duration
	log         *slog.Logger
}

// NewAlpacaProvider creates a provider using the given Alpaca credentials and
// trading API endpoint.
func NewAlpacaProvider(apiKey, apiSecret, baseURL string) (*AlpacaProvider, error) {
	client := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
		BaseURL:   baseURL,
	})
	return newAlpacaProvider(client)
}

func newAlpacaProvider(client calendarClient) (*AlpacaProvider, error) {
	loc, err := time.LoadLocation(DefaultExchangeTZ)
	if err != nil {
		return nil, fmt.Errorf("loading ET timezone: %w", err)
	}
	return &AlpacaProvider{
		client:      client,
		loc:         loc,
		maxAttempts: 3,
		baseDelay:   time.Second,
		log:         slog.Default().With("component", "alpaca-calendar"),
	}, nil
}

// Name returns "alpaca".
func (p *AlpacaProvider) Name() string { return "alpaca" }

// Sessions fetches the calendar for [start, end], retrying transient
// failures with exponential backoff.
func (p *AlpacaProvider) Sessions(ctx context.Context, start, end time.Time) ([]domain.Session, error) {
	var days []alpaca.CalendarDay
	err := util.RetryNotify(ctx, p.maxAttempts, p.baseDelay, func() error {
		var err error
		days, err = p.client.GetCalendar(alpaca.GetCalendarRequest{
			Start: NormalizeDate(start),
			End:   NormalizeDate(end),
		})
		return err
	}, func(attempt int, err error, wait time.Duration) {
		p.log.Warn("GetCalendar failed, retrying", "attempt", attempt, "wait", wait, "err", err)
	})
	if err != nil {
		return nil, fmt.Errorf("GetCalendar: %w", err)
	}

	sessions := make([]domain.Session, 0, len(days))
	for _, day := range days {
		s, err := p.toSession(day)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	p.log.Debug("fetched calendar", "days", len(sessions))
	return sessions, nil
}

// toSession converts one Alpaca calendar day. Any close before 16:00 is an
// early close.
func (p *AlpacaProvider) toSession(day alpaca.CalendarDay) (domain.Session, error) {
	d, err := time.Parse(time.DateOnly, day.Date)
	if err != nil {
		return domain.Session{}, fmt.Errorf("parsing calendar date %q: %w", day.Date, err)
	}
	open, err := p.wallClock(d, day.Open)
	if err != nil {
		return domain.Session{}, fmt.Errorf("parsing open for %s: %w", day.Date, err)
	}
	closeAt, err := p.wallClock(d, day.Close)
	if err != nil {
		return domain.Session{}, fmt.Errorf("parsing close for %s: %w", day.Date, err)
	}
	regularClose := time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, p.loc)

	return domain.Session{
		Day:        d,
		Open:       open.UTC(),
		Close:      closeAt.UTC(),
		EarlyClose: closeAt.Before(regularClose),
	}, nil
}

// wallClock combines date d with an "HH:MM" exchange time.
func (p *AlpacaProvider) wallClock(d time.Time, hhmm string) (time.Time, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, p.loc), nil
}
