package api

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"tradecal/internal/calendar"
	"tradecal/internal/domain"
	"tradecal/internal/sim"
)

var _ CalendarServer = (*CalendarService)(nil)

// CalendarService answers calendar queries against whichever Index is active
// in its Environment at the time of each call.
type CalendarService struct {
	env      *calendar.Environment
	defaults []sim.Option
	metrics  *Metrics
	log      *slog.Logger
}

// NewCalendarService creates a service reading from env. defaults apply to
// every SimulationWindow request before request fields. metrics may be nil.
func NewCalendarService(env *calendar.Environment, metrics *Metrics, defaults ...sim.Option) *CalendarService {
	return &CalendarService{
		env:      env,
		defaults: defaults,
		metrics:  metrics,
		log:      slog.Default().With("component", "calendar-service"),
	}
}

// index fetches the active Index. It is called once per request and never
// cached, so a swapped Index is picked up by the next call.
func (s *CalendarService) index() (*calendar.Index, error) {
	idx := s.env.Current()
	if idx == nil {
		return nil, toStatus(errNoIndex)
	}
	if s.metrics != nil {
		s.metrics.SetIndexDays(idx.Len())
	}
	return idx, nil
}

// Info describes the active Index.
func (s *CalendarService) Info(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	return structpb.NewStruct(map[string]any{
		"provider":          idx.Provider(),
		"benchmark":         idx.BenchmarkSymbol(),
		"exchange_tz":       idx.Location().String(),
		"first_trading_day": idx.FirstTradingDay().Format(time.DateOnly),
		"last_trading_day":  idx.LastTradingDay().Format(time.DateOnly),
		"trading_days":      float64(idx.Len()),
		"early_closes":      float64(len(idx.EarlyCloses())),
	})
}

// IsTradingDay reports whether the request's date is a trading day.
func (s *CalendarService) IsTradingDay(_ context.Context, in *timestamppb.Timestamp) (*wrapperspb.BoolValue, error) {
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	t, err := requestTime(in)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(idx.IsTradingDay(t)), nil
}

// IsMarketHours reports whether the instant falls within a session.
func (s *CalendarService) IsMarketHours(_ context.Context, in *timestamppb.Timestamp) (*wrapperspb.BoolValue, error) {
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	t, err := requestTime(in)
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(idx.IsMarketHours(t)), nil
}

// NextOpenAndClose returns the session after the request's date.
func (s *CalendarService) NextOpenAndClose(_ context.Context, in *timestamppb.Timestamp) (*structpb.Struct, error) {
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	t, err := requestTime(in)
	if err != nil {
		return nil, err
	}
	open, closeAt, err := idx.NextOpenAndClose(t)
	if err != nil {
		return nil, toStatus(err)
	}
	return sessionStruct(open, closeAt)
}

// OpenAndClose returns the session on the request's date.
func (s *CalendarService) OpenAndClose(_ context.Context, in *timestamppb.Timestamp) (*structpb.Struct, error) {
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	t, err := requestTime(in)
	if err != nil {
		return nil, err
	}
	open, closeAt, err := idx.OpenAndClose(t)
	if err != nil {
		return nil, toStatus(err)
	}
	return sessionStruct(open, closeAt)
}

// TradingDayDistance counts trading days between fields "a" and "b".
func (s *CalendarService) TradingDayDistance(_ context.Context, in *structpb.Struct) (*wrapperspb.Int64Value, error) {
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	a, err := timeField(in, "a")
	if err != nil {
		return nil, err
	}
	b, err := timeField(in, "b")
	if err != nil {
		return nil, err
	}
	n, ok := idx.TradingDayDistance(a, b)
	if !ok {
		return nil, toStatus(&calendar.NoFurtherDataError{LastTradingDay: idx.LastTradingDay()})
	}
	return wrapperspb.Int64(int64(n)), nil
}

// SimulationWindow aligns fields "start" and "end" to the calendar. Optional
// fields "capital_base", "emission_rate" and "data_frequency" override the
// service defaults.
func (s *CalendarService) SimulationWindow(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	idx, err := s.index()
	if err != nil {
		return nil, err
	}
	start, err := timeField(in, "start")
	if err != nil {
		return nil, err
	}
	end, err := timeField(in, "end")
	if err != nil {
		return nil, err
	}

	opts := append([]sim.Option(nil), s.defaults...)
	if v, ok, err := numberField(in, "capital_base"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, sim.WithCapitalBase(v))
	}
	if v, ok, err := optionalString(in, "emission_rate"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, sim.WithEmissionRate(domain.Frequency(v)))
	}
	if v, ok, err := optionalString(in, "data_frequency"); err != nil {
		return nil, err
	} else if ok {
		opts = append(opts, sim.WithDataFrequency(domain.Frequency(v)))
	}

	w, err := sim.New(idx, start, end, opts...)
	if err != nil {
		s.log.Debug("rejected simulation window", "start", start, "end", end, "err", err)
		return nil, toStatus(err)
	}

	days := make([]any, 0, w.DaysInPeriod())
	for _, d := range w.TradingDays() {
		days = append(days, d.Format(time.DateOnly))
	}
	return structpb.NewStruct(map[string]any{
		"period_start":   FormatTime(w.PeriodStart()),
		"period_end":     FormatTime(w.PeriodEnd()),
		"first_open":     FormatTime(w.FirstOpen()),
		"last_close":     FormatTime(w.LastClose()),
		"days_in_period": float64(w.DaysInPeriod()),
		"trading_days":   days,
		"capital_base":   w.CapitalBase(),
		"emission_rate":  string(w.EmissionRate()),
		"data_frequency": string(w.DataFrequency()),
	})
}
