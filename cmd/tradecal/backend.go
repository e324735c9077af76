package main

import (
	"context"
	"time"

	"tradecal/internal/calendar"
	"tradecal/internal/domain"
	"tradecal/internal/sim"
	"tradecal/pkg/tradecal"
)

// backend answers calendar queries either from a local Index or a remote
// tradecal-server.
type backend interface {
	Info(ctx context.Context) (*tradecal.Info, error)
	NextOpenAndClose(ctx context.Context, t time.Time) (time.Time, time.Time, error)
	OpenAndClose(ctx context.Context, t time.Time) (time.Time, time.Time, error)
	TradingDayDistance(ctx context.Context, a, b time.Time) (int, error)
	SimulationWindow(ctx context.Context, start, end time.Time, req tradecal.WindowRequest) (*tradecal.Window, error)
}

var _ backend = (*tradecal.Client)(nil)

// localBackend serves queries from an in-process Index. defaults apply to
// every simulation window before the request's own settings.
type localBackend struct {
	idx      *calendar.Index
	defaults []sim.Option
}

func (b localBackend) Info(context.Context) (*tradecal.Info, error) {
	return &tradecal.Info{
		Provider:        b.idx.Provider(),
		Benchmark:       b.idx.BenchmarkSymbol(),
		ExchangeTZ:      b.idx.Location().String(),
		FirstTradingDay: b.idx.FirstTradingDay(),
		LastTradingDay:  b.idx.LastTradingDay(),
		TradingDays:     b.idx.Len(),
		EarlyCloses:     len(b.idx.EarlyCloses()),
	}, nil
}

func (b localBackend) NextOpenAndClose(_ context.Context, t time.Time) (time.Time, time.Time, error) {
	return b.idx.NextOpenAndClose(t)
}

func (b localBackend) OpenAndClose(_ context.Context, t time.Time) (time.Time, time.Time, error) {
	return b.idx.OpenAndClose(t)
}

func (b localBackend) TradingDayDistance(_ context.Context, a, c time.Time) (int, error) {
	n, ok := b.idx.TradingDayDistance(a, c)
	if !ok {
		return 0, &calendar.NoFurtherDataError{LastTradingDay: b.idx.LastTradingDay()}
	}
	return n, nil
}

func (b localBackend) SimulationWindow(_ context.Context, start, end time.Time, req tradecal.WindowRequest) (*tradecal.Window, error) {
	opts := append([]sim.Option(nil), b.defaults...)
	if req.CapitalBase != 0 {
		opts = append(opts, sim.WithCapitalBase(req.CapitalBase))
	}
	if req.EmissionRate != "" {
		opts = append(opts, sim.WithEmissionRate(domain.Frequency(req.EmissionRate)))
	}
	if req.DataFrequency != "" {
		opts = append(opts, sim.WithDataFrequency(domain.Frequency(req.DataFrequency)))
	}
	w, err := sim.New(b.idx, start, end, opts...)
	if err != nil {
		return nil, err
	}
	return &tradecal.Window{
		PeriodStart:   w.PeriodStart(),
		PeriodEnd:     w.PeriodEnd(),
		FirstOpen:     w.FirstOpen(),
		LastClose:     w.LastClose(),
		DaysInPeriod:  w.DaysInPeriod(),
		TradingDays:   w.TradingDays(),
		CapitalBase:   w.CapitalBase(),
		EmissionRate:  string(w.EmissionRate()),
		DataFrequency: string(w.DataFrequency()),
	}, nil
}
