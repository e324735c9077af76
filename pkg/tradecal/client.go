// Package tradecal is a Go client for the tradecal CalendarService.
package tradecal

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"tradecal/internal/api"
)

// Info describes the calendar a server is answering from.
type Info struct {
	Provider        string
	Benchmark       string
	ExchangeTZ      string
	FirstTradingDay time.Time
	LastTradingDay  time.Time
	TradingDays     int
	EarlyCloses     int
}

// Window is a simulation window as returned by the server.
type Window struct {
	PeriodStart   time.Time
	PeriodEnd     time.Time
	FirstOpen     time.Time
	LastClose     time.Time
	DaysInPeriod  int
	TradingDays   []time.Time
	CapitalBase   float64
	EmissionRate  string
	DataFrequency string
}

// WindowRequest holds the optional run settings for SimulationWindow. Zero
// values leave the server defaults in place.
type WindowRequest struct {
	CapitalBase   float64
	EmissionRate  string
	DataFrequency string
}

// Client provides a Go SDK for interacting with tradecal-server.
type Client struct {
	conn  grpc.ClientConnInterface
	close func() error
}

// Dial creates a client for the server at addr using plaintext transport.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn, close: conn.Close}, nil
}

// NewClient wraps an existing connection. Close is a no-op for such clients.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn, close: func() error { return nil }}
}

// Close releases the connection opened by Dial.
func (c *Client) Close() error { return c.close() }

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	return c.conn.Invoke(ctx, api.FullMethod(method), in, out)
}

// Info returns a description of the server's active calendar.
func (c *Client) Info(ctx context.Context) (*Info, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodInfo, &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	m := out.AsMap()
	info := &Info{
		Provider:    str(m["provider"]),
		Benchmark:   str(m["benchmark"]),
		ExchangeTZ:  str(m["exchange_tz"]),
		TradingDays: num(m["trading_days"]),
		EarlyCloses: num(m["early_closes"]),
	}
	var err error
	if info.FirstTradingDay, err = parseField(m, "first_trading_day"); err != nil {
		return nil, err
	}
	if info.LastTradingDay, err = parseField(m, "last_trading_day"); err != nil {
		return nil, err
	}
	return info, nil
}

// IsTradingDay reports whether t's date is a trading day.
func (c *Client) IsTradingDay(ctx context.Context, t time.Time) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, api.MethodIsTradingDay, timestamppb.New(t), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// IsMarketHours reports whether t falls within a trading session.
func (c *Client) IsMarketHours(ctx context.Context, t time.Time) (bool, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.invoke(ctx, api.MethodIsMarketHours, timestamppb.New(t), out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

// NextOpenAndClose returns the session of the first trading day after t.
// Past the end of the calendar the error carries codes.OutOfRange.
func (c *Client) NextOpenAndClose(ctx context.Context, t time.Time) (time.Time, time.Time, error) {
	return c.session(ctx, api.MethodNextOpenAndClose, t)
}

// OpenAndClose returns the session on t's date. A non-trading day yields
// codes.NotFound.
func (c *Client) OpenAndClose(ctx context.Context, t time.Time) (time.Time, time.Time, error) {
	return c.session(ctx, api.MethodOpenAndClose, t)
}

func (c *Client) session(ctx context.Context, method string, t time.Time) (time.Time, time.Time, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, method, timestamppb.New(t), out); err != nil {
		return time.Time{}, time.Time{}, err
	}
	m := out.AsMap()
	open, err := parseField(m, "open")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	closeAt, err := parseField(m, "close")
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return open, closeAt, nil
}

// TradingDayDistance returns the number of trading days from a to b.
func (c *Client) TradingDayDistance(ctx context.Context, a, b time.Time) (int, error) {
	in, err := structpb.NewStruct(map[string]any{
		"a": api.FormatTime(a),
		"b": api.FormatTime(b),
	})
	if err != nil {
		return 0, err
	}
	out := new(wrapperspb.Int64Value)
	if err := c.invoke(ctx, api.MethodTradingDayDistance, in, out); err != nil {
		return 0, err
	}
	return int(out.GetValue()), nil
}

// SimulationWindow aligns [start, end] to the server's calendar.
func (c *Client) SimulationWindow(ctx context.Context, start, end time.Time, req WindowRequest) (*Window, error) {
	fields := map[string]any{
		"start": api.FormatTime(start),
		"end":   api.FormatTime(end),
	}
	if req.CapitalBase != 0 {
		fields["capital_base"] = req.CapitalBase
	}
	if req.EmissionRate != "" {
		fields["emission_rate"] = req.EmissionRate
	}
	if req.DataFrequency != "" {
		fields["data_frequency"] = req.DataFrequency
	}
	in, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)
	if err := c.invoke(ctx, api.MethodSimulationWindow, in, out); err != nil {
		return nil, err
	}
	m := out.AsMap()

	w := &Window{
		DaysInPeriod:  num(m["days_in_period"]),
		EmissionRate:  str(m["emission_rate"]),
		DataFrequency: str(m["data_frequency"]),
	}
	if v, ok := m["capital_base"].(float64); ok {
		w.CapitalBase = v
	}
	for key, dst := range map[string]*time.Time{
		"period_start": &w.PeriodStart,
		"period_end":   &w.PeriodEnd,
		"first_open":   &w.FirstOpen,
		"last_close":   &w.LastClose,
	} {
		if *dst, err = parseField(m, key); err != nil {
			return nil, err
		}
	}
	days, _ := m["trading_days"].([]any)
	for _, d := range days {
		t, err := api.ParseTime(str(d))
		if err != nil {
			return nil, fmt.Errorf("trading_days: %w", err)
		}
		w.TradingDays = append(w.TradingDays, t)
	}
	return w, nil
}

func parseField(m map[string]any, key string) (time.Time, error) {
	t, err := api.ParseTime(str(m[key]))
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w", key, err)
	}
	return t, nil
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func num(v any) int {
	f, _ := v.(float64)
	return int(f)
}
