package api

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"tradecal/internal/calendar"
	"tradecal/internal/config"
	"tradecal/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func testIndex(t *testing.T, start, end time.Time) *calendar.Index {
	t.Helper()
	var sessions []domain.Session
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		sessions = append(sessions, domain.Session{
			Day:   d,
			Open:  d.Add(14*time.Hour + 30*time.Minute),
			Close: d.Add(21 * time.Hour),
		})
	}
	idx, err := calendar.FromSessions(sessions, time.UTC)
	require.NoError(t, err)
	return idx
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestCalendarServiceQueries(t *testing.T) {
	env := calendar.NewEnvironment(testIndex(t, date(2024, 1, 1), date(2024, 1, 31)))
	svc := NewCalendarService(env, nil)
	ctx := context.Background()

	got, err := svc.IsTradingDay(ctx, timestamppb.New(date(2024, 1, 5)))
	require.NoError(t, err)
	assert.True(t, got.GetValue())

	got, err = svc.IsTradingDay(ctx, timestamppb.New(date(2024, 1, 6)))
	require.NoError(t, err)
	assert.False(t, got.GetValue())

	got, err = svc.IsMarketHours(ctx, timestamppb.New(date(2024, 1, 5).Add(15*time.Hour)))
	require.NoError(t, err)
	assert.True(t, got.GetValue())

	sess, err := svc.NextOpenAndClose(ctx, timestamppb.New(date(2024, 1, 5)))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-08T14:30:00Z", sess.AsMap()["open"])
	assert.Equal(t, "2024-01-08T21:00:00Z", sess.AsMap()["close"])

	sess, err = svc.OpenAndClose(ctx, timestamppb.New(date(2024, 1, 5)))
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05T14:30:00Z", sess.AsMap()["open"])

	dist, err := svc.TradingDayDistance(ctx, mustStruct(t, map[string]any{"a": "2024-01-05", "b": "2024-01-12"}))
	require.NoError(t, err)
	assert.Equal(t, int64(5), dist.GetValue())

	info, err := svc.Info(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", info.AsMap()["first_trading_day"])
	assert.Equal(t, float64(23), info.AsMap()["trading_days"])
}

func TestCalendarServiceSimulationWindow(t *testing.T) {
	env := calendar.NewEnvironment(testIndex(t, date(2024, 1, 1), date(2024, 1, 31)))
	svc := NewCalendarService(env, nil)

	out, err := svc.SimulationWindow(context.Background(), mustStruct(t, map[string]any{
		"start":        "2024-01-06",
		"end":          "2024-01-09T12:00:00Z",
		"capital_base": 5e5,
	}))
	require.NoError(t, err)

	m := out.AsMap()
	assert.Equal(t, "2024-01-08T14:30:00Z", m["first_open"])
	assert.Equal(t, "2024-01-09T21:00:00Z", m["last_close"])
	assert.Equal(t, float64(2), m["days_in_period"])
	assert.Equal(t, []any{"2024-01-08", "2024-01-09"}, m["trading_days"])
	assert.Equal(t, 5e5, m["capital_base"])
	assert.Equal(t, "daily", m["emission_rate"])
}

func TestCalendarServiceErrorCodes(t *testing.T) {
	env := calendar.NewEnvironment(testIndex(t, date(2024, 1, 1), date(2024, 1, 31)))
	svc := NewCalendarService(env, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
		want codes.Code
	}{
		{"next past the end", func() error {
			_, err := svc.NextOpenAndClose(ctx, timestamppb.New(date(2024, 1, 31)))
			return err
		}, codes.OutOfRange},
		{"open and close on weekend", func() error {
			_, err := svc.OpenAndClose(ctx, timestamppb.New(date(2024, 1, 6)))
			return err
		}, codes.NotFound},
		{"distance past the end", func() error {
			_, err := svc.TradingDayDistance(ctx, mustStruct(t, map[string]any{"a": "2024-01-02", "b": "2024-03-01"}))
			return err
		}, codes.OutOfRange},
		{"distance missing field", func() error {
			_, err := svc.TradingDayDistance(ctx, mustStruct(t, map[string]any{"a": "2024-01-02"}))
			return err
		}, codes.InvalidArgument},
		{"window inverted", func() error {
			_, err := svc.SimulationWindow(ctx, mustStruct(t, map[string]any{"start": "2024-01-10", "end": "2024-01-02"}))
			return err
		}, codes.InvalidArgument},
		{"window before history", func() error {
			_, err := svc.SimulationWindow(ctx, mustStruct(t, map[string]any{"start": "2023-01-01", "end": "2023-06-30"}))
			return err
		}, codes.InvalidArgument},
		{"window bad capital", func() error {
			_, err := svc.SimulationWindow(ctx, mustStruct(t, map[string]any{"start": "2024-01-02", "end": "2024-01-05", "capital_base": "lots"}))
			return err
		}, codes.InvalidArgument},
		{"nil timestamp", func() error {
			_, err := svc.IsTradingDay(ctx, nil)
			return err
		}, codes.InvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)
			assert.Equal(t, tt.want, status.Code(err), "%v", err)
		})
	}
}

func TestCalendarServiceNoIndex(t *testing.T) {
	svc := NewCalendarService(calendar.NewEnvironment(nil), nil)
	_, err := svc.IsTradingDay(context.Background(), timestamppb.New(date(2024, 1, 2)))
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))
}

func TestCalendarServiceFollowsEnvironment(t *testing.T) {
	jan := testIndex(t, date(2024, 1, 1), date(2024, 1, 31))
	feb := testIndex(t, date(2024, 2, 1), date(2024, 2, 29))
	env := calendar.NewEnvironment(jan)
	svc := NewCalendarService(env, nil)
	ctx := context.Background()

	got, err := svc.IsTradingDay(ctx, timestamppb.New(date(2024, 2, 5)))
	require.NoError(t, err)
	assert.False(t, got.GetValue())

	err = env.Scope(feb, func(*calendar.Index) error {
		got, err := svc.IsTradingDay(ctx, timestamppb.New(date(2024, 2, 5)))
		require.NoError(t, err)
		assert.True(t, got.GetValue())
		return nil
	})
	require.NoError(t, err)

	got, err = svc.IsTradingDay(ctx, timestamppb.New(date(2024, 2, 5)))
	require.NoError(t, err)
	assert.False(t, got.GetValue())
}

func TestToStatus(t *testing.T) {
	assert.NoError(t, toStatus(nil))
	assert.Equal(t, codes.Internal, status.Code(toStatus(assert.AnError)))
	already := status.Error(codes.Unavailable, "down")
	assert.Equal(t, already, toStatus(already))
}

func TestParseTime(t *testing.T) {
	got, err := ParseTime("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 5), got)

	got, err = ParseTime("2024-01-05T09:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 14, 30, 0, 0, time.UTC), got.UTC())

	_, err = ParseTime("01/05/2024")
	assert.Error(t, err)
}

// dialBufconn serves gs on an in-memory listener and returns a connection.
func dialBufconn(t *testing.T, gs *grpc.Server) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServiceDescOverWire(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	env := calendar.NewEnvironment(testIndex(t, date(2024, 1, 1), date(2024, 1, 31)))

	gs := grpc.NewServer(grpc.ChainUnaryInterceptor(m.UnaryInterceptor()))
	RegisterCalendarServer(gs, NewCalendarService(env, m))
	conn := dialBufconn(t, gs)
	ctx := context.Background()

	out := new(wrapperspb.BoolValue)
	require.NoError(t, conn.Invoke(ctx, FullMethod(MethodIsTradingDay), timestamppb.New(date(2024, 1, 2)), out))
	assert.True(t, out.GetValue())

	sess := new(structpb.Struct)
	err := conn.Invoke(ctx, FullMethod(MethodOpenAndClose), timestamppb.New(date(2024, 1, 6)), sess)
	assert.Equal(t, codes.NotFound, status.Code(err))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(FullMethod(MethodIsTradingDay), codes.OK.String())))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues(FullMethod(MethodOpenAndClose), codes.NotFound.String())))
	assert.Equal(t, 23.0, testutil.ToFloat64(m.indexDays))
}

func TestServerServe(t *testing.T) {
	cfg := &config.Config{}
	cfg.Simulation.CapitalBase = 1e6
	cfg.Simulation.EmissionRate = "daily"
	cfg.Simulation.DataFrequency = "daily"
	env := calendar.NewEnvironment(testIndex(t, date(2024, 1, 1), date(2024, 1, 31)))
	srv := NewServer(cfg, env)

	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis, nil) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	out := new(structpb.Struct)
	in := mustStruct(t, map[string]any{"start": "2024-01-02", "end": "2024-01-05"})
	require.NoError(t, conn.Invoke(context.Background(), FullMethod(MethodSimulationWindow), in, out))
	assert.Equal(t, 1e6, out.AsMap()["capital_base"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
