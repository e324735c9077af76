package api

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"tradecal/internal/calendar"
)

// errNoIndex is returned when no calendar is active.
var errNoIndex = errors.New("no active calendar index")

// toStatus maps calendar errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, errNoIndex):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, calendar.ErrNoFurtherData):
		return status.Error(codes.OutOfRange, err.Error())
	case errors.Is(err, calendar.ErrNotTradingDay):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, calendar.ErrConfiguration):
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func invalidArg(format string, args ...any) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf(format, args...))
}

// requestTime validates and converts a timestamp argument.
func requestTime(ts *timestamppb.Timestamp) (time.Time, error) {
	if ts == nil {
		return time.Time{}, invalidArg("timestamp is required")
	}
	if err := ts.CheckValid(); err != nil {
		return time.Time{}, invalidArg("invalid timestamp: %v", err)
	}
	return ts.AsTime(), nil
}

// ParseTime accepts RFC 3339 timestamps or bare YYYY-MM-DD dates (UTC).
func ParseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: want RFC 3339 or YYYY-MM-DD", s)
	}
	return t, nil
}

// FormatTime renders an instant the way struct payloads carry it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// timeField reads a required time field from a Struct.
func timeField(in *structpb.Struct, key string) (time.Time, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return time.Time{}, invalidArg("missing field %q", key)
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return time.Time{}, invalidArg("field %q must be a string", key)
	}
	t, err := ParseTime(sv.StringValue)
	if err != nil {
		return time.Time{}, invalidArg("field %q: %v", key, err)
	}
	return t, nil
}

// numberField reads an optional number field from a Struct.
func numberField(in *structpb.Struct, key string) (float64, bool, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return 0, false, nil
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false, invalidArg("field %q must be a number", key)
	}
	return nv.NumberValue, true, nil
}

// optionalString reads an optional string field from a Struct.
func optionalString(in *structpb.Struct, key string) (string, bool, error) {
	v, ok := in.GetFields()[key]
	if !ok {
		return "", false, nil
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", false, invalidArg("field %q must be a string", key)
	}
	return sv.StringValue, true, nil
}

func sessionStruct(open, closeAt time.Time) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"open":  FormatTime(open),
		"close": FormatTime(closeAt),
	})
}
