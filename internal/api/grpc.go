package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/timestamppb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "tradecal.v1.CalendarService"

// Method names of CalendarService.
const (
	MethodInfo               = "Info"
	MethodIsTradingDay       = "IsTradingDay"
	MethodIsMarketHours      = "IsMarketHours"
	MethodNextOpenAndClose   = "NextOpenAndClose"
	MethodOpenAndClose       = "OpenAndClose"
	MethodTradingDayDistance = "TradingDayDistance"
	MethodSimulationWindow   = "SimulationWindow"
)

// FullMethod returns the wire path of a CalendarService method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// CalendarServer is the server API for CalendarService. Messages are
// protobuf well-known types so no generated code is needed on either side.
type CalendarServer interface {
	Info(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	IsTradingDay(context.Context, *timestamppb.Timestamp) (*wrapperspb.BoolValue, error)
	IsMarketHours(context.Context, *timestamppb.Timestamp) (*wrapperspb.BoolValue, error)
	NextOpenAndClose(context.Context, *timestamppb.Timestamp) (*structpb.Struct, error)
	OpenAndClose(context.Context, *timestamppb.Timestamp) (*structpb.Struct, error)
	TradingDayDistance(context.Context, *structpb.Struct) (*wrapperspb.Int64Value, error)
	SimulationWindow(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes CalendarService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalendarServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: MethodInfo,
			Handler: unary(MethodInfo, func(s CalendarServer, ctx context.Context, in *emptypb.Empty) (any, error) {
				return s.Info(ctx, in)
			}),
		},
		{
			MethodName: MethodIsTradingDay,
			Handler: unary(MethodIsTradingDay, func(s CalendarServer, ctx context.Context, in *timestamppb.Timestamp) (any, error) {
				return s.IsTradingDay(ctx, in)
			}),
		},
		{
			MethodName: MethodIsMarketHours,
			Handler: unary(MethodIsMarketHours, func(s CalendarServer, ctx context.Context, in *timestamppb.Timestamp) (any, error) {
				return s.IsMarketHours(ctx, in)
			}),
		},
		{
			MethodName: MethodNextOpenAndClose,
			Handler: unary(MethodNextOpenAndClose, func(s CalendarServer, ctx context.Context, in *timestamppb.Timestamp) (any, error) {
				return s.NextOpenAndClose(ctx, in)
			}),
		},
		{
			MethodName: MethodOpenAndClose,
			Handler: unary(MethodOpenAndClose, func(s CalendarServer, ctx context.Context, in *timestamppb.Timestamp) (any, error) {
				return s.OpenAndClose(ctx, in)
			}),
		},
		{
			MethodName: MethodTradingDayDistance,
			Handler: unary(MethodTradingDayDistance, func(s CalendarServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.TradingDayDistance(ctx, in)
			}),
		},
		{
			MethodName: MethodSimulationWindow,
			Handler: unary(MethodSimulationWindow, func(s CalendarServer, ctx context.Context, in *structpb.Struct) (any, error) {
				return s.SimulationWindow(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tradecal/v1/calendar.proto",
}

// RegisterCalendarServer registers srv on the given gRPC server instance.
func RegisterCalendarServer(gs grpc.ServiceRegistrar, srv CalendarServer) {
	gs.RegisterService(&ServiceDesc, srv)
}

type methodHandler = func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error)

// unary adapts a typed call into a grpc method handler, decoding the request
// into a fresh Req and routing through the interceptor chain.
func unary[Req any](method string, call func(CalendarServer, context.Context, *Req) (any, error)) methodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CalendarServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CalendarServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
