package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "tradesim.v1.Backtest"

// Full method names, as used by clients with grpc.ClientConn.Invoke.
const (
	RunMethod            = "/" + ServiceName + "/Run"
	ListStrategiesMethod = "/" + ServiceName + "/ListStrategies"
)

// BacktestServer is the server API for the Backtest service. Requests and
// responses are google.protobuf.Struct documents.
type BacktestServer interface {
	Run(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListStrategies(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterBacktestServer registers srv on s.
func RegisterBacktestServer(s grpc.ServiceRegistrar, srv BacktestServer) {
	s.RegisterService(&backtestServiceDesc, srv)
}

var backtestServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BacktestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Run", Handler: unaryHandler(RunMethod, BacktestServer.Run)},
		{MethodName: "ListStrategies", Handler: unaryHandler(ListStrategiesMethod, BacktestServer.ListStrategies)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tradesim/v1/backtest.proto",
}

// unaryHandler adapts a BacktestServer method to a grpc.MethodDesc handler.
func unaryHandler(fullMethod string, call func(BacktestServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BacktestServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BacktestServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
