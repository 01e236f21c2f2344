package alert

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "garagealert.v1.AlertService"

// Full method names.
const (
	DispatchMethod       = "/" + ServiceName + "/Dispatch"
	ObserveMethod        = "/" + ServiceName + "/Observe"
	GetDiagnosticsMethod = "/" + ServiceName + "/GetDiagnostics"
	ResetCountersMethod  = "/" + ServiceName + "/ResetCounters"
)

// AlertServiceServer is the server API of the alert service. Payloads are
// protobuf Structs so the service needs no generated code.
type AlertServiceServer interface {
	Dispatch(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Observe(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetDiagnostics(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ResetCounters(ctx context.Context, req *emptypb.Empty) (*emptypb.Empty, error)
}

// RegisterAlertServiceServer registers srv on the gRPC registrar.
func RegisterAlertServiceServer(registrar grpc.ServiceRegistrar, srv AlertServiceServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the alert service for grpc.Server.
//
//nolint:gochecknoglobals // Service descriptors are package-level by convention.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlertServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Dispatch",
			Handler: unaryHandler(DispatchMethod, func(srv AlertServiceServer) func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
				return srv.Dispatch
			}),
		},
		{
			MethodName: "Observe",
			Handler: unaryHandler(ObserveMethod, func(srv AlertServiceServer) func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
				return srv.Observe
			}),
		},
		{
			MethodName: "GetDiagnostics",
			Handler: unaryHandler(GetDiagnosticsMethod, func(srv AlertServiceServer) func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
				return srv.GetDiagnostics
			}),
		},
		{
			MethodName: "ResetCounters",
			Handler: unaryHandler(ResetCountersMethod, func(srv AlertServiceServer) func(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
				return srv.ResetCounters
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "garagealert/v1/alert_service.proto",
}

// unaryHandler adapts a typed server method to a grpc.MethodDesc handler.
func unaryHandler[Req, Resp any](
	fullMethod string,
	pick func(AlertServiceServer) func(context.Context, *Req) (*Resp, error),
) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}

		method := pick(srv.(AlertServiceServer)) //nolint:forcetypeassert // grpc checks HandlerType on registration.
		if interceptor == nil {
			return method(ctx, in)
		}

		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return method(ctx, req.(*Req)) //nolint:forcetypeassert // The request was decoded above.
		}

		return interceptor(ctx, in, info, handler)
	}
}

// AlertServiceClient is the client API of the alert service.
type AlertServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAlertServiceClient creates a client over cc.
func NewAlertServiceClient(cc grpc.ClientConnInterface) *AlertServiceClient {
	return &AlertServiceClient{cc: cc}
}

// Dispatch sends an event.
func (c *AlertServiceClient) Dispatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, DispatchMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// Observe sends sensor readings without an event.
func (c *AlertServiceClient) Observe(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ObserveMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// GetDiagnostics reads channel state.
func (c *AlertServiceClient) GetDiagnostics(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetDiagnosticsMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

// ResetCounters zeroes the send counters.
func (c *AlertServiceClient) ResetCounters(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, ResetCountersMethod, in, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}
