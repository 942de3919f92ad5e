package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the orchestrator service.
const ServiceName = "agora.v1.Orchestrator"

// Full method names.
const (
	MethodRun         = "/" + ServiceName + "/Run"
	MethodGetArtifact = "/" + ServiceName + "/GetArtifact"
	MethodWatchAlerts = "/" + ServiceName + "/WatchAlerts"
)

// Every message on the wire is a google.protobuf.Struct, so the service is
// described by hand instead of generated from a .proto file.

// OrchestratorService is the server API of agora.v1.Orchestrator.
type OrchestratorService interface {
	Run(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error
	GetArtifact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	WatchAlerts(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// UnimplementedOrchestratorService returns Unimplemented for every method.
type UnimplementedOrchestratorService struct{}

func (UnimplementedOrchestratorService) Run(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Error(codes.Unimplemented, "method Run not implemented")
}

func (UnimplementedOrchestratorService) GetArtifact(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetArtifact not implemented")
}

func (UnimplementedOrchestratorService) WatchAlerts(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return status.Error(codes.Unimplemented, "method WatchAlerts not implemented")
}

// ServiceDesc describes agora.v1.Orchestrator for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrchestratorService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetArtifact", Handler: getArtifactHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Run", Handler: runHandler, ServerStreams: true},
		{StreamName: "WatchAlerts", Handler: watchAlertsHandler, ServerStreams: true},
	},
	Metadata: "agora/v1/orchestrator.proto",
}

// RegisterOrchestratorService registers srv on s.
func RegisterOrchestratorService(s grpc.ServiceRegistrar, srv OrchestratorService) {
	s.RegisterService(&ServiceDesc, srv)
}

func getArtifactHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorService).GetArtifact(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodGetArtifact}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorService).GetArtifact(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func runHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(OrchestratorService).Run(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

func watchAlertsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(OrchestratorService).WatchAlerts(in, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// =============================================================================
// CLIENT
// =============================================================================

// OrchestratorClient is the client API of agora.v1.Orchestrator.
type OrchestratorClient struct {
	cc grpc.ClientConnInterface
}

// NewOrchestratorClient creates a client over cc.
func NewOrchestratorClient(cc grpc.ClientConnInterface) *OrchestratorClient {
	return &OrchestratorClient{cc: cc}
}

// Run starts a routed run and returns its event stream.
func (c *OrchestratorClient) Run(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	return c.serverStream(ctx, 0, MethodRun, in, opts...)
}

// GetArtifact fetches one artifact version.
func (c *OrchestratorClient) GetArtifact(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodGetArtifact, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchAlerts streams spread alerts until ctx is cancelled.
func (c *OrchestratorClient) WatchAlerts(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	return c.serverStream(ctx, 1, MethodWatchAlerts, in, opts...)
}

func (c *OrchestratorClient) serverStream(ctx context.Context, idx int, method string, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[idx], method, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
