package matcher

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "swipe.v1.MatcherService"

// Full method names, as seen by interceptors.
const (
	GenerateSwipeStackMethod   = "/" + ServiceName + "/GenerateSwipeStack"
	RegisterSwipeChoicesMethod = "/" + ServiceName + "/RegisterSwipeChoices"
	ReportUserMethod           = "/" + ServiceName + "/ReportUser"
)

// CodecName is the content subtype every MatcherService call uses.
const CodecName = "json"

// MatcherServiceServer is the server API for MatcherService.
type MatcherServiceServer interface {
	GenerateSwipeStack(context.Context, *GenerateSwipeStackRequest) (*GenerateSwipeStackResponse, error)
	RegisterSwipeChoices(context.Context, *RegisterSwipeChoicesRequest) (*RegisterSwipeChoicesResponse, error)
	ReportUser(context.Context, *ReportUserRequest) (*ReportUserResponse, error)
}

// RegisterMatcherServiceServer attaches srv to s.
func RegisterMatcherServiceServer(s grpc.ServiceRegistrar, srv MatcherServiceServer) {
	s.RegisterService(&MatcherService_ServiceDesc, srv)
}

// unary adapts one typed method to a grpc.MethodHandler.
func unary[Req any, Resp any](fullMethod string, call func(MatcherServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatcherServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MatcherServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// MatcherService_ServiceDesc is the grpc.ServiceDesc for MatcherService.
var MatcherService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MatcherServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GenerateSwipeStack",
			Handler:    unary(GenerateSwipeStackMethod, MatcherServiceServer.GenerateSwipeStack),
		},
		{
			MethodName: "RegisterSwipeChoices",
			Handler:    unary(RegisterSwipeChoicesMethod, MatcherServiceServer.RegisterSwipeChoices),
		},
		{
			MethodName: "ReportUser",
			Handler:    unary(ReportUserMethod, MatcherServiceServer.ReportUser),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "swipe/v1/matcher.proto",
}

// MatcherServiceClient is the client API for MatcherService.
type MatcherServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewMatcherServiceClient(cc grpc.ClientConnInterface) *MatcherServiceClient {
	return &MatcherServiceClient{cc: cc}
}

func (c *MatcherServiceClient) GenerateSwipeStack(ctx context.Context, in *GenerateSwipeStackRequest, opts ...grpc.CallOption) (*GenerateSwipeStackResponse, error) {
	out := new(GenerateSwipeStackResponse)
	if err := c.invoke(ctx, GenerateSwipeStackMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatcherServiceClient) RegisterSwipeChoices(ctx context.Context, in *RegisterSwipeChoicesRequest, opts ...grpc.CallOption) (*RegisterSwipeChoicesResponse, error) {
	out := new(RegisterSwipeChoicesResponse)
	if err := c.invoke(ctx, RegisterSwipeChoicesMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatcherServiceClient) ReportUser(ctx context.Context, in *ReportUserRequest, opts ...grpc.CallOption) (*ReportUserResponse, error) {
	out := new(ReportUserResponse)
	if err := c.invoke(ctx, ReportUserMethod, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *MatcherServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}
