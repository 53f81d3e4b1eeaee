package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "avatar.v1.AvatarResolver"

// avatarServiceDesc is a manually-defined ServiceDesc for
// avatar.v1.AvatarResolver. Both methods exchange google.protobuf.Struct.
var avatarServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*avatarResolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Resolve",
			Handler:    resolveHandler,
		},
		{
			MethodName: "ListFailed",
			Handler:    listFailedHandler,
		},
	},
	Metadata: "avatar/v1/avatar.proto",
}

// avatarResolverServer is the interface the gRPC runtime uses for type-checking.
type avatarResolverServer interface {
	resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	listFailed(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func resolveHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := &structpb.Struct{}
	if err := dec(req); err != nil {
		return nil, err
	}
	s := srv.(avatarResolverServer)
	if interceptor == nil {
		return s.resolve(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/Resolve",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

func listFailedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := &structpb.Struct{}
	if err := dec(req); err != nil {
		return nil, err
	}
	s := srv.(avatarResolverServer)
	if interceptor == nil {
		return s.listFailed(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + serviceName + "/ListFailed",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return s.listFailed(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, req, info, handler)
}

// Client calls the AvatarResolver service.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client bound to a connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Resolve resolves one avatar from its configuration fields.
func (c *Client) Resolve(ctx context.Context, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, err
	}
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/Resolve", req, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}

// ListFailed returns the failure registry.
func (c *Client) ListFailed(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/ListFailed", &structpb.Struct{}, resp, opts...); err != nil {
		return nil, err
	}
	return resp, nil
}
