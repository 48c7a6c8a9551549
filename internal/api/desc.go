package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "velocity.v1.VelocityService"

// Full method names, as seen by interceptors.
const (
	QueryVelocityMethod = "/" + ServiceName + "/QueryVelocity"
	ListTracksMethod    = "/" + ServiceName + "/ListTracks"
	GetProfileMethod    = "/" + ServiceName + "/GetProfile"
)

// VelocityServer is the server API for the velocity service. Messages are
// protobuf well-known types so the service needs no generated code.
type VelocityServer interface {
	QueryVelocity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTracks(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterVelocityServer attaches srv to a gRPC server.
func RegisterVelocityServer(s grpc.ServiceRegistrar, srv VelocityServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes velocity.v1.VelocityService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VelocityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "QueryVelocity", Handler: queryVelocityHandler},
		{MethodName: "ListTracks", Handler: listTracksHandler},
		{MethodName: "GetProfile", Handler: getProfileHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "proto/velocity/v1/velocity.proto",
}

func queryVelocityHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VelocityServer).QueryVelocity(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: QueryVelocityMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VelocityServer).QueryVelocity(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func listTracksHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VelocityServer).ListTracks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListTracksMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VelocityServer).ListTracks(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func getProfileHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VelocityServer).GetProfile(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetProfileMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VelocityServer).GetProfile(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
