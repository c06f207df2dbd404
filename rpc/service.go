// Package rpc exposes chat sessions as the gRPC service
// nimpersona.v1.PersonaChat. Messages use protobuf well-known types, so no
// generated code is needed on either side.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "nimpersona.v1.PersonaChat"

// Full method names.
const (
	GreetMethod = "/" + ServiceName + "/Greet"
	StepMethod  = "/" + ServiceName + "/Step"
	ResetMethod = "/" + ServiceName + "/Reset"
)

// PersonaChatServer is the server API.
//
// Greet takes a session ID (empty creates one) and returns its state.
// Step takes {"session", "content"} and returns the state plus "response".
// Reset takes a session ID and returns the fresh state.
type PersonaChatServer interface {
	Greet(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
}

// RegisterPersonaChatServer registers srv on s.
func RegisterPersonaChatServer(s grpc.ServiceRegistrar, srv PersonaChatServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PersonaChatServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Greet", Handler: greetHandler},
		{MethodName: "Step", Handler: stepHandler},
		{MethodName: "Reset", Handler: resetHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "nimpersona/v1/persona_chat.proto",
}

func greetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PersonaChatServer).Greet(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GreetMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PersonaChatServer).Greet(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func stepHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PersonaChatServer).Step(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: StepMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PersonaChatServer).Step(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func resetHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PersonaChatServer).Reset(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResetMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(PersonaChatServer).Reset(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}
