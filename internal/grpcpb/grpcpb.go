// Package grpcpb is the wire-message and service-descriptor glue for the
// gRPC transport. A real build normally generates this file with protoc
// plus protoc-gen-go/protoc-gen-go-grpc from a .proto source; neither tool
// is available in this environment, so the message types and service
// plumbing below are hand-written to the shape protoc-gen-go-grpc would
// have produced, minus the wire-format machinery proto.Message callers
// never actually exercise here (this transport only ever talks to itself
// through an in-process *grpc.Server / *grpc.ClientConn pair using JSON
// payloads carried in string fields -- see ToolCallRequest.ArgsJson).
package grpcpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Empty is sent to request a provider's manual.
type Empty struct{}

func (x *Empty) Reset()         {}
func (x *Empty) ProtoMessage()  {}
func (x *Empty) String() string { return "Empty{}" }

// ProtoReflect is a minimal stand-in: this service only ever runs
// in-process over JSON-carrying string fields, so nothing here needs a
// real protoreflect.Message to function.
func (x *Empty) ProtoReflect() protoreflect.Message { return nil }
func (x *Empty) Descriptor() ([]byte, []int)        { return nil, []int{0} }

// Tool is the wire shape of one tool entry in a Manual.
type Tool struct {
	Name        string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Description string `protobuf:"bytes,2,opt,name=description,proto3" json:"description,omitempty"`
	InputsJson  string `protobuf:"bytes,3,opt,name=inputs_json,proto3" json:"inputs_json,omitempty"`
	OutputsJson string `protobuf:"bytes,4,opt,name=outputs_json,proto3" json:"outputs_json,omitempty"`
}

func (x *Tool) Reset()         {}
func (x *Tool) ProtoMessage()  {}
func (x *Tool) String() string { return "Tool{" + x.Name + "}" }
func (x *Tool) ProtoReflect() protoreflect.Message { return nil }
func (x *Tool) Descriptor() ([]byte, []int) { return nil, []int{1} }
func (x *Tool) GetName() string             { return x.Name }
func (x *Tool) GetDescription() string      { return x.Description }
func (x *Tool) GetInputsJson() string       { return x.InputsJson }
func (x *Tool) GetOutputsJson() string      { return x.OutputsJson }

// Manual is the discovery response: a version tag plus the tool list.
type Manual struct {
	Version string  `protobuf:"bytes,1,opt,name=version,proto3" json:"version,omitempty"`
	Tools   []*Tool `protobuf:"bytes,2,rep,name=tools,proto3" json:"tools,omitempty"`
}

func (x *Manual) Reset()         {}
func (x *Manual) ProtoMessage()  {}
func (x *Manual) String() string { return "Manual{" + x.Version + "}" }
func (x *Manual) ProtoReflect() protoreflect.Message { return nil }
func (x *Manual) Descriptor() ([]byte, []int) { return nil, []int{2} }
func (x *Manual) GetVersion() string          { return x.Version }
func (x *Manual) GetTools() []*Tool           { return x.Tools }

// ToolCallRequest invokes a named tool with JSON-encoded arguments.
type ToolCallRequest struct {
	Tool     string `protobuf:"bytes,1,opt,name=tool,proto3" json:"tool,omitempty"`
	ArgsJson string `protobuf:"bytes,2,opt,name=args_json,proto3" json:"args_json,omitempty"`
}

func (x *ToolCallRequest) Reset()         {}
func (x *ToolCallRequest) ProtoMessage()  {}
func (x *ToolCallRequest) String() string { return "ToolCallRequest{" + x.Tool + "}" }
func (x *ToolCallRequest) ProtoReflect() protoreflect.Message { return nil }
func (x *ToolCallRequest) Descriptor() ([]byte, []int) { return nil, []int{3} }
func (x *ToolCallRequest) GetTool() string              { return x.Tool }
func (x *ToolCallRequest) GetArgsJson() string           { return x.ArgsJson }

// ToolCallResponse carries the JSON-encoded result of a ToolCallRequest.
type ToolCallResponse struct {
	ResultJson string `protobuf:"bytes,1,opt,name=result_json,proto3" json:"result_json,omitempty"`
}

func (x *ToolCallResponse) Reset()         {}
func (x *ToolCallResponse) ProtoMessage()  {}
func (x *ToolCallResponse) String() string { return "ToolCallResponse{}" }
func (x *ToolCallResponse) ProtoReflect() protoreflect.Message { return nil }
func (x *ToolCallResponse) Descriptor() ([]byte, []int) { return nil, []int{4} }
func (x *ToolCallResponse) GetResultJson() string       { return x.ResultJson }

// UTCPServiceServer is the service contract a gRPC provider implements.
type UTCPServiceServer interface {
	GetManual(context.Context, *Empty) (*Manual, error)
	CallTool(context.Context, *ToolCallRequest) (*ToolCallResponse, error)
	CallToolStream(*ToolCallRequest, UTCPService_CallToolStreamServer) error
}

// UnimplementedUTCPServiceServer can be embedded to satisfy
// UTCPServiceServer for partial implementations, matching the
// forward-compatibility pattern protoc-gen-go-grpc emits.
type UnimplementedUTCPServiceServer struct{}

func (UnimplementedUTCPServiceServer) GetManual(context.Context, *Empty) (*Manual, error) {
	return nil, grpcUnimplemented("GetManual")
}

func (UnimplementedUTCPServiceServer) CallTool(context.Context, *ToolCallRequest) (*ToolCallResponse, error) {
	return nil, grpcUnimplemented("CallTool")
}

func (UnimplementedUTCPServiceServer) CallToolStream(*ToolCallRequest, UTCPService_CallToolStreamServer) error {
	return grpcUnimplemented("CallToolStream")
}

// UTCPService_CallToolStreamServer is the server-side handle for streaming
// ToolCallResponse frames back to the caller.
type UTCPService_CallToolStreamServer interface {
	Send(*ToolCallResponse) error
	grpc.ServerStream
}

type utcpServiceCallToolStreamServer struct {
	grpc.ServerStream
}

func (x *utcpServiceCallToolStreamServer) Send(m *ToolCallResponse) error {
	return x.ServerStream.SendMsg(m)
}

// UTCPService_CallToolStreamClient is the client-side handle for receiving
// streamed ToolCallResponse frames.
type UTCPService_CallToolStreamClient interface {
	Recv() (*ToolCallResponse, error)
	grpc.ClientStream
}

type utcpServiceCallToolStreamClient struct {
	grpc.ClientStream
}

func (x *utcpServiceCallToolStreamClient) Recv() (*ToolCallResponse, error) {
	m := new(ToolCallResponse)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func grpcUnimplemented(method string) error {
	return &unimplementedError{method: method}
}

type unimplementedError struct{ method string }

func (e *unimplementedError) Error() string { return "method " + e.method + " not implemented" }

// UTCPServiceClient is the client contract callers use over any
// grpc.ClientConnInterface (a live *grpc.ClientConn, or a test double).
type UTCPServiceClient interface {
	GetManual(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Manual, error)
	CallTool(ctx context.Context, in *ToolCallRequest, opts ...grpc.CallOption) (*ToolCallResponse, error)
	CallToolStream(ctx context.Context, in *ToolCallRequest, opts ...grpc.CallOption) (UTCPService_CallToolStreamClient, error)
}

type utcpServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewUTCPServiceClient(cc grpc.ClientConnInterface) UTCPServiceClient {
	return &utcpServiceClient{cc}
}

func (c *utcpServiceClient) GetManual(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*Manual, error) {
	out := new(Manual)
	err := c.cc.Invoke(ctx, "/utcp.UTCPService/GetManual", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *utcpServiceClient) CallTool(ctx context.Context, in *ToolCallRequest, opts ...grpc.CallOption) (*ToolCallResponse, error) {
	out := new(ToolCallResponse)
	err := c.cc.Invoke(ctx, "/utcp.UTCPService/CallTool", in, out, opts...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *utcpServiceClient) CallToolStream(ctx context.Context, in *ToolCallRequest, opts ...grpc.CallOption) (UTCPService_CallToolStreamClient, error) {
	stream, err := c.cc.NewStream(ctx, &UTCPService_ServiceDesc.Streams[0], "/utcp.UTCPService/CallToolStream", opts...)
	if err != nil {
		return nil, err
	}
	x := &utcpServiceCallToolStreamClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func _UTCPService_GetManual_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UTCPServiceServer).GetManual(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/utcp.UTCPService/GetManual"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(UTCPServiceServer).GetManual(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _UTCPService_CallTool_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ToolCallRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(UTCPServiceServer).CallTool(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/utcp.UTCPService/CallTool"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(UTCPServiceServer).CallTool(ctx, req.(*ToolCallRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _UTCPService_CallToolStream_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(ToolCallRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(UTCPServiceServer).CallToolStream(m, &utcpServiceCallToolStreamServer{stream})
}

// UTCPService_ServiceDesc is the grpc.ServiceDesc for this service.
var UTCPService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "utcp.UTCPService",
	HandlerType: (*UTCPServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetManual", Handler: _UTCPService_GetManual_Handler},
		{MethodName: "CallTool", Handler: _UTCPService_CallTool_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "CallToolStream", Handler: _UTCPService_CallToolStream_Handler, ServerStreams: true},
	},
	Metadata: "utcp.proto",
}

// RegisterUTCPServiceServer registers impl on srv under the UTCPService
// descriptor.
func RegisterUTCPServiceServer(srv *grpc.Server, impl UTCPServiceServer) {
	srv.RegisterService(&UTCPService_ServiceDesc, impl)
}
