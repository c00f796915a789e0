package grpcpb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc"
)

type dummyServer struct {
	UnimplementedUTCPServiceServer
}

func (d *dummyServer) GetManual(context.Context, *Empty) (*Manual, error) {
	return &Manual{Version: "1", Tools: []*Tool{{Name: "ping"}}}, nil
}

func (d *dummyServer) CallTool(context.Context, *ToolCallRequest) (*ToolCallResponse, error) {
	return &ToolCallResponse{ResultJson: "{}"}, nil
}

type fakeConn struct{}

func (fakeConn) Invoke(ctx context.Context, method string, args, reply interface{}, opts ...grpc.CallOption) error {
	return nil
}

func (fakeConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, nil
}

func TestMessageAccessors(t *testing.T) {
	tl := &Tool{Name: "n", Description: "d"}
	assert.Equal(t, "n", tl.GetName())
	assert.Equal(t, "d", tl.GetDescription())

	m := &Manual{Version: "1", Tools: []*Tool{tl}}
	assert.Equal(t, "1", m.GetVersion())
	assert.Len(t, m.GetTools(), 1)

	req := &ToolCallRequest{Tool: "ping", ArgsJson: "{}"}
	assert.Equal(t, "ping", req.GetTool())
	assert.Equal(t, "{}", req.GetArgsJson())

	resp := &ToolCallResponse{ResultJson: "{}"}
	assert.Equal(t, "{}", resp.GetResultJson())
}

func TestRegisterAndClientRoundtrip(t *testing.T) {
	srv := grpc.NewServer()
	RegisterUTCPServiceServer(srv, &dummyServer{})

	c := NewUTCPServiceClient(fakeConn{})
	_, err := c.GetManual(context.Background(), &Empty{})
	assert.NoError(t, err)
	_, err = c.CallTool(context.Background(), &ToolCallRequest{})
	assert.NoError(t, err)
}

func TestHandlersInvokeServerMethods(t *testing.T) {
	srv := &dummyServer{}
	out, err := _UTCPService_GetManual_Handler(srv, context.Background(), func(v interface{}) error { return nil }, nil)
	assert.NoError(t, err)
	assert.Equal(t, "1", out.(*Manual).Version)

	out2, err := _UTCPService_CallTool_Handler(srv, context.Background(), func(v interface{}) error { return nil }, nil)
	assert.NoError(t, err)
	assert.Equal(t, "{}", out2.(*ToolCallResponse).ResultJson)
}

func TestUnimplementedServerReturnsError(t *testing.T) {
	var srv UTCPServiceServer = UnimplementedUTCPServiceServer{}
	_, err := srv.GetManual(context.Background(), &Empty{})
	assert.Error(t, err)
}
