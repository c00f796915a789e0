package utcp

import (
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
)

// startUDPEchoServer answers "DISCOVER" datagrams with a manual and any
// other datagram with {"echo": <decoded args>}.
func startUDPEchoServer(t *testing.T) (host string, port int) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pc.Close() })

	go func() {
		buf := make([]byte, 65535)
		for {
			n, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			var resp []byte
			if string(buf[:n]) == "DISCOVER" {
				resp = []byte(`{"version":"1.0","tools":[{"name":"echo","description":"Echo"}]}`)
			} else {
				var req map[string]interface{}
				if jsonUnmarshal(buf[:n], &req) != nil {
					continue
				}
				resp, _ = jsonMarshal(map[string]interface{}{"echo": req["args"]})
			}
			pc.WriteTo(resp, addr)
		}
	}()

	addr := pc.LocalAddr().String()
	idx := strings.LastIndex(addr, ":")
	port, _ = strconv.Atoi(addr[idx+1:])
	return addr[:idx], port
}

func TestUDPTransport_RegisterAndCall(t *testing.T) {
	host, port := startUDPEchoServer(t)

	tr := NewUDPClientTransport(nil, fastRetry())
	prov := &UDPProvider{BaseProvider: BaseProvider{Name: "gram", ProviderType: ProviderUDP}, Host: host, Port: port, Timeout: 5000}

	tools, err := tr.RegisterToolProvider(context.Background(), prov)
	if err != nil {
		t.Fatalf("register error: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Fatalf("unexpected tools: %+v", tools)
	}

	result, err := tr.CallTool(context.Background(), "gram.echo", map[string]interface{}{"msg": "hi"}, prov)
	if err != nil {
		t.Fatalf("call error: %v", err)
	}
	m := result.(map[string]interface{})
	echo := m["echo"].(map[string]interface{})
	if echo["msg"] != "hi" {
		t.Fatalf("unexpected echoed args: %+v", echo)
	}
}

// startUDPStreamServer replies to any request datagram with several
// response datagrams; the client stream ends on quiescence.
func startUDPStreamServer(t *testing.T, frames []string) (host string, port int) {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pc.Close() })

	go func() {
		buf := make([]byte, 65535)
		for {
			_, addr, err := pc.ReadFrom(buf)
			if err != nil {
				return
			}
			for _, f := range frames {
				pc.WriteTo([]byte(f), addr)
			}
		}
	}()

	addr := pc.LocalAddr().String()
	idx := strings.LastIndex(addr, ":")
	port, _ = strconv.Atoi(addr[idx+1:])
	return addr[:idx], port
}

func TestUDPTransport_CallToolStream_DatagramsUntilQuiescence(t *testing.T) {
	host, port := startUDPStreamServer(t, []string{`{"n":1}`, `{"n":2}`})

	tr := NewUDPClientTransport(nil, fastRetry())
	// Timeout doubles as the quiescence window, kept short so the stream
	// ends promptly after the last datagram
	prov := &UDPProvider{BaseProvider: BaseProvider{Name: "gram", ProviderType: ProviderUDP}, Host: host, Port: port, Timeout: 300}

	if !tr.SupportsStream() {
		t.Fatalf("udp transport must support streaming")
	}
	sr, err := tr.CallToolStream(context.Background(), "gram.watch", nil, prov)
	if err != nil {
		t.Fatalf("call_tool_stream error: %v", err)
	}
	defer sr.Close()

	var got []interface{}
	for {
		v, err := sr.Next()
		if err != nil {
			break
		}
		got = append(got, v)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 datagram chunks before quiescence, got %d: %+v", len(got), got)
	}
	last := got[1].(map[string]interface{})
	if last["n"] != float64(2) {
		t.Fatalf("unexpected last chunk: %+v", last)
	}
}

func TestUDPTransport_WrongProviderType(t *testing.T) {
	tr := NewUDPClientTransport(nil, fastRetry())
	prov := &TCPProvider{BaseProvider: BaseProvider{Name: "sock", ProviderType: ProviderTCP}}
	if _, err := tr.RegisterToolProvider(context.Background(), prov); err == nil {
		t.Fatalf("expected wrong_provider_type error")
	}
}
