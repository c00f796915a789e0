package utcp

import (
	"context"
	"io"
	"strings"
	"time"

	gnmi "github.com/openconfig/gnmi/proto/gnmi"
	"google.golang.org/protobuf/encoding/protojson"
)

// callGNMISubscribe streams gNMI telemetry directly, bypassing the
// UTCPService envelope entirely. It exists because a GRPCProvider naming
// service gnmi.gNMI/Subscribe is talking to a real network-device gNMI
// target, not a UTCP-aware server.
func (t *GRPCClientTransport) callGNMISubscribe(ctx context.Context, args map[string]interface{}, gp *GRPCProvider) (StreamResult, error) {
	ctx, cancel := context.WithCancel(ctx)

	conn, err := t.rawDial(ctx, gp)
	if err != nil {
		cancel()
		return nil, err
	}

	client := gnmi.NewGNMIClient(conn)
	stream, err := client.Subscribe(ctx)
	if err != nil {
		cancel()
		conn.Close()
		return nil, err
	}

	subReq, err := buildSubscribeRequest(args, gp)
	if err != nil {
		cancel()
		conn.Close()
		return nil, err
	}
	if err := stream.Send(subReq); err != nil {
		cancel()
		conn.Close()
		return nil, err
	}

	items := make(chan interface{})
	errs := make(chan error, 1)

	pollStop := startPollingIfNeeded(ctx, stream, args, subReq.GetSubscribe().Mode, errs)

	go func() {
		defer func() {
			if pollStop != nil {
				close(pollStop)
			}
			close(items)
			cancel()
			conn.Close()
		}()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if err != io.EOF {
					errs <- err
				}
				return
			}
			obj, err := gnmiResponseToJSON(resp)
			if err != nil {
				errs <- err
				return
			}
			select {
			case items <- obj:
			case <-ctx.Done():
				return
			}
		}
	}()

	return NewChannelStreamResult(items, errs, func() error { cancel(); return nil }), nil
}

func buildSubscribeRequest(args map[string]interface{}, gp *GRPCProvider) (*gnmi.SubscribeRequest, error) {
	pathStr, _ := args["path"].(string)
	modeStr, _ := args["mode"].(string)

	subMode := gnmi.SubscriptionList_STREAM
	switch strings.ToUpper(modeStr) {
	case "ONCE":
		subMode = gnmi.SubscriptionList_ONCE
	case "POLL":
		subMode = gnmi.SubscriptionList_POLL
	}

	path := parseGNMIPath(pathStr)
	subReq := &gnmi.SubscribeRequest{
		Request: &gnmi.SubscribeRequest_Subscribe{
			Subscribe: &gnmi.SubscriptionList{
				Mode:         subMode,
				Subscription: []*gnmi.Subscription{{Path: path}},
			},
		},
	}
	return subReq, nil
}

// startPollingIfNeeded drives a POLL-mode subscription on a ticker; errors
// are reported on errs rather than a dedicated channel since callers only
// ever select on items/errs.
func startPollingIfNeeded(ctx context.Context, stream gnmi.GNMI_SubscribeClient, args map[string]interface{}, mode gnmi.SubscriptionList_Mode, errs chan<- error) chan struct{} {
	if mode != gnmi.SubscriptionList_POLL {
		return nil
	}
	var pollEveryMs int64
	switch v := args["poll_every_ms"].(type) {
	case int:
		pollEveryMs = int64(v)
	case int64:
		pollEveryMs = v
	case float64:
		pollEveryMs = int64(v)
	}
	if pollEveryMs <= 0 {
		return nil
	}

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Duration(pollEveryMs) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := stream.Send(&gnmi.SubscribeRequest{Request: &gnmi.SubscribeRequest_Poll{Poll: &gnmi.Poll{}}}); err != nil {
					errs <- err
					return
				}
			}
		}
	}()
	return stop
}

func gnmiResponseToJSON(resp *gnmi.SubscribeResponse) (interface{}, error) {
	b, err := protojson.Marshal(resp)
	if err != nil {
		return nil, err
	}
	var obj interface{}
	if err := jsonUnmarshal(b, &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func parseGNMIPath(p string) *gnmi.Path {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return &gnmi.Path{}
	}
	return &gnmi.Path{Element: strings.Split(p, "/")}
}
