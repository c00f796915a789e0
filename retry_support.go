package utcp

import (
	"context"
	"errors"
)

// isTransientCallError is the retry predicate for transports whose failures
// aren't naturally net.Error (gRPC status errors, GraphQL/HTTP application
// errors, WebRTC data-channel timeouts, MCP client errors): everything but
// context cancellation/deadline is considered worth retrying.
// isTransientNetError (tcp_transport.go/udp_transport.go) stays narrower
// since those transports deal in raw net.Conn errors.
func isTransientCallError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
