// Package transport opens the byte streams a chat client talks over.
// The line protocol is identical on every transport; only the way the
// stream is established differs.
package transport

import (
	"context"
	"net"
	"strings"
	"time"
)

// Dialer opens a stream to a relay server.
type Dialer interface {
	// Dial establishes a connection to address.
	Dial(ctx context.Context, address string) (net.Conn, error)
}

// For picks the dialer matching address: ws:// and wss:// URLs go
// through the WebSocket gateway, anything else is a TCP host:port.
func For(address string, timeout time.Duration) Dialer {
	if IsWebSocketURL(address) {
		return &WSDialer{Timeout: timeout}
	}
	return &TCPDialer{Timeout: timeout}
}

// IsWebSocketURL reports whether address names a WebSocket endpoint.
func IsWebSocketURL(address string) bool {
	return strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://")
}
