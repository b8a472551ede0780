package transport

import (
	"context"
	"net"
	"time"

	ierrors "goirc/internal/errors"
)

// TCPDialer establishes plain TCP connections.
type TCPDialer struct {
	Timeout   time.Duration
	KeepAlive time.Duration // 0 = OS default
}

// Dial connects to address over TCP.  Failures are returned as
// *errors.NetworkError so callers can tell a refused dial (retryable)
// from a bad address.
func (d *TCPDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.Timeout, KeepAlive: d.KeepAlive}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, ierrors.Wrap("dial", address, err)
	}
	return conn, nil
}
