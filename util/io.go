package util

import (
	"errors"
	"io"
	"net"
	"syscall"
	"time"
)

// writeDeadliner is implemented by net.Conn and by the WebSocket
// adapter; plain io.Writers without deadlines are written to directly.
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// WriteTimeout writes p to w, bounding the write by timeout when w
// supports deadlines.  A zero timeout means no bound.
func WriteTimeout(w io.Writer, p []byte, timeout time.Duration) (int, error) {
	if d, ok := w.(writeDeadliner); ok && timeout > 0 {
		d.SetWriteDeadline(time.Now().Add(timeout)) //nolint:errcheck
		defer d.SetWriteDeadline(time.Time{})       //nolint:errcheck
	}
	return w.Write(p)
}

// IsHarmless returns true for errors that are expected when a peer
// hangs up or the server is shutting down.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	// net.OpError wrapping "use of closed network connection"
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}
