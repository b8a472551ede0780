package transport

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	ierrors "goirc/internal/errors"
)

// WSConn presents a WebSocket as a line stream.  Every inbound text or
// binary frame is one protocol line (a missing trailing "\n" is
// supplied); every line written goes out as its own text frame.
//
// One goroutine may Read while others Write.
type WSConn struct {
	ws *websocket.Conn

	// reader state, owned by the single reading goroutine
	r    io.Reader
	last byte
	seen bool
	eol  bool

	wmu sync.Mutex
}

var _ net.Conn = (*WSConn)(nil)

// NewWSConn wraps an established WebSocket.
func NewWSConn(ws *websocket.Conn) *WSConn {
	return &WSConn{ws: ws}
}

func (c *WSConn) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		if c.eol {
			c.eol = false
			p[0] = '\n'
			return 1, nil
		}
		if c.r == nil {
			_, r, err := c.ws.NextReader()
			if err != nil {
				return 0, closeToEOF(err)
			}
			c.r = r
			c.seen = false
		}

		n, err := c.r.Read(p)
		if n > 0 {
			c.seen = true
			c.last = p[n-1]
		}
		if err == io.EOF {
			c.r = nil
			c.eol = c.seen && c.last != '\n'
			err = nil
		}
		if err != nil {
			return n, closeToEOF(err)
		}
		if n > 0 {
			return n, nil
		}
	}
}

// Write sends each line of p as a text frame.  Line terminators are
// stripped; empty lines are not sent.
func (c *WSConn) Write(p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	for _, line := range bytes.Split(p, []byte{'\n'}) {
		line = bytes.TrimRight(line, "\r")
		if len(line) == 0 {
			continue
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, line); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close sends a normal-closure frame and closes the socket.
func (c *WSConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)) //nolint:errcheck
	return c.ws.Close()
}

func (c *WSConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *WSConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *WSConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *WSConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *WSConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }

// closeToEOF maps an orderly WebSocket close to io.EOF.
func closeToEOF(err error) error {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived) {
		return io.EOF
	}
	return err
}

// WSDialer connects to a relay's WebSocket gateway (ws://host/ws).
type WSDialer struct {
	Timeout time.Duration
}

// Dial performs the WebSocket handshake against the URL address.
func (d *WSDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.Timeout,
	}
	ws, _, err := dialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, ierrors.Wrap("dial", address, err)
	}
	return NewWSConn(ws), nil
}
