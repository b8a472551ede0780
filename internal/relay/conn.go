// Package relay is the chat server core: a single event loop that owns
// every connection, a dispatcher that runs the per-session registration
// state machine, and a broadcaster that fans lines out.
//
// Architecture (one process):
//
//	listener / gateway ──Attach──▶ events ◀── reader goroutine per conn
//	                                  │
//	                                  ▼
//	                     loop: frame → parse → Dispatch → Deliver
//
// Reader goroutines only block in Read and post what they got; all
// state (connection set, registry mutations, broadcasts) is touched by
// the loop goroutine alone, so one command's registry change and the
// broadcast it causes are never interleaved with another command.
package relay

import (
	"io"

	"goirc/internal/session"
	"goirc/internal/wire"
)

type connState int

const (
	stateOpen connState = iota
	stateClosing
)

func (s connState) String() string {
	if s == stateOpen {
		return "open"
	}
	return "closing"
}

// Conn is one tracked connection.  Only the event loop reads or writes
// its fields; the reader goroutine touches rwc alone.
type Conn struct {
	id     session.ID
	rwc    io.ReadWriteCloser
	remote string
	framer *wire.Framer
	state  connState
}

func newConn(id session.ID, rwc io.ReadWriteCloser, remote string, maxLine int) *Conn {
	return &Conn{
		id:     id,
		rwc:    rwc,
		remote: remote,
		framer: wire.NewFramer(maxLine),
		state:  stateOpen,
	}
}

// ID returns the connection identity.
func (c *Conn) ID() session.ID { return c.id }

// Remote returns the peer description given at attach time.
func (c *Conn) Remote() string { return c.remote }
