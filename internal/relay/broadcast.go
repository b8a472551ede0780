package relay

import (
	"time"

	"goirc/internal/metrics"
	"goirc/internal/session"
	"goirc/util"
)

// Policy selects which connections receive an Outbound line.
type Policy int

const (
	// ExcludeSender delivers to every open connection except the origin.
	ExcludeSender Policy = iota
	// IncludeAll delivers to every open connection.
	IncludeAll
	// SenderOnly delivers to the origin alone.
	SenderOnly
)

func (p Policy) String() string {
	switch p {
	case ExcludeSender:
		return "exclude-sender"
	case IncludeAll:
		return "include-all"
	case SenderOnly:
		return "sender-only"
	}
	return "unknown"
}

// Outbound is a fully formatted line plus its delivery policy.
type Outbound struct {
	Line   []byte
	Policy Policy
}

// Broadcaster writes Outbound lines to a connection set.
type Broadcaster struct {
	writeTimeout time.Duration
	metrics      *metrics.Collector
	logger       *util.Logger
}

// NewBroadcaster returns a Broadcaster bounding each write by
// writeTimeout (zero disables the bound).
func NewBroadcaster(writeTimeout time.Duration, logger *util.Logger, m *metrics.Collector) *Broadcaster {
	return &Broadcaster{writeTimeout: writeTimeout, metrics: m, logger: logger}
}

// Deliver writes msg to the connections selected by its policy and
// returns the ids whose write failed.  A failure never stops delivery
// to the rest; the failed connection is marked closing so later
// deliveries in the same cycle skip it, and the caller removes it.
func (b *Broadcaster) Deliver(conns map[session.ID]*Conn, origin session.ID, msg Outbound) []session.ID {
	var (
		failed    []session.ID
		delivered int
	)

	send := func(c *Conn) {
		if c.state != stateOpen {
			return
		}
		n, err := util.WriteTimeout(c.rwc, msg.Line, b.writeTimeout)
		b.metrics.BytesSent(int64(n))
		if err != nil {
			if !util.IsHarmless(err) {
				b.logger.Warn("write to %s (%s): %v", c.id, c.remote, err)
			}
			c.state = stateClosing
			failed = append(failed, c.id)
			return
		}
		delivered++
	}

	switch msg.Policy {
	case SenderOnly:
		if c, ok := conns[origin]; ok {
			send(c)
		}
	default:
		for id, c := range conns {
			if msg.Policy == ExcludeSender && id == origin {
				continue
			}
			send(c)
		}
	}

	b.metrics.Broadcast(delivered, len(failed))
	b.logger.Debug("deliver %s from %s: %d ok, %d failed: %q",
		msg.Policy, origin, delivered, len(failed), msg.Line)
	return failed
}
