// Package session holds per-connection registration state and the
// registry that owns it.
//
// A Session is never handed out by pointer: the Registry returns copies
// and applies every mutation under its lock, so no caller can observe a
// half-applied change.
package session

import "strconv"

// ID is the stable identity of one connection.  It is assigned by the
// server on accept and never reused within a process.
type ID uint64

func (id ID) String() string { return "c" + strconv.FormatUint(uint64(id), 10) }

// Session is one connected user's registration state.  An empty field
// means "not set yet".
type Session struct {
	ID       ID
	Username string
	Nickname string
	Channel  string
}

// Registered reports whether username, nickname and channel are all set.
func (s Session) Registered() bool {
	return s.Username != "" && s.Nickname != "" && s.Channel != ""
}

// State is the registration phase derived from the three fields.
type State int

const (
	Anonymous State = iota
	PartiallyRegistered
	Registered
)

func (st State) String() string {
	switch st {
	case Anonymous:
		return "anonymous"
	case PartiallyRegistered:
		return "partial"
	case Registered:
		return "registered"
	}
	return "unknown"
}

// State returns the session's registration phase.
func (s Session) State() State {
	switch {
	case s.Registered():
		return Registered
	case s.Username != "" || s.Nickname != "" || s.Channel != "":
		return PartiallyRegistered
	default:
		return Anonymous
	}
}
