// Package wire parses and serialises the line-oriented chat protocol.
//
// A line has the shape
//
//	[:prefix] KEYWORD [param ...] [:trailing]
//
// Parsing is a small tokenizer rather than prefix matching, so extra
// whitespace and a trailing CR are tolerated.  The package is pure: no
// I/O, no shared state.
package wire

// ── Protocol constants ───────────────────────────────────────────────

const (
	// ReadChunkSize is the maximum number of bytes taken from a socket
	// in a single read.
	ReadChunkSize = 2048

	// MaxLineLength bounds a buffered, unterminated line.  Anything
	// longer is discarded by the Framer.
	MaxLineLength = 4 * ReadChunkSize

	// DefaultChannel is the channel used when JOIN carries no name.
	DefaultChannel = "#global"

	// ServerName is the sender prefix of server-originated lines.
	ServerName = "SERVER"

	// NicknameInUse is the bare error token sent when NICK collides.
	NicknameInUse = "NICKNAMEINUSE"
)

// Kind identifies a recognised command keyword.
type Kind int

const (
	Unknown Kind = iota
	Nick
	User
	Join
	Privmsg
	Quit
)

var kindNames = map[Kind]string{
	Unknown: "UNKNOWN",
	Nick:    "NICK",
	User:    "USER",
	Join:    "JOIN",
	Privmsg: "PRIVMSG",
	Quit:    "QUIT",
}

var keywords = map[string]Kind{
	"NICK":    Nick,
	"USER":    User,
	"JOIN":    Join,
	"PRIVMSG": Privmsg,
	"QUIT":    Quit,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "UNKNOWN"
}

// Command is one parsed protocol line.
type Command struct {
	Kind    Kind
	Keyword string   // upper-cased keyword as read
	Prefix  string   // sender from a leading ":prefix", if any
	Params  []string // middle parameters
	// Trailing is the text after " :".  HasTrailing distinguishes an
	// empty trailing from none at all.
	Trailing    string
	HasTrailing bool
	Raw         string
}

// Param returns the i-th middle parameter or "".
func (c Command) Param(i int) string {
	if i < 0 || i >= len(c.Params) {
		return ""
	}
	return c.Params[i]
}

// ── Command-specific views ───────────────────────────────────────────

// Nickname is the argument of NICK.
func (c Command) Nickname() string { return c.Param(0) }

// Username is the first token of USER; hostname, servername and
// realname are accepted but not consumed.
func (c Command) Username() string { return c.Param(0) }

// Channel is the argument of JOIN, falling back to DefaultChannel.
func (c Command) Channel() string {
	if ch := c.Param(0); ch != "" {
		return ch
	}
	return DefaultChannel
}

// Reason is the optional QUIT reason.
func (c Command) Reason() string {
	if c.HasTrailing {
		return c.Trailing
	}
	return c.Param(0)
}

// Message is the sender/receiver/content triple carried by PRIVMSG.
type Message struct {
	Sender   string
	Receiver string
	Content  string
}

// Message returns the PRIVMSG view of the command.
func (c Command) Message() Message {
	return Message{
		Sender:   c.Prefix,
		Receiver: c.Param(0),
		Content:  c.Trailing,
	}
}
