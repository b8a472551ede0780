// Package client is the chat client: it dials a relay, registers a
// nickname, joins a channel, relays the user's lines as PRIVMSG and
// surfaces what the relay sends back.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	ierrors "goirc/internal/errors"
	"goirc/internal/retry"
	"goirc/internal/transport"
	"goirc/internal/wire"
	"goirc/util"
)

// QuitReason is sent when the client closes without a user-supplied
// reason.
const QuitReason = "client exited"

// Config configures a Client.
type Config struct {
	// Address is host:port for TCP or a ws:// URL for the gateway.
	Address  string
	Nickname string
	// Username defaults to Nickname.
	Username string
	// Hostname is echoed in USER; defaults to "localhost".
	Hostname string
	Channel  string

	DialTimeout  time.Duration
	WriteTimeout time.Duration
	MaxRetries   int
}

// EventKind classifies an inbound line.
type EventKind int

const (
	// EventMessage is a relayed PRIVMSG, including server notices.
	EventMessage EventKind = iota
	// EventNicknameInUse reports that the last NICK was rejected and the
	// session was dropped.
	EventNicknameInUse
	// EventOther is any line the client does not interpret.
	EventOther
)

// Event is one line received from the relay.
type Event struct {
	Kind    EventKind
	Sender  string
	Channel string
	Content string
	Raw     string
}

// Client is a single connection to a relay.  Send methods are safe for
// concurrent use with ReceiveLoop.
type Client struct {
	logger  *util.Logger
	dialer  transport.Dialer
	backoff *retry.Backoff

	mu   sync.Mutex
	cfg  Config
	conn net.Conn
	quit bool
}

// New returns an unconnected Client.
func New(cfg Config, logger *util.Logger) *Client {
	if cfg.Username == "" {
		cfg.Username = cfg.Nickname
	}
	if cfg.Hostname == "" {
		cfg.Hostname = "localhost"
	}
	if cfg.Channel == "" {
		cfg.Channel = wire.DefaultChannel
	}

	c := &Client{
		cfg:     cfg,
		logger:  logger,
		dialer:  transport.For(cfg.Address, cfg.DialTimeout),
		backoff: retry.DialBackoff(cfg.MaxRetries),
	}
	c.backoff.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.logger.Warn("connect attempt %d failed: %v (retrying in %s)", attempt, err, wait.Truncate(time.Millisecond))
	}
	return c
}

// Nickname returns the nickname currently in use.
func (c *Client) Nickname() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Nickname
}

// Channel returns the joined channel.
func (c *Client) Channel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Channel
}

// Connect dials the relay, retrying refused or timed-out attempts with
// exponential backoff.
func (c *Client) Connect(ctx context.Context) error {
	return c.backoff.Do(ctx, func(attempt int) error {
		c.logger.Verbose("connecting to %s (attempt %d)", c.cfg.Address, attempt)
		conn, err := c.dialer.Dial(ctx, c.cfg.Address)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.quit = false
		c.mu.Unlock()
		c.logger.Info("connected to %s", c.cfg.Address)
		return nil
	})
}

// Register sends NICK followed by USER.
func (c *Client) Register() error {
	c.mu.Lock()
	nick, user, host := c.cfg.Nickname, c.cfg.Username, c.cfg.Hostname
	c.mu.Unlock()

	if err := c.send(wire.Command{Kind: wire.Nick, Params: []string{nick}}); err != nil {
		return err
	}
	return c.send(wire.Command{
		Kind:        wire.User,
		Params:      []string{user, host, host},
		Trailing:    user,
		HasTrailing: true,
	})
}

// Join sends JOIN for channel (the configured one when empty).
func (c *Client) Join(channel string) error {
	c.mu.Lock()
	if channel == "" {
		channel = c.cfg.Channel
	}
	c.cfg.Channel = channel
	c.mu.Unlock()
	return c.send(wire.Command{Kind: wire.Join, Params: []string{channel}})
}

// Rename registers again under nick.  After a NICKNAMEINUSE the relay
// has dropped the session, so USER and JOIN are repeated too.
func (c *Client) Rename(nick string) error {
	c.mu.Lock()
	c.cfg.Nickname = nick
	c.mu.Unlock()
	if err := c.Register(); err != nil {
		return err
	}
	return c.Join("")
}

// SendLine relays content to the channel as this client's nickname.
func (c *Client) SendLine(content string) error {
	c.mu.Lock()
	nick, channel := c.cfg.Nickname, c.cfg.Channel
	c.mu.Unlock()
	return c.write(wire.FormatPrivmsg(nick, channel, content))
}

// ReceiveLoop reads from the relay and calls handle for each line until
// the relay closes the connection (nil), ctx is cancelled (ctx.Err())
// or the read fails.
func (c *Client) ReceiveLoop(ctx context.Context, handle func(Event)) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ierrors.ErrServerClosed
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	framer := wire.NewFramer(0)
	buf := make([]byte, wire.ReadChunkSize)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			lines, ferr := framer.Feed(buf[:n])
			if ferr != nil {
				c.logger.Warn("%v", ferr)
			}
			for _, line := range lines {
				handle(classify(line))
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if util.IsHarmless(err) {
				return nil
			}
			return ierrors.Wrap("read", c.cfg.Address, err)
		}
	}
}

// Close sends QUIT with reason (QuitReason when empty) and closes the
// connection.  Calling Close more than once is harmless.
func (c *Client) Close(reason string) error {
	if reason == "" {
		reason = QuitReason
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.quit {
		return nil
	}
	c.quit = true

	line := wire.Format(wire.Command{Kind: wire.Quit, Trailing: reason, HasTrailing: true})
	_, werr := util.WriteTimeout(c.conn, line, c.writeTimeout())
	cerr := c.conn.Close()
	if werr != nil && !util.IsHarmless(werr) {
		return ierrors.Wrap("write", c.cfg.Address, werr)
	}
	if cerr != nil && !util.IsHarmless(cerr) {
		return cerr
	}
	return nil
}

func (c *Client) send(cmd wire.Command) error {
	return c.write(wire.Format(cmd))
}

func (c *Client) write(line []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.quit {
		return ierrors.ErrServerClosed
	}
	c.logger.Debug("<< %q", line)
	if _, err := util.WriteTimeout(c.conn, line, c.writeTimeout()); err != nil {
		return ierrors.Wrap("write", c.cfg.Address, err)
	}
	return nil
}

func (c *Client) writeTimeout() time.Duration {
	if c.cfg.WriteTimeout > 0 {
		return c.cfg.WriteTimeout
	}
	return 5 * time.Second
}

// classify turns an inbound line into an Event.
func classify(line string) Event {
	if line == wire.NicknameInUse {
		return Event{Kind: EventNicknameInUse, Raw: line}
	}
	cmd, err := wire.Parse(line)
	if err != nil || cmd.Kind != wire.Privmsg {
		return Event{Kind: EventOther, Raw: line}
	}
	msg := cmd.Message()
	return Event{
		Kind:    EventMessage,
		Sender:  msg.Sender,
		Channel: msg.Receiver,
		Content: msg.Content,
		Raw:     line,
	}
}

// String renders an event for display.
func (e Event) String() string {
	switch e.Kind {
	case EventMessage:
		if e.Sender == wire.ServerName {
			return fmt.Sprintf("*** %s", e.Content)
		}
		return fmt.Sprintf("<%s> %s", e.Sender, e.Content)
	case EventNicknameInUse:
		return "*** nickname already in use; pick another with /nick <name>"
	}
	return e.Raw
}
