package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Console is the user's side of the chat: a source of typed lines and a
// sink for rendered events.
type Console interface {
	ReadLine() (string, error)
	Println(s string)
}

// NewConsole returns a line-editing console when in is a terminal and a
// plain line reader otherwise.  restore must be called before exit to
// leave raw mode.
func NewConsole(in *os.File, out io.Writer, prompt string) (c Console, restore func(), err error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return NewPlainConsole(in, out), func() {}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, nil, fmt.Errorf("raw terminal: %w", err)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	t := term.NewTerminal(rw, prompt)
	if w, h, err := term.GetSize(fd); err == nil {
		t.SetSize(w, h) //nolint:errcheck
	}
	restore = func() { _ = term.Restore(fd, state) }
	return &termConsole{t: t}, restore, nil
}

type termConsole struct {
	t *term.Terminal
}

func (c *termConsole) ReadLine() (string, error) { return c.t.ReadLine() }

// Println redraws the prompt and any partial input below s.
func (c *termConsole) Println(s string) { fmt.Fprintln(c.t, s) }

// PlainConsole reads newline-terminated input without line editing.
type PlainConsole struct {
	sc  *bufio.Scanner
	mu  sync.Mutex
	out io.Writer
}

// NewPlainConsole wraps in and out.
func NewPlainConsole(in io.Reader, out io.Writer) *PlainConsole {
	return &PlainConsole{sc: bufio.NewScanner(in), out: out}
}

func (c *PlainConsole) ReadLine() (string, error) {
	if c.sc.Scan() {
		return c.sc.Text(), nil
	}
	if err := c.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (c *PlainConsole) Println(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, s)
}

// ── Session ──────────────────────────────────────────────────────────

// Run drives an interactive session on an already-connected client:
// it registers, joins, then relays console input until the user types
// /quit, input ends, ctx is cancelled or the relay hangs up.
//
// Commands: /quit [reason], /nick <name>.  Everything else is sent as a
// message.
func Run(ctx context.Context, c *Client, con Console) error {
	if err := c.Register(); err != nil {
		return err
	}
	if err := c.Join(""); err != nil {
		return err
	}
	con.Println(fmt.Sprintf("*** joined %s as %s (/quit to leave)", c.Channel(), c.Nickname()))

	recvErr := make(chan error, 1)
	go func() {
		recvErr <- c.ReceiveLoop(ctx, func(ev Event) { con.Println(ev.String()) })
	}()

	type input struct {
		line string
		err  error
	}
	inputs := make(chan input)
	go func() {
		for {
			line, err := con.ReadLine()
			select {
			case inputs <- input{line, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			c.Close("interrupted") //nolint:errcheck
			<-recvErr
			return nil

		case err := <-recvErr:
			con.Println("*** disconnected")
			c.Close("") //nolint:errcheck
			return err

		case in := <-inputs:
			if in.err != nil {
				c.Close("") //nolint:errcheck
				<-recvErr
				if in.err == io.EOF {
					return nil
				}
				return in.err
			}
			done, err := handleInput(c, con, in.line)
			if err != nil {
				con.Println("*** " + err.Error())
			}
			if done {
				<-recvErr
				return nil
			}
		}
	}
}

// handleInput acts on one typed line and reports whether the session
// is over.
func handleInput(c *Client, con Console, line string) (bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return false, nil
	}

	if strings.HasPrefix(line, "/") {
		cmd, arg, _ := strings.Cut(line[1:], " ")
		arg = strings.TrimSpace(arg)
		switch strings.ToLower(cmd) {
		case "quit":
			return true, c.Close(arg)
		case "nick":
			if arg == "" || strings.ContainsAny(arg, " :") {
				return false, fmt.Errorf("usage: /nick <name>")
			}
			return false, c.Rename(arg)
		default:
			return false, fmt.Errorf("unknown command /%s", cmd)
		}
	}

	if err := c.SendLine(line); err != nil {
		return false, err
	}
	// The relay never echoes a message to its sender.
	con.Println(fmt.Sprintf("<%s> %s", c.Nickname(), line))
	return false, nil
}
