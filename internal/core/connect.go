package core

import (
	"context"
	"fmt"
	"io"
	"os"

	"goirc/internal/client"
	"goirc/util"
)

// ConnectMode dials a relay and runs an interactive chat session on the
// process's terminal.
type ConnectMode struct {
	Client client.Config
	Logger *util.Logger

	// Console defaults to a terminal (or plain line) console on
	// os.Stdin/os.Stdout when nil.  Override in tests for
	// deterministic I/O.
	Console client.Console
	Stdout  io.Writer
}

// Run connects, registers, joins and hands the session to the console.
// The connection is closed (with QUIT) when Run returns.
func (m *ConnectMode) Run(ctx context.Context) error {
	c := client.New(m.Client, m.Logger.Named("client"))
	if err := c.Connect(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", m.Client.Address, err)
	}
	defer c.Close("") //nolint:errcheck

	con := m.Console
	if con == nil {
		out := m.Stdout
		if out == nil {
			out = os.Stdout
		}
		var (
			restore func()
			err     error
		)
		con, restore, err = client.NewConsole(os.Stdin, out, "> ")
		if err != nil {
			return err
		}
		defer restore()
	}
	return client.Run(ctx, c, con)
}
