// Package cmd wires up the CLI and dispatches to the serve and connect
// modes.
package cmd

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"goirc/config"
	"goirc/internal/core"
	"goirc/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X goirc/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected goirc mode until it ends or
// ctx is cancelled.
func Execute(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// options are the flags that do not map one-to-one onto config.Config.
type options struct {
	dryRun bool
	quiet  bool
}

func newRootCmd() *cobra.Command {
	cfg := config.Default()
	config.LoadFromEnv(cfg)
	opts := &options{}

	root := &cobra.Command{
		Use:   "goirc",
		Short: "A minimal IRC-style chat relay and terminal client",
		Long: `goirc relays chat lines between every connected client over a
single shared channel.

  goirc serve                       run the relay on :5050
  goirc serve --http :8080          also serve /ws, /healthz and /metrics
  goirc connect --nick Batman       chat from the terminal
  goirc connect --host ws://relay:8080/ws --nick Robin`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	addNetworkFlags(pf, cfg)
	// CountVarP zeroes its target; -v counts up from the env/default level.
	verbosity := cfg.Verbose
	pf.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")
	cfg.Verbose = verbosity
	pf.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print errors")
	pf.BoolVar(&opts.dryRun, "dry-run", false, "Validate configuration and exit")

	root.AddCommand(
		serveCmd(cfg, opts),
		connectCmd(cfg, opts),
		versionCmd(),
	)
	return root
}

// ── subcommands ──────────────────────────────────────────────────────

func serveCmd(cfg *config.Config, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat relay",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Mode = config.ModeServe
			return run(cmd, cfg, opts)
		},
	}
	addRelayFlags(cmd.Flags(), cfg)
	return cmd
}

func connectCmd(cfg *config.Config, opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Join the relay from this terminal",
		Long: `Connect to a relay, register, join the channel and chat.

--host may be a hostname or a ws:// / wss:// gateway URL.
Inside the session, /nick <name> re-registers and /quit [reason] leaves.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg.Mode = config.ModeConnect
			return run(cmd, cfg, opts)
		},
	}
	addClientFlags(cmd.Flags(), cfg)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "goirc %s (%s %s/%s)\n",
				version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// ── flag sets ────────────────────────────────────────────────────────

func addNetworkFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVarP(&cfg.Host, "host", "H", cfg.Host, "Bind host (serve) or relay host / ws:// URL (connect)")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Relay TCP port")
	fs.StringVarP(&cfg.Channel, "channel", "c", cfg.Channel, "Shared channel name")
}

func addRelayFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "Serve the WebSocket gateway and metrics on host:port")
	fs.StringSliceVar(&cfg.AllowedOrigins, "allow-origin", cfg.AllowedOrigins, "Extra browser origin accepted on /ws (repeatable, * for any)")
	fs.DurationVar(&cfg.WriteTimeout, "write-timeout", cfg.WriteTimeout, "Per-connection write bound; a peer that stops reading stalls broadcasts this long")
	fs.BoolVar(&cfg.CloseOnNickCollision, "close-on-collision", cfg.CloseOnNickCollision, "Close connections whose nickname is taken")
	fs.BoolVar(&cfg.RequireRegistration, "require-registration", cfg.RequireRegistration, "Ignore PRIVMSG from unregistered sessions")
	fs.BoolVar(&cfg.Trace, "trace", cfg.Trace, "Log a span for every dispatched command (shown with -vv)")
}

func addClientFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVarP(&cfg.Nickname, "nick", "n", cfg.Nickname, "Nickname (required)")
	fs.StringVarP(&cfg.Username, "user", "u", cfg.Username, "Username (defaults to the nickname)")
	fs.DurationVar(&cfg.DialTimeout, "dial-timeout", cfg.DialTimeout, "TCP/WebSocket connect timeout")
	fs.IntVar(&cfg.MaxRetries, "retries", cfg.MaxRetries, "Redial attempts after a refused connection")
}

// ── run ──────────────────────────────────────────────────────────────

func run(cmd *cobra.Command, cfg *config.Config, opts *options) error {
	if opts.quiet {
		cfg.Verbose = int(util.LogQuiet)
	}

	logger := util.NewLogger(cfg.Verbose)
	mode, err := core.Build(cfg, logger)
	if err != nil {
		return err
	}
	if opts.dryRun {
		printPlan(cmd.OutOrStdout(), mode)
		return nil
	}
	return mode.Run(cmd.Context())
}

func printPlan(w io.Writer, mode core.Mode) {
	switch m := mode.(type) {
	case *core.ServeMode:
		fmt.Fprintf(w, "serve: relay %s channel %s", m.Address, m.Relay.Channel)
		if m.HTTPAddr != "" {
			fmt.Fprintf(w, " gateway %s", m.HTTPAddr)
		}
		fmt.Fprintln(w)
	case *core.ConnectMode:
		fmt.Fprintf(w, "connect: %s as %s channel %s\n", m.Client.Address, m.Client.Nickname, m.Client.Channel)
	}
}
