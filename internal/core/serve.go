package core

import (
	"context"
	"net"

	"goirc/config"
	ierrors "goirc/internal/errors"
	"goirc/internal/gateway"
	"goirc/internal/metrics"
	"goirc/internal/relay"
	"goirc/util"
)

// ServeMode runs the relay and, when HTTPAddr is set, the HTTP gateway
// in front of it.
type ServeMode struct {
	Address        string
	HTTPAddr       string
	Relay          relay.Config
	AllowedOrigins []string
	Trace          bool
	Metrics        *metrics.Collector
	Logger         *util.Logger

	// Listener and HTTPListener, when set, are used instead of binding
	// Address and HTTPAddr.  Tests pass pre-bound loopback listeners.
	Listener     net.Listener
	HTTPListener net.Listener
}

// Run serves until ctx is cancelled.  A bind failure on either address
// is returned before anything is served.
func (m *ServeMode) Run(ctx context.Context) error {
	ln, err := m.listen(m.Listener, m.Address)
	if err != nil {
		return err
	}

	rcfg := m.Relay
	if m.Trace {
		tp := newTracerProvider(m.Logger.Named("trace"))
		defer tp.Shutdown(context.Background()) //nolint:errcheck
		rcfg.TracerProvider = tp
	}
	srv := relay.NewServer(rcfg, m.Logger.Named("relay"), m.Metrics)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gwDone := make(chan error, 1)
	if m.HTTPListener != nil || m.HTTPAddr != "" {
		gwCfg := gateway.Config{
			AllowedOrigins: m.AllowedOrigins,
			ShutdownGrace:  config.DefaultGracePeriod,
		}
		gw, err := gateway.New(gwCfg, srv, m.Metrics, m.Logger.Named("gateway"))
		if err != nil {
			ln.Close()
			return err
		}
		hln, err := m.listen(m.HTTPListener, m.HTTPAddr)
		if err != nil {
			ln.Close()
			return err
		}
		go func() { gwDone <- gw.Serve(ctx, hln) }()
	} else {
		gwDone <- nil
	}

	err = srv.Serve(ctx, ln)
	cancel()
	if gwErr := <-gwDone; err == nil {
		err = gwErr
	}
	if m.Metrics != nil {
		m.Logger.Verbose("final counters: %s", m.Metrics.JSON())
	}
	return err
}

func (m *ServeMode) listen(ln net.Listener, addr string) (net.Listener, error) {
	if ln != nil {
		return ln, nil
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, ierrors.Wrap("listen", addr, err)
	}
	return l, nil
}
