package relay

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	ierrors "goirc/internal/errors"
	"goirc/internal/metrics"
	"goirc/internal/session"
	"goirc/internal/wire"
	"goirc/util"
)

// Config configures a Server.
type Config struct {
	Options
	// WriteTimeout bounds every write to a client.  Zero disables it.
	WriteTimeout time.Duration
	// MaxLineLength caps a buffered partial line.  Zero uses
	// wire.MaxLineLength.
	MaxLineLength int
}

var errAlreadyServing = ierrors.New("relay: server already serving")

type eventKind int

const (
	evAttach eventKind = iota
	evData
	evClosed
	evListenFailed
)

type event struct {
	kind eventKind
	id   session.ID
	conn *Conn
	data []byte
	err  error
}

// Server is the multiplexer.  Connections arrive through Serve's
// listener or through Attach; each gets a reader goroutine, and a single
// loop goroutine frames, dispatches and broadcasts.
type Server struct {
	cfg         Config
	logger      *util.Logger
	metrics     *metrics.Collector
	registry    *session.Registry
	dispatcher  *Dispatcher
	broadcaster *Broadcaster
	bufs        *util.BufPool

	events chan event
	done   chan struct{}
	nextID atomic.Uint64
	active atomic.Int64

	running atomic.Bool
	wg      sync.WaitGroup

	// mu guards closed against posters racing with shutdown.
	mu     sync.RWMutex
	closed bool

	// Owned by the loop goroutine.
	conns  map[session.ID]*Conn
	reaped []session.ID
}

// NewServer returns a Server ready for Serve.  m may be nil.
func NewServer(cfg Config, logger *util.Logger, m *metrics.Collector) *Server {
	if cfg.MaxLineLength <= 0 {
		cfg.MaxLineLength = wire.MaxLineLength
	}
	reg := session.NewRegistry()
	return &Server{
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		registry:    reg,
		dispatcher:  NewDispatcher(reg, cfg.Options, logger, m),
		broadcaster: NewBroadcaster(cfg.WriteTimeout, logger, m),
		bufs:        util.NewBufPool(wire.ReadChunkSize),
		events:      make(chan event, 64),
		done:        make(chan struct{}),
		conns:       make(map[session.ID]*Conn),
	}
}

// ListenAndServe binds addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ierrors.Wrap("listen", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections from ln and runs the event loop until ctx
// is cancelled or the listener fails.  On return every tracked
// connection and ln are closed.  A Server can be served once.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		ln.Close()
		return errAlreadyServing
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.logger.Info("listening on %s (%s)", ln.Addr(), s.cfg.Options)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		ln.Close()
	}()
	go s.acceptLoop(ctx, ln)

	err := s.loop(ctx)
	cancel()
	s.wg.Wait()
	s.logger.Verbose("server stopped")
	return err
}

// Attach hands an already-established stream to the loop, as if it had
// been accepted from the listener.  It returns ErrServerClosed (and
// closes rwc) once the server has stopped.
func (s *Server) Attach(rwc io.ReadWriteCloser, remote string) (session.ID, error) {
	id := session.ID(s.nextID.Add(1))
	c := newConn(id, rwc, remote, s.cfg.MaxLineLength)
	if !s.post(event{kind: evAttach, id: id, conn: c}) {
		rwc.Close()
		return 0, ierrors.ErrServerClosed
	}
	return id, nil
}

// Sessions returns a snapshot of every session, ordered by id.
func (s *Server) Sessions() []session.Session { return s.registry.Snapshot() }

// ConnCount returns the number of open connections.
func (s *Server) ConnCount() int { return int(s.active.Load()) }

// Done is closed once the loop has stopped.
func (s *Server) Done() <-chan struct{} { return s.done }

// ── Goroutines ───────────────────────────────────────────────────────

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	defer s.wg.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.logger.Warn("accept: %v", err)
				continue
			}
			s.post(event{kind: evListenFailed, err: ierrors.Wrap("accept", ln.Addr().String(), err)})
			return
		}
		if _, err := s.Attach(nc, util.RemoteAddr(nc)); err != nil {
			return
		}
	}
}

// readLoop blocks in Read and forwards each chunk, in order, to the loop.
func (s *Server) readLoop(c *Conn) {
	defer s.wg.Done()
	buf := s.bufs.Get()
	defer s.bufs.Put(buf)

	for {
		n, err := c.rwc.Read(*buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, (*buf)[:n])
			if !s.post(event{kind: evData, id: c.id, data: data}) {
				return
			}
		}
		if err == nil && n == 0 {
			err = io.EOF
		}
		if err != nil {
			s.post(event{kind: evClosed, id: c.id, err: err})
			return
		}
	}
}

func (s *Server) post(ev event) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

// ── Event loop ───────────────────────────────────────────────────────

func (s *Server) loop(ctx context.Context) error {
	defer s.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			switch ev.kind {
			case evAttach:
				s.open(ev.conn)
			case evData:
				s.handleData(ctx, ev.id, ev.data)
			case evClosed:
				s.peerClosed(ev.id, ev.err)
			case evListenFailed:
				s.metrics.RecordError(ev.err.Error())
				return ev.err
			}
			s.reap()
		}
	}
}

func (s *Server) open(c *Conn) {
	s.conns[c.id] = c
	s.active.Add(1)
	s.metrics.ConnectionOpened()
	s.logger.Verbose("%s connected from %s", c.id, c.remote)

	s.wg.Add(1)
	go s.readLoop(c)
}

// handleData frames one chunk and runs every complete line through the
// dispatcher before the loop looks at any other event.
func (s *Server) handleData(ctx context.Context, id session.ID, data []byte) {
	c, ok := s.conns[id]
	if !ok || c.state != stateOpen {
		return
	}
	s.metrics.BytesReceived(int64(len(data)))

	lines, err := c.framer.Feed(data)
	if err != nil {
		s.logger.Warn("%s: %v, discarded", id, err)
	}
	for _, line := range lines {
		if c.state != stateOpen {
			return
		}
		s.logger.Debug("%s >> %q", id, line)
		cmd, err := wire.Parse(line)
		if err != nil {
			s.logger.Verbose("%s: %v", id, err)
			continue
		}
		s.metrics.CommandDispatched()
		s.apply(id, s.dispatcher.Dispatch(ctx, id, cmd))
	}
}

// peerClosed treats a failed or exhausted read as an implicit QUIT.
func (s *Server) peerClosed(id session.ID, err error) {
	if _, ok := s.conns[id]; !ok {
		return
	}
	reason := DisconnectReason
	if !util.IsHarmless(err) {
		s.logger.Warn("read from %s: %v", id, err)
		s.metrics.RecordError(err.Error())
		reason = err.Error()
	}
	s.drop(id, reason, true)
}

func (s *Server) apply(origin session.ID, res Result) {
	for _, out := range res.Out {
		failed := s.broadcaster.Deliver(s.conns, origin, out)
		s.reaped = append(s.reaped, failed...)
	}
	if res.Close {
		s.drop(origin, res.Reason, false)
	}
}

// drop closes and forgets id.  When announce is set the session is
// purged through the dispatcher so peers see a departure line.  Calling
// it for an id that is already gone does nothing.
func (s *Server) drop(id session.ID, reason string, announce bool) {
	c, ok := s.conns[id]
	if !ok {
		return
	}
	c.state = stateClosing
	delete(s.conns, id)
	c.rwc.Close()
	s.active.Add(-1)
	s.metrics.ConnectionClosed()
	s.logger.Verbose("%s closed: %s", id, reason)

	if announce {
		s.apply(id, s.dispatcher.Disconnect(id, reason))
		return
	}
	s.registry.Remove(id)
}

// reap removes connections whose writes failed.  Their departure lines
// may fail further writes, which are reaped in the same pass.
func (s *Server) reap() {
	for len(s.reaped) > 0 {
		id := s.reaped[0]
		s.reaped = s.reaped[1:]
		s.drop(id, "write failed", true)
	}
}

func (s *Server) shutdown() {
	close(s.done)

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

drain:
	for {
		select {
		case ev := <-s.events:
			if ev.kind == evAttach {
				ev.conn.rwc.Close()
			}
		default:
			break drain
		}
	}

	for id, c := range s.conns {
		c.rwc.Close()
		s.registry.Remove(id)
		s.metrics.ConnectionClosed()
	}
	s.conns = map[session.ID]*Conn{}
	s.active.Store(0)
	s.reaped = nil
}
