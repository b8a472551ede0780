// Package gateway is the relay's HTTP surface.  Browser clients reach
// the chat over a WebSocket on /ws; each socket is handed to the relay
// as an ordinary connection, so it shares dispatch, broadcast and the
// session registry with TCP clients.  /metrics exposes Prometheus series
// and /healthz a JSON snapshot.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ierrors "goirc/internal/errors"
	"goirc/internal/metrics"
	"goirc/internal/session"
	"goirc/internal/transport"
	"goirc/util"
)

// Relay is the part of the relay server the gateway needs.
type Relay interface {
	Attach(rwc io.ReadWriteCloser, remote string) (session.ID, error)
	ConnCount() int
	Sessions() []session.Session
}

// Config configures a Gateway.
type Config struct {
	// AllowedOrigins lists browser origins accepted on /ws in addition
	// to same-host pages.  "*" accepts any origin.
	AllowedOrigins []string
	// ShutdownGrace bounds graceful HTTP shutdown.  Zero uses 5s.
	ShutdownGrace time.Duration
}

// Gateway serves /ws, /metrics and /healthz.
type Gateway struct {
	relay    Relay
	metrics  *metrics.Collector
	logger   *util.Logger
	grace    time.Duration
	origins  originPolicy
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds a Gateway.  The collector's series, together with the Go
// runtime and process collectors, are registered on a private
// Prometheus registry.
func New(cfg Config, relay Relay, m *metrics.Collector, logger *util.Logger) (*Gateway, error) {
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	g := &Gateway{
		relay:   relay,
		metrics: m,
		logger:  logger,
		grace:   cfg.ShutdownGrace,
		origins: newOriginPolicy(cfg.AllowedOrigins, logger),
	}
	if g.grace <= 0 {
		g.grace = 5 * time.Second
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(g.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/ws", g.handleWS)
	r.Get("/healthz", g.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	g.router = r
	return g, nil
}

// Handler returns the routed handler.
func (g *Gateway) Handler() http.Handler { return g.router }

// ListenAndServe binds addr and serves until ctx is cancelled.
func (g *Gateway) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return ierrors.Wrap("listen", addr, err)
	}
	return g.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down
// gracefully.  WebSocket connections already handed to the relay are
// closed by the relay, not here.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	g.logger.Info("gateway listening on %s (/ws /metrics /healthz)", ln.Addr())

	select {
	case err := <-errc:
		return ierrors.Wrap("serve", ln.Addr().String(), err)
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), g.grace)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		g.logger.Warn("gateway shutdown: %v", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ── Handlers ─────────────────────────────────────────────────────────

func (g *Gateway) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		g.logger.Verbose("websocket upgrade from %s: %v", r.RemoteAddr, err)
		return
	}

	id, err := g.relay.Attach(transport.NewWSConn(ws), "ws:"+r.RemoteAddr)
	if err != nil {
		g.logger.Warn("attach websocket from %s: %v", r.RemoteAddr, err)
		return
	}
	g.logger.Verbose("websocket %s attached as %s", r.RemoteAddr, id)
}

// Health is the /healthz body.
type Health struct {
	Status      string           `json:"status"`
	Connections int              `json:"connections"`
	Sessions    int              `json:"sessions"`
	Registered  int              `json:"registered"`
	Metrics     metrics.Snapshot `json:"metrics"`
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	g.metrics.RecordHealthCheck()

	sessions := g.relay.Sessions()
	h := Health{
		Status:      "ok",
		Connections: g.relay.ConnCount(),
		Sessions:    len(sessions),
		Metrics:     g.metrics.Snapshot(),
	}
	for _, s := range sessions {
		if s.Registered() {
			h.Registered++
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h); err != nil {
		g.logger.Warn("healthz: %v", err)
	}
}

// logRequests logs each request at debug level through the relay
// logger.
func (g *Gateway) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		g.logger.Debug("%s %s %s -> %d (%s) [%s]",
			r.RemoteAddr, r.Method, r.URL.Path, ww.Status(),
			time.Since(start).Truncate(time.Microsecond), middleware.GetReqID(r.Context()))
	})
}
