package relay

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ierrors "goirc/internal/errors"
	"goirc/internal/metrics"
	"goirc/internal/session"
	"goirc/internal/wire"
	"goirc/util"
)

// TracerName is the instrumentation scope of dispatch spans.
const TracerName = "goirc/relay"

// DisconnectReason is the departure reason used when a peer goes away
// without sending QUIT.
const DisconnectReason = "connection closed"

// Options tune dispatcher policy.
type Options struct {
	// Channel is used when JOIN carries no argument and as the last
	// fallback PRIVMSG receiver.
	Channel string
	// CloseOnNickCollision closes the offending connection after the
	// NICKNAMEINUSE token instead of only dropping its session.
	CloseOnNickCollision bool
	// RequireRegistration ignores PRIVMSG from sessions that are not
	// yet Registered.
	RequireRegistration bool
	// TracerProvider receives one span per dispatched command.  Nil
	// uses the global provider.
	TracerProvider trace.TracerProvider
}

func (o Options) channel() string {
	if o.Channel == "" {
		return wire.DefaultChannel
	}
	return o.Channel
}

// Result is the effect of dispatching one command: lines to deliver in
// order, and whether the originating connection must be closed.
type Result struct {
	Out    []Outbound
	Close  bool
	Reason string
}

func (r *Result) emit(line []byte, p Policy) {
	r.Out = append(r.Out, Outbound{Line: line, Policy: p})
}

type handlerFunc func(ctx context.Context, id session.ID, cmd wire.Command) Result

// Dispatcher applies parsed commands to the session registry.  It never
// touches connections; the caller delivers the returned Result.
type Dispatcher struct {
	registry *session.Registry
	opts     Options
	logger   *util.Logger
	metrics  *metrics.Collector
	tracer   trace.Tracer
	handlers map[wire.Kind]handlerFunc
}

// NewDispatcher returns a Dispatcher over reg.
func NewDispatcher(reg *session.Registry, opts Options, logger *util.Logger, m *metrics.Collector) *Dispatcher {
	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	d := &Dispatcher{
		registry: reg,
		opts:     opts,
		logger:   logger,
		metrics:  m,
		tracer:   tp.Tracer(TracerName),
	}
	d.handlers = map[wire.Kind]handlerFunc{
		wire.Nick:    d.nick,
		wire.User:    d.user,
		wire.Join:    d.join,
		wire.Privmsg: d.privmsg,
		wire.Quit:    d.quit,
	}
	return d
}

// Dispatch runs cmd for connection id.  Unknown commands are no-ops.
func (d *Dispatcher) Dispatch(ctx context.Context, id session.ID, cmd wire.Command) Result {
	ctx, span := d.tracer.Start(ctx, "dispatch "+cmd.Kind.String(),
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("irc.command", cmd.Keyword),
			attribute.String("irc.connection", id.String()),
		))
	defer span.End()

	h, ok := d.handlers[cmd.Kind]
	if !ok {
		d.logger.Debug("%s: ignoring %q", id, cmd.Raw)
		return Result{}
	}
	res := h(ctx, id, cmd)

	span.SetAttributes(
		attribute.Int("irc.outbound", len(res.Out)),
		attribute.Bool("irc.close", res.Close),
	)
	return res
}

// Disconnect handles a connection that went away without QUIT.  It is
// safe to call for an id whose session is already gone.
func (d *Dispatcher) Disconnect(id session.ID, reason string) Result {
	var res Result
	s, ok := d.registry.Remove(id)
	if !ok || s.Nickname == "" {
		return res
	}
	d.logger.Verbose("%s (%s) disconnected: %s", id, s.Nickname, reason)
	res.emit(wire.Departure(s.Nickname, d.channelOf(s), reason), ExcludeSender)
	return res
}

// ── Handlers ─────────────────────────────────────────────────────────

func (d *Dispatcher) nick(ctx context.Context, id session.ID, cmd wire.Command) Result {
	var res Result
	before, after, err := d.registry.ClaimNickname(id, cmd.Nickname())
	if err != nil {
		d.metrics.NickCollision()
		d.registry.Remove(id)
		d.logger.Verbose("%s: nickname %q in use", id, cmd.Nickname())
		trace.SpanFromContext(ctx).SetStatus(codes.Error, err.Error())

		// A registered user renaming into a taken nickname loses the
		// session the others were welcomed to.
		if before.Registered() {
			res.emit(wire.Departure(before.Nickname, d.channelOf(before), err.Error()), ExcludeSender)
		}
		res.emit(wire.Token(wire.NicknameInUse), SenderOnly)
		if d.opts.CloseOnNickCollision {
			res.Close = true
			res.Reason = err.Error()
		}
		return res
	}
	d.welcome(&res, before, after)
	return res
}

func (d *Dispatcher) user(_ context.Context, id session.ID, cmd wire.Command) Result {
	var res Result
	before, _ := d.registry.Find(id)
	after := d.registry.Upsert(id, func(s *session.Session) {
		s.Username = cmd.Username()
	})
	d.welcome(&res, before, after)
	return res
}

func (d *Dispatcher) join(_ context.Context, id session.ID, cmd wire.Command) Result {
	var res Result
	channel := d.opts.channel()
	if cmd.Param(0) != "" {
		channel = cmd.Channel()
	}
	before, _ := d.registry.Find(id)
	after := d.registry.Upsert(id, func(s *session.Session) {
		s.Channel = channel
	})
	d.welcome(&res, before, after)
	return res
}

func (d *Dispatcher) privmsg(ctx context.Context, id session.ID, cmd wire.Command) Result {
	var res Result
	s, _ := d.registry.Find(id)
	if d.opts.RequireRegistration && !s.Registered() {
		d.logger.Verbose("%s: %v, dropping PRIVMSG", id, ierrors.ErrNotRegistered)
		trace.SpanFromContext(ctx).AddEvent("unregistered sender")
		return res
	}

	msg := cmd.Message()
	sender := msg.Sender
	if sender == "" {
		sender = s.Nickname
	}
	if sender == "" {
		d.logger.Verbose("%s: PRIVMSG without sender, ignored", id)
		return res
	}
	receiver := msg.Receiver
	if receiver == "" {
		receiver = d.channelOf(s)
	}

	res.emit(wire.FormatPrivmsg(sender, receiver, msg.Content), ExcludeSender)
	return res
}

func (d *Dispatcher) quit(_ context.Context, id session.ID, cmd wire.Command) Result {
	res := Result{Close: true, Reason: cmd.Reason()}
	s, ok := d.registry.Remove(id)
	if !ok {
		d.logger.Verbose("%s quit without a session: %q", id, cmd.Reason())
		return res
	}

	name := s.Nickname
	if name == "" {
		name = id.String()
	}
	d.logger.Verbose("%s (%s) quit: %q", id, name, cmd.Reason())
	res.emit(wire.Departure(name, d.channelOf(s), cmd.Reason()), ExcludeSender)
	return res
}

// welcome appends the welcome line when the transition before → after
// is the one that completed registration.
func (d *Dispatcher) welcome(res *Result, before, after session.Session) {
	if before.Registered() || !after.Registered() {
		return
	}
	d.metrics.Registration()
	d.logger.Verbose("%s registered as %s on %s", after.ID, after.Nickname, after.Channel)
	res.emit(wire.Welcome(after.Nickname, after.Channel), IncludeAll)
}

func (d *Dispatcher) channelOf(s session.Session) string {
	if s.Channel != "" {
		return s.Channel
	}
	return d.opts.channel()
}

// String describes the active policy, for startup logging.
func (o Options) String() string {
	return fmt.Sprintf("channel=%s close-on-collision=%t require-registration=%t",
		o.channel(), o.CloseOnNickCollision, o.RequireRegistration)
}
