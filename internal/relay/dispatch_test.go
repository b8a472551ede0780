package relay

import (
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"goirc/internal/session"
	"goirc/internal/wire"
	"goirc/util"
)

func newTestDispatcher(opts Options) (*Dispatcher, *session.Registry) {
	reg := session.NewRegistry()
	return NewDispatcher(reg, opts, util.NewLogger(0), nil), reg
}

func dispatch(t *testing.T, d *Dispatcher, id session.ID, line string) Result {
	t.Helper()
	cmd, err := wire.Parse(line)
	if err != nil {
		t.Fatalf("Parse(%q): %v", line, err)
	}
	return d.Dispatch(context.Background(), id, cmd)
}

const welcomeBatman = ":SERVER PRIVMSG #global :Welcome Batman to our amazing channel\n"

func TestDispatch_RegistrationWelcome(t *testing.T) {
	d, reg := newTestDispatcher(Options{})

	if res := dispatch(t, d, 1, "NICK Batman"); len(res.Out) != 0 {
		t.Fatalf("NICK produced %d lines", len(res.Out))
	}
	if res := dispatch(t, d, 1, "USER Duke host host :Duke"); len(res.Out) != 0 {
		t.Fatalf("USER produced %d lines", len(res.Out))
	}
	res := dispatch(t, d, 1, "JOIN #global")
	if len(res.Out) != 1 {
		t.Fatalf("JOIN produced %d lines, want 1", len(res.Out))
	}
	if got := string(res.Out[0].Line); got != welcomeBatman {
		t.Errorf("welcome = %q, want %q", got, welcomeBatman)
	}
	if res.Out[0].Policy != IncludeAll {
		t.Errorf("policy = %s, want include-all", res.Out[0].Policy)
	}

	s, ok := reg.Find(1)
	if !ok || s.State() != session.Registered {
		t.Errorf("session = %+v, want registered", s)
	}
}

func TestDispatch_WelcomeOnceInAnyOrder(t *testing.T) {
	orders := [][]string{
		{"NICK Batman", "USER Duke h h :Duke", "JOIN #global"},
		{"JOIN #global", "USER Duke h h :Duke", "NICK Batman"},
		{"USER Duke h h :Duke", "JOIN #global", "NICK Batman"},
		{"JOIN", "NICK Batman", "USER Duke h h :Duke"},
	}

	for _, order := range orders {
		t.Run(strings.Join(order, "|"), func(t *testing.T) {
			d, _ := newTestDispatcher(Options{})
			welcomes := 0
			for i, line := range order {
				res := dispatch(t, d, 7, line)
				welcomes += len(res.Out)
				if i < len(order)-1 && len(res.Out) != 0 {
					t.Errorf("welcome after %q, before registration completed", line)
				}
			}
			// Further changes to a registered session never re-welcome.
			welcomes += len(dispatch(t, d, 7, "JOIN #global").Out)
			welcomes += len(dispatch(t, d, 7, "NICK Bruce").Out)
			welcomes += len(dispatch(t, d, 7, "USER Wayne h h :W").Out)

			if welcomes != 1 {
				t.Errorf("welcome emitted %d times, want 1", welcomes)
			}
		})
	}
}

func TestDispatch_JoinDefaultsChannel(t *testing.T) {
	d, reg := newTestDispatcher(Options{Channel: "#lobby"})
	dispatch(t, d, 1, "JOIN")
	if s, _ := reg.Find(1); s.Channel != "#lobby" {
		t.Errorf("channel = %q, want #lobby", s.Channel)
	}

	d, reg = newTestDispatcher(Options{})
	dispatch(t, d, 1, "JOIN")
	if s, _ := reg.Find(1); s.Channel != wire.DefaultChannel {
		t.Errorf("channel = %q, want %s", s.Channel, wire.DefaultChannel)
	}
}

func TestDispatch_NicknameCollision(t *testing.T) {
	for _, closeConn := range []bool{false, true} {
		d, reg := newTestDispatcher(Options{CloseOnNickCollision: closeConn})

		dispatch(t, d, 1, "NICK Batman")
		dispatch(t, d, 2, "USER Robin h h :R")
		res := dispatch(t, d, 2, "NICK Batman")

		if len(res.Out) != 1 || string(res.Out[0].Line) != "NICKNAMEINUSE\n" {
			t.Fatalf("close=%t: out = %+v, want NICKNAMEINUSE", closeConn, res.Out)
		}
		if res.Out[0].Policy != SenderOnly {
			t.Errorf("close=%t: policy = %s, want sender-only", closeConn, res.Out[0].Policy)
		}
		if res.Close != closeConn {
			t.Errorf("close=%t: Result.Close = %t", closeConn, res.Close)
		}

		if s, _ := reg.Find(1); s.Nickname != "Batman" {
			t.Errorf("first registrant lost nickname: %+v", s)
		}
		if _, ok := reg.Find(2); ok {
			t.Error("colliding session should be discarded")
		}
	}
}

func TestDispatch_NickSameOwner(t *testing.T) {
	d, reg := newTestDispatcher(Options{})
	dispatch(t, d, 1, "NICK Batman")
	if res := dispatch(t, d, 1, "NICK Batman"); len(res.Out) != 0 {
		t.Errorf("re-claiming own nickname produced %q", res.Out[0].Line)
	}
	if reg.Len() != 1 {
		t.Errorf("registry len = %d, want 1", reg.Len())
	}
}

func TestDispatch_NicknamesCaseSensitive(t *testing.T) {
	d, _ := newTestDispatcher(Options{})
	dispatch(t, d, 1, "NICK Batman")
	if res := dispatch(t, d, 2, "NICK batman"); len(res.Out) != 0 {
		t.Errorf("batman collided with Batman: %q", res.Out[0].Line)
	}
}

func TestDispatch_Privmsg(t *testing.T) {
	tests := []struct {
		name  string
		opts  Options
		setup []string
		line  string
		want  string // "" means nothing is relayed
	}{
		{"prefixed", Options{}, nil,
			":Batman PRIVMSG #global :hello", ":Batman PRIVMSG #global :hello\n"},
		{"bare sender", Options{}, nil,
			"Batman PRIVMSG #global :hello", ":Batman PRIVMSG #global :hello\n"},
		{"nickname fallback", Options{}, []string{"NICK Robin"},
			"PRIVMSG #global :hi", ":Robin PRIVMSG #global :hi\n"},
		{"channel fallback", Options{}, []string{"NICK Robin", "JOIN #cave"},
			"PRIVMSG :hi", ":Robin PRIVMSG #cave :hi\n"},
		{"default channel fallback", Options{}, []string{"NICK Robin"},
			"PRIVMSG :hi", ":Robin PRIVMSG #global :hi\n"},
		{"no sender", Options{}, nil,
			"PRIVMSG #global :hi", ""},
		{"unregistered rejected", Options{RequireRegistration: true}, []string{"NICK Robin"},
			":Robin PRIVMSG #global :hi", ""},
		{"registered accepted", Options{RequireRegistration: true},
			[]string{"NICK Robin", "USER r h h :R", "JOIN #global"},
			":Robin PRIVMSG #global :hi", ":Robin PRIVMSG #global :hi\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _ := newTestDispatcher(tt.opts)
			for _, l := range tt.setup {
				dispatch(t, d, 3, l)
			}
			res := dispatch(t, d, 3, tt.line)
			if tt.want == "" {
				if len(res.Out) != 0 {
					t.Errorf("relayed %q, want nothing", res.Out[0].Line)
				}
				return
			}
			if len(res.Out) != 1 {
				t.Fatalf("out = %d lines, want 1", len(res.Out))
			}
			if got := string(res.Out[0].Line); got != tt.want {
				t.Errorf("line = %q, want %q", got, tt.want)
			}
			if res.Out[0].Policy != ExcludeSender {
				t.Errorf("policy = %s, want exclude-sender", res.Out[0].Policy)
			}
		})
	}
}

func TestDispatch_Quit(t *testing.T) {
	d, reg := newTestDispatcher(Options{})
	dispatch(t, d, 1, "NICK Batman")

	res := dispatch(t, d, 1, "QUIT:brb")
	if !res.Close || res.Reason != "brb" {
		t.Errorf("Close=%t Reason=%q, want true brb", res.Close, res.Reason)
	}
	if len(res.Out) != 1 {
		t.Fatalf("out = %d lines, want 1", len(res.Out))
	}
	want := ":SERVER PRIVMSG #global :Batman has quit (brb)\n"
	if got := string(res.Out[0].Line); got != want {
		t.Errorf("departure = %q, want %q", got, want)
	}
	if res.Out[0].Policy != ExcludeSender {
		t.Errorf("policy = %s, want exclude-sender", res.Out[0].Policy)
	}
	if reg.Len() != 0 {
		t.Errorf("registry len = %d after QUIT", reg.Len())
	}

	// The nickname is free again.
	if res := dispatch(t, d, 2, "NICK Batman"); len(res.Out) != 0 {
		t.Errorf("nickname still held after QUIT: %q", res.Out[0].Line)
	}
}

func TestDispatch_QuitIdempotent(t *testing.T) {
	d, _ := newTestDispatcher(Options{})
	dispatch(t, d, 1, "NICK Batman")
	dispatch(t, d, 1, "QUIT")

	if res := d.Disconnect(1, DisconnectReason); len(res.Out) != 0 || res.Close {
		t.Errorf("Disconnect after QUIT = %+v, want no-op", res)
	}
	if res := d.Disconnect(99, DisconnectReason); len(res.Out) != 0 {
		t.Errorf("Disconnect of unknown id = %+v, want no-op", res)
	}
}

func TestDispatch_Disconnect(t *testing.T) {
	d, reg := newTestDispatcher(Options{})
	dispatch(t, d, 1, "NICK Batman")
	dispatch(t, d, 2, "USER anon h h :A")

	res := d.Disconnect(1, DisconnectReason)
	want := ":SERVER PRIVMSG #global :Batman has quit (connection closed)\n"
	if len(res.Out) != 1 || string(res.Out[0].Line) != want {
		t.Errorf("Disconnect(1) = %+v, want %q", res.Out, want)
	}

	if res := d.Disconnect(2, DisconnectReason); len(res.Out) != 0 {
		t.Errorf("nameless disconnect announced %q", res.Out[0].Line)
	}
	if reg.Len() != 0 {
		t.Errorf("registry len = %d, want 0", reg.Len())
	}
}

func TestDispatch_UnknownIgnored(t *testing.T) {
	d, reg := newTestDispatcher(Options{})
	res := dispatch(t, d, 1, "PING :x")
	if len(res.Out) != 0 || res.Close {
		t.Errorf("unknown command had effect: %+v", res)
	}
	if reg.Len() != 0 {
		t.Error("unknown command created a session")
	}
}

func TestDispatch_RegisteredRenameCollision(t *testing.T) {
	d, reg := newTestDispatcher(Options{})
	dispatch(t, d, 1, "NICK Batman")
	for _, line := range []string{"NICK Robin", "USER Dick h h :Dick", "JOIN #gotham"} {
		dispatch(t, d, 2, line)
	}

	res := dispatch(t, d, 2, "NICK Batman")
	if len(res.Out) != 2 {
		t.Fatalf("out = %d lines, want departure + token", len(res.Out))
	}
	want := ":SERVER PRIVMSG #gotham :Robin has quit (nickname is already in use)\n"
	if got := string(res.Out[0].Line); got != want || res.Out[0].Policy != ExcludeSender {
		t.Errorf("departure = %q (%s), want %q exclude-sender", got, res.Out[0].Policy, want)
	}
	if got := string(res.Out[1].Line); got != "NICKNAMEINUSE\n" || res.Out[1].Policy != SenderOnly {
		t.Errorf("token = %q (%s)", got, res.Out[1].Policy)
	}
	if _, ok := reg.Find(2); ok {
		t.Error("colliding session should be discarded")
	}
}

func TestDispatch_QuitWithoutSession(t *testing.T) {
	d, _ := newTestDispatcher(Options{})

	res := dispatch(t, d, 7, "QUIT :nobody")
	if !res.Close {
		t.Error("QUIT should still close the connection")
	}
	if len(res.Out) != 0 {
		t.Errorf("sessionless QUIT announced %q", res.Out[0].Line)
	}

	// A session without a nickname is announced by connection id.
	dispatch(t, d, 8, "USER anon h h :A")
	res = dispatch(t, d, 8, "QUIT :bye")
	if len(res.Out) != 1 || string(res.Out[0].Line) != ":SERVER PRIVMSG #global :c8 has quit (bye)\n" {
		t.Errorf("out = %+v", res.Out)
	}
}

func TestDispatch_Spans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	d, _ := newTestDispatcher(Options{TracerProvider: tp})

	dispatch(t, d, 1, "NICK Batman")
	dispatch(t, d, 2, "NICK Batman")
	dispatch(t, d, 1, ":Batman PRIVMSG #global :hi")

	spans := rec.Ended()
	if len(spans) != 3 {
		t.Fatalf("recorded %d spans, want 3", len(spans))
	}

	tests := []struct {
		name     string
		conn     string
		outbound int64
		status   codes.Code
	}{
		{"dispatch NICK", "c1", 0, codes.Unset},
		{"dispatch NICK", "c2", 1, codes.Error},
		{"dispatch PRIVMSG", "c1", 1, codes.Unset},
	}
	for i, tt := range tests {
		s := spans[i]
		if s.Name() != tt.name {
			t.Errorf("span %d name = %q, want %q", i, s.Name(), tt.name)
		}
		if s.InstrumentationScope().Name != TracerName {
			t.Errorf("span %d scope = %q", i, s.InstrumentationScope().Name)
		}
		attrs := map[attribute.Key]attribute.Value{}
		for _, kv := range s.Attributes() {
			attrs[kv.Key] = kv.Value
		}
		if got := attrs["irc.connection"].AsString(); got != tt.conn {
			t.Errorf("span %d irc.connection = %q, want %q", i, got, tt.conn)
		}
		if got := attrs["irc.outbound"].AsInt64(); got != tt.outbound {
			t.Errorf("span %d irc.outbound = %d, want %d", i, got, tt.outbound)
		}
		if s.Status().Code != tt.status {
			t.Errorf("span %d status = %v, want %v", i, s.Status().Code, tt.status)
		}
	}
	if got := spans[0].Attributes()[0]; got.Key != "irc.command" || got.Value.AsString() != "NICK" {
		t.Errorf("first attribute = %v, want irc.command=NICK", got)
	}
}
