package core

import (
	"testing"
	"time"

	"goirc/config"
	ierrors "goirc/internal/errors"
	"goirc/util"
)

// TestBuild_Serve verifies that Build maps a serve config onto
// ServeMode.
func TestBuild_Serve(t *testing.T) {
	cfg := config.Default()
	cfg.Host = "127.0.0.1"
	cfg.Port = 6667
	cfg.HTTPAddr = ":8080"
	cfg.CloseOnNickCollision = true
	cfg.WriteTimeout = 3 * time.Second
	cfg.Trace = true

	mode, err := Build(cfg, util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	sm, ok := mode.(*ServeMode)
	if !ok {
		t.Fatalf("expected *ServeMode, got %T", mode)
	}
	if sm.Address != "127.0.0.1:6667" || sm.HTTPAddr != ":8080" {
		t.Errorf("addresses = %q %q", sm.Address, sm.HTTPAddr)
	}
	if !sm.Relay.CloseOnNickCollision || sm.Relay.WriteTimeout != 3*time.Second {
		t.Errorf("relay config = %+v", sm.Relay)
	}
	if sm.Relay.Channel != config.DefaultChannel {
		t.Errorf("channel = %q", sm.Relay.Channel)
	}
	if sm.Metrics == nil {
		t.Error("serve mode should carry a metrics collector")
	}
	if !sm.Trace {
		t.Error("trace flag not carried")
	}
}

// TestBuild_Connect verifies Build produces a ConnectMode.
func TestBuild_Connect(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeConnect
	cfg.Nickname = "Batman"
	cfg.MaxRetries = 2

	mode, err := Build(cfg, util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	cm, ok := mode.(*ConnectMode)
	if !ok {
		t.Fatalf("expected *ConnectMode, got %T", mode)
	}
	if cm.Client.Address != "localhost:5050" {
		t.Errorf("address = %q", cm.Client.Address)
	}
	if cm.Client.Nickname != "Batman" || cm.Client.MaxRetries != 2 {
		t.Errorf("client config = %+v", cm.Client)
	}
}

// TestBuild_ConnectWebSocket verifies a ws:// host is dialled as-is.
func TestBuild_ConnectWebSocket(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = config.ModeConnect
	cfg.Nickname = "Batman"
	cfg.Host = "ws://relay.example:8080/ws"

	mode, err := Build(cfg, util.NewLogger(0))
	if err != nil {
		t.Fatal(err)
	}
	if got := mode.(*ConnectMode).Client.Address; got != "ws://relay.example:8080/ws" {
		t.Errorf("address = %q", got)
	}
}

// TestBuild_Invalid verifies validation errors surface from Build.
func TestBuild_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*config.Config)
		field string
	}{
		{"connect without nick", func(c *config.Config) { c.Mode = config.ModeConnect }, "nick"},
		{"bad port", func(c *config.Config) { c.Port = 0 }, "port"},
		{"bad mode", func(c *config.Config) { c.Mode = "scan" }, "mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mut(cfg)
			_, err := Build(cfg, util.NewLogger(0))
			var ce *ierrors.ConfigError
			if !ierrors.As(err, &ce) {
				t.Fatalf("err = %v, want ConfigError", err)
			}
			if ce.Field != tt.field {
				t.Errorf("field = %q, want %q", ce.Field, tt.field)
			}
		})
	}
}
