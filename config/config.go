// Package config defines the runtime configuration for goirc and the
// validation rules shared by the serve and connect modes.
package config

import (
	"strings"
	"time"

	ierrors "goirc/internal/errors"
	"goirc/util"
)

// Mode selects which side of the protocol a process runs.
type Mode string

const (
	ModeServe   Mode = "serve"
	ModeConnect Mode = "connect"
)

// Config holds every tuneable for a single goirc process.
type Config struct {
	Mode Mode

	// ── Network ──────────────────────────────────────────────────────
	Host string // bind host (serve) or server host (connect)
	Port int

	// ── Relay ────────────────────────────────────────────────────────
	Channel              string        // channel announced when JOIN has no argument / client joins
	WriteTimeout         time.Duration // per-connection write bound during broadcast
	CloseOnNickCollision bool          // close instead of only dropping the session
	RequireRegistration  bool          // reject PRIVMSG from unregistered sessions
	HTTPAddr             string        // WebSocket gateway + /metrics; empty disables
	AllowedOrigins       []string      // extra browser origins accepted on /ws; "*" accepts any
	Trace                bool          // log one span per dispatched command at debug level

	// ── Client ───────────────────────────────────────────────────────
	Nickname    string
	Username    string
	DialTimeout time.Duration
	MaxRetries  int

	// ── Output ───────────────────────────────────────────────────────
	Verbose int
}

// Default returns a Config populated from defaults.go.
func Default() *Config {
	return &Config{
		Mode:         ModeServe,
		Port:         DefaultPort,
		Channel:      DefaultChannel,
		WriteTimeout: DefaultWriteTimeout,
		DialTimeout:  DefaultDialTimeout,
		MaxRetries:   DefaultMaxRetries,
		Verbose:      DefaultVerbosity,
	}
}

// ServerAddr is the host:port the client dials.
func (c *Config) ServerAddr() string {
	host := c.Host
	if host == "" {
		host = DefaultServerHost
	}
	return util.FormatAddr(host, c.Port)
}

// ListenAddr is the host:port the server binds.
func (c *Config) ListenAddr() string {
	return util.FormatAddr(c.Host, c.Port)
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &ierrors.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    "the protocol's customary port is 5050",
		}
	}
	if c.Channel == "" || strings.ContainsAny(c.Channel, " \t:") {
		return &ierrors.ConfigError{
			Field:   "channel",
			Value:   c.Channel,
			Message: "must be non-empty and contain no spaces or colons",
			Hint:    "use " + DefaultChannel,
		}
	}

	switch c.Mode {
	case ModeServe:
		if c.WriteTimeout <= 0 {
			return &ierrors.ConfigError{
				Field:   "write-timeout",
				Value:   c.WriteTimeout,
				Message: "must be positive",
				Hint:    "a peer that stops reading holds every broadcast for this long; default 5s",
			}
		}
		if c.HTTPAddr != "" && !strings.Contains(c.HTTPAddr, ":") {
			return &ierrors.ConfigError{
				Field:   "http",
				Value:   c.HTTPAddr,
				Message: "expected host:port",
				Hint:    "e.g. --http :8080",
			}
		}
	case ModeConnect:
		if c.Nickname == "" {
			return &ierrors.ConfigError{
				Field:   "nick",
				Message: "required in connect mode",
				Hint:    "pass --nick <nickname>",
			}
		}
		if strings.ContainsAny(c.Nickname, " \t:") {
			return &ierrors.ConfigError{
				Field:   "nick",
				Value:   c.Nickname,
				Message: "must not contain spaces or colons",
			}
		}
		if strings.ContainsAny(c.Username, " \t:") {
			return &ierrors.ConfigError{
				Field:   "user",
				Value:   c.Username,
				Message: "must not contain spaces or colons",
			}
		}
		if c.MaxRetries < 0 {
			return &ierrors.ConfigError{
				Field:   "retries",
				Value:   c.MaxRetries,
				Message: "must not be negative",
				Hint:    "0 disables retrying",
			}
		}
	default:
		return &ierrors.ConfigError{
			Field:   "mode",
			Value:   string(c.Mode),
			Message: "unknown mode",
			Hint:    "use serve or connect",
		}
	}
	return nil
}
