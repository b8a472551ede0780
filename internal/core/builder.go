package core

import (
	"goirc/config"
	"goirc/internal/client"
	ierrors "goirc/internal/errors"
	"goirc/internal/metrics"
	"goirc/internal/relay"
	"goirc/internal/transport"
	"goirc/util"
)

// Build validates cfg and constructs the matching Mode.
func Build(cfg *config.Config, logger *util.Logger) (Mode, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Mode {
	case config.ModeServe:
		return buildServe(cfg, logger), nil
	case config.ModeConnect:
		return buildConnect(cfg, logger), nil
	}
	return nil, &ierrors.ConfigError{Field: "mode", Value: string(cfg.Mode), Message: "unknown mode"}
}

// ── mode builders ────────────────────────────────────────────────────

func buildServe(cfg *config.Config, logger *util.Logger) *ServeMode {
	return &ServeMode{
		Address:  cfg.ListenAddr(),
		HTTPAddr: cfg.HTTPAddr,
		Relay: relay.Config{
			Options: relay.Options{
				Channel:              cfg.Channel,
				CloseOnNickCollision: cfg.CloseOnNickCollision,
				RequireRegistration:  cfg.RequireRegistration,
			},
			WriteTimeout: cfg.WriteTimeout,
		},
		AllowedOrigins: cfg.AllowedOrigins,
		Trace:          cfg.Trace,
		Metrics:        metrics.New(),
		Logger:         logger,
	}
}

func buildConnect(cfg *config.Config, logger *util.Logger) *ConnectMode {
	return &ConnectMode{
		Client: client.Config{
			Address:     serverAddress(cfg),
			Nickname:    cfg.Nickname,
			Username:    cfg.Username,
			Channel:     cfg.Channel,
			DialTimeout: cfg.DialTimeout,
			MaxRetries:  cfg.MaxRetries,
		},
		Logger: logger,
	}
}

// serverAddress lets --host carry a full ws:// gateway URL.
func serverAddress(cfg *config.Config) string {
	if transport.IsWebSocketURL(cfg.Host) {
		return cfg.Host
	}
	return cfg.ServerAddr()
}
