package config

import (
	"time"

	"goirc/internal/wire"
)

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags and environment variable loading.

const (
	// DefaultPort is the relay's listening port.
	DefaultPort = 5050

	// DefaultServerHost is what the client dials when no host is given.
	DefaultServerHost = "localhost"

	// DefaultChannel is the single shared channel.
	DefaultChannel = wire.DefaultChannel

	// DefaultWriteTimeout bounds a single write during broadcast so a
	// stalled peer cannot hold up the event loop.
	DefaultWriteTimeout = 5 * time.Second

	// DefaultDialTimeout is the client's TCP connect timeout.
	DefaultDialTimeout = 10 * time.Second

	// DefaultMaxRetries is how many times the client redials a refused
	// connection before giving up.
	DefaultMaxRetries = 5

	// DefaultGracePeriod is how long shutdown waits for the HTTP
	// gateway to drain.
	DefaultGracePeriod = 5 * time.Second

	// DefaultVerbosity prints INF/WRN/ERR.
	DefaultVerbosity = 1
)
