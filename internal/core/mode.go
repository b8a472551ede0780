// Package core is the orchestration layer.  It composes the relay, the
// gateway and the client into complete operational modes and provides a
// builder that selects the right mode from a Config.
//
// Architecture layers (bottom → top):
//
//	wire  →  session  →  relay  →  gateway / client  →  core  →  cmd (CLI)
package core

import "context"

// Mode is a complete operational mode of goirc (serve or connect).
// Each mode owns its full lifecycle and returns when ctx is cancelled
// or its work ends.
type Mode interface {
	Run(ctx context.Context) error
}
