package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the GOIRC_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty
// env vars override the existing value.  This should be called BEFORE
// CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("GOIRC_HOST"); v != "" {
		cfg.Host = v
	}
	if v := envInt("GOIRC_PORT"); v > 0 {
		cfg.Port = v
	}
	if v := os.Getenv("GOIRC_CHANNEL"); v != "" {
		cfg.Channel = v
	}

	// Relay
	if v := os.Getenv("GOIRC_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("GOIRC_ALLOWED_ORIGINS"); v != "" {
		cfg.AllowedOrigins = splitList(v)
	}
	if v := envInt("GOIRC_WRITE_TIMEOUT"); v > 0 {
		cfg.WriteTimeout = secondsDuration(v)
	}
	if envBool("GOIRC_CLOSE_ON_COLLISION") {
		cfg.CloseOnNickCollision = true
	}
	if envBool("GOIRC_REQUIRE_REGISTRATION") {
		cfg.RequireRegistration = true
	}
	if envBool("GOIRC_TRACE") {
		cfg.Trace = true
	}

	// Client
	if v := os.Getenv("GOIRC_NICK"); v != "" {
		cfg.Nickname = v
	}
	if v := os.Getenv("GOIRC_USER"); v != "" {
		cfg.Username = v
	}
	if v := envInt("GOIRC_DIAL_TIMEOUT"); v > 0 {
		cfg.DialTimeout = secondsDuration(v)
	}
	if v, ok := envIntSet("GOIRC_RETRIES"); ok && v >= 0 {
		cfg.MaxRetries = v
	}

	// Output
	if v, ok := envIntSet("GOIRC_VERBOSE"); ok && v >= 0 {
		cfg.Verbose = v
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v, _ := envIntSet(key)
	return v
}

// envIntSet distinguishes an explicit "0" from an unset variable.
func envIntSet(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func secondsDuration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}
