package gateway

import (
	"net/http"
	"net/url"
	"strings"

	"goirc/util"
)

type originPolicy struct {
	allowAll bool
	allowed  map[string]struct{}
}

func newOriginPolicy(origins []string, logger *util.Logger) originPolicy {
	p := originPolicy{allowed: make(map[string]struct{})}
	for _, o := range origins {
		o = strings.TrimSpace(o)
		switch {
		case o == "":
		case o == "*":
			p.allowAll = true
		default:
			norm, ok := normalizeOrigin(o)
			if !ok {
				logger.Warn("ignoring invalid origin %q", o)
				continue
			}
			p.allowed[norm] = struct{}{}
		}
	}
	return p
}

// normalizeOrigin lowercases scheme and host and drops any path.
func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients), pages served from the gateway's own host, and configured
// origins.
func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	norm, ok := normalizeOrigin(origin)
	if !ok {
		g.logger.Warn("blocked websocket with malformed origin %q", origin)
		return false
	}
	if g.origins.allowAll {
		return true
	}
	if _, ok := g.origins.allowed[norm]; ok {
		return true
	}
	if u, _ := url.Parse(norm); u != nil && strings.EqualFold(u.Host, r.Host) {
		return true
	}
	g.logger.Warn("blocked websocket from origin %q", origin)
	return false
}
