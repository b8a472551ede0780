package session

import (
	"sort"
	"sync"

	ierrors "goirc/internal/errors"
)

// Registry maps connection identity to Session.  It is the only place
// sessions are created or destroyed.  All methods are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[ID]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[ID]*Session)}
}

// Find returns a copy of the session for id.
func (r *Registry) Find(id ID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Upsert creates the session for id if needed, applies fn to it (when
// fn is non-nil) and returns the updated copy.  The whole operation is
// atomic with respect to every other registry call.
func (r *Registry) Upsert(id ID, fn func(*Session)) Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.upsertLocked(id)
	if fn != nil {
		fn(s)
	}
	return *s
}

// Remove deletes the session for id and returns what it held.  Removing
// an unknown id is a no-op.
func (r *Registry) Remove(id ID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, id)
	return *s, true
}

// NicknameTaken reports whether a session other than except holds nick.
func (r *Registry) NicknameTaken(nick string, except ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.takenLocked(nick, except)
}

// ClaimNickname sets nick on id's session (creating it if absent) unless
// another session holds it, in which case ErrNicknameInUse is returned
// and nothing changes.  The check and the update happen under one lock.
func (r *Registry) ClaimNickname(id ID, nick string) (before, after Session, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.takenLocked(nick, id) {
		if s, ok := r.sessions[id]; ok {
			before = *s
		}
		return before, before, ierrors.ErrNicknameInUse
	}
	if s, ok := r.sessions[id]; ok {
		before = *s
	}
	s := r.upsertLocked(id)
	s.Nickname = nick
	return before, *s, nil
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns copies of all sessions ordered by ID.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) upsertLocked(id ID) *Session {
	s, ok := r.sessions[id]
	if !ok {
		s = &Session{ID: id}
		r.sessions[id] = s
	}
	return s
}

func (r *Registry) takenLocked(nick string, except ID) bool {
	for id, s := range r.sessions {
		if id != except && s.Nickname == nick {
			return true
		}
	}
	return false
}
