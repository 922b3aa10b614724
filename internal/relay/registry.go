package relay

import "sync"

// Registry is the in-memory map of live sessions, keyed by connection id. It
// is owned by the [Relay]; nothing else mutates it. All operations are safe
// for concurrent use, and iteration works on a snapshot taken at call time so
// broadcasts never observe a half-mutated entry.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]Session)}
}

// Register inserts a new session. It reports false, without mutating the
// registry, if the connection id is already present; transport-assigned ids
// are unique per connection, so a collision indicates a bug upstream.
func (r *Registry) Register(sess Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sess.ID]; ok {
		return false
	}
	r.sessions[sess.ID] = sess
	return true
}

// Unregister removes and returns the session for the given connection id.
// Removing an absent id is a no-op, not an error: disconnects can fire for
// connections that never completed registration.
func (r *Registry) Unregister(connID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[connID]
	if ok {
		delete(r.sessions, connID)
	}
	return sess, ok
}

// Get returns the session for the given connection id.
func (r *Registry) Get(connID string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connID]
	return sess, ok
}

// IsDriver reports whether a session exists for the id and has the driver
// role.
func (r *Registry) IsDriver(connID string) bool {
	sess, ok := r.Get(connID)
	return ok && sess.Role == RoleDriver
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Snapshot returns a consistent copy of all current sessions. Entries added
// or removed after the call are not observed.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	return out
}
