package tcp

import "sync"

// Registry is the process-wide session directory: a concurrency-safe map
// from username to the live connection bound to it. Exactly one session per
// username exists at a time; registering again silently replaces the old
// mapping. The registry is constructed at server start and injected into
// every connection handler, never a package global.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*ClientConnection
}

// NewRegistry creates an empty session directory.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*ClientConnection),
	}
}

// Register binds a username to a connection, replacing any previous binding.
func (r *Registry) Register(username string, conn *ClientConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[username] = conn
}

// Unregister removes a username's binding. Absent usernames are a no-op.
func (r *Registry) Unregister(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, username)
}

// Lookup returns the live connection for a username, if any.
func (r *Registry) Lookup(username string) (*ClientConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.sessions[username]
	return conn, ok
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
