package conversation

import (
	"context"
	"log/slog"
	"sync"
)

// ClientConn is the write side of one attached client. Implementations
// must be safe for concurrent use; the registry and orchestrator write
// from different goroutines.
type ClientConn interface {
	WriteText(ctx context.Context, text string) error
	WriteControl(ctx context.Context, frame ControlFrame) error
	Close(reason string) error
}

// Registry tracks the single active connection per session. Registering
// a new connection for a session replaces and closes the previous one.
type Registry struct {
	log *slog.Logger

	mu     sync.RWMutex
	active map[string]ClientConn
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:    log,
		active: make(map[string]ClientConn),
	}
}

// Register attaches conn as the active connection for sessionID. A
// previously registered connection for the same session is closed.
func (r *Registry) Register(sessionID string, conn ClientConn) {
	r.mu.Lock()
	prev := r.active[sessionID]
	r.active[sessionID] = conn
	r.mu.Unlock()

	if prev != nil && prev != conn {
		_ = prev.Close("replaced by new connection")
		r.log.Debug("replaced session connection", "session_id", sessionID)
	}
}

// Unregister detaches conn from sessionID. If a newer connection has
// already replaced conn, the newer one is left in place.
func (r *Registry) Unregister(sessionID string, conn ClientConn) {
	r.mu.Lock()
	if r.active[sessionID] == conn {
		delete(r.active, sessionID)
	}
	r.mu.Unlock()
}

// Get returns the active connection for sessionID, if any.
func (r *Registry) Get(sessionID string) (ClientConn, bool) {
	r.mu.RLock()
	conn, ok := r.active[sessionID]
	r.mu.RUnlock()
	return conn, ok
}

// SendText delivers a raw content fragment to the session's connection.
// It reports false when no connection is attached or the write failed.
func (r *Registry) SendText(ctx context.Context, sessionID, text string) bool {
	conn, ok := r.Get(sessionID)
	if !ok {
		r.log.Debug("dropping fragment for detached session", "session_id", sessionID)
		return false
	}
	if err := conn.WriteText(ctx, text); err != nil {
		r.log.Debug("fragment write failed", "session_id", sessionID, "error", err)
		return false
	}
	return true
}

// SendControl delivers a control frame to the session's connection. It
// reports false when no connection is attached or the write failed.
func (r *Registry) SendControl(ctx context.Context, sessionID string, frame ControlFrame) bool {
	conn, ok := r.Get(sessionID)
	if !ok {
		r.log.Debug("dropping control frame for detached session",
			"session_id", sessionID, "action", frame.Action)
		return false
	}
	if err := conn.WriteControl(ctx, frame); err != nil {
		r.log.Debug("control write failed",
			"session_id", sessionID, "action", frame.Action, "error", err)
		return false
	}
	return true
}

// CloseSession closes and removes the session's connection, if any.
// Used when the session itself is evicted.
func (r *Registry) CloseSession(sessionID, reason string) {
	r.mu.Lock()
	conn := r.active[sessionID]
	delete(r.active, sessionID)
	r.mu.Unlock()

	if conn != nil {
		_ = conn.Close(reason)
	}
}

// Len returns the number of attached connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}
