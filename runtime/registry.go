package runtime

import (
	"hire-chat/contract"
	"hire-chat/domain/chat"
	"sync"
)

type connectionSet map[chat.ConnectionID]contract.Connection

// Registry is the process-wide directory of live connections, keyed by user.
// It is a cache: the Room Store stays the only source of truth.
type Registry struct {
	mu       sync.RWMutex
	sessions map[chat.UserID]connectionSet // map user -> connections
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[chat.UserID]connectionSet)}
}

// Register adds a connection under a user. Registering twice is a no-op.
func (r *Registry) Register(user chat.UserID, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[user]; !ok {
		r.sessions[user] = make(connectionSet)
	}
	r.sessions[user][conn.ID()] = conn
}

// Unregister removes a connection of a user.
// The user entry is dropped once its last connection is gone.
func (r *Registry) Unregister(user chat.UserID, conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connections, ok := r.sessions[user]
	if !ok {
		return
	}
	delete(connections, conn.ID())
	if len(connections) == 0 {
		delete(r.sessions, user)
	}
}

// ConnectionsOf returns a snapshot of the user's connections.
// Mutating the registry afterwards never affects the returned slice.
func (r *Registry) ConnectionsOf(user chat.UserID) []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := r.sessions[user]
	if len(connections) == 0 {
		return nil
	}
	res := make([]contract.Connection, 0, len(connections))
	for _, conn := range connections {
		res = append(res, conn)
	}
	return res
}

// Snapshot returns every live connection of every user.
func (r *Registry) Snapshot() []contract.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var res []contract.Connection
	for _, connections := range r.sessions {
		for _, conn := range connections {
			res = append(res, conn)
		}
	}
	return res
}

func (r *Registry) Len() (users int, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.sessions {
		connections += len(c)
	}
	return len(r.sessions), connections
}
