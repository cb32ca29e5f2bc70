// Package runtime hosts the presence state and the supervised background
// workers. It orchestrates the system without containing domain rules.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"sync"
)

// Registry is the authoritative in-memory map of currently-reachable users.
// It is the only shared mutable structure in the relay core, so every
// access goes through the mutex. The registry never controls connection
// lifetimes; it only holds non-owning references.
type Registry struct {
	mu       sync.RWMutex
	sessions map[domain.UserID]contract.Connection // user -> live connection
	owners   map[contract.Connection]domain.UserID // reverse index for unregister
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[domain.UserID]contract.Connection),
		owners:   make(map[contract.Connection]domain.UserID),
	}
}

// Register installs or replaces the presence entry for user.
// A duplicate login silently overwrites the previous entry: the new
// connection becomes authoritative (last writer wins). The superseded
// connection is returned so the caller can notify it; the registry itself
// never closes it.
func (r *Registry) Register(user domain.UserID, conn contract.Connection) contract.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A connection rebinding to another identity releases the entry it
	// held under its old one, so no mapping can dangle. The session layer
	// rejects identity switches; this keeps the maps consistent even if a
	// caller does not.
	if oldUser, ok := r.owners[conn]; ok && oldUser != user {
		if r.sessions[oldUser] == conn {
			delete(r.sessions, oldUser)
		}
	}

	previous := r.sessions[user]
	if previous == conn {
		return nil
	}
	if previous != nil {
		delete(r.owners, previous)
	}
	r.sessions[user] = conn
	r.owners[conn] = user
	return previous
}

// Unregister removes the entry whose current connection equals conn.
// It is idempotent because a disconnect may race with a replacing
// Register: when conn no longer owns any entry, nothing happens, and a
// newer connection's entry is never removed by an older one's teardown.
func (r *Registry) Unregister(conn contract.Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.owners[conn]
	if !ok {
		return
	}
	delete(r.owners, conn)
	if r.sessions[user] == conn {
		delete(r.sessions, user)
	}
}

// Lookup returns the live connection for user, if any. Never blocks.
func (r *Registry) Lookup(user domain.UserID) (contract.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conn, ok := r.sessions[user]
	return conn, ok
}

// Size reports how many users are currently reachable.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
