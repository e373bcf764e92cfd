package chat

import (
	"sync"

	"PPChat/service/metrics"
)

// Registry maps a user to the one live connection that receives their
// pushes. It is process scoped and rebuilt from scratch on restart.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]*Conn
}

func NewRegistry() *Registry {
	return &Registry{byUser: make(map[string]*Conn)}
}

// Register makes c the user's connection. A previous connection is closed:
// the last connection wins.
func (r *Registry) Register(userID string, c *Conn) {
	r.mu.Lock()
	old := r.byUser[userID]
	r.byUser[userID] = c
	r.mu.Unlock()

	if old == nil {
		metrics.ConnectionsActive.Inc()
		return
	}
	if old != c {
		old.Close()
	}
}

// Unregister drops whatever connection the user has.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	_, ok := r.byUser[userID]
	delete(r.byUser, userID)
	r.mu.Unlock()
	if ok {
		metrics.ConnectionsActive.Dec()
	}
}

// Release drops the mapping only if it still points at connID, so a socket
// that closes late never evicts the user's newer connection.
func (r *Registry) Release(userID, connID string) bool {
	r.mu.Lock()
	cur, ok := r.byUser[userID]
	if ok && cur.ID == connID {
		delete(r.byUser, userID)
	} else {
		ok = false
	}
	r.mu.Unlock()
	if ok {
		metrics.ConnectionsActive.Dec()
	}
	return ok
}

func (r *Registry) Lookup(userID string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byUser[userID]
	return c, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// CloseAll closes every registered connection; used on shutdown.
func (r *Registry) CloseAll() {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.byUser))
	for _, c := range r.byUser {
		conns = append(conns, c)
	}
	r.mu.RUnlock()
	for _, c := range conns {
		c.Close()
	}
}
