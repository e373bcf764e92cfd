package chat

import "sync"

// Hub tracks which connections joined which room.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Conn    // roomID -> connID -> conn
	byConn map[string]map[string]struct{} // connID -> roomIDs
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[string]*Conn),
		byConn: make(map[string]map[string]struct{}),
	}
}

func (h *Hub) Join(roomID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := h.rooms[roomID]
	if m == nil {
		m = make(map[string]*Conn)
		h.rooms[roomID] = m
	}
	m[c.ID] = c
	r := h.byConn[c.ID]
	if r == nil {
		r = make(map[string]struct{})
		h.byConn[c.ID] = r
	}
	r[roomID] = struct{}{}
}

func (h *Hub) Leave(roomID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(roomID, c.ID)
}

// LeaveAll removes the connection from every room it joined.
func (h *Hub) LeaveAll(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for roomID := range h.byConn[c.ID] {
		h.leaveLocked(roomID, c.ID)
	}
	delete(h.byConn, c.ID)
}

func (h *Hub) leaveLocked(roomID, connID string) {
	if m := h.rooms[roomID]; m != nil {
		delete(m, connID)
		if len(m) == 0 {
			delete(h.rooms, roomID)
		}
	}
	if r := h.byConn[connID]; r != nil {
		delete(r, roomID)
		if len(r) == 0 {
			delete(h.byConn, connID)
		}
	}
}

func (h *Hub) Joined(roomID string, c *Conn) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[roomID][c.ID]
	return ok
}

// Members returns a snapshot of the room's connections.
func (h *Hub) Members(roomID string) []*Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	m := h.rooms[roomID]
	out := make([]*Conn, 0, len(m))
	for _, c := range m {
		out = append(out, c)
	}
	return out
}
