package app

import (
	"sync"

	"live-quiz-service/internal/domain"
)

// Binding ties a connection to a room and, for participants, to a name.
type Binding struct {
	RoomCode string
	Name     string
	Role     domain.Role
}

// Bindings is the connection registry used for room fan-out and disconnect handling.
// A connection is bound to at most one room at a time.
type Bindings struct {
	mu     sync.RWMutex
	byConn map[domain.ConnID]Binding
	byRoom map[string]map[domain.ConnID]struct{}
}

func NewBindings() *Bindings {
	return &Bindings{
		byConn: make(map[domain.ConnID]Binding),
		byRoom: make(map[string]map[domain.ConnID]struct{}),
	}
}

// Bind replaces any previous binding of conn.
func (b *Bindings) Bind(conn domain.ConnID, binding Binding) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(conn)
	b.byConn[conn] = binding
	members, ok := b.byRoom[binding.RoomCode]
	if !ok {
		members = make(map[domain.ConnID]struct{})
		b.byRoom[binding.RoomCode] = members
	}
	members[conn] = struct{}{}
}

func (b *Bindings) Lookup(conn domain.ConnID) (Binding, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	binding, ok := b.byConn[conn]
	return binding, ok
}

// Unbind removes conn and returns what it was bound to.
func (b *Bindings) Unbind(conn domain.ConnID) (Binding, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.removeLocked(conn)
}

// Connections returns a snapshot of the connections bound to a room.
func (b *Bindings) Connections(code string) []domain.ConnID {
	b.mu.RLock()
	defer b.mu.RUnlock()
	members := b.byRoom[code]
	out := make([]domain.ConnID, 0, len(members))
	for conn := range members {
		out = append(out, conn)
	}
	return out
}

// DropRoom forgets every binding of a room.
func (b *Bindings) DropRoom(code string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.byRoom[code] {
		delete(b.byConn, conn)
	}
	delete(b.byRoom, code)
}

func (b *Bindings) removeLocked(conn domain.ConnID) (Binding, bool) {
	prev, ok := b.byConn[conn]
	if !ok {
		return Binding{}, false
	}
	delete(b.byConn, conn)
	if members, ok := b.byRoom[prev.RoomCode]; ok {
		delete(members, conn)
		if len(members) == 0 {
			delete(b.byRoom, prev.RoomCode)
		}
	}
	return prev, true
}
