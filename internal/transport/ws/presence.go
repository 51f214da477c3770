package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Presence tracks which users hold at least one live connection. It is
// mutated from many connection-handler goroutines, so the map is guarded.
// Only meaningful alongside the registry transport; the broker path relies
// on presence-channel member lists instead.
type Presence struct {
	mu    sync.RWMutex
	conns map[uuid.UUID]map[string]struct{}
}

func NewPresence() *Presence {
	return &Presence{conns: make(map[uuid.UUID]map[string]struct{})}
}

// RecordConnect registers a connection and reports whether the user just
// came online (first connection). Duplicate connection IDs are no-ops.
func (p *Presence) RecordConnect(userID uuid.UUID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userID]
	if !ok {
		set = make(map[string]struct{})
		p.conns[userID] = set
	}
	if _, dup := set[connID]; dup {
		return false
	}
	set[connID] = struct{}{}
	return len(set) == 1
}

// RecordDisconnect removes a connection and reports whether the user went
// fully offline (last connection). Unknown connection IDs are no-ops.
func (p *Presence) RecordDisconnect(userID uuid.UUID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	set, ok := p.conns[userID]
	if !ok {
		return false
	}
	if _, known := set[connID]; !known {
		return false
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(p.conns, userID)
		return true
	}
	return false
}

func (p *Presence) IsOnline(userID uuid.UUID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.conns[userID]) > 0
}

func (p *Presence) OnlineUserIDs() []uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(p.conns))
	for id := range p.conns {
		ids = append(ids, id)
	}
	return ids
}
