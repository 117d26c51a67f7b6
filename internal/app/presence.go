package app

import (
	"cmp"
	"slices"
	"sync"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
)

// Presence tracks which connections currently have a room open.
type Presence struct {
	mu    sync.RWMutex
	rooms map[domain.BroadcastID]map[core.SessionID]domain.Session
}

func NewPresence() *Presence {
	return &Presence{rooms: make(map[domain.BroadcastID]map[core.SessionID]domain.Session)}
}

func (p *Presence) Enter(id domain.BroadcastID, sid core.SessionID, user domain.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[id]
	if !ok {
		room = make(map[core.SessionID]domain.Session)
		p.rooms[id] = room
	}
	room[sid] = user
}

// Leave reports whether sid was present.
func (p *Presence) Leave(id domain.BroadcastID, sid core.SessionID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.rooms[id]
	if !ok {
		return false
	}
	if _, ok = room[sid]; !ok {
		return false
	}
	delete(room, sid)
	if len(room) == 0 {
		delete(p.rooms, id)
	}
	return true
}

// Users lists the distinct users in a room, by display name.
func (p *Presence) Users(id domain.BroadcastID) []domain.Session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	seen := make(map[domain.UserID]struct{})
	out := make([]domain.Session, 0, len(p.rooms[id]))
	for _, u := range p.rooms[id] {
		if _, ok := seen[u.UserID]; ok {
			continue
		}
		seen[u.UserID] = struct{}{}
		out = append(out, u)
	}
	slices.SortFunc(out, func(a, b domain.Session) int {
		return cmp.Or(cmp.Compare(a.DisplayName, b.DisplayName), cmp.Compare(a.UserID, b.UserID))
	})
	return out
}

// Viewers lists the connections in a room.
func (p *Presence) Viewers(id domain.BroadcastID) []core.SessionID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]core.SessionID, 0, len(p.rooms[id]))
	for sid := range p.rooms[id] {
		out = append(out, sid)
	}
	return out
}
