package live

import (
	"sync"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
)

// ListEntry is one active broadcast as seen by the viewer.
type ListEntry struct {
	domain.Broadcast
	Role          domain.Role          `json:"role"`
	RequestStatus domain.RequestStatus `json:"requestStatus,omitempty"`
}

type broadcastList struct {
	v   core.Viewer
	me  domain.UserID
	fan *FanOut[domain.BroadcastID]

	mu       sync.Mutex
	closed   bool
	stop     docstore.Unsubscribe
	items    []domain.Broadcast
	statuses map[domain.BroadcastID]domain.RequestStatus
}

// OpenBroadcastList publishes every active broadcast, annotated with the
// viewer's role and request status.
func OpenBroadcastList(v core.Viewer, s Services) View {
	l := &broadcastList{
		v:        v,
		me:       v.Session().UserID,
		statuses: make(map[domain.BroadcastID]domain.RequestStatus),
	}
	l.fan = NewFanOut(func(id domain.BroadcastID) docstore.Unsubscribe {
		return s.Requests.WatchStatus(id, l.me, func(st domain.RequestStatus) { l.onStatus(id, st) })
	})
	stop := s.Broadcasts.WatchActive(l.onList)
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		stop()
		return l
	}
	l.stop = stop
	l.mu.Unlock()
	return l
}

func (l *broadcastList) onList(items []domain.Broadcast) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.items = items
	keep := make(map[domain.BroadcastID]struct{}, len(items))
	var watch []domain.BroadcastID
	for _, b := range items {
		keep[b.ID] = struct{}{}
		if !b.IsOwner(l.me) {
			watch = append(watch, b.ID)
		}
	}
	for id := range l.statuses {
		if _, ok := keep[id]; !ok {
			delete(l.statuses, id)
		}
	}
	l.mu.Unlock()

	l.fan.Sync(watch)

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.closed {
		l.publish()
	}
}

func (l *broadcastList) onStatus(id domain.BroadcastID, st domain.RequestStatus) {
	if !l.fan.Has(id) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed || l.statuses[id] == st {
		return
	}
	if st == domain.StatusNone {
		delete(l.statuses, id)
	} else {
		l.statuses[id] = st
	}
	l.publish()
}

// publish is called with l.mu held.
func (l *broadcastList) publish() {
	out := make([]ListEntry, 0, len(l.items))
	for _, b := range l.items {
		out = append(out, ListEntry{
			Broadcast:     b,
			Role:          b.RoleOf(l.me),
			RequestStatus: l.statuses[b.ID],
		})
	}
	l.v.Publish(string(KindBroadcasts), "", out)
}

func (l *broadcastList) Close() {
	l.mu.Lock()
	l.closed = true
	stop := l.stop
	l.stop = nil
	l.mu.Unlock()
	if stop != nil {
		stop()
	}
	l.fan.Close()
}
