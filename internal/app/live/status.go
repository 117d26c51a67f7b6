package live

import (
	"sync"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
)

type requestStatus struct {
	v   core.Viewer
	me  domain.UserID
	fan *FanOut[domain.BroadcastID]

	mu       sync.Mutex
	closed   bool
	stop     docstore.Unsubscribe
	titles   map[domain.BroadcastID]string
	statuses map[domain.BroadcastID]domain.RequestStatus
}

// OpenRequestStatus follows the viewer's own request on every active
// broadcast it does not own. When a pending request is accepted the viewer
// is taken into the room.
func OpenRequestStatus(v core.Viewer, s Services) View {
	r := &requestStatus{
		v:        v,
		me:       v.Session().UserID,
		titles:   make(map[domain.BroadcastID]string),
		statuses: make(map[domain.BroadcastID]domain.RequestStatus),
	}
	r.fan = NewFanOut(func(id domain.BroadcastID) docstore.Unsubscribe {
		return s.Requests.WatchStatus(id, r.me, func(st domain.RequestStatus) { r.onStatus(id, st) })
	})
	stop := s.Broadcasts.WatchActive(r.onList)
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		stop()
		return r
	}
	r.stop = stop
	r.mu.Unlock()
	return r
}

func (r *requestStatus) onList(items []domain.Broadcast) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.titles = make(map[domain.BroadcastID]string, len(items))
	var watch []domain.BroadcastID
	for _, b := range items {
		if b.IsOwner(r.me) {
			continue
		}
		r.titles[b.ID] = b.Activity
		watch = append(watch, b.ID)
	}
	pruned := false
	for id := range r.statuses {
		if _, ok := r.titles[id]; !ok {
			delete(r.statuses, id)
			pruned = true
		}
	}
	if pruned {
		r.publish()
	}
	r.mu.Unlock()

	r.fan.Sync(watch)
}

func (r *requestStatus) onStatus(id domain.BroadcastID, st domain.RequestStatus) {
	if !r.fan.Has(id) {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	prev, seen := r.statuses[id]
	if seen && prev == st {
		r.mu.Unlock()
		return
	}
	r.statuses[id] = st
	title := r.titles[id]
	r.publish()
	r.mu.Unlock()

	if !seen || prev != domain.StatusPending {
		return
	}
	switch st {
	case domain.StatusAccepted:
		r.v.Notify(core.NoticeInfo, "Your request to join "+title+" was accepted")
		r.v.Navigate(RoomPath(id))
	case domain.StatusRejected:
		r.v.Notify(core.NoticeInfo, "Your request to join "+title+" was declined")
	}
}

// publish is called with r.mu held.
func (r *requestStatus) publish() {
	out := make(map[domain.BroadcastID]domain.RequestStatus, len(r.statuses))
	for id, st := range r.statuses {
		if st != domain.StatusNone {
			out[id] = st
		}
	}
	r.v.Publish(string(KindRequestStatus), "", out)
}

func (r *requestStatus) Close() {
	r.mu.Lock()
	r.closed = true
	stop := r.stop
	r.stop = nil
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
	r.fan.Close()
}
