package live

import (
	"sync"

	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
)

// PendingEntry is a pending request together with the broadcast it targets.
type PendingEntry struct {
	domain.JoinRequest
	Activity string `json:"activity"`
}

type pendingRequests struct {
	v   core.Viewer
	fan *FanOut[domain.BroadcastID]

	mu          sync.Mutex
	closed      bool
	stop        docstore.Unsubscribe
	activities  map[domain.BroadcastID]string
	byBroadcast map[domain.BroadcastID][]domain.JoinRequest
}

// OpenPendingRequests publishes the union of the pending requests of every
// broadcast the viewer owns. One child subscription runs per owned broadcast.
func OpenPendingRequests(v core.Viewer, s Services) View {
	p := &pendingRequests{
		v:           v,
		activities:  make(map[domain.BroadcastID]string),
		byBroadcast: make(map[domain.BroadcastID][]domain.JoinRequest),
	}
	p.fan = NewFanOut(func(id domain.BroadcastID) docstore.Unsubscribe {
		return s.Requests.WatchPending(id, func(reqs []domain.JoinRequest) { p.onPending(id, reqs) })
	})
	stop := s.Broadcasts.WatchOwned(v.Session().UserID, p.onOwned)
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		stop()
		return p
	}
	p.stop = stop
	p.mu.Unlock()
	return p
}

func (p *pendingRequests) onOwned(owned []domain.Broadcast) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	ids := make([]domain.BroadcastID, 0, len(owned))
	p.activities = make(map[domain.BroadcastID]string, len(owned))
	for _, b := range owned {
		ids = append(ids, b.ID)
		p.activities[b.ID] = b.Activity
	}
	for id := range p.byBroadcast {
		if _, ok := p.activities[id]; !ok {
			delete(p.byBroadcast, id)
		}
	}
	p.mu.Unlock()

	p.fan.Sync(ids)

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.publish()
	}
}

func (p *pendingRequests) onPending(id domain.BroadcastID, reqs []domain.JoinRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	// a child stopped by onOwned may still deliver once
	if _, owned := p.activities[id]; p.closed || !owned {
		return
	}
	p.byBroadcast[id] = reqs
	p.publish()
}

// publish is called with p.mu held.
func (p *pendingRequests) publish() {
	var all []domain.JoinRequest
	for _, reqs := range p.byBroadcast {
		all = append(all, reqs...)
	}
	app.SortRequests(all)
	out := make([]PendingEntry, 0, len(all))
	for _, r := range all {
		out = append(out, PendingEntry{JoinRequest: r, Activity: p.activities[r.BroadcastID]})
	}
	p.v.Publish(string(KindPendingRequests), "", out)
}

func (p *pendingRequests) Close() {
	p.mu.Lock()
	p.closed = true
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop != nil {
		stop()
	}
	p.fan.Close()
}
