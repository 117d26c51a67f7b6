package live

import (
	"context"
	"sync"

	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/rs/zerolog/log"
)

const noticeEnded = "This broadcast has ended"

// feed keeps the message subscription of one broadcast open while its
// owning view allows it. open and stop are only called from the owning
// view's broadcast callback, which never runs concurrently with itself.
type feed struct {
	v    core.Viewer
	chat *app.Chat
	id   domain.BroadcastID

	mu      sync.Mutex
	running bool
	closed  bool
	unsub   docstore.Unsubscribe
}

func (f *feed) open() {
	f.mu.Lock()
	if f.closed || f.running {
		f.mu.Unlock()
		return
	}
	f.running = true
	f.mu.Unlock()

	u := f.chat.Watch(f.id, f.onMessages)

	f.mu.Lock()
	if f.closed || !f.running {
		f.mu.Unlock()
		u()
		return
	}
	f.unsub = u
	f.mu.Unlock()
}

func (f *feed) onMessages(msgs []domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || !f.running {
		return
	}
	f.v.Publish(string(KindMessages), string(f.id), msgs)
}

func (f *feed) stop() {
	f.mu.Lock()
	u := f.unsub
	f.unsub = nil
	f.running = false
	f.mu.Unlock()
	if u != nil {
		u()
	}
}

func (f *feed) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.stop()
}

type room struct {
	v    core.Viewer
	s    Services
	id   domain.BroadcastID
	me   domain.UserID
	feed *feed

	mu       sync.Mutex
	closed   bool
	ended    bool
	notified bool
	stop     docstore.Unsubscribe
}

// OpenRoom watches one broadcast for its participant. Expiry is detected
// whenever the broadcast document is observed: the viewer is notified once,
// the owner's view deletes the broadcast, and the viewer is sent home. A
// viewer who is not a participant is sent home right away.
func OpenRoom(id domain.BroadcastID, v core.Viewer, s Services) View {
	r := &room{
		v:    v,
		s:    s,
		id:   id,
		me:   v.Session().UserID,
		feed: &feed{v: v, chat: s.Chat, id: id},
	}
	stop := s.Broadcasts.Watch(id, r.onBroadcast)
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

func (r *room) onBroadcast(b domain.Broadcast, exists bool) {
	r.mu.Lock()
	if r.closed || r.ended {
		r.mu.Unlock()
		return
	}
	switch {
	case !exists || b.Expired(r.s.now()):
		r.ended = true
		notify := !r.notified
		r.notified = true
		r.mu.Unlock()

		r.feed.stop()
		if notify {
			r.v.Notify(core.NoticeInfo, noticeEnded)
		}
		if exists && b.IsOwner(r.me) {
			if err := r.s.Broadcasts.Expire(context.Background(), r.id); err != nil {
				log.Error().Err(err).Str("module", "live.room").Str("broadcast", string(r.id)).Msg("expire on observe failed")
				r.v.Notify(core.NoticeError, err.Error())
			}
		}
		r.goHome()
		return

	case !b.HasParticipant(r.me):
		r.ended = true
		r.mu.Unlock()

		r.feed.stop()
		log.Debug().Str("module", "live.room").Str("broadcast", string(r.id)).Str("user", string(r.me)).Msg("not a participant")
		r.goHome()
		return
	}
	r.v.Publish(string(KindRoom), string(r.id), b)
	r.mu.Unlock()

	r.feed.open()
}

func (r *room) goHome() {
	if r.v.IsCurrent(RoomPath(r.id)) {
		r.v.Navigate(HomePath)
	}
}

func (r *room) Close() {
	r.mu.Lock()
	r.closed = true
	stop := r.stop
	r.stop = nil
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
	r.feed.close()
}

type messages struct {
	feed *feed

	mu     sync.Mutex
	closed bool
	stop   docstore.Unsubscribe
}

// OpenMessages publishes a broadcast's message feed for as long as the
// viewer is one of its participants.
func OpenMessages(id domain.BroadcastID, v core.Viewer, s Services) View {
	m := &messages{feed: &feed{v: v, chat: s.Chat, id: id}}
	me := v.Session().UserID
	stop := s.Broadcasts.Watch(id, func(b domain.Broadcast, exists bool) {
		if exists && b.HasParticipant(me) {
			m.feed.open()
			return
		}
		m.feed.stop()
	})
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		stop()
		return m
	}
	m.stop = stop
	m.mu.Unlock()
	return m
}

func (m *messages) Close() {
	m.mu.Lock()
	m.closed = true
	stop := m.stop
	m.stop = nil
	m.mu.Unlock()
	if stop != nil {
		stop()
	}
	m.feed.close()
}
