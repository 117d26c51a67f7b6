package orch

import (
	"context"
	"errors"

	"github.com/dkeye/Meetup/internal/app/live"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrNotConnected = errors.New("not connected")

func viewKey(kind live.Kind, id domain.BroadcastID) string {
	if !kind.Scoped() {
		return string(kind)
	}
	return string(kind) + ":" + string(id)
}

// OpenView starts a live view for sid. Opening a key that is already open
// replaces the previous view.
func (o *Orchestrator) OpenView(sid core.SessionID, kind live.Kind, id domain.BroadcastID) error {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return domain.ErrUnauthenticated
	}
	if !kind.Scoped() {
		id = ""
	}
	key := viewKey(kind, id)
	o.CloseView(sid, kind, id)
	if kind == live.KindRoom && id != "" {
		// a room view puts the client on the room route
		o.Registry.SetRoute(sid, live.RoomPath(id))
	}

	v, err := live.Open(kind, id, &connViewer{o: o, sid: sid, sess: sess}, o.Services)
	if err != nil {
		return err
	}

	o.mu.Lock()
	st, ok := o.conns[sid]
	if !ok {
		o.mu.Unlock()
		v.Close()
		return ErrNotConnected
	}
	prev, replaced := st.views[key]
	st.views[key] = openView{kind: kind, id: id, view: v}
	o.mu.Unlock()

	if replaced {
		prev.view.Close()
	}
	if kind == live.KindRoom && !replaced {
		o.Presence.Enter(id, sid, sess.User())
		o.publishPresence(id)
	}
	log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("view", key).Msg("view opened")
	return nil
}

// CloseView stops one view of sid. Closing a view that is not open is a no-op.
func (o *Orchestrator) CloseView(sid core.SessionID, kind live.Kind, id domain.BroadcastID) {
	if !kind.Scoped() {
		id = ""
	}
	key := viewKey(kind, id)
	o.mu.Lock()
	st, ok := o.conns[sid]
	var ov openView
	if ok {
		ov, ok = st.views[key]
		delete(st.views, key)
	}
	o.mu.Unlock()
	if !ok {
		return
	}
	o.release(sid, ov)
	log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Str("view", key).Msg("view closed")
}

func (o *Orchestrator) closeAll(sid core.SessionID) {
	o.mu.Lock()
	st, ok := o.conns[sid]
	var views map[string]openView
	if ok {
		views = st.views
		st.views = make(map[string]openView)
	}
	o.mu.Unlock()
	for _, ov := range views {
		o.release(sid, ov)
	}
}

func (o *Orchestrator) release(sid core.SessionID, ov openView) {
	ov.view.Close()
	if ov.kind == live.KindRoom && o.Presence.Leave(ov.id, sid) {
		o.publishPresence(ov.id)
	}
}

// OpenViews lists the keys of the views sid has open.
func (o *Orchestrator) OpenViews(sid core.SessionID) []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	st, ok := o.conns[sid]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(st.views))
	for k := range st.views {
		out = append(out, k)
	}
	return out
}

func (o *Orchestrator) publishPresence(id domain.BroadcastID) {
	frame := presence{Type: "presence", Broadcast: id, Users: o.Presence.Users(id)}
	for _, sid := range o.Presence.Viewers(id) {
		if sess, ok := o.Registry.GetSession(sid); ok {
			o.push(sid, sess, frame)
		}
	}
}

// Send posts a chat message as sid's user.
func (o *Orchestrator) Send(ctx context.Context, sid core.SessionID, id domain.BroadcastID, text string) (domain.Message, error) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return domain.Message{}, domain.ErrUnauthenticated
	}
	return o.Services.Chat.Send(ctx, id, sess.User(), text)
}
