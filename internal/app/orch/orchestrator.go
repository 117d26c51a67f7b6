package orch

import (
	"sync"

	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/app/live"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/rs/zerolog/log"
)

type connState struct {
	views        map[string]openView
	stopIdentity func()
}

type openView struct {
	kind live.Kind
	id   domain.BroadcastID
	view live.View
}

// Orchestrator owns the connected clients and the live views they have open.
type Orchestrator struct {
	Registry *app.Registry
	Presence *app.Presence
	Policy   app.Policy
	Identity core.IdentityProvider
	Services live.Services

	mu    sync.Mutex
	conns map[core.SessionID]*connState
}

func New(reg *app.Registry, presence *app.Presence, policy app.Policy, identity core.IdentityProvider, svc live.Services) *Orchestrator {
	return &Orchestrator{
		Registry: reg,
		Presence: presence,
		Policy:   policy,
		Identity: identity,
		Services: svc,
		conns:    make(map[core.SessionID]*connState),
	}
}

// Connect registers a client and follows its session. When the session is
// signed out every view of the client is closed and it is sent home.
func (o *Orchestrator) Connect(sid core.SessionID, sess core.ClientSession, cancel func()) {
	o.Registry.Bind(sid, sess, cancel)
	st := &connState{views: make(map[string]openView)}
	o.mu.Lock()
	o.conns[sid] = st
	o.mu.Unlock()

	stop := o.Identity.Watch(sess.Token(), func(s *domain.Session) {
		if s == nil {
			o.onSignedOut(sid)
		}
	})

	o.mu.Lock()
	defer o.mu.Unlock()
	if cur, ok := o.conns[sid]; ok && cur == st {
		st.stopIdentity = stop
		return
	}
	stop()
}

func (o *Orchestrator) onSignedOut(sid core.SessionID) {
	sess, ok := o.Registry.GetSession(sid)
	o.closeAll(sid)
	if ok {
		o.push(sid, sess, noticeFrame(core.NoticeInfo, "You have been signed out"))
		o.push(sid, sess, redirectFrame(live.HomePath))
	}
	o.Registry.Unbind(sid)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Msg("session signed out")
}

// Disconnect releases everything held for sid.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.closeAll(sid)
	o.mu.Lock()
	st, ok := o.conns[sid]
	delete(o.conns, sid)
	o.mu.Unlock()
	if ok && st.stopIdentity != nil {
		st.stopIdentity()
	}
	o.Registry.Unbind(sid)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Msg("disconnected")
}

// Session returns the user bound to sid.
func (o *Orchestrator) Session(sid core.SessionID) (domain.Session, bool) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return domain.Session{}, false
	}
	return sess.User(), true
}

// Navigate records the route the client reports being on.
func (o *Orchestrator) Navigate(sid core.SessionID, path string) {
	o.Registry.SetRoute(sid, path)
}

// Redirect pushes sid to path.
func (o *Orchestrator) Redirect(sid core.SessionID, path string) {
	if sess, ok := o.Registry.GetSession(sid); ok {
		o.Registry.SetRoute(sid, path)
		o.push(sid, sess, redirectFrame(path))
	}
}

// KickBySID drops a client's transport. Its pumps then call Disconnect.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	if !o.Registry.Cancel(sid) {
		return
	}
	log.Warn().Str("module", "app.orch").Str("sid", string(sid)).Msg("kicked")
}
