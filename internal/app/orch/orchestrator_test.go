package orch

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/app/live"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/core/mocks"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
	"go.uber.org/mock/gomock"
)

var (
	owner = domain.Session{UserID: "o", DisplayName: "Olga"}
	alice = domain.Session{UserID: "a", DisplayName: "Alice"}
)

type wire struct {
	mu     sync.Mutex
	frames []map[string]any
}

func (w *wire) of(typ string) []map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []map[string]any
	for _, f := range w.frames {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

func newConn(t *testing.T, ctrl *gomock.Controller) (*mocks.MockSignalConnection, *wire) {
	t.Helper()
	w := &wire{}
	conn := mocks.NewMockSignalConnection(ctrl)
	conn.EXPECT().TrySend(gomock.Any()).DoAndReturn(func(f core.Frame) error {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Errorf("bad frame %s: %v", f, err)
		}
		w.mu.Lock()
		w.frames = append(w.frames, m)
		w.mu.Unlock()
		return nil
	}).AnyTimes()
	return conn, w
}

type fixture struct {
	o        *Orchestrator
	svc      live.Services
	identity *mocks.MockIdentityProvider
}

func newFixture(t *testing.T, ctrl *gomock.Controller) *fixture {
	t.Helper()
	db := docstore.New(docstore.NewMemoryBackend())
	t.Cleanup(func() { _ = db.Close() })
	b := app.NewBroadcasts(db, nil)
	svc := live.Services{
		Broadcasts: b,
		Requests:   app.NewRequests(db),
		Chat:       app.NewChat(db),
	}
	identity := mocks.NewMockIdentityProvider(ctrl)
	return &fixture{
		o:        New(app.NewRegistry(), app.NewPresence(), app.SimplePolicy{}, identity, svc),
		svc:      svc,
		identity: identity,
	}
}

// connect binds sid and returns the captured session watcher.
func (f *fixture) connect(sid core.SessionID, user domain.Session, conn core.SignalConnection, cancel func()) (func(*domain.Session), *bool) {
	var watcher func(*domain.Session)
	stopped := false
	f.identity.EXPECT().Watch("tok-"+string(sid), gomock.Any()).DoAndReturn(func(_ string, fn func(*domain.Session)) func() {
		watcher = fn
		fn(&user)
		return func() { stopped = true }
	})
	f.o.Connect(sid, core.NewClientSession(user, "tok-"+string(sid), conn), cancel)
	return watcher, &stopped
}

func (f *fixture) broadcast(t *testing.T) domain.BroadcastID {
	t.Helper()
	now := time.Now()
	id, err := f.svc.Broadcasts.Create(context.Background(), owner, domain.BroadcastInput{
		Activity: "Chess", Location: "Park", StartTime: now, EndTime: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestOpenViewPublishesSnapshots(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	conn, w := newConn(t, ctrl)
	f.connect("s1", alice, conn, nil)

	if err := f.o.OpenView("s1", live.KindBroadcasts, "ignored"); err != nil {
		t.Fatal(err)
	}
	f.broadcast(t)

	snaps := w.of("snapshot")
	if len(snaps) < 2 {
		t.Fatalf("snapshots = %v", snaps)
	}
	last := snaps[len(snaps)-1]
	if last["view"] != "broadcasts" || len(last["data"].([]any)) != 1 {
		t.Fatalf("last snapshot = %v", last)
	}
	if got := f.o.OpenViews("s1"); !slices.Equal(got, []string{"broadcasts"}) {
		t.Fatalf("views = %v", got)
	}
}

func TestOpenViewReplacesSameKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	conn, _ := newConn(t, ctrl)
	f.connect("s1", owner, conn, nil)
	id := f.broadcast(t)

	for range 3 {
		if err := f.o.OpenView("s1", live.KindRoom, id); err != nil {
			t.Fatal(err)
		}
	}
	_ = f.o.OpenView("s1", live.KindPendingRequests, "")
	got := f.o.OpenViews("s1")
	slices.Sort(got)
	if !slices.Equal(got, []string{"pending_requests", "room:" + string(id)}) {
		t.Fatalf("views = %v", got)
	}
	if users := f.o.Presence.Users(id); len(users) != 1 {
		t.Fatalf("presence = %v", users)
	}

	f.o.CloseView("s1", live.KindRoom, id)
	f.o.CloseView("s1", live.KindRoom, id)
	if len(f.o.Presence.Users(id)) != 0 {
		t.Fatal("presence kept after close")
	}
}

func TestOpenViewErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	if err := f.o.OpenView("nobody", live.KindBroadcasts, ""); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("unknown sid: %v", err)
	}
	conn, _ := newConn(t, ctrl)
	f.connect("s1", alice, conn, nil)
	if err := f.o.OpenView("s1", live.KindRoom, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("room without broadcast: %v", err)
	}
}

func TestSignOutClosesViewsAndRedirects(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	conn, w := newConn(t, ctrl)
	watcher, _ := f.connect("s1", alice, conn, nil)

	_ = f.o.OpenView("s1", live.KindBroadcasts, "")
	_ = f.o.OpenView("s1", live.KindRequestStatus, "")

	watcher(nil)

	if len(f.o.OpenViews("s1")) != 0 {
		t.Fatal("views survive sign-out")
	}
	if r := w.of("redirect"); len(r) != 1 || r[0]["path"] != "/" {
		t.Fatalf("redirects = %v", r)
	}
	if _, ok := f.o.Session("s1"); ok {
		t.Fatal("session still bound")
	}
	n := len(w.of("snapshot"))
	f.broadcast(t)
	if len(w.of("snapshot")) != n {
		t.Fatal("snapshot after sign-out")
	}
}

func TestDisconnectStopsIdentityWatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	conn, _ := newConn(t, ctrl)
	_, stopped := f.connect("s1", alice, conn, nil)
	_ = f.o.OpenView("s1", live.KindBroadcasts, "")

	f.o.Disconnect("s1")
	if !*stopped {
		t.Fatal("identity watch not stopped")
	}
	if f.o.OpenViews("s1") != nil || f.o.Registry.Count() != 0 {
		t.Fatal("state kept after disconnect")
	}
}

func TestBackpressureKicks(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	conn := mocks.NewMockSignalConnection(ctrl)
	conn.EXPECT().TrySend(gomock.Any()).Return(core.ErrBackpressure).AnyTimes()
	kicked := false
	f.connect("s1", alice, conn, func() { kicked = true })

	_ = f.o.OpenView("s1", live.KindBroadcasts, "")
	if !kicked {
		t.Fatal("slow client not kicked")
	}
}

func TestPresenceFanOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	id := f.broadcast(t)
	oc, ow := newConn(t, ctrl)
	ac, _ := newConn(t, ctrl)
	f.connect("s1", owner, oc, nil)
	f.connect("s2", alice, ac, nil)

	_ = f.o.OpenView("s1", live.KindRoom, id)
	// alice is no participant; she is sent home but counted until her
	// client closes the view
	_ = f.o.OpenView("s2", live.KindRoom, id)

	frames := ow.of("presence")
	last := frames[len(frames)-1]
	if last["broadcast"] != string(id) || len(last["users"].([]any)) != 2 {
		t.Fatalf("presence = %v", last)
	}
	f.o.Disconnect("s2")
	frames = ow.of("presence")
	if users := frames[len(frames)-1]["users"].([]any); len(users) != 1 {
		t.Fatalf("after disconnect = %v", users)
	}
}

func TestRoomRedirectsNonParticipantWithoutNavigate(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	id := f.broadcast(t)
	conn, w := newConn(t, ctrl)
	f.connect("s1", alice, conn, nil)

	if err := f.o.OpenView("s1", live.KindRoom, id); err != nil {
		t.Fatal(err)
	}
	if r := w.of("redirect"); len(r) != 1 || r[0]["path"] != live.HomePath {
		t.Fatalf("redirects = %v", r)
	}
	if snaps := w.of("snapshot"); len(snaps) != 0 {
		t.Fatalf("stranger got snapshots %v", snaps)
	}
	if got := f.o.Registry.Route("s1"); got != live.HomePath {
		t.Fatalf("route = %q", got)
	}
}

func TestRoomSetsRouteForParticipant(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	id := f.broadcast(t)
	conn, w := newConn(t, ctrl)
	f.connect("s1", owner, conn, nil)

	_ = f.o.OpenView("s1", live.KindRoom, id)
	if got := f.o.Registry.Route("s1"); got != live.RoomPath(id) {
		t.Fatalf("route = %q", got)
	}
	if len(w.of("redirect")) != 0 {
		t.Fatal("participant redirected")
	}
}

func TestSendRequiresSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	f := newFixture(t, ctrl)
	if _, err := f.o.Send(context.Background(), "nobody", "b", "hi"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("err = %v", err)
	}
	id := f.broadcast(t)
	conn, _ := newConn(t, ctrl)
	f.connect("s1", owner, conn, nil)
	msg, err := f.o.Send(context.Background(), "s1", id, "hello")
	if err != nil || msg.UserID != owner.UserID {
		t.Fatalf("send = %+v, %v", msg, err)
	}
}
