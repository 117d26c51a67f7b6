package live

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/core/mocks"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
	"go.uber.org/mock/gomock"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var (
	t0    = time.Date(2026, 5, 1, 18, 0, 0, 0, time.UTC)
	owner = domain.Session{UserID: "o", DisplayName: "Olga"}
	alice = domain.Session{UserID: "a", DisplayName: "Alice"}
	bob   = domain.Session{UserID: "b", DisplayName: "Bob"}
)

type env struct {
	ctx   context.Context
	clock *fakeClock
	svc   Services
	rooms *app.Rooms
	sweep *app.Sweeper
}

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := &fakeClock{now: t0}
	db := docstore.New(docstore.NewMemoryBackend(), docstore.WithClock(clock.Now))
	t.Cleanup(func() { _ = db.Close() })
	b := app.NewBroadcasts(db, clock.Now)
	return &env{
		ctx:   context.Background(),
		clock: clock,
		svc: Services{
			Broadcasts: b,
			Requests:   app.NewRequests(db),
			Chat:       app.NewChat(db),
			Now:        clock.Now,
		},
		rooms: app.NewRooms(db, b),
		sweep: app.NewSweeper(b, time.Minute, clock.Now),
	}
}

func (e *env) create(t *testing.T, activity string, end time.Time) domain.BroadcastID {
	t.Helper()
	id, err := e.svc.Broadcasts.Create(e.ctx, owner, domain.BroadcastInput{
		Activity: activity, Location: "Park", StartTime: t0, EndTime: end,
	})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func (e *env) request(t *testing.T, id domain.BroadcastID, u domain.Session) domain.RequestID {
	t.Helper()
	req, err := e.svc.Requests.RequestJoin(e.ctx, id, u)
	if err != nil {
		t.Fatal(err)
	}
	return req.ID
}

func (e *env) accept(t *testing.T, id domain.BroadcastID, rid domain.RequestID) {
	t.Helper()
	if err := e.svc.Requests.Accept(e.ctx, id, rid, owner.UserID); err != nil {
		t.Fatal(err)
	}
}

// recorder keeps the last payload published per view key.
type recorder struct {
	mu    sync.Mutex
	last  map[string]any
	count int
}

func (r *recorder) get(key string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[key]
}

func (r *recorder) published() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func newViewer(ctrl *gomock.Controller, s domain.Session) (*mocks.MockViewer, *recorder) {
	rec := &recorder{last: make(map[string]any)}
	v := mocks.NewMockViewer(ctrl)
	v.EXPECT().Session().Return(s).AnyTimes()
	v.EXPECT().Publish(gomock.Any(), gomock.Any(), gomock.Any()).Do(func(view, key string, data any) {
		rec.mu.Lock()
		rec.last[view+"/"+key] = data
		rec.count++
		rec.mu.Unlock()
	}).AnyTimes()
	return v, rec
}

func TestFanOutSync(t *testing.T) {
	var mu sync.Mutex
	running := map[string]int{}
	f := NewFanOut(func(k string) docstore.Unsubscribe {
		mu.Lock()
		running[k]++
		mu.Unlock()
		return func() {
			mu.Lock()
			running[k]--
			mu.Unlock()
		}
	})
	live := func() []string {
		mu.Lock()
		defer mu.Unlock()
		var out []string
		for k, n := range running {
			if n > 0 {
				out = append(out, k)
			}
			if n > 1 || n < 0 {
				t.Fatalf("%s started %d times", k, n)
			}
		}
		slices.Sort(out)
		return out
	}

	f.Sync([]string{"a", "b", "a"})
	if got := live(); !slices.Equal(got, []string{"a", "b"}) {
		t.Fatalf("after first sync: %v", got)
	}
	f.Sync([]string{"b", "c"})
	if got := live(); !slices.Equal(got, []string{"b", "c"}) {
		t.Fatalf("after second sync: %v", got)
	}
	if !f.Has("c") || f.Has("a") || f.Len() != 2 {
		t.Fatal("bookkeeping out of date")
	}
	f.Close()
	if got := live(); len(got) != 0 {
		t.Fatalf("after close: %v", got)
	}
	f.Sync([]string{"d"})
	if got := live(); len(got) != 0 {
		t.Fatalf("sync after close started %v", got)
	}
}

func TestFanOutChildRemovedWhileStarting(t *testing.T) {
	stopped := 0
	var f *FanOut[string]
	f = NewFanOut(func(k string) docstore.Unsubscribe {
		if k == "a" {
			// the parent set changes while a's first snapshot is delivered
			f.Sync([]string{"b"})
		}
		return func() { stopped++ }
	})
	f.Sync([]string{"a"})
	if f.Has("a") || !f.Has("b") {
		t.Fatal("a should be gone and b running")
	}
	if stopped != 1 {
		t.Fatalf("stopped = %d, want a's handle released", stopped)
	}
}

func TestBroadcastListAnnotates(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	v, rec := newViewer(ctrl, alice)

	view := OpenBroadcastList(v, e.svc)
	defer view.Close()

	id := e.create(t, "Chess", t0.Add(time.Hour))
	entries := func() []ListEntry { return rec.get("broadcasts/").([]ListEntry) }
	if got := entries(); len(got) != 1 || got[0].Role != domain.RoleNone || got[0].RequestStatus != domain.StatusNone {
		t.Fatalf("initial = %+v", got)
	}

	rid := e.request(t, id, alice)
	if got := entries(); got[0].RequestStatus != domain.StatusPending {
		t.Fatalf("after request = %+v", got)
	}
	e.accept(t, id, rid)
	if got := entries(); got[0].Role != domain.RoleParticipant || got[0].RequestStatus != domain.StatusAccepted {
		t.Fatalf("after accept = %+v", got)
	}

	if err := e.svc.Broadcasts.Expire(e.ctx, id); err != nil {
		t.Fatal(err)
	}
	if got := entries(); len(got) != 0 {
		t.Fatalf("after expire = %+v", got)
	}
}

func TestPendingRequestsFanOut(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	v, rec := newViewer(ctrl, owner)

	b1 := e.create(t, "Chess", t0.Add(time.Hour))
	view := OpenPendingRequests(v, e.svc).(*pendingRequests)
	b2 := e.create(t, "Go", t0.Add(time.Hour))

	e.request(t, b1, alice)
	e.request(t, b2, bob)
	pending := func() []PendingEntry { return rec.get("pending_requests/").([]PendingEntry) }
	got := pending()
	if len(got) != 2 || got[0].UserID != alice.UserID || got[0].Activity != "Chess" || got[1].Activity != "Go" {
		t.Fatalf("pending = %+v", got)
	}
	if view.fan.Len() != 2 {
		t.Fatalf("children = %d", view.fan.Len())
	}

	if err := e.svc.Broadcasts.Expire(e.ctx, b1); err != nil {
		t.Fatal(err)
	}
	got = pending()
	if len(got) != 1 || got[0].BroadcastID != b2 {
		t.Fatalf("after expire = %+v", got)
	}
	if view.fan.Len() != 1 {
		t.Fatalf("child of removed broadcast leaked: %d", view.fan.Len())
	}

	view.Close()
	if view.fan.Len() != 0 {
		t.Fatal("children survive close")
	}
	n := rec.published()
	e.request(t, b2, alice)
	e.create(t, "Tennis", t0.Add(time.Hour))
	if rec.published() != n {
		t.Fatal("published after close")
	}
}

func TestPendingIgnoresLateChildDelivery(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	v, rec := newViewer(ctrl, owner)

	b1 := e.create(t, "Chess", t0.Add(time.Hour))
	b2 := e.create(t, "Go", t0.Add(time.Hour))
	view := OpenPendingRequests(v, e.svc).(*pendingRequests)
	defer view.Close()
	e.request(t, b2, bob)

	if err := e.svc.Broadcasts.Expire(e.ctx, b1); err != nil {
		t.Fatal(err)
	}
	n := rec.published()
	view.onPending(b1, []domain.JoinRequest{{ID: "late", BroadcastID: b1, UserID: alice.UserID}})
	if rec.published() != n {
		t.Fatal("published for a broadcast no longer owned")
	}
	if _, ok := view.byBroadcast[b1]; ok {
		t.Fatal("late delivery stored")
	}
	got := rec.get("pending_requests/").([]PendingEntry)
	if len(got) != 1 || got[0].BroadcastID != b2 {
		t.Fatalf("pending = %+v", got)
	}
}

func TestRequestStatusNavigatesOnAccept(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	v, rec := newViewer(ctrl, alice)

	id := e.create(t, "Chess", t0.Add(time.Hour))
	view := OpenRequestStatus(v, e.svc)
	defer view.Close()

	rid := e.request(t, id, alice)
	if st := rec.get("request_status/").(map[domain.BroadcastID]domain.RequestStatus); st[id] != domain.StatusPending {
		t.Fatalf("status = %v", st)
	}

	v.EXPECT().Notify(core.NoticeInfo, "Your request to join Chess was accepted").Times(1)
	v.EXPECT().Navigate(RoomPath(id)).Times(1)
	e.accept(t, id, rid)
}

func TestRequestStatusNoNavigateForOldAccept(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	v, _ := newViewer(ctrl, alice)

	id := e.create(t, "Chess", t0.Add(time.Hour))
	e.accept(t, id, e.request(t, id, alice))

	// no Navigate expected: the acceptance happened before the view opened
	view := OpenRequestStatus(v, e.svc)
	view.Close()
}

func TestRoomRedirectsNonParticipant(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	v := mocks.NewMockViewer(ctrl)
	v.EXPECT().Session().Return(bob).AnyTimes()

	id := e.create(t, "Chess", t0.Add(time.Hour))
	v.EXPECT().IsCurrent(RoomPath(id)).Return(true)
	v.EXPECT().Navigate(HomePath).Times(1)

	view := OpenRoom(id, v, e.svc)
	view.Close()
}

func TestRoomPublishesBroadcastAndMessages(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	v, rec := newViewer(ctrl, owner)

	id := e.create(t, "Chess", t0.Add(time.Hour))
	view := OpenRoom(id, v, e.svc)
	defer view.Close()

	if b, ok := rec.get("room/" + string(id)).(domain.Broadcast); !ok || b.Activity != "Chess" {
		t.Fatalf("room = %+v", rec.get("room/"+string(id)))
	}
	if _, err := e.svc.Chat.Send(e.ctx, id, owner, "hi"); err != nil {
		t.Fatal(err)
	}
	msgs := rec.get("messages/" + string(id)).([]domain.Message)
	if len(msgs) != 1 || msgs[0].Text != "hi" {
		t.Fatalf("messages = %+v", msgs)
	}
}

func TestRoomExpiryNotifiesOnce(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	id := e.create(t, "Chess", t0.Add(time.Hour))
	e.accept(t, id, e.request(t, id, alice))

	ov, _ := newViewer(ctrl, owner)
	av, _ := newViewer(ctrl, alice)
	for _, v := range []*mocks.MockViewer{ov, av} {
		v.EXPECT().Notify(core.NoticeInfo, noticeEnded).Times(1)
		v.EXPECT().IsCurrent(RoomPath(id)).Return(true).Times(1)
		v.EXPECT().Navigate(HomePath).Times(1)
	}

	oview := OpenRoom(id, ov, e.svc)
	defer oview.Close()
	aview := OpenRoom(id, av, e.svc)
	defer aview.Close()

	e.clock.Set(t0.Add(time.Hour + time.Second))
	// any observation of the document after the end time triggers expiry
	if err := e.svc.Broadcasts.Edit(e.ctx, id, owner.UserID, domain.BroadcastInput{
		Activity: "Chess", Location: "Cafe", StartTime: t0, EndTime: t0.Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
	// the owner's view deleted it
	if _, err := e.svc.Broadcasts.Get(e.ctx, id); domain.Kind(err) != "not_found" {
		t.Fatalf("broadcast survived: %v", err)
	}
	// later observations do not notify again
	if _, err := e.svc.Broadcasts.Create(e.ctx, owner, domain.BroadcastInput{
		Activity: "Go", Location: "Park", StartTime: t0.Add(2 * time.Hour), EndTime: t0.Add(3 * time.Hour),
	}); err != nil {
		t.Fatal(err)
	}
}

func TestRoomGoneWhileViewing(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	id := e.create(t, "Chess", t0.Add(time.Hour))
	e.accept(t, id, e.request(t, id, alice))

	av, _ := newViewer(ctrl, alice)
	av.EXPECT().Notify(core.NoticeInfo, noticeEnded).Times(1)
	// the viewer already moved elsewhere: no redirect
	av.EXPECT().IsCurrent(RoomPath(id)).Return(false).Times(1)

	view := OpenRoom(id, av, e.svc)
	defer view.Close()

	if _, err := e.rooms.Leave(e.ctx, id, owner.UserID); err != nil {
		t.Fatal(err)
	}
}

func TestMessagesViewGated(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	v, rec := newViewer(ctrl, alice)

	id := e.create(t, "Chess", t0.Add(time.Hour))
	view := OpenMessages(id, v, e.svc)
	defer view.Close()

	_, _ = e.svc.Chat.Send(e.ctx, id, owner, "secret")
	if rec.get("messages/"+string(id)) != nil {
		t.Fatal("non-participant got messages")
	}
	e.accept(t, id, e.request(t, id, alice))
	if msgs, _ := rec.get("messages/" + string(id)).([]domain.Message); len(msgs) != 1 {
		t.Fatalf("participant messages = %+v", msgs)
	}
}

func TestOpenValidates(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	v, _ := newViewer(ctrl, alice)

	if _, err := Open(KindRoom, "", v, e.svc); err != ErrBroadcastRequired {
		t.Fatalf("room without id: %v", err)
	}
	if _, err := Open("nope", "", v, e.svc); err != ErrUnknownView {
		t.Fatalf("unknown view: %v", err)
	}
	view, err := Open(KindBroadcasts, "", v, e.svc)
	if err != nil {
		t.Fatal(err)
	}
	view.Close()
	view.Close()
}

// Owner O creates a broadcast for [T, T+1h]; A asks to join and is taken
// into the room when O accepts; B cannot post; after the end both rooms
// notice exactly once and the broadcast is gone.
func TestMeetupScenario(t *testing.T) {
	e := newEnv(t)
	ctrl := gomock.NewController(t)
	ov, _ := newViewer(ctrl, owner)
	av, _ := newViewer(ctrl, alice)

	id := e.create(t, "Chess", t0.Add(time.Hour))

	status := OpenRequestStatus(av, e.svc)
	defer status.Close()
	rid := e.request(t, id, alice)
	if st, _ := e.svc.Requests.StatusFor(e.ctx, id, alice.UserID); st != domain.StatusPending {
		t.Fatalf("status = %q", st)
	}

	av.EXPECT().Notify(core.NoticeInfo, gomock.Any()).Times(1)
	av.EXPECT().Navigate(RoomPath(id)).Times(1)
	e.accept(t, id, rid)

	if _, err := e.svc.Chat.Send(e.ctx, id, bob, "hi"); domain.Kind(err) != "authorization" {
		t.Fatalf("B send: %v", err)
	}

	oroom := OpenRoom(id, ov, e.svc)
	defer oroom.Close()
	aroom := OpenRoom(id, av, e.svc)
	defer aroom.Close()

	for _, v := range []*mocks.MockViewer{ov, av} {
		v.EXPECT().Notify(core.NoticeInfo, noticeEnded).Times(1)
		v.EXPECT().IsCurrent(RoomPath(id)).Return(true).Times(1)
		v.EXPECT().Navigate(HomePath).Times(1)
	}
	e.clock.Set(t0.Add(time.Hour + time.Second))
	if n, err := e.sweep.Sweep(e.ctx); err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
	if _, err := e.svc.Broadcasts.Get(e.ctx, id); domain.Kind(err) != "not_found" {
		t.Fatalf("broadcast survived: %v", err)
	}
}
