package app

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/dkeye/Meetup/internal/domain"
)

func TestRequestJoinLifecycle(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))

	req, err := e.requests.RequestJoin(e.ctx, id, alice)
	if err != nil {
		t.Fatal(err)
	}
	if req.Status != domain.StatusPending || req.UserID != alice.UserID || req.UserName != "Alice" || req.BroadcastID != id {
		t.Fatalf("unexpected request %+v", req)
	}

	again, err := e.requests.RequestJoin(e.ctx, id, alice)
	if err != nil || again.ID != req.ID {
		t.Fatalf("repeat request = %+v, %v", again, err)
	}
	if n := e.count(t, requestsPath(id)); n != 1 {
		t.Fatalf("%d requests stored", n)
	}

	if err := e.requests.Accept(e.ctx, id, req.ID, owner.UserID); err != nil {
		t.Fatal(err)
	}
	st, _ := e.requests.StatusFor(e.ctx, id, alice.UserID)
	b, _ := e.broadcasts.Get(e.ctx, id)
	if st != domain.StatusAccepted || !b.HasParticipant(alice.UserID) {
		t.Fatalf("after accept: status %q participants %v", st, b.Participants)
	}
}

func TestRequestJoinByMembersFails(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))
	e.join(t, id, alice)

	for _, u := range []domain.Session{owner, alice} {
		if _, err := e.requests.RequestJoin(e.ctx, id, u); !errors.Is(err, domain.ErrAuthorization) {
			t.Fatalf("%s: err = %v, want authorization", u.UserID, err)
		}
	}
}

func TestRequestJoinAfterDecision(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))
	req, _ := e.requests.RequestJoin(e.ctx, id, bob)
	if err := e.requests.Reject(e.ctx, id, req.ID, owner.UserID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.requests.RequestJoin(e.ctx, id, bob); !errors.Is(err, domain.ErrRequestDecided) {
		t.Fatalf("err = %v", err)
	}
}

func TestRequestJoinMissingBroadcast(t *testing.T) {
	e := newEnv(t)
	if _, err := e.requests.RequestJoin(e.ctx, "gone", alice); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestRejectLeavesParticipants(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))
	e.join(t, id, alice)
	before, _ := e.broadcasts.Get(e.ctx, id)

	req, _ := e.requests.RequestJoin(e.ctx, id, bob)
	if err := e.requests.Reject(e.ctx, id, req.ID, owner.UserID); err != nil {
		t.Fatal(err)
	}
	after, _ := e.broadcasts.Get(e.ctx, id)
	st, _ := e.requests.StatusFor(e.ctx, id, bob.UserID)
	if st != domain.StatusRejected {
		t.Fatalf("status = %q", st)
	}
	if !slices.Equal(before.Participants, after.Participants) {
		t.Fatalf("participants changed: %v -> %v", before.Participants, after.Participants)
	}
}

func TestDecideChecks(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))
	req, _ := e.requests.RequestJoin(e.ctx, id, alice)

	if err := e.requests.Accept(e.ctx, id, req.ID, alice.UserID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("accept by requester: %v", err)
	}
	if err := e.requests.Reject(e.ctx, id, req.ID, bob.UserID); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("reject by stranger: %v", err)
	}
	if err := e.requests.Accept(e.ctx, id, "nobody", owner.UserID); !errors.Is(err, domain.ErrRequestGone) {
		t.Fatalf("accept missing: %v", err)
	}
	if err := e.requests.Accept(e.ctx, id, req.ID, owner.UserID); err != nil {
		t.Fatal(err)
	}
	if err := e.requests.Reject(e.ctx, id, req.ID, owner.UserID); !errors.Is(err, domain.ErrRequestNotPending) {
		t.Fatalf("reject accepted: %v", err)
	}
	b, _ := e.broadcasts.Get(e.ctx, id)
	if !b.HasParticipant(alice.UserID) {
		t.Fatal("late reject removed participant")
	}
}

func TestStatusForNone(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))
	st, err := e.requests.StatusFor(e.ctx, id, bob.UserID)
	if err != nil || st != domain.StatusNone {
		t.Fatalf("status = %q, %v", st, err)
	}
}

func TestListPendingForOwner(t *testing.T) {
	e := newEnv(t)
	b1 := e.create(t, t0, t0.Add(time.Hour))
	b2 := e.create(t, t0, t0.Add(2*time.Hour))
	_, _ = e.requests.RequestJoin(e.ctx, b1, alice)
	_, _ = e.requests.RequestJoin(e.ctx, b2, bob)
	_, _ = e.requests.RequestJoin(e.ctx, b2, alice)
	e.join(t, b1, bob)

	got, err := e.requests.ListPendingForOwner(e.ctx, owner.UserID)
	if err != nil {
		t.Fatal(err)
	}
	var users []domain.UserID
	for _, r := range got {
		if r.Status != domain.StatusPending {
			t.Fatalf("non-pending request listed: %+v", r)
		}
		users = append(users, r.UserID)
	}
	// oldest first
	if !slices.Equal(users, []domain.UserID{alice.UserID, bob.UserID, alice.UserID}) {
		t.Fatalf("users = %v", users)
	}

	none, err := e.requests.ListPendingForOwner(e.ctx, alice.UserID)
	if err != nil || len(none) != 0 {
		t.Fatalf("alice owns nothing: %v, %v", none, err)
	}
}

func TestWatchStatus(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))

	var seen []domain.RequestStatus
	stop := e.requests.WatchStatus(id, alice.UserID, func(st domain.RequestStatus) { seen = append(seen, st) })
	defer stop()

	e.join(t, id, alice)
	want := []domain.RequestStatus{domain.StatusNone, domain.StatusPending, domain.StatusAccepted}
	if !slices.Equal(seen, want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
}
