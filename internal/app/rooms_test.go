package app

import (
	"errors"
	"reflect"
	"slices"
	"testing"
	"time"

	"github.com/dkeye/Meetup/internal/domain"
)

func TestLeaveByParticipant(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))
	e.join(t, id, alice)
	e.join(t, id, bob)
	before, _ := e.broadcasts.Get(e.ctx, id)

	deleted, err := e.rooms.Leave(e.ctx, id, alice.UserID)
	if err != nil || deleted {
		t.Fatalf("leave = %v, %v", deleted, err)
	}
	after, _ := e.broadcasts.Get(e.ctx, id)
	if !slices.Equal(after.Participants, []domain.UserID{owner.UserID, bob.UserID}) {
		t.Fatalf("participants = %v", after.Participants)
	}
	before.Participants, after.Participants = nil, nil
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("other fields changed:\n%+v\n%+v", before, after)
	}

	if _, err := e.rooms.Leave(e.ctx, id, alice.UserID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("second leave: %v", err)
	}
}

func TestLeaveByOwnerTearsDown(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))
	e.join(t, id, alice)
	_, _ = e.requests.RequestJoin(e.ctx, id, bob)
	_, _ = e.chat.Send(e.ctx, id, owner, "bye")

	deleted, err := e.rooms.Leave(e.ctx, id, owner.UserID)
	if err != nil || !deleted {
		t.Fatalf("leave = %v, %v", deleted, err)
	}
	if _, err := e.broadcasts.Get(e.ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("broadcast survived: %v", err)
	}
	if n := e.count(t, requestsPath(id)) + e.count(t, messagesPath(id)); n != 0 {
		t.Fatalf("%d children left", n)
	}
}

func TestSendMessage(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))
	e.join(t, id, alice)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := e.chat.Send(e.ctx, id, alice, text); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("%q: err = %v", text, err)
		}
	}
	if _, err := e.chat.Send(e.ctx, id, bob, "let me in"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("non-participant: %v", err)
	}

	first, err := e.chat.Send(e.ctx, id, alice, "hello")
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.chat.Send(e.ctx, id, owner, "welcome")
	if err != nil {
		t.Fatal(err)
	}
	if !second.Timestamp.After(first.Timestamp) {
		t.Fatalf("timestamps not increasing: %v, %v", first.Timestamp, second.Timestamp)
	}

	msgs, err := e.chat.List(e.ctx, id, alice.UserID)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[0].Text != "hello" || msgs[1].UserName != "Olga" {
		t.Fatalf("messages = %+v", msgs)
	}
	if _, err := e.chat.List(e.ctx, id, bob.UserID); !errors.Is(err, domain.ErrNotParticipant) {
		t.Fatalf("list by stranger: %v", err)
	}
}

func TestSendAfterLeaveFails(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))
	e.join(t, id, alice)
	if _, err := e.rooms.Leave(e.ctx, id, alice.UserID); err != nil {
		t.Fatal(err)
	}
	if _, err := e.chat.Send(e.ctx, id, alice, "still here?"); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("err = %v", err)
	}
}

func TestWatchMessagesOrdered(t *testing.T) {
	e := newEnv(t)
	id := e.create(t, t0, t0.Add(time.Hour))

	var last []domain.Message
	stop := e.chat.Watch(id, func(m []domain.Message) { last = m })
	defer stop()

	for _, text := range []string{"one", "two", "three"} {
		if _, err := e.chat.Send(e.ctx, id, owner, text); err != nil {
			t.Fatal(err)
		}
	}
	var texts []string
	for _, m := range last {
		texts = append(texts, m.Text)
	}
	if !slices.Equal(texts, []string{"one", "two", "three"}) {
		t.Fatalf("texts = %v", texts)
	}
}

func TestSweeperExpiresDue(t *testing.T) {
	e := newEnv(t)
	due := e.create(t, t0, t0.Add(time.Hour))
	later := e.create(t, t0, t0.Add(3*time.Hour))
	_, _ = e.chat.Send(e.ctx, due, owner, "bye")

	s := NewSweeper(e.broadcasts, time.Minute, e.clock.Now)
	if n, err := s.Sweep(e.ctx); err != nil || n != 0 {
		t.Fatalf("early sweep = %d, %v", n, err)
	}

	e.clock.Advance(time.Hour)
	n, err := s.Sweep(e.ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
	if _, err := e.broadcasts.Get(e.ctx, due); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("due broadcast survived: %v", err)
	}
	if e.count(t, messagesPath(due)) != 0 {
		t.Fatal("messages survived")
	}
	if _, err := e.broadcasts.Get(e.ctx, later); err != nil {
		t.Fatalf("later broadcast removed: %v", err)
	}
}

func TestSweeperDisabled(t *testing.T) {
	e := newEnv(t)
	s := NewSweeper(e.broadcasts, 0, e.clock.Now)
	if err := s.Run(e.ctx); err != nil {
		t.Fatal(err)
	}
}
