package live

import (
	"fmt"
	"time"

	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
)

const HomePath = "/"

// RoomPath is the client route of a broadcast's chat room.
func RoomPath(id domain.BroadcastID) string { return "/chat/" + string(id) }

type Kind string

const (
	KindBroadcasts      Kind = "broadcasts"
	KindPendingRequests Kind = "pending_requests"
	KindRequestStatus   Kind = "request_status"
	KindRoom            Kind = "room"
	KindMessages        Kind = "messages"
)

// Scoped reports whether the view is opened for one broadcast.
func (k Kind) Scoped() bool { return k == KindRoom || k == KindMessages }

var (
	ErrUnknownView       = fmt.Errorf("%w: unknown view", domain.ErrValidation)
	ErrBroadcastRequired = fmt.Errorf("%w: view needs a broadcast", domain.ErrValidation)
)

// View is an open live view. Close releases every subscription it holds
// and may be called more than once.
type View interface {
	Close()
}

// Services are what the views read from.
type Services struct {
	Broadcasts *app.Broadcasts
	Requests   *app.Requests
	Chat       *app.Chat
	Now        func() time.Time
}

func (s Services) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Open starts a view of kind for v. id is required for room and messages.
func Open(kind Kind, id domain.BroadcastID, v core.Viewer, s Services) (View, error) {
	if kind.Scoped() && id == "" {
		return nil, ErrBroadcastRequired
	}
	switch kind {
	case KindBroadcasts:
		return OpenBroadcastList(v, s), nil
	case KindPendingRequests:
		return OpenPendingRequests(v, s), nil
	case KindRequestStatus:
		return OpenRequestStatus(v, s), nil
	case KindRoom:
		return OpenRoom(id, v, s), nil
	case KindMessages:
		return OpenMessages(id, v, s), nil
	}
	return nil, ErrUnknownView
}
