package core

import "github.com/dkeye/Meetup/internal/domain"

type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Viewer is the receiving end of live views: one signed-in client.
// Implementations must not block.
type Viewer interface {
	Session() domain.Session
	// Navigate pushes the client to path.
	Navigate(path string)
	// IsCurrent reports whether path is the client's current route.
	IsCurrent(path string) bool
	// Notify shows a transient notification.
	Notify(level NoticeLevel, text string)
	// Publish replaces the content of a view.
	Publish(view, key string, data any)
}
