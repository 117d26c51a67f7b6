package core

import "github.com/dkeye/Meetup/internal/domain"

// SessionCache holds the last known session of one client so a reload can
// render without waiting for the identity provider. It is a hint only.
type SessionCache interface {
	Get() (domain.Session, bool)
	Set(s domain.Session) error
	Remove() error
}
