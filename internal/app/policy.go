package app

import "github.com/dkeye/Meetup/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	KickMember
)

// Policy decides what happens to a client whose outbound buffer is full.
type Policy interface {
	OnBackPressure(sess core.ClientSession) BackpressureAction
}

// SimplePolicy disconnects slow clients. Live views always resend full
// snapshots, so a reconnecting client loses nothing.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.ClientSession) BackpressureAction {
	return KickMember
}
