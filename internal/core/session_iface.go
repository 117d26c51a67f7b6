package core

import "github.com/dkeye/Meetup/internal/domain"

// ClientSession binds a signed-in user and its transport endpoint.
// This is what the orchestrator stores and pushes view updates to.
type ClientSession interface {
	User() domain.Session
	Token() string
	Signal() SignalConnection
}
