package core

import (
	"context"

	"github.com/dkeye/Meetup/internal/domain"
)

// IdentityProvider is the external authority on who is signed in.
type IdentityProvider interface {
	// SignIn returns the session and the bearer token that proves it.
	SignIn(ctx context.Context, profile domain.Profile) (domain.Session, string, error)
	SignOut(ctx context.Context, token string) error
	Verify(token string) (domain.Session, error)
	// Watch calls fn with the current session for token, then again with nil
	// when the session ends. The returned func stops the watch.
	Watch(token string, fn func(*domain.Session)) func()
}
