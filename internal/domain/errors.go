package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the app layer wraps exactly one of them.
var (
	ErrValidation    = errors.New("validation error")
	ErrAuthorization = errors.New("authorization error")
	ErrNotFound      = errors.New("not found")
	ErrTransport     = errors.New("transport error")
)

var (
	ErrInvalidWindow      = fmt.Errorf("%w: end time must be after start time", ErrValidation)
	ErrStartInPast        = fmt.Errorf("%w: start time cannot be in the past", ErrValidation)
	ErrActivityEmpty      = fmt.Errorf("%w: activity is required", ErrValidation)
	ErrLocationEmpty      = fmt.Errorf("%w: location is required", ErrValidation)
	ErrFieldTooLong       = fmt.Errorf("%w: field too long", ErrValidation)
	ErrEmptyMessage       = fmt.Errorf("%w: message is empty", ErrValidation)
	ErrRequestNotPending  = fmt.Errorf("%w: request is not pending", ErrValidation)
	ErrPasswordTooShort   = fmt.Errorf("%w: password is too short", ErrValidation)
	ErrUnauthenticated    = fmt.Errorf("%w: sign in required", ErrAuthorization)
	ErrBadCredentials     = fmt.Errorf("%w: wrong e-mail or password", ErrUnauthenticated)
	ErrNotOwner           = fmt.Errorf("%w: only the owner can do this", ErrAuthorization)
	ErrAlreadyParticipant = fmt.Errorf("%w: already a participant", ErrAuthorization)
	ErrRequestDecided     = fmt.Errorf("%w: request already decided", ErrAuthorization)
	ErrNotParticipant     = fmt.Errorf("%w: not a participant", ErrAuthorization)
	ErrBroadcastGone      = fmt.Errorf("%w: broadcast does not exist", ErrNotFound)
	ErrRequestGone        = fmt.Errorf("%w: request does not exist", ErrNotFound)
)

// Transport wraps a store failure.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransport, err)
}

// Kind reports which of the four error kinds err belongs to, or "" for nil
// and unclassified errors.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrTransport):
		return "transport"
	}
	return ""
}
