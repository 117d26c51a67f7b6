// Package domain contains entities and their invariants, without storage or transport.
package domain

import "strings"

const (
	MaxDisplayNameLen = 64
	MaxEmailLen       = 254
	MinPasswordLen    = 6
	// bcrypt ignores everything past 72 bytes
	MaxPasswordLen = 72
)

type UserID string

// Session is the signed-in identity as reported by the identity provider.
type Session struct {
	UserID      UserID `json:"userId"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Profile is what a user presents at sign-in.
type Profile struct {
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoURL"`
	// Password guards the account of Email. Guests without an e-mail
	// address sign in without one.
	Password string `json:"password,omitempty"`
}

func (p Profile) Validate() error {
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		return ErrUnauthenticated
	}
	if len(name) > MaxDisplayNameLen || len(p.Email) > MaxEmailLen || len(p.Password) > MaxPasswordLen {
		return ErrFieldTooLong
	}
	if strings.TrimSpace(p.Email) != "" && len(p.Password) < MinPasswordLen {
		return ErrPasswordTooShort
	}
	return nil
}
