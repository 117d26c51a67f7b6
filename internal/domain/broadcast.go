package domain

import (
	"slices"
	"strings"
	"time"
)

const (
	MaxActivityLen = 120
	MaxLocationLen = 200
)

type BroadcastID string

// Broadcast is an owner-created, time-bounded activity invitation.
// OwnerID is always a member of Participants.
type Broadcast struct {
	ID           BroadcastID `json:"id"`
	Activity     string      `json:"activity"`
	Location     string      `json:"location"`
	OwnerID      UserID      `json:"ownerId"`
	OwnerName    string      `json:"ownerName"`
	StartTime    time.Time   `json:"startTime"`
	EndTime      time.Time   `json:"endTime"`
	Active       bool        `json:"active"`
	Participants []UserID    `json:"participants"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// BroadcastInput carries the owner-editable fields.
type BroadcastInput struct {
	Activity  string    `json:"activity"`
	Location  string    `json:"location"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Normalize trims the text fields and checks the values that do not depend on
// the previous state of a broadcast.
func (in BroadcastInput) Normalize() (BroadcastInput, error) {
	in.Activity = strings.TrimSpace(in.Activity)
	in.Location = strings.TrimSpace(in.Location)
	switch {
	case in.Activity == "":
		return in, ErrActivityEmpty
	case in.Location == "":
		return in, ErrLocationEmpty
	case len(in.Activity) > MaxActivityLen, len(in.Location) > MaxLocationLen:
		return in, ErrFieldTooLong
	case !in.EndTime.After(in.StartTime):
		return in, ErrInvalidWindow
	}
	return in, nil
}

func (b Broadcast) IsOwner(uid UserID) bool { return b.OwnerID == uid }

func (b Broadcast) HasParticipant(uid UserID) bool {
	return slices.Contains(b.Participants, uid)
}

// Expired reports whether the broadcast's end time is at or before now.
func (b Broadcast) Expired(now time.Time) bool {
	return !b.EndTime.After(now)
}

// Role is the relation of a user to a broadcast.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleParticipant Role = "participant"
	RoleNone        Role = "none"
)

func (b Broadcast) RoleOf(uid UserID) Role {
	switch {
	case b.IsOwner(uid):
		return RoleOwner
	case b.HasParticipant(uid):
		return RoleParticipant
	}
	return RoleNone
}
