package domain

import "time"

type RequestID string

type RequestStatus string

const (
	StatusNone     RequestStatus = ""
	StatusPending  RequestStatus = "pending"
	StatusAccepted RequestStatus = "accepted"
	StatusRejected RequestStatus = "rejected"
)

// JoinRequest is a non-owner's request to join a broadcast. UserID and
// UserName never change after creation; only the owner moves Status.
type JoinRequest struct {
	ID          RequestID     `json:"id"`
	BroadcastID BroadcastID   `json:"broadcastId"`
	UserID      UserID        `json:"userId"`
	UserName    string        `json:"userName"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// RequestKey is the document key of the request a user makes to a
// broadcast. There is at most one request per (broadcast, user).
func RequestKey(uid UserID) RequestID { return RequestID(uid) }

// CanTransition reports whether the state machine allows from -> to.
// none -> pending -> {accepted | rejected}; nothing leaves a terminal state.
func CanTransition(from, to RequestStatus) bool {
	switch from {
	case StatusNone:
		return to == StatusPending
	case StatusPending:
		return to == StatusAccepted || to == StatusRejected
	}
	return false
}
