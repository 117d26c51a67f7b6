package app

import (
	"errors"

	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
)

// Document layout:
//
//	broadcasts/{broadcastId}
//	broadcasts/{broadcastId}/requests/{userId}
//	broadcasts/{broadcastId}/messages/{messageId}
var broadcastsCol = docstore.Collection("broadcasts")

const (
	fActivity     = "activity"
	fLocation     = "location"
	fOwnerID      = "ownerId"
	fOwnerName    = "ownerName"
	fStartTime    = "startTime"
	fEndTime      = "endTime"
	fActive       = "active"
	fParticipants = "participants"
	fCreatedAt    = "createdAt"

	fUserID    = "userId"
	fUserName  = "userName"
	fStatus    = "status"
	fText      = "text"
	fTimestamp = "timestamp"
)

func broadcastPath(id domain.BroadcastID) docstore.Path {
	return broadcastsCol.Doc(string(id))
}

func requestsPath(id domain.BroadcastID) docstore.Path {
	return broadcastPath(id).Collection("requests")
}

func requestPath(id domain.BroadcastID, rid domain.RequestID) docstore.Path {
	return requestsPath(id).Doc(string(rid))
}

func messagesPath(id domain.BroadcastID) docstore.Path {
	return broadcastPath(id).Collection("messages")
}

func decodeBroadcast(d docstore.Doc) domain.Broadcast {
	raw := d.Strings(fParticipants)
	participants := make([]domain.UserID, len(raw))
	for i, s := range raw {
		participants[i] = domain.UserID(s)
	}
	return domain.Broadcast{
		ID:           domain.BroadcastID(d.ID()),
		Activity:     d.String(fActivity),
		Location:     d.String(fLocation),
		OwnerID:      domain.UserID(d.String(fOwnerID)),
		OwnerName:    d.String(fOwnerName),
		StartTime:    d.Time(fStartTime),
		EndTime:      d.Time(fEndTime),
		Active:       d.Bool(fActive),
		Participants: participants,
		CreatedAt:    d.Time(fCreatedAt),
	}
}

func decodeBroadcasts(docs []docstore.Doc) []domain.Broadcast {
	out := make([]domain.Broadcast, 0, len(docs))
	for _, d := range docs {
		out = append(out, decodeBroadcast(d))
	}
	return out
}

func decodeRequest(d docstore.Doc) domain.JoinRequest {
	return domain.JoinRequest{
		ID:          domain.RequestID(d.ID()),
		BroadcastID: domain.BroadcastID(d.Path.Parent().Parent().ID()),
		UserID:      domain.UserID(d.String(fUserID)),
		UserName:    d.String(fUserName),
		Status:      domain.RequestStatus(d.String(fStatus)),
		CreatedAt:   d.Time(fCreatedAt),
	}
}

func decodeRequests(docs []docstore.Doc) []domain.JoinRequest {
	out := make([]domain.JoinRequest, 0, len(docs))
	for _, d := range docs {
		out = append(out, decodeRequest(d))
	}
	return out
}

func decodeMessage(d docstore.Doc) domain.Message {
	return domain.Message{
		ID:        domain.MessageID(d.ID()),
		UserID:    domain.UserID(d.String(fUserID)),
		UserName:  d.String(fUserName),
		Text:      d.String(fText),
		Timestamp: d.Time(fTimestamp),
	}
}

func decodeMessages(docs []docstore.Doc) []domain.Message {
	out := make([]domain.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, decodeMessage(d))
	}
	return out
}

// storeErr maps store failures onto the domain error kinds. Errors that
// already carry a kind pass through untouched.
func storeErr(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case domain.Kind(err) != "":
		return err
	case errors.Is(err, docstore.ErrNotFound):
		return notFound
	}
	return domain.Transport(err)
}
