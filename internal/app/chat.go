package app

import (
	"context"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Chat is the participant-only message feed of a room.
type Chat struct {
	store core.DocumentStore
}

func NewChat(store core.DocumentStore) *Chat {
	return &Chat{store: store}
}

// Send appends a message. The membership check and the write commit
// together, so a participant removed concurrently cannot slip a message in.
func (c *Chat) Send(ctx context.Context, id domain.BroadcastID, user domain.Session, text string) (domain.Message, error) {
	if err := domain.ValidateText(text); err != nil {
		return domain.Message{}, err
	}
	mp := messagesPath(id).Doc(uuid.NewString())
	var out domain.Message
	err := c.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		d, err := tx.Get(broadcastPath(id))
		if err != nil {
			return storeErr(err, domain.ErrBroadcastGone)
		}
		if !decodeBroadcast(d).HasParticipant(user.UserID) {
			return domain.ErrNotParticipant
		}
		if err := tx.Create(mp, docstore.Fields{
			fUserID:    string(user.UserID),
			fUserName:  user.DisplayName,
			fText:      text,
			fTimestamp: docstore.ServerTimestamp,
		}); err != nil {
			return err
		}
		created, err := tx.Get(mp)
		if err != nil {
			return err
		}
		out = decodeMessage(created)
		return nil
	})
	if err != nil {
		err = storeErr(err, domain.ErrBroadcastGone)
		log.Debug().Err(err).Str("module", "app.chat").Str("broadcast", string(id)).Str("user", string(user.UserID)).Msg("send rejected")
		return domain.Message{}, err
	}
	log.Debug().Str("module", "app.chat").Str("broadcast", string(id)).Str("message", string(out.ID)).Msg("message sent")
	return out, nil
}

func messagesQuery(id domain.BroadcastID) docstore.Query {
	return docstore.From(messagesPath(id)).Order(fTimestamp)
}

// List returns the feed in timestamp order. Only participants may read it.
func (c *Chat) List(ctx context.Context, id domain.BroadcastID, user domain.UserID) ([]domain.Message, error) {
	d, err := c.store.Get(ctx, broadcastPath(id))
	if err != nil {
		return nil, storeErr(err, domain.ErrBroadcastGone)
	}
	if !decodeBroadcast(d).HasParticipant(user) {
		return nil, domain.ErrNotParticipant
	}
	docs, err := c.store.Query(ctx, messagesQuery(id))
	if err != nil {
		return nil, domain.Transport(err)
	}
	return decodeMessages(docs), nil
}

// Watch is the live form of List without the membership check; callers
// gate it on the broadcast's participants.
func (c *Chat) Watch(id domain.BroadcastID, fn func([]domain.Message)) docstore.Unsubscribe {
	return c.store.Watch(messagesQuery(id), func(snap docstore.QuerySnapshot) {
		fn(decodeMessages(snap.Docs))
	})
}
