package app

import (
	"context"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/rs/zerolog/log"
)

type Rooms struct {
	store      core.DocumentStore
	broadcasts *Broadcasts
}

func NewRooms(store core.DocumentStore, broadcasts *Broadcasts) *Rooms {
	return &Rooms{store: store, broadcasts: broadcasts}
}

// Leave takes user out of the room. When the owner leaves the broadcast is
// torn down; anyone else is only removed from the participants. The returned
// bool reports whether the broadcast was deleted.
func (r *Rooms) Leave(ctx context.Context, id domain.BroadcastID, user domain.UserID) (bool, error) {
	ownerLeft := false
	err := r.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		d, err := tx.Get(broadcastPath(id))
		if err != nil {
			return storeErr(err, domain.ErrBroadcastGone)
		}
		switch decodeBroadcast(d).RoleOf(user) {
		case domain.RoleOwner:
			ownerLeft = true
			return nil
		case domain.RoleNone:
			return domain.ErrNotParticipant
		}
		return tx.Update(broadcastPath(id), docstore.Fields{
			fParticipants: docstore.ArrayRemove(string(user)),
		})
	})
	if err != nil {
		err = storeErr(err, domain.ErrBroadcastGone)
		log.Debug().Err(err).Str("module", "app.rooms").Str("broadcast", string(id)).Str("user", string(user)).Msg("leave rejected")
		return false, err
	}
	if ownerLeft {
		log.Info().Str("module", "app.rooms").Str("broadcast", string(id)).Msg("owner left, tearing down")
		return true, r.broadcasts.Expire(ctx, id)
	}
	log.Info().Str("module", "app.rooms").Str("broadcast", string(id)).Str("user", string(user)).Msg("participant left")
	return false, nil
}
