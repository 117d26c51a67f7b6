package app

import (
	"context"
	"time"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// Broadcasts is the broadcast registry: create, list, edit and expire.
type Broadcasts struct {
	store core.DocumentStore
	now   func() time.Time
}

func NewBroadcasts(store core.DocumentStore, now func() time.Time) *Broadcasts {
	if now == nil {
		now = time.Now
	}
	return &Broadcasts{store: store, now: now}
}

// Create persists an active broadcast owned by owner, with the owner as its
// only participant.
func (s *Broadcasts) Create(ctx context.Context, owner domain.Session, in domain.BroadcastInput) (domain.BroadcastID, error) {
	if owner.UserID == "" {
		return "", domain.ErrUnauthenticated
	}
	in, err := in.Normalize()
	if err != nil {
		log.Debug().Err(err).Str("module", "app.broadcasts").Str("user", string(owner.UserID)).Msg("create rejected")
		return "", err
	}
	id, err := s.store.Create(ctx, broadcastsCol, docstore.Fields{
		fActivity:     in.Activity,
		fLocation:     in.Location,
		fOwnerID:      string(owner.UserID),
		fOwnerName:    owner.DisplayName,
		fStartTime:    in.StartTime,
		fEndTime:      in.EndTime,
		fActive:       true,
		fParticipants: []string{string(owner.UserID)},
		fCreatedAt:    docstore.ServerTimestamp,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcasts").Msg("create failed")
		return "", domain.Transport(err)
	}
	log.Info().Str("module", "app.broadcasts").Str("broadcast", id).Str("user", string(owner.UserID)).Msg("broadcast created")
	return domain.BroadcastID(id), nil
}

func (s *Broadcasts) Get(ctx context.Context, id domain.BroadcastID) (domain.Broadcast, error) {
	d, err := s.store.Get(ctx, broadcastPath(id))
	if err != nil {
		return domain.Broadcast{}, storeErr(err, domain.ErrBroadcastGone)
	}
	return decodeBroadcast(d), nil
}

func activeQuery() docstore.Query {
	return docstore.From(broadcastsCol).Where(fActive, true).Order(fStartTime)
}

// ListActive returns the current active broadcasts ordered by start time.
func (s *Broadcasts) ListActive(ctx context.Context) ([]domain.Broadcast, error) {
	docs, err := s.store.Query(ctx, activeQuery())
	if err != nil {
		return nil, domain.Transport(err)
	}
	return decodeBroadcasts(docs), nil
}

// WatchActive is the live form of ListActive.
func (s *Broadcasts) WatchActive(fn func([]domain.Broadcast)) docstore.Unsubscribe {
	return s.store.Watch(activeQuery(), func(snap docstore.QuerySnapshot) {
		fn(decodeBroadcasts(snap.Docs))
	})
}

// WatchOwned follows the broadcasts owned by owner.
func (s *Broadcasts) WatchOwned(owner domain.UserID, fn func([]domain.Broadcast)) docstore.Unsubscribe {
	q := docstore.From(broadcastsCol).Where(fOwnerID, string(owner)).Order(fStartTime)
	return s.store.Watch(q, func(snap docstore.QuerySnapshot) {
		fn(decodeBroadcasts(snap.Docs))
	})
}

// Watch follows one broadcast. exists is false once it has been deleted.
func (s *Broadcasts) Watch(id domain.BroadcastID, fn func(b domain.Broadcast, exists bool)) docstore.Unsubscribe {
	return s.store.WatchDoc(broadcastPath(id), func(snap docstore.DocSnapshot) {
		if !snap.Exists {
			fn(domain.Broadcast{ID: id}, false)
			return
		}
		fn(decodeBroadcast(snap.Doc), true)
	})
}

// Edit overwrites the owner-editable fields. A start time in the past is
// only accepted when it is unchanged.
func (s *Broadcasts) Edit(ctx context.Context, id domain.BroadcastID, requester domain.UserID, in domain.BroadcastInput) error {
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		d, err := tx.Get(broadcastPath(id))
		if err != nil {
			return storeErr(err, domain.ErrBroadcastGone)
		}
		cur := decodeBroadcast(d)
		if !cur.IsOwner(requester) {
			return domain.ErrNotOwner
		}
		in, err = in.Normalize()
		if err != nil {
			return err
		}
		if in.StartTime.Before(s.now()) && !in.StartTime.Equal(cur.StartTime) {
			return domain.ErrStartInPast
		}
		return tx.Update(broadcastPath(id), docstore.Fields{
			fActivity:  in.Activity,
			fLocation:  in.Location,
			fStartTime: in.StartTime,
			fEndTime:   in.EndTime,
		})
	})
	if err != nil {
		err = storeErr(err, domain.ErrBroadcastGone)
		log.Debug().Err(err).Str("module", "app.broadcasts").Str("broadcast", string(id)).Msg("edit rejected")
		return err
	}
	log.Info().Str("module", "app.broadcasts").Str("broadcast", string(id)).Msg("broadcast edited")
	return nil
}

// Delete lets the owner tear a broadcast down before it ends.
func (s *Broadcasts) Delete(ctx context.Context, id domain.BroadcastID, requester domain.UserID) error {
	b, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !b.IsOwner(requester) {
		return domain.ErrNotOwner
	}
	return s.Expire(ctx, id)
}

// Expire deletes the broadcast together with its requests and messages in
// one commit. Expiring a broadcast that is already gone is a no-op.
func (s *Broadcasts) Expire(ctx context.Context, id domain.BroadcastID) error {
	removed := 0
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		removed = 0
		// Reads only until Wait returns, so the queries may share tx.
		p := pool.NewWithResults[[]docstore.Doc]().WithContext(ctx).WithCancelOnError()
		for _, col := range []docstore.Path{requestsPath(id), messagesPath(id)} {
			p.Go(func(context.Context) ([]docstore.Doc, error) {
				return tx.Query(docstore.From(col))
			})
		}
		children, err := p.Wait()
		if err != nil {
			return err
		}
		for _, docs := range children {
			for _, d := range docs {
				if err := tx.Delete(d.Path); err != nil {
					return err
				}
				removed++
			}
		}
		return tx.Delete(broadcastPath(id))
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcasts").Str("broadcast", string(id)).Msg("expire failed")
		return storeErr(err, domain.ErrBroadcastGone)
	}
	log.Info().Str("module", "app.broadcasts").Str("broadcast", string(id)).Int("children", removed).Msg("broadcast expired")
	return nil
}
