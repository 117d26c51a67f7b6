package app

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// Requests runs the join-request state machine
// none -> pending -> {accepted | rejected}.
type Requests struct {
	store core.DocumentStore
}

func NewRequests(store core.DocumentStore) *Requests {
	return &Requests{store: store}
}

// RequestJoin files a pending request for user. Asking again while the
// request is still pending returns the existing request.
func (s *Requests) RequestJoin(ctx context.Context, id domain.BroadcastID, user domain.Session) (domain.JoinRequest, error) {
	if user.UserID == "" {
		return domain.JoinRequest{}, domain.ErrUnauthenticated
	}
	rp := requestPath(id, domain.RequestKey(user.UserID))
	var out domain.JoinRequest
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		d, err := tx.Get(broadcastPath(id))
		if err != nil {
			return storeErr(err, domain.ErrBroadcastGone)
		}
		if decodeBroadcast(d).RoleOf(user.UserID) != domain.RoleNone {
			return domain.ErrAlreadyParticipant
		}
		existing, err := tx.Get(rp)
		switch {
		case err == nil:
			out = decodeRequest(existing)
			if out.Status != domain.StatusPending {
				return domain.ErrRequestDecided
			}
			return nil
		case !errors.Is(err, docstore.ErrNotFound):
			return err
		}
		if err := tx.Create(rp, docstore.Fields{
			fUserID:    string(user.UserID),
			fUserName:  user.DisplayName,
			fStatus:    string(domain.StatusPending),
			fCreatedAt: docstore.ServerTimestamp,
		}); err != nil {
			return err
		}
		created, err := tx.Get(rp)
		if err != nil {
			return err
		}
		out = decodeRequest(created)
		return nil
	})
	if err != nil {
		err = storeErr(err, domain.ErrBroadcastGone)
		log.Debug().Err(err).Str("module", "app.requests").Str("broadcast", string(id)).Str("user", string(user.UserID)).Msg("request rejected")
		return domain.JoinRequest{}, err
	}
	log.Info().Str("module", "app.requests").Str("broadcast", string(id)).Str("user", string(user.UserID)).Msg("join requested")
	return out, nil
}

// Accept marks the request accepted and adds the requester to the
// participants in a single commit.
func (s *Requests) Accept(ctx context.Context, id domain.BroadcastID, rid domain.RequestID, owner domain.UserID) error {
	return s.decide(ctx, id, rid, owner, domain.StatusAccepted)
}

// Reject marks the request rejected. Participants are left as they are.
func (s *Requests) Reject(ctx context.Context, id domain.BroadcastID, rid domain.RequestID, owner domain.UserID) error {
	return s.decide(ctx, id, rid, owner, domain.StatusRejected)
}

func (s *Requests) decide(ctx context.Context, id domain.BroadcastID, rid domain.RequestID, owner domain.UserID, to domain.RequestStatus) error {
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		d, err := tx.Get(broadcastPath(id))
		if err != nil {
			return storeErr(err, domain.ErrBroadcastGone)
		}
		if !decodeBroadcast(d).IsOwner(owner) {
			return domain.ErrNotOwner
		}
		rd, err := tx.Get(requestPath(id, rid))
		if err != nil {
			return storeErr(err, domain.ErrRequestGone)
		}
		req := decodeRequest(rd)
		if !domain.CanTransition(req.Status, to) {
			return domain.ErrRequestNotPending
		}
		if err := tx.Update(requestPath(id, rid), docstore.Fields{fStatus: string(to)}); err != nil {
			return err
		}
		if to != domain.StatusAccepted {
			return nil
		}
		return tx.Update(broadcastPath(id), docstore.Fields{
			fParticipants: docstore.ArrayUnion(string(req.UserID)),
		})
	})
	if err != nil {
		err = storeErr(err, domain.ErrBroadcastGone)
		log.Debug().Err(err).Str("module", "app.requests").Str("broadcast", string(id)).Str("request", string(rid)).Msg("decision rejected")
		return err
	}
	log.Info().Str("module", "app.requests").Str("broadcast", string(id)).Str("request", string(rid)).Str("status", string(to)).Msg("request decided")
	return nil
}

// StatusFor returns the status of uid's request to the broadcast, or
// StatusNone when there is none.
func (s *Requests) StatusFor(ctx context.Context, id domain.BroadcastID, uid domain.UserID) (domain.RequestStatus, error) {
	d, err := s.store.Get(ctx, requestPath(id, domain.RequestKey(uid)))
	if errors.Is(err, docstore.ErrNotFound) {
		return domain.StatusNone, nil
	}
	if err != nil {
		return domain.StatusNone, domain.Transport(err)
	}
	return decodeRequest(d).Status, nil
}

// WatchStatus follows uid's request to the broadcast.
func (s *Requests) WatchStatus(id domain.BroadcastID, uid domain.UserID, fn func(domain.RequestStatus)) docstore.Unsubscribe {
	return s.store.WatchDoc(requestPath(id, domain.RequestKey(uid)), func(snap docstore.DocSnapshot) {
		if !snap.Exists {
			fn(domain.StatusNone)
			return
		}
		fn(decodeRequest(snap.Doc).Status)
	})
}

func pendingQuery(id domain.BroadcastID) docstore.Query {
	return docstore.From(requestsPath(id)).Where(fStatus, string(domain.StatusPending)).Order(fCreatedAt)
}

// WatchPending follows the pending requests of one broadcast.
func (s *Requests) WatchPending(id domain.BroadcastID, fn func([]domain.JoinRequest)) docstore.Unsubscribe {
	return s.store.Watch(pendingQuery(id), func(snap docstore.QuerySnapshot) {
		fn(decodeRequests(snap.Docs))
	})
}

// ListPendingForOwner returns the pending requests across every broadcast
// owned by owner.
func (s *Requests) ListPendingForOwner(ctx context.Context, owner domain.UserID) ([]domain.JoinRequest, error) {
	owned, err := s.store.Query(ctx, docstore.From(broadcastsCol).Where(fOwnerID, string(owner)))
	if err != nil {
		return nil, domain.Transport(err)
	}
	p := pool.NewWithResults[[]domain.JoinRequest]().WithContext(ctx).WithCancelOnError()
	for _, d := range owned {
		id := domain.BroadcastID(d.ID())
		p.Go(func(ctx context.Context) ([]domain.JoinRequest, error) {
			docs, err := s.store.Query(ctx, pendingQuery(id))
			if err != nil {
				return nil, err
			}
			return decodeRequests(docs), nil
		})
	}
	groups, err := p.Wait()
	if err != nil {
		return nil, domain.Transport(err)
	}
	out := slices.Concat(groups...)
	SortRequests(out)
	return out, nil
}

// SortRequests orders requests oldest first.
func SortRequests(reqs []domain.JoinRequest) {
	slices.SortFunc(reqs, func(a, b domain.JoinRequest) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Or(cmp.Compare(a.BroadcastID, b.BroadcastID), cmp.Compare(a.ID, b.ID))
	})
}
