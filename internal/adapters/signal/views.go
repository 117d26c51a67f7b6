package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dkeye/Meetup/internal/app/live"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/rs/zerolog/log"
)

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

type viewPayload struct {
	Type      string             `json:"type"`
	View      live.Kind          `json:"view"`
	Broadcast domain.BroadcastID `json:"broadcast,omitempty"`
}

// replyError reports err to the client. A missing broadcast also sends the
// client home.
func (ctl *SignalWSController) replyError(sid core.SessionID, conn core.SignalConnection, err error) {
	kind := domain.Kind(err)
	switch kind {
	case "transport":
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("store failure")
	default:
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("request refused")
	}
	ctl.sendJSON(conn, errorFrame{Type: "error", Error: err.Error(), Kind: kind})
	if errors.Is(err, domain.ErrNotFound) {
		ctl.Orch.Redirect(sid, live.HomePath)
	}
}

func (ctl *SignalWSController) decodeView(conn core.SignalConnection, data []byte) (viewPayload, bool) {
	var p viewPayload
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad view payload")
		ctl.sendJSON(conn, errorFrame{Type: "error", Error: "bad_payload"})
		return p, false
	}
	return p, true
}

func (ctl *SignalWSController) handleSubscribe(sid core.SessionID, conn core.SignalConnection, data []byte) {
	p, ok := ctl.decodeView(conn, data)
	if !ok {
		return
	}
	if err := ctl.Orch.OpenView(sid, p.View, p.Broadcast); err != nil {
		ctl.replyError(sid, conn, err)
		return
	}
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("view", string(p.View)).Str("broadcast", string(p.Broadcast)).Msg("subscribe")
}

func (ctl *SignalWSController) handleUnsubscribe(sid core.SessionID, conn core.SignalConnection, data []byte) {
	p, ok := ctl.decodeView(conn, data)
	if !ok {
		return
	}
	ctl.Orch.CloseView(sid, p.View, p.Broadcast)
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("view", string(p.View)).Msg("unsubscribe")
}

func (ctl *SignalWSController) handleNavigate(sid core.SessionID, conn core.SignalConnection, data []byte) {
	var p struct {
		Type string `json:"type"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Path == "" {
		ctl.sendJSON(conn, errorFrame{Type: "error", Error: "bad_payload"})
		return
	}
	ctl.Orch.Navigate(sid, p.Path)
}

func (ctl *SignalWSController) handleSend(ctx context.Context, sid core.SessionID, conn core.SignalConnection, data []byte) {
	var p struct {
		Type      string             `json:"type"`
		Broadcast domain.BroadcastID `json:"broadcast"`
		Text      string             `json:"text"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Broadcast == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad send payload")
		ctl.sendJSON(conn, errorFrame{Type: "error", Error: "bad_payload"})
		return
	}
	user, ok := ctl.Orch.Session(sid)
	if !ok {
		ctl.replyError(sid, conn, domain.ErrUnauthenticated)
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(user.UserID) {
		log.Warn().Str("module", "signal").Str("sid", string(sid)).Str("user", string(user.UserID)).Msg("chat rate limited")
		ctl.sendJSON(conn, errorFrame{Type: "error", Error: "rate_limited"})
		return
	}
	if _, err := ctl.Orch.Send(ctx, sid, p.Broadcast, p.Text); err != nil {
		ctl.replyError(sid, conn, err)
	}
}
