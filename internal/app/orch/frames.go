package orch

import (
	"encoding/json"
	"errors"

	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/rs/zerolog/log"
)

type snapshotFrame struct {
	Type      string             `json:"type"`
	View      string             `json:"view"`
	Broadcast domain.BroadcastID `json:"broadcast,omitempty"`
	Data      any                `json:"data"`
}

type redirect struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type notice struct {
	Type  string           `json:"type"`
	Level core.NoticeLevel `json:"level"`
	Text  string           `json:"text"`
}

type presence struct {
	Type      string             `json:"type"`
	Broadcast domain.BroadcastID `json:"broadcast"`
	Users     []domain.Session   `json:"users"`
}

func redirectFrame(path string) redirect { return redirect{Type: "redirect", Path: path} }

func noticeFrame(level core.NoticeLevel, text string) notice {
	return notice{Type: "notice", Level: level, Text: text}
}

// push encodes v and hands it to the client without blocking. A full buffer
// is resolved by the back-pressure policy.
func (o *Orchestrator) push(sid core.SessionID, sess core.ClientSession, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("marshal frame")
		return
	}
	err = sess.Signal().TrySend(b)
	if err == nil || !errors.Is(err, core.ErrBackpressure) || o.Policy == nil {
		return
	}
	switch o.Policy.OnBackPressure(sess) {
	case app.KickMember:
		o.KickBySID(sid)
	case app.DropFrame, app.NoAction:
		log.Debug().Str("module", "app.orch").Str("sid", string(sid)).Msg("frame dropped")
	}
}
