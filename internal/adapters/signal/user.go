package signal

import (
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
)

func (ctl *SignalWSController) handleWhoAmI(sid core.SessionID, conn core.SignalConnection) {
	resp := struct {
		Type    string          `json:"type"`
		Session *domain.Session `json:"session"`
		Views   []string        `json:"views,omitempty"`
	}{
		Type: "whoami",
	}
	if user, ok := ctl.Orch.Session(sid); ok {
		resp.Session = &user
		resp.Views = ctl.Orch.OpenViews(sid)
	}
	ctl.sendJSON(conn, resp)
}
