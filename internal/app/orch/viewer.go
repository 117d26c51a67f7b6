package orch

import (
	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
)

// connViewer is the core.Viewer of one connection.
type connViewer struct {
	o    *Orchestrator
	sid  core.SessionID
	sess core.ClientSession
}

func (v *connViewer) Session() domain.Session { return v.sess.User() }

func (v *connViewer) Navigate(path string) {
	v.o.Registry.SetRoute(v.sid, path)
	v.o.push(v.sid, v.sess, redirectFrame(path))
}

func (v *connViewer) IsCurrent(path string) bool {
	return v.o.Registry.Route(v.sid) == path
}

func (v *connViewer) Notify(level core.NoticeLevel, text string) {
	v.o.push(v.sid, v.sess, noticeFrame(level, text))
}

func (v *connViewer) Publish(view, key string, data any) {
	v.o.push(v.sid, v.sess, snapshotFrame{
		Type:      "snapshot",
		View:      view,
		Broadcast: domain.BroadcastID(key),
		Data:      data,
	})
}
