package http

import (
	"encoding/json"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const sessionKey = "session"

// CookieSessionCache keeps the last signed-in session in the signed cookie
// store, so a reload can render before the identity provider answers.
type CookieSessionCache struct {
	s sessions.Session
}

func NewCookieSessionCache(c *gin.Context) *CookieSessionCache {
	return &CookieSessionCache{s: sessions.Default(c)}
}

func sessionCache(c *gin.Context) core.SessionCache { return NewCookieSessionCache(c) }

func (sc *CookieSessionCache) Get() (domain.Session, bool) {
	raw, ok := sc.s.Get(sessionKey).(string)
	if !ok {
		return domain.Session{}, false
	}
	var s domain.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.UserID == "" {
		return domain.Session{}, false
	}
	return s, true
}

func (sc *CookieSessionCache) Set(s domain.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	sc.s.Set(sessionKey, string(b))
	return sc.s.Save()
}

func (sc *CookieSessionCache) Remove() error {
	sc.s.Delete(sessionKey)
	return sc.s.Save()
}
