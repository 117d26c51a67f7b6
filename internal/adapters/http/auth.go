package http

import (
	"net/http"
	"time"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type AuthHandler struct {
	identity core.IdentityProvider
	tokenTTL time.Duration
}

func NewAuthHandler(identity core.IdentityProvider, tokenTTL time.Duration) *AuthHandler {
	return &AuthHandler{identity: identity, tokenTTL: tokenTTL}
}

type SignInResponse struct {
	Token   string         `json:"token"`
	Session domain.Session `json:"session"`
}

type SessionResponse struct {
	Session *domain.Session `json:"session"`
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req domain.Profile
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: "validation"})
		return
	}
	sess, token, err := h.identity.SignIn(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.SetCookie(tokenCookie, token, int(h.tokenTTL/time.Second), "/", "", false, true)
	if err := sessionCache(c).Set(sess); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("cache session")
	}
	c.JSON(http.StatusOK, SignInResponse{Token: token, Session: sess})
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.identity.SignOut(c.Request.Context(), c.GetString("token")); err != nil {
		fail(c, err)
		return
	}
	c.SetCookie(tokenCookie, "", -1, "/", "", false, true)
	if err := sessionCache(c).Remove(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("clear cached session")
	}
	c.Status(http.StatusNoContent)
}

// CachedSession returns the session remembered by this browser without
// asking the identity provider. It may be stale.
func (h *AuthHandler) CachedSession(c *gin.Context) {
	resp := SessionResponse{}
	if s, ok := sessionCache(c).Get(); ok {
		resp.Session = &s
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) Me(c *gin.Context) {
	s := currentSession(c)
	if err := sessionCache(c).Set(s); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("cache session")
	}
	c.JSON(http.StatusOK, SessionResponse{Session: &s})
}
