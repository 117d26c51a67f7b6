package http

import (
	"net/http"
	"strings"

	"github.com/dkeye/Meetup/internal/core"
	"github.com/dkeye/Meetup/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	tokenCookie  = "mt"
	clientCookie = "ct"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientCookie)
		if token == "" {
			token = genClientToken()
			c.SetCookie(clientCookie, token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// bearerToken reads the token from the Authorization header, then the token
// cookie, then the query string. Browsers cannot set headers on websocket
// upgrades.
func bearerToken(c *gin.Context) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			return "", false
		}
		return parts[1], true
	}
	if token, err := c.Cookie(tokenCookie); err == nil && token != "" {
		return token, true
	}
	if token := c.Query("token"); token != "" {
		return token, true
	}
	return "", false
}

// AuthMiddleware verifies the bearer token with the identity provider and
// stores the session and token in the context.
func AuthMiddleware(identity core.IdentityProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "authorization required"})
			return
		}
		sess, err := identity.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid or expired token"})
			return
		}
		c.Set("session", sess)
		c.Set("token", token)
		c.Next()
	}
}

func currentSession(c *gin.Context) domain.Session {
	v, _ := c.Get("session")
	s, _ := v.(domain.Session)
	return s
}
