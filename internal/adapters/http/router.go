package http

import (
	"context"
	"time"

	"github.com/dkeye/Meetup/internal/adapters/signal"
	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/config"
	"github.com/dkeye/Meetup/internal/core"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Deps are the services the router exposes.
type Deps struct {
	Identity   core.IdentityProvider
	Broadcasts *app.Broadcasts
	Requests   *app.Requests
	Rooms      *app.Rooms
	Chat       *app.Chat
	Signal     *signal.SignalWSController
}

func SetupRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("MeetupSessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
	}

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	authH := NewAuthHandler(d.Identity, cfg.TokenTTL)
	bh := NewBroadcastHandler(d.Broadcasts, d.Requests, d.Rooms, d.Chat)

	api := r.Group("/api")
	api.POST("/auth/signin", authH.SignIn)
	api.GET("/auth/session", authH.CachedSession)

	authed := api.Group("", AuthMiddleware(d.Identity))
	authed.POST("/auth/signout", authH.SignOut)
	authed.GET("/me", authH.Me)

	authed.GET("/broadcasts", bh.List)
	authed.POST("/broadcasts", bh.Create)
	authed.GET("/broadcasts/:id", bh.Get)
	authed.PUT("/broadcasts/:id", bh.Edit)
	authed.DELETE("/broadcasts/:id", bh.Delete)
	authed.POST("/broadcasts/:id/requests", bh.RequestJoin)
	authed.GET("/broadcasts/:id/requests/me", bh.MyRequestStatus)
	authed.POST("/broadcasts/:id/requests/:rid/accept", bh.Accept)
	authed.POST("/broadcasts/:id/requests/:rid/reject", bh.Reject)
	authed.GET("/requests/pending", bh.Pending)
	authed.POST("/broadcasts/:id/leave", bh.Leave)
	authed.GET("/broadcasts/:id/messages", bh.Messages)
	authed.POST("/broadcasts/:id/messages", bh.SendMessage)

	if d.Signal != nil {
		authed.GET("/ws/signal", func(c *gin.Context) {
			log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
			d.Signal.HandleSignal(ctx, c)
		})
	}

	return r
}
