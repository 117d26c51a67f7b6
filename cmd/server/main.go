package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Meetup/internal/adapters/http"
	wsignal "github.com/dkeye/Meetup/internal/adapters/signal"
	"github.com/dkeye/Meetup/internal/app"
	"github.com/dkeye/Meetup/internal/app/live"
	"github.com/dkeye/Meetup/internal/app/orch"
	"github.com/dkeye/Meetup/internal/config"
	"github.com/dkeye/Meetup/internal/docstore"
	"github.com/dkeye/Meetup/internal/identity"
)

func openBackend(cfg *config.Config) (docstore.Backend, error) {
	if cfg.Store.Driver == "memory" {
		return docstore.NewMemoryBackend(), nil
	}
	return docstore.OpenGorm(cfg.Store.Driver, cfg.Store.DSN)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.Mode == "release" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}

	backend, err := openBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to open store")
	}
	db := docstore.New(backend)
	defer func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("store close")
		}
	}()

	broadcasts := app.NewBroadcasts(db, nil)
	requests := app.NewRequests(db)
	rooms := app.NewRooms(db, broadcasts)
	chat := app.NewChat(db)
	sweeper := app.NewSweeper(broadcasts, cfg.SweepInterval, nil)
	idp := identity.New(db, cfg.TokenSecret, cfg.TokenTTL, nil)

	o := orch.New(app.NewRegistry(), app.NewPresence(), app.SimplePolicy{}, idp, live.Services{
		Broadcasts: broadcasts,
		Requests:   requests,
		Chat:       chat,
	})
	ws := wsignal.NewSignalWSController(o, wsignal.NewRateLimiter(cfg.Chat.RateLimit, cfg.Chat.RateInterval), cfg.ReadLimit, cfg.PingPeriod)

	r := router.SetupRouter(ctx, cfg, router.Deps{
		Identity:   idp,
		Broadcasts: broadcasts,
		Requests:   requests,
		Rooms:      rooms,
		Chat:       chat,
		Signal:     ws,
	})
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Meetup server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sweeper.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server error")
	}
	log.Info().Msg("Server exited gracefully")
}
