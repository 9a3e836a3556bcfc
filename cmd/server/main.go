package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Spaces/internal/adapters/broker"
	"github.com/dkeye/Spaces/internal/adapters/directory"
	httpapi "github.com/dkeye/Spaces/internal/adapters/http"
	"github.com/dkeye/Spaces/internal/app/router"
	"github.com/dkeye/Spaces/internal/app/session"
	"github.com/dkeye/Spaces/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

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

	store, err := directory.Open(ctx, cfg.Directory)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Directory.Driver).Msg("failed to open directory")
	}

	// Rooms outlive the signal context so shutdown can still announce.
	roomsCtx, stopRooms := context.WithCancel(context.Background())
	rt := router.New(roomsCtx, store, router.SimplePolicy{}, session.Options{DirectoryTimeout: cfg.Directory.Timeout})
	hub := broker.NewHub()
	go hub.Run(roomsCtx)

	r := httpapi.SetupRouter(roomsCtx, cfg, rt, hub, store)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Spaces server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	rt.Announce("Server is shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stopRooms()
	rt.Registry().Wait()
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("directory close")
	}
	log.Info().Msg("Server exited gracefully")
}
