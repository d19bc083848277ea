// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

// Command server runs the watchlist persistence service.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/watchsync/internal/cache"
	"github.com/tomtom215/watchsync/internal/config"
	"github.com/tomtom215/watchsync/internal/logging"
	"github.com/tomtom215/watchsync/internal/recommend"
	"github.com/tomtom215/watchsync/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	logging.Info().
		Str("addr", cfg.Server.Addr).
		Bool("in_memory", cfg.Storage.InMemory).
		Msg("starting watchsync")

	store, err := openStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open entry store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close entry store")
		}
	}()

	var recService *recommend.Service
	if cfg.Recommend.BaseURL != "" {
		recCache := cache.New("recommendations", cfg.Cache.RecommendationTTL)
		defer recCache.Close()

		gen := recommend.NewHTTPGenerator(recommend.HTTPGeneratorConfig{
			BaseURL:           cfg.Recommend.BaseURL,
			RequestsPerSecond: cfg.Recommend.RequestsPerSecond,
			Burst:             cfg.Recommend.Burst,
		})
		recService = recommend.NewService(recCache, gen, cfg.Cache.RecommendationTTL)
	}

	router := server.NewRouter(server.NewHandlers(store, recService), server.RouterConfig{
		JWTSecret:      []byte(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
	})

	hook := (&sutureslog.Handler{Logger: logging.NewSlogLogger()}).MustHook()
	sup := suture.New("watchsync", suture.Spec{
		EventHook: hook,
		Timeout:   cfg.Server.ShutdownTimeout,
	})
	sup.Add(&httpService{
		addr:            cfg.Server.Addr,
		handler:         router,
		shutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sup.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Fatal().Err(err).Msg("supervisor exited")
	}
	logging.Info().Msg("watchsync stopped")
}

func openStore(cfg *config.Config) (*server.EntryStore, error) {
	if cfg.Storage.InMemory {
		return server.OpenInMemoryStore()
	}
	return server.OpenStore(cfg.Storage.Path)
}

// httpService runs the HTTP listener under the supervisor. A listener failure
// returns the error so suture restarts the service; context cancellation
// drains connections within the shutdown timeout.
type httpService struct {
	addr            string
	handler         http.Handler
	shutdownTimeout time.Duration
}

func (s *httpService) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("graceful shutdown incomplete, closing")
		_ = srv.Close()
	}
	return ctx.Err()
}

func (s *httpService) String() string {
	return "http-server " + s.addr
}
