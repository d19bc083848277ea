// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/watchsync/internal/metrics"
)

// RouterConfig configures the HTTP surface.
type RouterConfig struct {
	// JWTSecret verifies bearer tokens on the authenticated routes.
	JWTSecret []byte

	// AllowedOrigins lists permitted CORS origins. Empty disables CORS.
	AllowedOrigins []string

	// RateLimit is requests per IP per minute. Zero disables rate limiting.
	RateLimit int
}

// NewRouter assembles the full route tree: open health and metrics endpoints,
// and the authenticated watchlist and recommendation routes.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", idempotencyKeyHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if cfg.RateLimit > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimit, time.Minute))
	}

	r.Get("/healthz", handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(requestMetrics)
		r.Use(Authenticator(cfg.JWTSecret))

		r.Post("/watchlist", h.handleCreateEntry)
		r.Get("/watchlist", h.handleListEntries)
		r.Patch("/watchlist/{id}", h.handlePatchEntry)
		r.Delete("/watchlist", h.handleDeleteEntry)
		r.Post("/recommendations", h.handleRecommendations)
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestMetrics records request counts and latency per route pattern.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = r.URL.Path
		}
		metrics.ObserveHTTPRequest(r.Method, pattern, ww.Status(), time.Since(start))
	})
}
