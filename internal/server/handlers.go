// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/watchsync/internal/logging"
	"github.com/tomtom215/watchsync/internal/recommend"
)

// idempotencyKeyHeader carries the client's unique key for a logical
// mutation. Replays of a completed mutation return the recorded response
// instead of applying the mutation again.
const idempotencyKeyHeader = "Idempotency-Key"

// Handlers serves the watchlist and recommendation routes.
type Handlers struct {
	store    *EntryStore
	recs     *recommend.Service
	validate *validator.Validate
}

// NewHandlers creates the route handlers. recs may be nil when the deployment
// has no upstream recommender; the recommendations route then answers 503.
func NewHandlers(store *EntryStore, recs *recommend.Service) *Handlers {
	return &Handlers{
		store:    store,
		recs:     recs,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

type createEntryRequest struct {
	MovieID   int64  `json:"movieId" validate:"required,gt=0"`
	Title     string `json:"title" validate:"required,max=500"`
	MediaType string `json:"mediaType" validate:"required,oneof=movie tv"`
	Status    string `json:"status" validate:"required,oneof=PLAN_TO_WATCH WATCHING WATCHED DROPPED"`
	Rating    *int   `json:"rating" validate:"omitempty,min=1,max=10"`
	Notes     string `json:"notes" validate:"max=2000"`
}

type patchEntryRequest struct {
	Title  *string `json:"title" validate:"omitempty,max=500"`
	Status *string `json:"status" validate:"omitempty,oneof=PLAN_TO_WATCH WATCHING WATCHED DROPPED"`
	Rating *int    `json:"rating" validate:"omitempty,min=1,max=10"`
	Notes  *string `json:"notes" validate:"omitempty,max=2000"`
}

// replayIdempotent answers a repeated mutation from its recorded outcome.
// Returns true when the request was handled.
func (h *Handlers) replayIdempotent(w http.ResponseWriter, r *http.Request, p Principal) bool {
	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" {
		return false
	}
	rec, found, err := h.store.LookupIdempotent(r.Context(), p.Subject, key)
	if err != nil {
		logging.Error().Err(err).Msg("idempotency lookup failed")
		return false
	}
	if !found {
		return false
	}
	logging.Debug().
		Str("user", p.Subject).
		Str("path", r.URL.Path).
		Msg("replaying idempotent mutation")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
	return true
}

// recordIdempotent stores a mutation's response for later replay. Best
// effort: a failed write only means a retry re-executes the mutation.
func (h *Handlers) recordIdempotent(r *http.Request, p Principal, status int, body []byte) {
	key := r.Header.Get(idempotencyKeyHeader)
	if key == "" || body == nil {
		return
	}
	err := h.store.StoreIdempotent(r.Context(), p.Subject, key, IdempotencyRecord{Status: status, Body: body})
	if err != nil {
		logging.Warn().Err(err).Msg("failed to record idempotency outcome")
	}
}

func (h *Handlers) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}
	if h.replayIdempotent(w, r, p) {
		return
	}

	var req createEntryRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid watchlist entry: "+err.Error())
		return
	}

	entry, err := h.store.Create(r.Context(), p.Subject, Entry{
		MovieID:   req.MovieID,
		Title:     req.Title,
		MediaType: req.MediaType,
		Status:    req.Status,
		Rating:    req.Rating,
		Notes:     req.Notes,
	})
	if err != nil {
		logging.Error().Err(err).Str("user", p.Subject).Msg("create entry failed")
		writeError(w, http.StatusInternalServerError, "failed to create entry")
		return
	}

	body := writeData(w, http.StatusCreated, entry)
	h.recordIdempotent(r, p, http.StatusCreated, body)
}

func (h *Handlers) handleListEntries(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}

	entries, err := h.store.List(r.Context(), p.Subject)
	if err != nil {
		logging.Error().Err(err).Str("user", p.Subject).Msg("list entries failed")
		writeError(w, http.StatusInternalServerError, "failed to list entries")
		return
	}
	writeData(w, http.StatusOK, entries)
}

func (h *Handlers) handlePatchEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}
	if h.replayIdempotent(w, r, p) {
		return
	}

	id := chi.URLParam(r, "id")
	var req patchEntryRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid patch: "+err.Error())
		return
	}

	entry, err := h.store.Patch(r.Context(), p.Subject, id, Patch{
		Title:  req.Title,
		Status: req.Status,
		Rating: req.Rating,
		Notes:  req.Notes,
	})
	if errors.Is(err, ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, ErrEntryNotFound.Error())
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("user", p.Subject).Str("entry_id", id).Msg("patch entry failed")
		writeError(w, http.StatusInternalServerError, "failed to update entry")
		return
	}

	body := writeData(w, http.StatusOK, entry)
	h.recordIdempotent(r, p, http.StatusOK, body)
}

func (h *Handlers) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	p, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}
	if h.replayIdempotent(w, r, p) {
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id parameter")
		return
	}

	err := h.store.Delete(r.Context(), p.Subject, id)
	if errors.Is(err, ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, ErrEntryNotFound.Error())
		return
	}
	if err != nil {
		logging.Error().Err(err).Str("user", p.Subject).Str("entry_id", id).Msg("delete entry failed")
		writeError(w, http.StatusInternalServerError, "failed to delete entry")
		return
	}

	body := writeData(w, http.StatusOK, map[string]interface{}{"id": id, "deleted": true})
	h.recordIdempotent(r, p, http.StatusOK, body)
}

func (h *Handlers) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if _, ok := PrincipalFromContext(r.Context()); !ok {
		writeError(w, http.StatusUnauthorized, "missing principal")
		return
	}
	if h.recs == nil {
		writeError(w, http.StatusServiceUnavailable, "recommendations are not configured")
		return
	}

	var req recommend.Request
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid recommendation request: "+err.Error())
		return
	}

	recs, err := h.recs.Recommendations(r.Context(), req)
	if err != nil {
		logging.Error().Err(err).Msg("recommendation generation failed")
		writeError(w, http.StatusBadGateway, "recommendations are temporarily unavailable")
		return
	}
	if recs == nil {
		recs = []recommend.Recommendation{}
	}
	writeData(w, http.StatusOK, recs)
}
