// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package watchlist

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is a watchlist entry's watch state.
type Status string

// Watch states. Transition rules between them are business logic owned by the
// server; the store treats Status as an opaque field.
const (
	StatusPlanToWatch Status = "PLAN_TO_WATCH"
	StatusWatching    Status = "WATCHING"
	StatusWatched     Status = "WATCHED"
	StatusDropped     Status = "DROPPED"
)

// tempIDPrefix marks client-generated identifiers. An entry carries either a
// temporary identifier or a server-assigned one, never both; the temporary
// identifier is replaced by the server's (or the entry removed) before the
// operation completes.
const tempIDPrefix = "tmp-"

// Entry is a watchlist record. Pending is true while the entry exists only
// optimistically on the client.
type Entry struct {
	ID        string    `json:"id"`
	MovieID   int64     `json:"movieId"`
	Title     string    `json:"title"`
	MediaType string    `json:"mediaType"`
	Status    Status    `json:"status"`
	Rating    *int      `json:"rating,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	Pending   bool      `json:"pending,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title  *string `json:"title,omitempty"`
	Status *Status `json:"status,omitempty"`
	Rating *int    `json:"rating,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// apply copies the patch's set fields onto e.
func (p Patch) apply(e *Entry) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Rating != nil {
		e.Rating = p.Rating
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
}

// NewTempID generates a client-side temporary identifier.
func NewTempID() string {
	return tempIDPrefix + uuid.NewString()
}

// IsTempID reports whether id is a client-generated temporary identifier.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
