// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package recommend

import "github.com/tomtom215/watchsync/internal/cache"

// DefaultLimit bounds a request that does not ask for a specific count.
const DefaultLimit = 10

// Request describes what the caller wants recommended. Two requests that
// differ only in text casing, surrounding whitespace, or the ordering of the
// id sets are the same logical request and share one cache entry.
type Request struct {
	// Description is free-form text describing the desired mood or theme.
	Description string `json:"description" validate:"required,max=2000"`

	// SeedIDs are catalog ids the caller already likes.
	SeedIDs []int64 `json:"seedIds,omitempty" validate:"max=100"`

	// ExcludeIDs are catalog ids to leave out of the results.
	ExcludeIDs []int64 `json:"excludeIds,omitempty" validate:"max=500"`

	// MediaType optionally restricts results to "movie" or "tv".
	MediaType string `json:"mediaType,omitempty" validate:"omitempty,oneof=movie tv"`

	// Limit caps the number of results. Zero means DefaultLimit.
	Limit int `json:"limit,omitempty" validate:"min=0,max=50"`
}

// normalize returns the canonical form used for cache keying.
func (r Request) normalize() Request {
	out := r
	out.Description = cache.NormalizeText(r.Description)
	out.SeedIDs = cache.SortedInt64s(r.SeedIDs)
	out.ExcludeIDs = cache.SortedInt64s(r.ExcludeIDs)
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	return out
}

// Recommendation is one suggested title.
type Recommendation struct {
	MovieID   int64   `json:"movieId"`
	Title     string  `json:"title"`
	MediaType string  `json:"mediaType"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason,omitempty"`
}
