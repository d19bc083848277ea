// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package cache

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
)

// Key derives a deterministic cache key from a kind discriminator and the
// logically-relevant request parameters.
//
// Two logically-identical requests must produce byte-identical keys or the
// cache silently degenerates to always-miss. Callers are responsible for
// canonicalizing params first: structs marshal in declaration order and map
// keys are sorted, but slices keep caller order; normalize text with
// NormalizeText and sort ID sets with SortedInt64s before building params.
func Key(kind string, params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		// Fallback to a best-effort string key
		return fmt.Sprintf("%s:%v", kind, params)
	}

	hash := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", kind, hash[:16])
}

// NormalizeText canonicalizes free-form request text for key derivation:
// lowercased with whitespace runs collapsed to single spaces.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// SortedInt64s returns a sorted copy of ids. The input is not modified.
func SortedInt64s(ids []int64) []int64 {
	out := make([]int64, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
