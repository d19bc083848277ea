// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

// Package cache implements a keyed TTL store used to memoize expensive,
// non-deterministic upstream calls (recommendation generation in particular)
// with cache-aside semantics.
//
// GetOrCompute is the primary entry point: a hit returns the stored value
// without invoking the compute function; a miss or expired entry invokes it,
// stores the result for the given TTL, and returns it. Concurrent cold misses
// for the same key are collapsed into one upstream call via
// golang.org/x/sync/singleflight. Failures propagate without being cached.
//
// Keys must be deterministic functions of the logical request parameters
// only; see Key, NormalizeText, and SortedInt64s.
package cache
