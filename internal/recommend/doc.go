// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

// Package recommend produces watch suggestions through an upstream generator,
// deduplicating equivalent requests through a TTL cache keyed on the
// normalized request.
package recommend
