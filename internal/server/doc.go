// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

// Package server implements the persistence service: a BadgerDB-backed
// watchlist store behind JWT-authenticated chi routes, with idempotency-key
// replay for safe client retries and the {data}/{error} response envelope the
// sync client consumes.
package server
