// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

// Package watchlist implements the client-side optimistic entity store for
// watchlist entries.
//
// Each mutation follows a three-state flow:
//
//	add:    none → optimistic → confirmed | none (rollback)
//	update: confirmed → optimistic → confirmed | confirmed (reverted)
//	remove: confirmed → pending-removal → absent | confirmed (re-appended)
//
// Pending-set membership is cleaned up in deferred blocks, so an identifier
// is never left stuck in a pending set after its operation settles, on any
// success, failure, or cancellation path.
package watchlist
