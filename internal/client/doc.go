// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

// Package client provides the authenticated request client: a composition of
// an injected bearer-token provider, the retry executor, and an optional
// circuit breaker.
//
// Calls resolve a fresh token per attempt, attach Authorization and
// Content-Type headers, and classify failures into a small taxonomy:
//
//   - *AuthError: 401/403, expired tokens, signed-out principal. Terminal.
//   - *ServerError: 5xx. Retryable.
//   - *RequestError: other 4xx, carrying the server-provided message. Retryable.
//   - *ValidationError: malformed response shape. Terminal.
//   - wrapped transport errors: retryable.
//
// If no principal is available when a call starts, the client waits once for
// an authentication-state transition; a signed-out transition fails the call
// with *AuthError before any network attempt.
package client
