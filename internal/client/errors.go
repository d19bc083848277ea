// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package client

import (
	"context"
	"errors"
	"fmt"
)

// AuthError is a terminal authentication failure: HTTP 401/403, an expired
// token, or a signed-out principal. It is never retried and routes the UI to
// a sign-in prompt.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Message)
	}
	return "authentication failed: " + e.Message
}

// ServerError is an HTTP 5xx response. Retryable.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.Status, e.Message)
}

// RequestError is a non-auth 4xx response, surfaced with the server-provided
// message when available. Retryable under the current policy.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed (status %d): %s", e.Status, e.Message)
}

// ValidationError is a malformed response shape (e.g. a success body missing
// its data field). Treated as a contract error and never retried.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid response: " + e.Message
}

// Retryable classifies a failure for the retry executor. Authentication and
// validation failures are terminal; cancellation is terminal; everything else
// (5xx, transport errors, non-auth 4xx) is retryable up to the policy limit.
func Retryable(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return false
	}
	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
