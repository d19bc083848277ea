// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/watchsync/internal/logging"
)

// maxRequestBodySize caps how much of a request body is read.
const maxRequestBodySize = 1 << 20

// envelope is the wire shape of every response body. Success bodies carry
// data, failure bodies carry error; never both.
type envelope struct {
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// writeData writes a success envelope. The payload must be non-nil; clients
// treat a success body without data as a contract violation.
func writeData(w http.ResponseWriter, status int, payload interface{}) []byte {
	body, err := json.Marshal(envelope{Data: payload})
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal response envelope")
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	return body
}

// writeError writes a failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(envelope{Error: message})
	_, _ = w.Write(body)
}

// decodeRequest parses a bounded JSON request body into dst.
func decodeRequest(r *http.Request, dst interface{}) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("parse request body: %w", err)
	}
	return nil
}
