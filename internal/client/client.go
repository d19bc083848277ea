// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/watchsync/internal/logging"
	"github.com/tomtom215/watchsync/internal/retry"
)

// nowFunc is swapped in tests that need to age tokens.
var nowFunc = time.Now

// maxErrorBodySize limits how much of an error response body is read when
// extracting a server-provided message.
const maxErrorBodySize = 64 * 1024 // 64KB

// envelope is the persistence service's response wrapper:
// {data: ...} on success, {error: "..."} with a non-2xx status on failure.
type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Config configures a Client.
type Config struct {
	// BaseURL is the persistence service root, e.g. "https://api.example.com".
	BaseURL string

	// Tokens supplies bearer tokens. Required.
	Tokens TokenProvider

	// HTTPClient overrides the transport. Default: 30s-timeout http.Client.
	HTTPClient *http.Client

	// Policy overrides the retry policy. Zero value: retry.DefaultPolicy
	// (3 retries, 1s base, 5s cap). The predicate is always Retryable.
	Policy retry.Policy

	// BreakerName, when non-empty, wraps the transport in a named circuit
	// breaker so a flapping backend is shed instead of hammered.
	BreakerName string
}

// Client issues authenticated, retried JSON calls against the persistence
// service. Every call either returns the parsed `data` payload or a typed
// error (*AuthError, *ServerError, *RequestError, *ValidationError, or a
// wrapped transport error) the caller can discriminate with errors.As.
//
// Mutating calls carry a client-generated Idempotency-Key header that stays
// constant across retries of one logical call, so a write whose response was
// lost can be retried without double-applying.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenProvider
	policy  retry.Policy
	breaker *breaker
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	policy := cfg.Policy
	if policy.MaxRetries == 0 && policy.BaseDelay == 0 {
		policy = retry.DefaultPolicy()
	}
	if policy.ShouldRetry == nil {
		policy.ShouldRetry = Retryable
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		tokens:  cfg.Tokens,
		policy:  policy,
	}
	if cfg.BreakerName != "" {
		c.breaker = newBreaker(cfg.BreakerName)
	}
	return c
}

// Get issues an authenticated GET and returns the data payload.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Patch issues an authenticated PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

// Delete issues an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do runs one logical call through the retry executor.
func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	if _, err := c.awaitPrincipal(ctx); err != nil {
		return nil, err
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	// One idempotency key per logical mutation, shared by all retry attempts.
	idempotencyKey := ""
	if method != http.MethodGet {
		idempotencyKey = uuid.NewString()
	}

	attempt := func(ctx context.Context) (json.RawMessage, error) {
		return c.roundTrip(ctx, method, path, payload, idempotencyKey)
	}
	if c.breaker != nil {
		inner := attempt
		attempt = func(ctx context.Context) (json.RawMessage, error) {
			return c.breaker.execute(func() (json.RawMessage, error) {
				return inner(ctx)
			})
		}
	}

	return retry.Do(ctx, method+" "+path, c.policy, attempt)
}

// awaitPrincipal returns the current principal, waiting once for an
// authentication-state transition if none is available yet. A signed-out
// transition fails immediately without a network attempt.
func (c *Client) awaitPrincipal(ctx context.Context) (*Principal, error) {
	if p := c.tokens.Principal(); p != nil {
		return p, nil
	}

	ch := make(chan *Principal, 1)
	unsubscribe := c.tokens.Subscribe(func(p *Principal) {
		select {
		case ch <- p:
		default:
		}
	})
	defer unsubscribe()

	// Re-check after subscribing; the state may have settled in between.
	if p := c.tokens.Principal(); p != nil {
		return p, nil
	}

	select {
	case p := <-ch:
		if p == nil {
			return nil, &AuthError{Message: "signed out"}
		}
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// roundTrip performs a single authenticated HTTP attempt and classifies the
// outcome into the error taxonomy.
func (c *Client) roundTrip(ctx context.Context, method, path string, payload []byte, idempotencyKey string) (json.RawMessage, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader = http.NoBody
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	case resp.StatusCode >= 500:
		return nil, &ServerError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &RequestError{Status: resp.StatusCode, Message: errorMessage(raw, resp.StatusCode)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &ValidationError{Message: "response is not valid JSON: " + err.Error()}
	}
	if env.Data == nil {
		return nil, &ValidationError{Message: "response missing data field"}
	}
	return env.Data, nil
}

// errorMessage extracts a human-readable message from an error response body,
// falling back to a generic message when parsing fails.
func errorMessage(raw []byte, status int) string {
	var env envelope
	if err := json.Unmarshal(raw, &env); err == nil && env.Error != "" {
		return env.Error
	}
	return fmt.Sprintf("HTTP error! status: %d", status)
}

// Decode unmarshals a data payload into T. A decode failure is a contract
// violation, reported as a ValidationError.
func Decode[T any](raw json.RawMessage) (T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		logging.Debug().Err(err).Msg("failed to decode data payload")
		return out, &ValidationError{Message: "failed to decode data payload: " + err.Error()}
	}
	return out, nil
}
