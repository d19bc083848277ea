// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package recommend

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/watchsync/internal/client"
	"github.com/tomtom215/watchsync/internal/retry"
)

// Generator produces recommendations for a normalized request. The production
// implementation calls the upstream recommender over HTTP; tests substitute
// fakes.
type Generator interface {
	Generate(ctx context.Context, req Request) ([]Recommendation, error)
}

// maxUpstreamBodySize caps how much of an upstream response is read.
const maxUpstreamBodySize = 1 << 20

// HTTPGenerator calls an upstream recommender service. Upstream calls are
// rate-limited and retried under the best-effort policy, since a degraded
// recommender should fail fast rather than hold a user request hostage.
type HTTPGenerator struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	policy     retry.Policy
}

// HTTPGeneratorConfig configures an HTTPGenerator.
type HTTPGeneratorConfig struct {
	// BaseURL is the upstream recommender root, e.g. "https://rec.example.com".
	BaseURL string

	// HTTPClient defaults to a client with a 15s timeout.
	HTTPClient *http.Client

	// RequestsPerSecond throttles upstream calls. Zero means 5 rps.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Zero means 5.
	Burst int
}

// NewHTTPGenerator creates a generator for the configured upstream.
func NewHTTPGenerator(cfg HTTPGeneratorConfig) *HTTPGenerator {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 5
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}
	policy := retry.BestEffortPolicy()
	policy.ShouldRetry = client.Retryable
	return &HTTPGenerator{
		baseURL:    cfg.BaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		policy:     policy,
	}
}

// Generate POSTs the request upstream and decodes the suggestion list.
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) ([]Recommendation, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(ctx, "recommend upstream", g.policy, func(ctx context.Context) ([]Recommendation, error) {
		return g.roundTrip(ctx, body)
	})
}

func (g *HTTPGenerator) roundTrip(ctx context.Context, body []byte) ([]Recommendation, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBodySize))
	if err != nil {
		return nil, fmt.Errorf("read upstream response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, &client.ServerError{Status: resp.StatusCode, Message: fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)}
	case resp.StatusCode >= 400:
		return nil, &client.RequestError{Status: resp.StatusCode, Message: fmt.Sprintf("HTTP error! status: %d", resp.StatusCode)}
	}

	var recs []Recommendation
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, &client.ValidationError{Message: "upstream returned a malformed recommendation list"}
	}
	return recs, nil
}
