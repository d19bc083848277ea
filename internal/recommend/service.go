// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package recommend

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/watchsync/internal/cache"
	"github.com/tomtom215/watchsync/internal/metrics"
)

// DefaultTTL is how long a computed recommendation list stays fresh.
const DefaultTTL = 30 * time.Minute

// Service answers recommendation requests, generating at most once per
// logical request per TTL window. Equivalent requests (same normalized text
// and id sets) within the window share one cached result; generator failures
// are never cached, so the next identical request computes again.
type Service struct {
	cache *cache.Cache
	gen   Generator
	ttl   time.Duration
}

// NewService wraps gen with the given result cache. A non-positive ttl falls
// back to DefaultTTL.
func NewService(c *cache.Cache, gen Generator, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{cache: c, gen: gen, ttl: ttl}
}

// Recommendations returns suggestions for req, from cache when fresh.
func (s *Service) Recommendations(ctx context.Context, req Request) ([]Recommendation, error) {
	normalized := req.normalize()
	key := cache.Key("recommend", normalized)

	computed := false
	value, err := s.cache.GetOrCompute(ctx, key, s.ttl, func(ctx context.Context) (interface{}, error) {
		computed = true
		return s.gen.Generate(ctx, normalized)
	})
	if err != nil {
		metrics.RecommendationRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if computed {
		metrics.RecommendationRequestsTotal.WithLabelValues("generated").Inc()
	} else {
		metrics.RecommendationRequestsTotal.WithLabelValues("cache").Inc()
	}

	recs, ok := value.([]Recommendation)
	if !ok {
		return nil, fmt.Errorf("recommend: unexpected cached type %T", value)
	}
	return recs, nil
}
