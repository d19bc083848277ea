// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

// Package retry provides a bounded retry executor with capped exponential
// backoff and a pluggable retry predicate.
//
// The executor makes at most MaxRetries+1 attempts. After a failed attempt it
// consults the policy's ShouldRetry predicate; a false result propagates the
// failure immediately and unchanged, so callers can still discriminate error
// kinds with errors.As. Backoff delays follow min(BaseDelay * 2^attempt,
// MaxDelay) and are context-cancellable.
//
// The executor does not make the wrapped operation idempotent. Retrying a
// mutating call is only safe when the callee deduplicates it; see the
// Idempotency-Key header attached by the request client.
package retry

import (
	"context"
	"time"

	"github.com/tomtom215/watchsync/internal/logging"
	"github.com/tomtom215/watchsync/internal/metrics"
)

// Policy configures a retry executor for a single logical call.
type Policy struct {
	// MaxRetries is the number of retries after the initial attempt.
	MaxRetries int

	// BaseDelay is the backoff delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the computed backoff delay.
	MaxDelay time.Duration

	// ShouldRetry classifies a failure as retryable. A nil predicate retries
	// every failure up to MaxRetries.
	ShouldRetry func(error) bool
}

// DefaultPolicy is the policy used for authenticated API calls:
// 3 retries, 1s base delay, 5s cap.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxDelay:   5 * time.Second,
	}
}

// BestEffortPolicy is the policy used for best-effort metadata and
// recommendation lookups: 2 retries, 500ms base delay, 2s cap.
func BestEffortPolicy() Policy {
	return Policy{
		MaxRetries: 2,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	}
}

// Delay returns the backoff delay before retry number attempt (0-based):
// min(BaseDelay * 2^attempt, MaxDelay). The result is monotonically
// non-decreasing in attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	// Beyond 62 doublings any positive base overflows; the cap applies anyway.
	if attempt > 62 {
		return p.MaxDelay
	}
	d := p.BaseDelay << uint(attempt)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		return p.MaxDelay
	}
	return d
}

// Do executes op with retries according to the policy. The name labels the
// operation in logs and metrics.
//
// Guarantees:
//   - at most MaxRetries+1 invocations of op
//   - no invocation after ShouldRetry returns false
//   - the last failure is returned unchanged
//   - backoff waits abort as soon as ctx is cancelled
func Do[T any](ctx context.Context, name string, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			metrics.RetryAttemptsTotal.WithLabelValues(name, "success").Inc()
			return result, nil
		}
		lastErr = err

		if p.ShouldRetry != nil && !p.ShouldRetry(err) {
			metrics.RetryAttemptsTotal.WithLabelValues(name, "terminal").Inc()
			return zero, err
		}
		metrics.RetryAttemptsTotal.WithLabelValues(name, "retryable").Inc()

		if attempt == p.MaxRetries {
			break
		}

		delay := p.Delay(attempt)
		logging.Debug().
			Str("operation", name).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("retrying after failure")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	metrics.RetryExhaustedTotal.WithLabelValues(name).Inc()
	logging.Warn().
		Str("operation", name).
		Int("max_retries", p.MaxRetries).
		Err(lastErr).
		Msg("retries exhausted")
	return zero, lastErr
}
