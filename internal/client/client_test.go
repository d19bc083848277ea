// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/watchsync/internal/retry"
)

func fastPolicy(maxRetries int) retry.Policy {
	return retry.Policy{
		MaxRetries:  maxRetries,
		BaseDelay:   1 * time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
		ShouldRetry: Retryable,
	}
}

func signedInProvider() *FakeTokenProvider {
	p := NewFakeTokenProvider()
	p.SignIn(&Principal{Subject: "user-1"}, "test-token")
	return p
}

func TestAuthTerminal(t *testing.T) {
	// A 401 is never retried and surfaces as *AuthError.
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token rejected"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Tokens: signedInProvider(), Policy: fastPolicy(5)})
	_, err := c.Get(context.Background(), "/watchlist")

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
	assert.Contains(t, authErr.Message, "token rejected")
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "401 must not be retried")
}

func TestRetryOn5xxThenSuccess(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"db down"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"srv-1"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Tokens: signedInProvider(), Policy: fastPolicy(3)})
	data, err := c.Get(context.Background(), "/watchlist")

	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"srv-1"}`, string(data))
	assert.Equal(t, int64(3), atomic.LoadInt64(&calls))
}

func TestServerMessageSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such entry"}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Tokens: signedInProvider(), Policy: fastPolicy(1)})
	_, err := c.Get(context.Background(), "/watchlist/xyz")

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	assert.Equal(t, "no such entry", reqErr.Message)
}

func TestGenericMessageFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Tokens: signedInProvider(), Policy: fastPolicy(0)})
	_, err := c.Get(context.Background(), "/watchlist")

	var srvErr *ServerError
	require.ErrorAs(t, err, &srvErr)
	assert.Equal(t, "HTTP error! status: 502", srvErr.Message)
}

func TestMissingDataIsValidationError(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Tokens: signedInProvider(), Policy: fastPolicy(5)})
	_, err := c.Get(context.Background(), "/watchlist")

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, int64(1), atomic.LoadInt64(&calls), "contract errors must not be retried")
}

func TestIdempotencyKeyStableAcrossRetries(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if len(keys) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"srv-1"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Tokens: signedInProvider(), Policy: fastPolicy(3)})
	_, err := c.Post(context.Background(), "/watchlist", map[string]int{"movieId": 42})
	require.NoError(t, err)

	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1], "retries must reuse the logical call's key")
	assert.Equal(t, keys[0], keys[2])
}

func TestGetCarriesNoIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Idempotency-Key"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Tokens: signedInProvider(), Policy: fastPolicy(0)})
	_, err := c.Get(context.Background(), "/watchlist")
	require.NoError(t, err)
}

func TestAuthHeaderAttached(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Tokens: signedInProvider(), Policy: fastPolicy(0)})
	_, err := c.Get(context.Background(), "/watchlist")
	require.NoError(t, err)
}

func TestWaitsForSignInTransition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	tokens := NewFakeTokenProvider()
	c := New(Config{BaseURL: srv.URL, Tokens: tokens, Policy: fastPolicy(0)})

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "/watchlist")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	tokens.SignIn(&Principal{Subject: "user-1"}, "late-token")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not resume after sign-in transition")
	}
}

func TestSignedOutTransitionFailsWithoutNetwork(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	tokens := NewFakeTokenProvider()
	c := New(Config{BaseURL: srv.URL, Tokens: tokens, Policy: fastPolicy(0)})

	done := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "/watchlist")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	tokens.SignOut()

	select {
	case err := <-done:
		var authErr *AuthError
		require.ErrorAs(t, err, &authErr)
	case <-time.After(2 * time.Second):
		t.Fatal("call did not settle after signed-out transition")
	}
	assert.Equal(t, int64(0), atomic.LoadInt64(&calls), "no network attempt after signed-out transition")
}

func TestAwaitPrincipalRespectsContext(t *testing.T) {
	tokens := NewFakeTokenProvider()
	c := New(Config{BaseURL: "http://127.0.0.1:0", Tokens: tokens, Policy: fastPolicy(0)})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Get(ctx, "/watchlist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestDecode(t *testing.T) {
	type entry struct {
		ID      string `json:"id"`
		MovieID int64  `json:"movieId"`
	}

	got, err := Decode[entry]([]byte(`{"id":"srv-1","movieId":42}`))
	require.NoError(t, err)
	assert.Equal(t, entry{ID: "srv-1", MovieID: 42}, got)

	_, err = Decode[entry]([]byte(`"not an object!`))
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}
