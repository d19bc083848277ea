// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestCacheBasicOperations(t *testing.T) {
	c := New("test", 1*time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	value, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist")
	}
	if value != "value1" {
		t.Errorf("Expected value1, got %v", value)
	}

	_, exists = c.Get("key2")
	if exists {
		t.Error("Expected key2 to not exist")
	}
}

func TestCacheExpiration(t *testing.T) {
	c := New("test", 50*time.Millisecond)
	defer c.Close()

	c.Set("key1", "value1")

	_, exists := c.Get("key1")
	if !exists {
		t.Error("Expected key1 to exist immediately after set")
	}

	time.Sleep(80 * time.Millisecond)

	_, exists = c.Get("key1")
	if exists {
		t.Error("Expected key1 to be expired")
	}
}

func TestGetOrComputeIdempotence(t *testing.T) {
	c := New("test", 1*time.Minute)
	defer c.Close()

	calls := 0
	compute := func(context.Context) (interface{}, error) {
		calls++
		return "computed", nil
	}

	ctx := context.Background()
	first, err := c.GetOrCompute(ctx, "k", time.Minute, compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := c.GetOrCompute(ctx, "k", time.Minute, compute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if calls != 1 {
		t.Errorf("expected compute to run once, ran %d times", calls)
	}
	if first != second {
		t.Errorf("expected equal values, got %v and %v", first, second)
	}
}

func TestGetOrComputeExpiry(t *testing.T) {
	c := New("test", 1*time.Minute)
	defer c.Close()

	calls := 0
	compute := func(context.Context) (interface{}, error) {
		calls++
		return calls, nil
	}

	ctx := context.Background()
	if _, err := c.GetOrCompute(ctx, "k", 40*time.Millisecond, compute); err != nil {
		t.Fatal(err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := c.GetOrCompute(ctx, "k", 40*time.Millisecond, compute); err != nil {
		t.Fatal(err)
	}

	if calls != 2 {
		t.Errorf("expected compute to run again after expiry, ran %d times", calls)
	}
}

func TestGetOrComputeNoNegativeCaching(t *testing.T) {
	c := New("test", 1*time.Minute)
	defer c.Close()

	calls := 0
	failure := errors.New("upstream down")
	compute := func(context.Context) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, failure
		}
		return "recovered", nil
	}

	ctx := context.Background()
	if _, err := c.GetOrCompute(ctx, "k", time.Minute, compute); !errors.Is(err, failure) {
		t.Fatalf("expected upstream failure, got %v", err)
	}

	value, err := c.GetOrCompute(ctx, "k", time.Minute, compute)
	if err != nil {
		t.Fatalf("second call should re-attempt, got %v", err)
	}
	if value != "recovered" {
		t.Errorf("expected recovered, got %v", value)
	}
	if calls != 2 {
		t.Errorf("expected 2 compute calls, got %d", calls)
	}
}

func TestGetOrComputeSingleFlight(t *testing.T) {
	c := New("test", 1*time.Minute)
	defer c.Close()

	var calls int64
	release := make(chan struct{})
	compute := func(context.Context) (interface{}, error) {
		atomic.AddInt64(&calls, 1)
		<-release
		return "shared", nil
	}

	const waiters = 8
	var wg sync.WaitGroup
	results := make([]interface{}, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "cold", time.Minute, compute)
			if err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond) // let the waiters pile onto the flight
	close(release)
	wg.Wait()

	if got := atomic.LoadInt64(&calls); got != 1 {
		t.Errorf("expected exactly 1 compute for concurrent cold misses, got %d", got)
	}
	for i, v := range results {
		if v != "shared" {
			t.Errorf("waiter %d got %v", i, v)
		}
	}
}

func TestCacheDeleteAndClear(t *testing.T) {
	c := New("test", 1*time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Set("key2", "value2")

	c.Delete("key1")
	if _, exists := c.Get("key1"); exists {
		t.Error("Expected key1 to be deleted")
	}

	c.Clear()
	if _, exists := c.Get("key2"); exists {
		t.Error("Expected key2 to be cleared")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}

func TestCacheStats(t *testing.T) {
	c := New("test", 1*time.Minute)
	defer c.Close()

	c.Set("key1", "value1")
	c.Get("key1") // hit
	c.Get("key2") // miss
	c.Get("key1") // hit

	hits, misses, _ := c.GetStats()
	if hits != 2 {
		t.Errorf("Expected 2 hits, got %d", hits)
	}
	if misses != 1 {
		t.Errorf("Expected 1 miss, got %d", misses)
	}
}
