// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package watchlist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tomtom215/watchsync/internal/logging"
	"github.com/tomtom215/watchsync/internal/metrics"
)

// ErrNotFound is returned for mutations against an identifier the store does
// not hold.
var ErrNotFound = errors.New("watchlist: entry not found")

// Store is the client-side optimistic mirror of the server-owned watchlist.
//
// Mutations apply locally first, then issue the network request; on success
// the optimistic record is reconciled with the server's authoritative one, on
// failure the pre-mutation state is restored before the error is rethrown, so
// a caller's error path always observes a consistent store.
//
// The collection is replaced wholesale on every mutation (copy-on-write), so
// snapshots returned by Entries never observe a partially-applied change.
//
// The store does not serialize concurrent operations on one identifier: if
// two updates race, the last network response wins. That is a deliberate
// tradeoff for a single-user-editing UI; callers needing stricter ordering
// gate on Pending() membership before issuing the second operation.
type Store struct {
	mu      sync.RWMutex
	entries []Entry

	api     API
	pending *PendingOperations
}

// NewStore creates an empty store mutating through api.
func NewStore(api API) *Store {
	return &Store{api: api, pending: NewPendingOperations()}
}

// Entries returns a snapshot copy of the collection.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Get returns the entry with the given id.
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of entries in the snapshot.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Pending exposes the in-flight operation sets for UI gating.
func (s *Store) Pending() *PendingOperations {
	return s.pending
}

// Add optimistically inserts a new entry and creates it on the server.
//
// A temporary entry (tmp- identifier, caller-supplied fields, creation
// timestamp) is visible in the collection before the network call is issued.
// On success the temporary entry is replaced in place by the authoritative
// server entry; on failure it is filtered out entirely and the failure is
// rethrown. The temporary identifier is tracked in the adding set for the
// duration.
func (s *Store) Add(ctx context.Context, draft Entry) (Entry, error) {
	temp := draft
	temp.ID = NewTempID()
	temp.Pending = true
	now := time.Now()
	temp.CreatedAt = now
	temp.UpdatedAt = now

	s.mu.Lock()
	next := make([]Entry, len(s.entries), len(s.entries)+1)
	copy(next, s.entries)
	s.entries = append(next, temp)
	s.mu.Unlock()

	s.pending.beginAdd(temp.ID)
	defer s.pending.endAdd(temp.ID)

	created, err := s.api.Create(ctx, temp)
	if err == nil && ctx.Err() != nil {
		// A response that raced cancellation is discarded, not applied.
		err = ctx.Err()
	}
	if err != nil {
		s.discard(temp.ID)
		s.rollback("add", temp.ID, err)
		return Entry{}, err
	}

	created.Pending = false
	s.replaceByID(temp.ID, created)
	return created, nil
}

// Update optimistically applies a partial update and patches the entry on the
// server.
//
// The pre-mutation snapshot is captured first; on success the entry is
// replaced with the server's authoritative post-update representation (not
// the locally-applied patch, to absorb server-derived fields); on failure the
// snapshot is restored verbatim and the failure is rethrown.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (Entry, error) {
	s.mu.Lock()
	idx := indexOf(s.entries, id)
	if idx < 0 {
		s.mu.Unlock()
		return Entry{}, ErrNotFound
	}
	snapshot := s.entries[idx]

	optimistic := snapshot
	patch.apply(&optimistic)
	optimistic.Pending = true
	optimistic.UpdatedAt = time.Now()

	next := make([]Entry, len(s.entries))
	copy(next, s.entries)
	next[idx] = optimistic
	s.entries = next
	s.mu.Unlock()

	s.pending.beginUpdate(id)
	defer s.pending.endUpdate(id)

	updated, err := s.api.Update(ctx, id, patch)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		s.replaceByID(id, snapshot)
		s.rollback("update", id, err)
		return Entry{}, err
	}

	updated.Pending = false
	s.replaceByID(id, updated)
	return updated, nil
}

// Remove optimistically deletes an entry and removes it on the server.
//
// The entry disappears from the collection immediately; on failure it is
// re-inserted (appended; original ordering is not preserved on rollback) and
// the failure is rethrown.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := indexOf(s.entries, id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	removed := s.entries[idx]

	next := make([]Entry, 0, len(s.entries)-1)
	next = append(next, s.entries[:idx]...)
	next = append(next, s.entries[idx+1:]...)
	s.entries = next
	s.mu.Unlock()

	s.pending.beginRemove(id)
	defer s.pending.endRemove(id)

	err := s.api.Delete(ctx, id)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		s.mu.Lock()
		restored := make([]Entry, len(s.entries), len(s.entries)+1)
		copy(restored, s.entries)
		s.entries = append(restored, removed)
		s.mu.Unlock()
		s.rollback("remove", id, err)
		return err
	}
	return nil
}

// Refresh replaces the collection with the server's authoritative listing.
// Optimistic temporary entries still in flight are discarded; callers should
// refresh only when the pending sets are empty.
func (s *Store) Refresh(ctx context.Context) error {
	entries, err := s.api.List(ctx)
	if err != nil {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

// replaceByID swaps the entry at id's position for replacement. No-op when id
// is gone (e.g. removed concurrently).
func (s *Store) replaceByID(id string, replacement Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.entries, id)
	if idx < 0 {
		return
	}
	next := make([]Entry, len(s.entries))
	copy(next, s.entries)
	next[idx] = replacement
	s.entries = next
}

// discard filters the entry with id out of the collection.
func (s *Store) discard(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOf(s.entries, id)
	if idx < 0 {
		return
	}
	next := make([]Entry, 0, len(s.entries)-1)
	next = append(next, s.entries[:idx]...)
	next = append(next, s.entries[idx+1:]...)
	s.entries = next
}

func (s *Store) rollback(kind, id string, err error) {
	metrics.StoreRollbacksTotal.WithLabelValues(kind).Inc()
	logging.Warn().
		Str("operation", kind).
		Str("entry_id", id).
		Err(err).
		Msg("rolled back optimistic mutation")
}

func indexOf(entries []Entry, id string) int {
	for i, e := range entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
