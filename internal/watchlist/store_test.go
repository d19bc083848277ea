// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package watchlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI lets each test script the persistence service per call.
type fakeAPI struct {
	create func(ctx context.Context, entry Entry) (Entry, error)
	update func(ctx context.Context, id string, patch Patch) (Entry, error)
	remove func(ctx context.Context, id string) error
	list   func(ctx context.Context) ([]Entry, error)
}

func (f *fakeAPI) Create(ctx context.Context, entry Entry) (Entry, error) {
	return f.create(ctx, entry)
}

func (f *fakeAPI) Update(ctx context.Context, id string, patch Patch) (Entry, error) {
	return f.update(ctx, id, patch)
}

func (f *fakeAPI) Delete(ctx context.Context, id string) error {
	return f.remove(ctx, id)
}

func (f *fakeAPI) List(ctx context.Context) ([]Entry, error) {
	return f.list(ctx)
}

// echoCreate answers with a server-assigned id and the draft's fields.
func echoCreate(serverID string) func(context.Context, Entry) (Entry, error) {
	return func(_ context.Context, entry Entry) (Entry, error) {
		entry.ID = serverID
		entry.Pending = false
		return entry, nil
	}
}

// seed adds n confirmed entries through the API so the store starts from a
// realistic confirmed state.
func seed(t *testing.T, s *Store, api *fakeAPI, n int) []Entry {
	t.Helper()
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		api.create = echoCreate(fmt.Sprintf("srv-%d", i+1))
		e, err := s.Add(context.Background(), Entry{
			MovieID:   int64(100 + i),
			Title:     fmt.Sprintf("Movie %d", i+1),
			MediaType: "movie",
			Status:    StatusPlanToWatch,
		})
		require.NoError(t, err)
		out = append(out, e)
	}
	return out
}

func TestAddSuccess(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)

	// Observe the optimistic state from inside the network call.
	var sawTemp bool
	var sawAdding bool
	api.create = func(_ context.Context, entry Entry) (Entry, error) {
		require.True(t, IsTempID(entry.ID), "draft sent with temp id")
		if e, ok := s.Get(entry.ID); ok && e.Pending {
			sawTemp = true
		}
		sawAdding = s.Pending().IsAdding(entry.ID)
		entry.ID = "srv-1"
		return entry, nil
	}

	created, err := s.Add(context.Background(), Entry{
		MovieID:   42,
		Title:     "Arrival",
		MediaType: "movie",
		Status:    StatusPlanToWatch,
	})
	require.NoError(t, err)

	assert.True(t, sawTemp, "temporary entry must be visible before the network call resolves")
	assert.True(t, sawAdding, "adding set must contain the temp id mid-flight")

	assert.Equal(t, "srv-1", created.ID)
	assert.False(t, created.Pending)

	entries := s.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "srv-1", entries[0].ID)
	assert.Equal(t, int64(42), entries[0].MovieID)
	assert.False(t, s.Pending().IsAdding(created.ID))
}

func TestAddReplacesTempInPlace(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)
	seed(t, s, api, 2)

	api.create = echoCreate("srv-new")
	_, err := s.Add(context.Background(), Entry{MovieID: 7, Title: "New", MediaType: "movie", Status: StatusWatching})
	require.NoError(t, err)

	entries := s.Entries()
	require.Len(t, entries, 3)
	// The server entity takes the temp entry's position, not a new slot.
	assert.Equal(t, "srv-new", entries[2].ID)
	assert.Equal(t, "srv-1", entries[0].ID)
	assert.Equal(t, "srv-2", entries[1].ID)
}

func TestAddRollback(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)
	seeded := seed(t, s, api, 2)

	var tempID string
	failure := errors.New("create failed")
	api.create = func(_ context.Context, entry Entry) (Entry, error) {
		tempID = entry.ID
		return Entry{}, failure
	}

	_, err := s.Add(context.Background(), Entry{MovieID: 7, Title: "Doomed", MediaType: "movie", Status: StatusWatching})
	require.ErrorIs(t, err, failure)

	entries := s.Entries()
	require.Len(t, entries, 2, "temporary entry must be filtered out")
	assert.Equal(t, seeded[0].ID, entries[0].ID)
	assert.Equal(t, seeded[1].ID, entries[1].ID)
	assert.False(t, s.Pending().IsAdding(tempID), "adding set must be cleaned on failure")
}

func TestUpdateSuccessUsesServerRepresentation(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)
	seeded := seed(t, s, api, 1)

	api.update = func(_ context.Context, id string, patch Patch) (Entry, error) {
		e, _ := s.Get(id)
		patch.apply(&e)
		e.Pending = false
		e.Notes = "server derived"
		return e, nil
	}

	status := StatusWatched
	updated, err := s.Update(context.Background(), seeded[0].ID, Patch{Status: &status})
	require.NoError(t, err)

	assert.Equal(t, StatusWatched, updated.Status)
	assert.Equal(t, "server derived", updated.Notes, "server-derived fields must be absorbed")

	got, ok := s.Get(seeded[0].ID)
	require.True(t, ok)
	assert.Equal(t, "server derived", got.Notes)
	assert.False(t, got.Pending)
}

func TestUpdateRollback(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)

	api.create = echoCreate("srv-1")
	watching := StatusWatching
	seededEntry, err := s.Add(context.Background(), Entry{MovieID: 1, Title: "Show", MediaType: "tv", Status: watching})
	require.NoError(t, err)

	var sawOptimistic bool
	failure := errors.New("update failed")
	api.update = func(_ context.Context, id string, _ Patch) (Entry, error) {
		if e, ok := s.Get(id); ok && e.Status == StatusWatched {
			sawOptimistic = true
		}
		return Entry{}, failure
	}

	watched := StatusWatched
	_, err = s.Update(context.Background(), seededEntry.ID, Patch{Status: &watched})
	require.ErrorIs(t, err, failure)

	assert.True(t, sawOptimistic, "optimistic patch must be visible mid-flight")

	got, ok := s.Get(seededEntry.ID)
	require.True(t, ok)
	assert.Equal(t, StatusWatching, got.Status, "snapshot must be restored verbatim")
	assert.False(t, got.Pending)
	assert.False(t, s.Pending().IsUpdating(seededEntry.ID))
}

func TestUpdateNotFound(t *testing.T) {
	s := NewStore(&fakeAPI{})
	status := StatusWatched
	_, err := s.Update(context.Background(), "missing", Patch{Status: &status})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveSuccess(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)
	seeded := seed(t, s, api, 2)

	var goneMidFlight bool
	api.remove = func(_ context.Context, id string) error {
		_, ok := s.Get(id)
		goneMidFlight = !ok
		return nil
	}

	require.NoError(t, s.Remove(context.Background(), seeded[0].ID))
	assert.True(t, goneMidFlight, "entry must be removed before the network call resolves")
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Pending().IsRemoving(seeded[0].ID))
}

func TestRemoveRollback(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)
	seeded := seed(t, s, api, 3)

	failure := errors.New("delete failed")
	api.remove = func(context.Context, string) error { return failure }

	err := s.Remove(context.Background(), seeded[0].ID)
	require.ErrorIs(t, err, failure)

	// Re-inserted, though not necessarily at its original position.
	got, ok := s.Get(seeded[0].ID)
	require.True(t, ok, "entry must be re-inserted on rollback")
	assert.Equal(t, seeded[0].MovieID, got.MovieID)
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.Pending().IsRemoving(seeded[0].ID))
}

func TestRemoveNotFound(t *testing.T) {
	s := NewStore(&fakeAPI{})
	assert.ErrorIs(t, s.Remove(context.Background(), "missing"), ErrNotFound)
}

func TestPendingCleanupInvariant(t *testing.T) {
	// Regardless of outcome, an operation's id is absent from its pending set
	// once the call settles.
	for _, fail := range []bool{false, true} {
		api := &fakeAPI{}
		s := NewStore(api)
		seeded := seed(t, s, api, 1)

		outcome := error(nil)
		if fail {
			outcome = errors.New("boom")
		}

		api.create = func(_ context.Context, e Entry) (Entry, error) {
			if outcome != nil {
				return Entry{}, outcome
			}
			e.ID = "srv-x"
			return e, nil
		}
		api.update = func(_ context.Context, id string, _ Patch) (Entry, error) {
			if outcome != nil {
				return Entry{}, outcome
			}
			e, _ := s.Get(id)
			return e, nil
		}
		api.remove = func(context.Context, string) error { return outcome }

		_, _ = s.Add(context.Background(), Entry{MovieID: 9, Title: "X", MediaType: "movie", Status: StatusWatching})
		_, _ = s.Update(context.Background(), seeded[0].ID, Patch{})
		_ = s.Remove(context.Background(), seeded[0].ID)

		for _, id := range []string{seeded[0].ID, "srv-x"} {
			assert.False(t, s.Pending().Busy(id), "fail=%v: id %s stuck in a pending set", fail, id)
		}
	}
}

func TestCancelledResponseNotApplied(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)

	ctx, cancel := context.WithCancel(context.Background())
	api.create = func(_ context.Context, e Entry) (Entry, error) {
		// The response arrives after the caller cancelled.
		cancel()
		e.ID = "srv-late"
		return e, nil
	}

	_, err := s.Add(ctx, Entry{MovieID: 5, Title: "Late", MediaType: "movie", Status: StatusWatching})
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, s.Len(), "discarded response must not be applied to the store")
}

func TestConcurrentAddsDifferentEntities(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)

	var mu sync.Mutex
	n := 0
	api.create = func(_ context.Context, e Entry) (Entry, error) {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		n++
		e.ID = fmt.Sprintf("srv-%d", n)
		mu.Unlock()
		return e, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Add(context.Background(), Entry{MovieID: int64(i), Title: "P", MediaType: "movie", Status: StatusWatching})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, s.Len())
	for _, e := range s.Entries() {
		assert.False(t, IsTempID(e.ID), "all temp ids must be reconciled")
	}
}

func TestRefresh(t *testing.T) {
	api := &fakeAPI{}
	s := NewStore(api)

	api.list = func(context.Context) ([]Entry, error) {
		return []Entry{{ID: "srv-1", MovieID: 1}, {ID: "srv-2", MovieID: 2}}, nil
	}

	require.NoError(t, s.Refresh(context.Background()))
	assert.Equal(t, 2, s.Len())
}
