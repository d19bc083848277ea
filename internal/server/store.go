// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Key prefixes for BadgerDB storage. Entry keys are scoped per user so one
// user's listing never iterates another's records.
const (
	entryKeyPrefix = "entry:"
	idemKeyPrefix  = "idem:"
)

// serverIDPrefix marks server-assigned entry identifiers.
const serverIDPrefix = "srv-"

// ErrEntryNotFound is returned for lookups and mutations against an entry the
// user does not have.
var ErrEntryNotFound = errors.New("no such watchlist entry")

// Entry is the server-owned watchlist record.
type Entry struct {
	ID        string    `json:"id"`
	MovieID   int64     `json:"movieId"`
	Title     string    `json:"title"`
	MediaType string    `json:"mediaType"`
	Status    string    `json:"status"`
	Rating    *int      `json:"rating,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title  *string `json:"title,omitempty"`
	Status *string `json:"status,omitempty"`
	Rating *int    `json:"rating,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

func (p Patch) apply(e *Entry) {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Status != nil {
		e.Status = *p.Status
	}
	if p.Rating != nil {
		e.Rating = p.Rating
	}
	if p.Notes != nil {
		e.Notes = *p.Notes
	}
}

// EntryStore persists watchlist entries in BadgerDB.
type EntryStore struct {
	db *badger.DB
}

// OpenStore opens a durable store at path.
func OpenStore(path string) (*EntryStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &EntryStore{db: db}, nil
}

// OpenInMemoryStore opens a store that lives only for the process. Used by
// tests and by ephemeral deployments.
func OpenInMemoryStore() (*EntryStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &EntryStore{db: db}, nil
}

// Close releases the underlying database.
func (s *EntryStore) Close() error {
	return s.db.Close()
}

func entryKey(userID, entryID string) []byte {
	return []byte(entryKeyPrefix + userID + ":" + entryID)
}

// Create assigns a server identifier and timestamps, then persists the entry.
func (s *EntryStore) Create(ctx context.Context, userID string, entry Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	entry.ID = serverIDPrefix + uuid.NewString()
	now := time.Now().UTC()
	entry.CreatedAt = now
	entry.UpdatedAt = now

	data, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal entry: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(userID, entry.ID), data)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("store entry: %w", err)
	}
	return entry, nil
}

// Get retrieves one entry belonging to userID.
func (s *EntryStore) Get(ctx context.Context, userID, entryID string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	var entry Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(userID, entryID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// List returns all of userID's entries ordered by creation time.
func (s *EntryStore) List(ctx context.Context, userID string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []Entry{}
	prefix := []byte(entryKeyPrefix + userID + ":")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("decode entry: %w", err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// Patch applies a partial update inside one transaction and returns the
// post-update record.
func (s *EntryStore) Patch(ctx context.Context, userID, entryID string, patch Patch) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	var entry Entry
	err := s.db.Update(func(txn *badger.Txn) error {
		key := entryKey(userID, entryID)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		}); err != nil {
			return fmt.Errorf("decode entry: %w", err)
		}

		patch.apply(&entry)
		entry.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal entry: %w", err)
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// Delete removes one entry belonging to userID.
func (s *EntryStore) Delete(ctx context.Context, userID, entryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		key := entryKey(userID, entryID)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrEntryNotFound
		} else if err != nil {
			return fmt.Errorf("get entry: %w", err)
		}
		return txn.Delete(key)
	})
}
