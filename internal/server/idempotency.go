// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// idempotencyTTL bounds how long a completed mutation's response is replayable.
// Retries arrive within seconds; a day leaves generous room for clients that
// resume after sleep.
const idempotencyTTL = 24 * time.Hour

// IdempotencyRecord is the stored outcome of a completed mutation, replayed
// verbatim when the same Idempotency-Key arrives again.
type IdempotencyRecord struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

func idemKey(userID, key string) []byte {
	return []byte(idemKeyPrefix + userID + ":" + key)
}

// LookupIdempotent returns the recorded outcome for key, if one exists.
func (s *EntryStore) LookupIdempotent(ctx context.Context, userID, key string) (IdempotencyRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return IdempotencyRecord{}, false, err
	}

	var rec IdempotencyRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idemKey(userID, key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return IdempotencyRecord{}, false, nil
	}
	if err != nil {
		return IdempotencyRecord{}, false, fmt.Errorf("lookup idempotency record: %w", err)
	}
	return rec, true, nil
}

// StoreIdempotent records a mutation's outcome under key with a bounded TTL.
func (s *EntryStore) StoreIdempotent(ctx context.Context, userID, key string, rec IdempotencyRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(idemKey(userID, key), data).WithTTL(idempotencyTTL)
		return txn.SetEntry(e)
	})
}
