// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package watchlist

import (
	"context"
	"net/url"

	"github.com/tomtom215/watchsync/internal/client"
)

// API is the persistence service surface the store mutates through. The
// production implementation is RemoteAPI; tests substitute fakes.
type API interface {
	Create(ctx context.Context, entry Entry) (Entry, error)
	Update(ctx context.Context, id string, patch Patch) (Entry, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Entry, error)
}

// RemoteAPI implements API over the authenticated request client, using the
// persistence service's watchlist routes.
type RemoteAPI struct {
	client *client.Client
}

// NewRemoteAPI wraps an authenticated client.
func NewRemoteAPI(c *client.Client) *RemoteAPI {
	return &RemoteAPI{client: c}
}

// Create POSTs a new entry and returns the server's authoritative record.
func (a *RemoteAPI) Create(ctx context.Context, entry Entry) (Entry, error) {
	data, err := a.client.Post(ctx, "/watchlist", entry)
	if err != nil {
		return Entry{}, err
	}
	return client.Decode[Entry](data)
}

// Update PATCHes an entry and returns the server's post-update record,
// including any server-derived fields.
func (a *RemoteAPI) Update(ctx context.Context, id string, patch Patch) (Entry, error) {
	data, err := a.client.Patch(ctx, "/watchlist/"+url.PathEscape(id), patch)
	if err != nil {
		return Entry{}, err
	}
	return client.Decode[Entry](data)
}

// Delete removes an entry by id (carried as a query parameter, matching the
// persistence service's route shape).
func (a *RemoteAPI) Delete(ctx context.Context, id string) error {
	query := url.Values{}
	query.Set("id", id)
	_, err := a.client.Delete(ctx, "/watchlist?"+query.Encode())
	return err
}

// List GETs the full authoritative collection.
func (a *RemoteAPI) List(ctx context.Context) ([]Entry, error) {
	data, err := a.client.Get(ctx, "/watchlist")
	if err != nil {
		return nil, err
	}
	return client.Decode[[]Entry](data)
}
