// Watchsync - Resilient Watchlist Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/watchsync

package watchlist

import (
	"sync"

	"github.com/tomtom215/watchsync/internal/metrics"
)

// PendingOperations tracks per-entry in-flight mutations in three disjoint
// sets, so UI layers can disable controls and detect redundant concurrent
// operations on the same entry.
//
// The sets provide membership only, not mutual exclusion: the store allows
// concurrent operations on one identifier, and callers that need
// serialization must gate on membership themselves.
type PendingOperations struct {
	mu       sync.RWMutex
	adding   map[string]struct{}
	updating map[string]struct{}
	removing map[string]struct{}
}

// NewPendingOperations creates empty pending sets.
func NewPendingOperations() *PendingOperations {
	return &PendingOperations{
		adding:   make(map[string]struct{}),
		updating: make(map[string]struct{}),
		removing: make(map[string]struct{}),
	}
}

// IsAdding reports whether an add is in flight for id.
func (p *PendingOperations) IsAdding(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.adding[id]
	return ok
}

// IsUpdating reports whether an update is in flight for id.
func (p *PendingOperations) IsUpdating(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.updating[id]
	return ok
}

// IsRemoving reports whether a removal is in flight for id.
func (p *PendingOperations) IsRemoving(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.removing[id]
	return ok
}

// Busy reports whether any operation is in flight for id.
func (p *PendingOperations) Busy(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.adding[id]; ok {
		return true
	}
	if _, ok := p.updating[id]; ok {
		return true
	}
	_, ok := p.removing[id]
	return ok
}

func (p *PendingOperations) beginAdd(id string) {
	p.begin(p.adding, "adding", id)
}

func (p *PendingOperations) endAdd(id string) {
	p.end(p.adding, "adding", id)
}

func (p *PendingOperations) beginUpdate(id string) {
	p.begin(p.updating, "updating", id)
}

func (p *PendingOperations) endUpdate(id string) {
	p.end(p.updating, "updating", id)
}

func (p *PendingOperations) beginRemove(id string) {
	p.begin(p.removing, "removing", id)
}

func (p *PendingOperations) endRemove(id string) {
	p.end(p.removing, "removing", id)
}

func (p *PendingOperations) begin(set map[string]struct{}, kind, id string) {
	p.mu.Lock()
	set[id] = struct{}{}
	size := len(set)
	p.mu.Unlock()
	metrics.PendingOperations.WithLabelValues(kind).Set(float64(size))
}

func (p *PendingOperations) end(set map[string]struct{}, kind, id string) {
	p.mu.Lock()
	delete(set, id)
	size := len(set)
	p.mu.Unlock()
	metrics.PendingOperations.WithLabelValues(kind).Set(float64(size))
}
