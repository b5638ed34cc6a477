// Package panecache bounds how many sessions keep their message panes
// materialized. Eviction is two-phase: ids trimmed off the cached list go
// to a pending queue first, and are only torn down by a later reconcile
// pass if they were not touched again in between. That keeps a session
// that became active again within the same tick from being torn down
// under a live render.
package panecache

import (
	"slices"
	"sync"
)

// DefaultCapacity is the number of regular session panes kept warm. One
// extra slot is granted while a parent session is pinned active alongside
// its child.
const DefaultCapacity = 2

// Controller is pure bookkeeping: no I/O, no timers. The onEvict callback
// tears down whatever the owner materialized for the session (message
// store records, render caches).
type Controller struct {
	mu       sync.Mutex
	capacity int
	cached   []string // most recently touched first
	pending  []string
	onEvict  func(sessionID string)
}

func NewController(capacity int, onEvict func(sessionID string)) *Controller {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if onEvict == nil {
		onEvict = func(string) {}
	}
	return &Controller{capacity: capacity, onEvict: onEvict}
}

// SetActive touches the active session and, when set, its parent, then
// trims the cached list. Trimmed ids are queued for eviction, not torn
// down here.
func (c *Controller) SetActive(sessionID, parentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// parent first so the active session ends up most recent
	if parentID != "" && parentID != sessionID {
		c.touch(parentID)
	}
	if sessionID != "" {
		c.touch(sessionID)
	}

	limit := c.capacity
	if parentID != "" && parentID != sessionID {
		limit++ // parent pinned alongside the active child
	}
	if len(c.cached) <= limit {
		return
	}
	for _, id := range c.cached[limit:] {
		if !slices.Contains(c.pending, id) {
			c.pending = append(c.pending, id)
		}
	}
	c.cached = c.cached[:limit]
}

// Touch moves a session to the front of the cached list, inserting it if
// absent. It does not trim.
func (c *Controller) Touch(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.touch(sessionID)
}

func (c *Controller) touch(sessionID string) {
	if i := slices.Index(c.cached, sessionID); i >= 0 {
		c.cached = append(c.cached[:i], c.cached[i+1:]...)
	}
	c.cached = append([]string{sessionID}, c.cached...)
}

// Reconcile sweeps the pending queue. Ids that made it back into the
// cached list are forgiven; the rest are evicted via the callback.
func (c *Controller) Reconcile() {
	c.mu.Lock()
	var evict []string
	for _, id := range c.pending {
		if !slices.Contains(c.cached, id) {
			evict = append(evict, id)
		}
	}
	c.pending = c.pending[:0]
	c.mu.Unlock()

	for _, id := range evict {
		c.onEvict(id)
	}
}

// Drop removes a session from both lists without invoking eviction; used
// when the session itself is deleted and the owner already tore it down.
func (c *Controller) Drop(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := slices.Index(c.cached, sessionID); i >= 0 {
		c.cached = append(c.cached[:i], c.cached[i+1:]...)
	}
	if i := slices.Index(c.pending, sessionID); i >= 0 {
		c.pending = append(c.pending[:i], c.pending[i+1:]...)
	}
}

// Cached returns the cached ids, most recently touched first.
func (c *Controller) Cached() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.cached...)
}

// Pending returns the ids queued for eviction.
func (c *Controller) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pending...)
}
