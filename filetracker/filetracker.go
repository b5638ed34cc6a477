// Package filetracker records which workspace files a session's tool
// calls have read or written, for workspace views and external-change
// detection.
package filetracker

import (
	"sync"
	"time"
)

type record struct {
	path      string
	readTime  time.Time
	writeTime time.Time
}

// Tracker keys file touches by session so panes can show per-session
// workspace activity.
type Tracker struct {
	mu      sync.RWMutex
	touched map[string]map[string]record // session id -> path -> record
}

func NewTracker() *Tracker {
	return &Tracker{touched: make(map[string]map[string]record)}
}

func (t *Tracker) session(sessionID string) map[string]record {
	byPath, ok := t.touched[sessionID]
	if !ok {
		byPath = make(map[string]record)
		t.touched[sessionID] = byPath
	}
	return byPath
}

// RecordRead notes that a session's tool read path.
func (t *Tracker) RecordRead(sessionID, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byPath := t.session(sessionID)
	rec := byPath[path]
	rec.path = path
	rec.readTime = time.Now()
	byPath[path] = rec
}

// RecordWrite notes that a session's tool wrote path.
func (t *Tracker) RecordWrite(sessionID, path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	byPath := t.session(sessionID)
	rec := byPath[path]
	rec.path = path
	rec.writeTime = time.Now()
	byPath[path] = rec
}

// LastReadTime returns when the session last read path; zero if never.
func (t *Tracker) LastReadTime(sessionID, path string) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if byPath, ok := t.touched[sessionID]; ok {
		return byPath[path].readTime
	}
	return time.Time{}
}

// TouchedFiles returns every path the session's tools touched.
func (t *Tracker) TouchedFiles(sessionID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	byPath := t.touched[sessionID]
	out := make([]string, 0, len(byPath))
	for path := range byPath {
		out = append(out, path)
	}
	return out
}

// ClearSession drops a session's records on eviction or deletion.
func (t *Tracker) ClearSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.touched, sessionID)
}
