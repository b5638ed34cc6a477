// Package metrics derives live and historical throughput signals per
// session from the streamed text itself, without the host reporting them.
package metrics

import (
	"math"
	"sync"
	"time"
)

const (
	// rough heuristic used while streaming, superseded by the host's
	// authoritative count at completion
	charsPerToken = 4

	rollingCap   = 30
	minSampleGap = 500 * time.Millisecond
)

// Snapshot is a read-only view of one session's streaming metrics.
type Snapshot struct {
	RequestSentAt         time.Time
	FirstTokenAt          time.Time // zero until the first token arrives
	EstimatedOutputTokens int64
	CompletedOutputTokens int64
	CompletedAt           time.Time
	Completed             bool
}

// OutputTokens returns the authoritative count once available, otherwise
// the running estimate. estimate is true while the value is approximate so
// callers can render an "≈" indicator.
func (s Snapshot) OutputTokens() (tokens int64, estimate bool) {
	if s.Completed {
		return s.CompletedOutputTokens, false
	}
	return s.EstimatedOutputTokens, true
}

type record struct {
	requestSentAt time.Time
	firstTokenAt  time.Time
	estTokens     float64
	lastTextLen   int
	completed     bool
	completedTok  int64
	completedAt   time.Time

	baselineSeeded bool
	baselineAt     time.Time
	baselineTok    float64

	// rolling tokens-per-second samples; survives resets so history spans
	// multiple turns of the session
	samples []int
}

// Tracker maintains per-session streaming metrics for one instance.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*record
	now      func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		sessions: make(map[string]*record),
		now:      time.Now,
	}
}

func (t *Tracker) get(sessionID string) *record {
	r, ok := t.sessions[sessionID]
	if !ok {
		r = &record{}
		t.sessions[sessionID] = r
	}
	return r
}

// SetRequestSent resets a session's metrics for a new turn, stamped with
// the current time. The rolling sample buffer is preserved.
func (t *Tracker) SetRequestSent(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.get(sessionID)
	samples := r.samples
	*r = record{requestSentAt: t.now(), samples: samples}
}

// RecordFirstToken stamps first-token arrival; repeated calls keep the
// first stamp.
func (t *Tracker) RecordFirstToken(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.get(sessionID)
	if r.firstTokenAt.IsZero() {
		r.firstTokenAt = t.now()
	}
}

// AddDeltaChars feeds the total text length seen so far. The positive
// difference from the last length is converted to estimated tokens;
// non-positive deltas (duplicate or out-of-order updates) change nothing.
func (t *Tracker) AddDeltaChars(sessionID string, totalTextLen int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.get(sessionID)
	delta := totalTextLen - r.lastTextLen
	if delta <= 0 {
		return
	}
	r.estTokens += float64(delta) / charsPerToken
	r.lastTextLen = totalTextLen
}

// SetCompleted records the authoritative output token count and pushes one
// whole-turn rate sample into the rolling buffer.
func (t *Tracker) SetCompleted(sessionID string, outputTokens int64, completedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r := t.get(sessionID)
	r.completed = true
	r.completedTok = outputTokens
	if completedAt.IsZero() {
		completedAt = t.now()
	}
	r.completedAt = completedAt

	start := r.requestSentAt
	if start.IsZero() {
		start = r.firstTokenAt
	}
	if start.IsZero() {
		return
	}
	elapsed := completedAt.Sub(start).Seconds()
	if elapsed <= 0 {
		return
	}
	r.push(int(math.Round(float64(outputTokens) / elapsed)))
}

// SampleCurrentRate is meant to run on a periodic tick (~3 s) while a
// session streams. The first call after a reset seeds a baseline without
// emitting; later calls emit an instantaneous rate from the token delta
// once at least half a second has passed, then re-seed. Completed or
// not-yet-started sessions no-op.
func (t *Tracker) SampleCurrentRate(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.sessions[sessionID]
	if !ok || r.completed || r.firstTokenAt.IsZero() {
		return
	}
	now := t.now()
	if !r.baselineSeeded {
		r.baselineSeeded = true
		r.baselineAt = now
		r.baselineTok = r.estTokens
		return
	}
	elapsed := now.Sub(r.baselineAt)
	if elapsed < minSampleGap {
		return
	}
	rate := (r.estTokens - r.baselineTok) / elapsed.Seconds()
	r.push(int(math.Round(rate)))
	r.baselineAt = now
	r.baselineTok = r.estTokens
}

// RollingTokPerSec returns the mean of the rolling rate buffer, or false
// when no samples exist yet.
func (t *Tracker) RollingTokPerSec(sessionID string) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.sessions[sessionID]
	if !ok || len(r.samples) == 0 {
		return 0, false
	}
	sum := 0
	for _, s := range r.samples {
		sum += s
	}
	return int(math.Round(float64(sum) / float64(len(r.samples)))), true
}

// Get returns a snapshot of a session's metrics.
func (t *Tracker) Get(sessionID string) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.sessions[sessionID]
	if !ok {
		return Snapshot{}, false
	}
	return Snapshot{
		RequestSentAt:         r.requestSentAt,
		FirstTokenAt:          r.firstTokenAt,
		EstimatedOutputTokens: int64(math.Round(r.estTokens)),
		CompletedOutputTokens: r.completedTok,
		CompletedAt:           r.completedAt,
		Completed:             r.completed,
	}, true
}

// Clear drops a session's metrics entirely, history included.
func (t *Tracker) Clear(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, sessionID)
}

func (r *record) push(rate int) {
	r.samples = append(r.samples, rate)
	if len(r.samples) > rollingCap {
		r.samples = r.samples[len(r.samples)-rollingCap:]
	}
}
