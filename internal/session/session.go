// Package session tracks in-flight and recently-finished generation
// sessions: one entry per streaming request, keyed by a generated id, with
// a cancellation handle and a Reap method for abandoned entries. Nothing in
// this module calls Reap on a schedule.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a session's lifecycle state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusPartial   Status = "partial" // one or more chunks were skipped (timeout)
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// DefaultMaxAge is how long an idle session is kept before the reaper
// removes it.
const DefaultMaxAge = time.Hour

// ChunkTiming records one delivered chunk's timing for observability.
type ChunkTiming struct {
	Ordinal       int
	InferenceTime time.Duration
	DeliveredAt   time.Time
}

// Session is one generation request's tracked state.
type Session struct {
	ID        string
	Voice     string
	Format    string
	StartedAt time.Time
	Status    Status

	mu      sync.Mutex
	cancel  func()
	timings []ChunkTiming
}

// Registry holds all tracked sessions, guarded by a short-held lock.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxAge   time.Duration
}

// NewRegistry builds an empty Registry. maxAge <= 0 uses DefaultMaxAge.
func NewRegistry(maxAge time.Duration) *Registry {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Registry{sessions: make(map[string]*Session), maxAge: maxAge}
}

// Start registers a new session with a fresh id and the given cancel func,
// which the registry calls at most once, when Cancel or Reap cancels the
// session.
func (r *Registry) Start(voice, format string, cancel func()) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Voice:     voice,
		Format:    format,
		StartedAt: time.Now(),
		Status:    StatusRunning,
		cancel:    cancel,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	return s
}

// Get returns the session for id, or (nil, false) if it is not tracked
// (never started, already reaped, or the id is unknown).
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Cancel idempotently cancels the session: it calls the session's cancel
// func at most once and marks it StatusCancelled. Returns false if id is
// not tracked.
func (r *Registry) Cancel(id string) bool {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status == StatusCancelled || s.Status == StatusCompleted {
		return true
	}

	s.Status = StatusCancelled
	if s.cancel != nil {
		s.cancel()
	}

	return true
}

// Finish marks a session completed (or partial, if any chunk was skipped);
// a cancelled session keeps StatusCancelled.
func (r *Registry) Finish(id string, partial bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return
	}

	s.mu.Lock()
	if s.Status != StatusCancelled {
		if partial {
			s.Status = StatusPartial
		} else {
			s.Status = StatusCompleted
		}
	}
	s.mu.Unlock()
}

// RecordChunk appends a chunk timing to the session's history.
func (s *Session) RecordChunk(t ChunkTiming) {
	s.mu.Lock()
	s.timings = append(s.timings, t)
	s.mu.Unlock()
}

// Timings returns a copy of the session's recorded chunk timings.
func (s *Session) Timings() []ChunkTiming {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ChunkTiming(nil), s.timings...)
}

// CurrentStatus returns the session's status under its own lock.
func (s *Session) CurrentStatus() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status
}

// Remove deletes a session from the registry without cancelling it; used
// once a non-streaming request has fully returned its single artifact.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Reap removes sessions older than the registry's maxAge that are not
// still running, and cancels (then removes) running ones past maxAge. It
// returns the number of sessions removed. Call periodically from a
// background goroutine.
func (r *Registry) Reap(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, s := range r.sessions {
		s.mu.Lock()
		age := now.Sub(s.StartedAt)
		stillRunning := s.Status == StatusRunning
		s.mu.Unlock()

		if age <= r.maxAge {
			continue
		}

		if stillRunning {
			s.mu.Lock()
			s.Status = StatusCancelled
			if s.cancel != nil {
				s.cancel()
			}
			s.mu.Unlock()
		}

		delete(r.sessions, id)
		removed++
	}

	return removed
}

// Count returns the number of currently tracked sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
