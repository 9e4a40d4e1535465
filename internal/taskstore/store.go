// Package taskstore holds the in-memory task collection shared by one agent
// process. The store is constructed at process start and handed to the task
// service; its lifetime is the process lifetime.
package taskstore

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/CareMesh/internal/domain/a2a"
)

// Store maps task id to Task behind a single mutex. Operations are short
// and contention is low, so one lock for the whole map is enough. Tasks are
// retained until the process exits unless a TTL is configured.
type Store struct {
	mu    sync.Mutex
	tasks map[string]a2a.Task

	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL evicts tasks whose status is older than ttl, swept opportunistically
// on writes. Zero disables eviction and keeps every task, which is the
// default.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the time source used for TTL sweeps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		tasks: make(map[string]a2a.Task),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewIDs allocates a fresh (taskID, contextID) pair. Both tokens are random
// UUIDs, so no uniqueness check against the store is needed.
func NewIDs() (taskID, contextID string) {
	return uuid.NewString(), uuid.NewString()
}

// Put stores or replaces a task.
func (s *Store) Put(t a2a.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = t
	s.sweepLocked()
}

// Get returns the task with the given id and whether it exists.
func (s *Store) Get(id string) (a2a.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// SetStatus overwrites the status of an existing task in one locked step and
// returns the updated task. History is left untouched. Concurrent writers to
// the same id resolve last-write-wins.
func (s *Store) SetStatus(id string, status a2a.TaskStatus) (a2a.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return a2a.Task{}, false
	}
	t.Status = status
	s.tasks[id] = t
	return t, true
}

// Len reports the number of stored tasks.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// sweepLocked drops expired tasks. Caller must hold the mutex.
func (s *Store) sweepLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, t := range s.tasks {
		if t.Status.Timestamp.Before(cutoff) {
			delete(s.tasks, id)
		}
	}
}
