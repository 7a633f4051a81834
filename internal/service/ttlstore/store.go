package ttlstore

import (
	"sync"
	"time"
)

// Store is a TTL-keyed map with an explicit sweep, shared by the cooldown
// manager and the sweep correlator's quote/dedup buffers. Entries expire
// lazily on read and eagerly on Sweep.
type Store[V any] struct {
	mu  sync.RWMutex
	m   map[string]entry[V]
	ttl time.Duration
	now func() time.Time
}

type entry[V any] struct {
	v   V
	set time.Time
}

// Option configures a Store.
type Option[V any] func(*Store[V])

// WithClock overrides the time source, for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(s *Store[V]) { s.now = now }
}

// New creates a store whose entries expire ttl after their last Set.
func New[V any](ttl time.Duration, opts ...Option[V]) *Store[V] {
	s := &Store[V]{
		m:   make(map[string]entry[V]),
		ttl: ttl,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the live value for key, if any.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	var zero V
	if !ok {
		return zero, false
	}
	if s.ttl > 0 && s.now().Sub(e.set) > s.ttl {
		s.mu.Lock()
		delete(s.m, key)
		s.mu.Unlock()
		return zero, false
	}
	return e.v, true
}

// SetAt stores value under key stamped at ts.
func (s *Store[V]) SetAt(key string, v V, ts time.Time) {
	s.mu.Lock()
	s.m[key] = entry[V]{v: v, set: ts}
	s.mu.Unlock()
}

// Set stores value under key stamped now.
func (s *Store[V]) Set(key string, v V) {
	s.SetAt(key, v, s.now())
}

// SetTime returns the timestamp the key was last set, if live.
func (s *Store[V]) SetTime(key string) (time.Time, bool) {
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	if !ok {
		return time.Time{}, false
	}
	if s.ttl > 0 && s.now().Sub(e.set) > s.ttl {
		return time.Time{}, false
	}
	return e.set, true
}

// Len returns the number of entries including not-yet-swept expired ones.
func (s *Store[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}

// Sweep evicts expired entries and returns how many were removed.
func (s *Store[V]) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.m {
		if e.set.Before(cutoff) {
			delete(s.m, k)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep on the interval until ctx is done. It never blocks
// callers of Get/Set beyond the map mutex.
func (s *Store[V]) StartSweeper(done <-chan struct{}, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}
