package cooldown

import (
	"fmt"
	"time"

	"TapeHeat/internal/service/ttlstore"
)

// Manager is the shared suppression facility. Every detector, the sweep
// correlator's dedup buckets, and chart-pattern keys consult it with a
// scope-specific key before firing.
type Manager struct {
	fired     *ttlstore.Store[time.Time]
	maxWindow time.Duration
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a manager. maxWindow bounds retained entries; it must be at
// least the largest cooldown window any caller uses.
func New(maxWindow time.Duration, opts ...Option) *Manager {
	m := &Manager{maxWindow: maxWindow, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	m.fired = ttlstore.New[time.Time](maxWindow, ttlstore.WithClock[time.Time](m.now))
	return m
}

// Key builds a detector-and-scope key, e.g. Key("momentum", "AAPL").
func Key(scope, ticker string) string {
	return scope + "-" + ticker
}

// BucketKey builds a time-bucketed dedup key, e.g. a 10-second sweep bucket.
func BucketKey(scope, id string, ts time.Time, bucket time.Duration) string {
	return fmt.Sprintf("%s-%s-%d", scope, id, ts.Unix()/int64(bucket.Seconds()))
}

// ShouldSuppress reports whether key fired within window.
func (m *Manager) ShouldSuppress(key string, window time.Duration) bool {
	last, ok := m.fired.Get(key)
	if !ok {
		return false
	}
	return m.now().Sub(last) < window
}

// MarkFired registers a firing for key at the current time.
func (m *Manager) MarkFired(key string) {
	now := m.now()
	m.fired.SetAt(key, now, now)
}

// Sweep evicts entries older than the largest window in use.
func (m *Manager) Sweep() int { return m.fired.Sweep() }

// Len returns the number of tracked keys (expired-but-unswept included).
func (m *Manager) Len() int { return m.fired.Len() }

// StartSweeper bounds memory under sustained load.
func (m *Manager) StartSweeper(done <-chan struct{}, interval time.Duration) {
	m.fired.StartSweeper(done, interval)
}
