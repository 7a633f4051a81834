package cooldown

import (
	"testing"
	"time"
)

func TestSuppressWithinWindow(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)
	m := New(time.Hour, WithClock(func() time.Time { return now }))

	key := Key("momentum", "AAPL")
	if m.ShouldSuppress(key, time.Minute) {
		t.Fatalf("fresh key should not suppress")
	}
	m.MarkFired(key)
	now = now.Add(30 * time.Second)
	if !m.ShouldSuppress(key, time.Minute) {
		t.Fatalf("expected suppression inside window")
	}
	now = now.Add(31 * time.Second)
	if m.ShouldSuppress(key, time.Minute) {
		t.Fatalf("expected no suppression after window")
	}
}

func TestScopesIndependent(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := New(time.Hour, WithClock(func() time.Time { return now }))

	m.MarkFired(Key("momentum", "AAPL"))
	if m.ShouldSuppress(Key("momentum", "TSLA"), time.Minute) {
		t.Fatalf("different ticker must not be suppressed")
	}
	if m.ShouldSuppress(Key("breakout", "AAPL"), time.Minute) {
		t.Fatalf("different scope must not be suppressed")
	}
}

func TestSweepBoundsMemory(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := New(time.Hour, WithClock(func() time.Time { return now }))

	m.MarkFired("a")
	m.MarkFired("b")
	now = now.Add(2 * time.Hour)
	m.MarkFired("c")

	if got := m.Sweep(); got != 2 {
		t.Fatalf("expected 2 evicted, got %d", got)
	}
	if m.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", m.Len())
	}
}

func TestBucketKeyStableWithinBucket(t *testing.T) {
	ts := time.Unix(1_700_000_003, 0)
	k1 := BucketKey("sweep", "O:AAPL241220C00200000", ts, 10*time.Second)
	k2 := BucketKey("sweep", "O:AAPL241220C00200000", ts.Add(5*time.Second), 10*time.Second)
	k3 := BucketKey("sweep", "O:AAPL241220C00200000", ts.Add(10*time.Second), 10*time.Second)
	if k1 != k2 {
		t.Fatalf("same bucket expected: %s vs %s", k1, k2)
	}
	if k1 == k3 {
		t.Fatalf("next bucket must differ")
	}
}
