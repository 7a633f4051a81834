package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TapeHeat/internal/domain/models"
	mid "TapeHeat/internal/middleware"
	applogger "TapeHeat/pkg/logger"
)

// lockedMetrics is safe to read while the consume goroutine writes.
type lockedMetrics struct {
	mu         sync.Mutex
	errors     map[string]int
	lastPrices map[string]int
}

func newLockedMetrics() *lockedMetrics {
	return &lockedMetrics{errors: map[string]int{}, lastPrices: map[string]int{}}
}

func (m *lockedMetrics) RecordSignal(string, string) {}
func (m *lockedMetrics) RecordSuppressed(string)     {}
func (m *lockedMetrics) RecordHeatScore(string, int) {}
func (m *lockedMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *lockedMetrics) RecordLastPrice(ticker string, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrices[ticker]++
}
func (m *lockedMetrics) RecordLatency(string, float64) {}

func (m *lockedMetrics) errorTotal() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.errors {
		total += n
	}
	return total
}

func (m *lockedMetrics) prices(ticker string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPrices[ticker]
}

func closedStreamChannels() (<-chan models.MarketEvent, <-chan error) {
	events := make(chan models.MarketEvent)
	errs := make(chan error)
	close(events)
	close(errs)
	return events, errs
}

// downStream simulates a broker outage: its read channels close immediately
// and every reconnect attempt fails.
type downStream struct {
	mu        sync.Mutex
	attemptsN int
}

func (s *downStream) Connect(context.Context) error   { return nil }
func (s *downStream) Subscribe(context.Context) error { return nil }
func (s *downStream) Read(context.Context) (<-chan models.MarketEvent, <-chan error) {
	return closedStreamChannels()
}
func (s *downStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptsN++
	return errors.New("broker unavailable")
}
func (s *downStream) Close() error      { return nil }
func (s *downStream) IsConnected() bool { return false }
func (s *downStream) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptsN
}

// flakyStream fails its first reconnect, then comes back with one live trade.
type flakyStream struct {
	mu        sync.Mutex
	attemptsN int
	recovered bool
	price     float64
}

func (s *flakyStream) Connect(context.Context) error   { return nil }
func (s *flakyStream) Subscribe(context.Context) error { return nil }
func (s *flakyStream) Read(context.Context) (<-chan models.MarketEvent, <-chan error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recovered {
		return closedStreamChannels()
	}
	events := make(chan models.MarketEvent, 1)
	events <- models.MarketEvent{Trade: &models.Trade{
		Ticker: "AAPL", Price: s.price, Size: 100,
		Timestamp: time.Now().UnixNano(), ExchangeID: 4,
	}}
	return events, make(chan error)
}
func (s *flakyStream) Reconnect(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attemptsN++
	if s.attemptsN == 1 {
		return errors.New("broker unavailable")
	}
	s.recovered = true
	return nil
}
func (s *flakyStream) Close() error      { return nil }
func (s *flakyStream) IsConnected() bool { return true }
func (s *flakyStream) attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attemptsN
}

func testCollectorLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	log, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func TestReconnectBacksOffAfterStreamClose(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := &downStream{}
	m := newLockedMetrics()
	col := NewEventCollector(s, nil, nil, m, testCollectorLogger(t))
	if err := col.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	time.Sleep(1200 * time.Millisecond)
	cancel()

	attempts := s.attempts()
	if attempts < 2 || attempts > 4 {
		t.Fatalf("reconnect attempts = %d, want backoff-paced retries", attempts)
	}
	if total := m.errorTotal(); total > attempts {
		t.Fatalf("error records = %d with %d reconnect attempts, busy loop suspected", total, attempts)
	}
}

func TestReconnectRecoversAndResumesDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFixture(t)
	s := &flakyStream{price: 101.5}
	m := newLockedMetrics()
	guard := mid.NewIngestGuard(m)
	col := NewEventCollector(s, f.disp, guard, m, testCollectorLogger(t))
	if err := col.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) && m.prices("AAPL") == 0 {
		time.Sleep(20 * time.Millisecond)
	}
	if m.prices("AAPL") == 0 {
		t.Fatalf("trade not dispatched after stream recovery")
	}
	if got := s.attempts(); got != 2 {
		t.Fatalf("reconnect attempts = %d, want 2", got)
	}
}
