package session

import (
	"testing"
	"time"

	"TapeHeat/internal/domain/models"
)

func eastern(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestPhaseBoundaries(t *testing.T) {
	c := New("xnys")
	loc := eastern(t)
	// Monday 2025-06-02, a regular trading day
	day := func(h, m int) time.Time {
		return time.Date(2025, 6, 2, h, m, 0, 0, loc)
	}
	cases := []struct {
		at   time.Time
		want models.SessionPhase
	}{
		{day(7, 0), models.PhasePreMarket},
		{day(9, 29), models.PhasePreMarket},
		{day(9, 30), models.PhaseOpening},
		{day(10, 29), models.PhaseOpening},
		{day(10, 30), models.PhaseMidday},
		{day(14, 59), models.PhaseMidday},
		{day(15, 0), models.PhasePower},
		{day(15, 59), models.PhasePower},
		{day(16, 0), models.PhaseAfterHours},
		{day(19, 59), models.PhaseAfterHours},
		{day(20, 0), models.PhaseClosed},
		{day(3, 0), models.PhaseClosed},
	}
	for _, tc := range cases {
		if got := c.Phase(tc.at); got != tc.want {
			t.Fatalf("phase at %s = %s, want %s", tc.at.Format("15:04"), got, tc.want)
		}
	}
}

func TestWeekendClosed(t *testing.T) {
	c := New("xnys")
	loc := eastern(t)
	saturday := time.Date(2025, 6, 7, 12, 0, 0, 0, loc)
	if got := c.Phase(saturday); got != models.PhaseClosed {
		t.Fatalf("saturday phase = %s, want closed", got)
	}
	if c.IsTradingDay(saturday) {
		t.Fatalf("saturday is not a trading day")
	}
}

func TestSameSessionBoundary(t *testing.T) {
	c := New("xnys")
	loc := eastern(t)
	evening := time.Date(2025, 6, 2, 19, 30, 0, 0, loc)
	nextMorning := time.Date(2025, 6, 3, 4, 5, 0, 0, loc)
	if !c.SameSession(evening, evening.Add(10*time.Minute)) {
		t.Fatalf("same evening must share a session date")
	}
	if c.SameSession(evening, nextMorning) {
		t.Fatalf("crossing local midnight must start a new session date")
	}
}

func TestSameSessionUsesExchangeDate(t *testing.T) {
	c := New("xnys")
	// 2025-06-03 01:00 UTC is still 2025-06-02 in New York
	lateUTC := time.Date(2025, 6, 3, 1, 0, 0, 0, time.UTC)
	sameDayET := time.Date(2025, 6, 2, 15, 0, 0, 0, eastern(t))
	if !c.SameSession(lateUTC, sameDayET) {
		t.Fatalf("UTC date rollover must not split the exchange session")
	}
}
