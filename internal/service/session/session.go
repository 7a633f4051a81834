package session

import (
	"time"

	"github.com/scmhub/calendar"

	"TapeHeat/internal/domain/models"
)

// Clock maps wall-clock time onto the US equity session. Holidays and early
// closes come from the exchange calendar; intraday phase boundaries are fixed
// Eastern-time cutoffs.
type Clock struct {
	cal      *calendar.Calendar
	loc      *time.Location
	fallback bool
}

// New builds a session clock for the given MIC (ISO 10383), defaulting to
// NYSE. A missing calendar degrades to a Mon-Fri schedule.
func New(mic string) *Clock {
	if mic == "" {
		mic = "xnys"
	}
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}
	if cal == nil {
		loc, err := time.LoadLocation("America/New_York")
		if err != nil {
			loc = time.UTC
		}
		return &Clock{loc: loc, fallback: true}
	}
	return &Clock{cal: cal, loc: cal.Loc}
}

// IsTradingDay reports whether the exchange trades on the given date.
func (c *Clock) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)
	if c.fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return c.cal.IsBusinessDay(t)
}

// Phase buckets a timestamp into the session phase used by the heat scorer.
func (c *Clock) Phase(t time.Time) models.SessionPhase {
	if !c.IsTradingDay(t) {
		return models.PhaseClosed
	}
	t = t.In(c.loc)
	mins := t.Hour()*60 + t.Minute()
	switch {
	case mins < 4*60:
		return models.PhaseClosed
	case mins < 9*60+30:
		return models.PhasePreMarket
	case mins < 10*60+30:
		return models.PhaseOpening
	case mins < 15*60:
		return models.PhaseMidday
	case mins < 16*60:
		return models.PhasePower
	case mins < 20*60:
		return models.PhaseAfterHours
	default:
		return models.PhaseClosed
	}
}

// SameSession reports whether two instants fall on the same exchange-local
// calendar date. The dispatch loop resets daily aggregation state when this
// turns false between consecutive events.
func (c *Clock) SameSession(a, b time.Time) bool {
	a, b = a.In(c.loc), b.In(c.loc)
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Location exposes the exchange timezone for date formatting.
func (c *Clock) Location() *time.Location {
	return c.loc
}
