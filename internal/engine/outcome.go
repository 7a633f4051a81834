package engine

import "TapeHeat/internal/domain/models"

// Outcome distinguishes the ways a detector can decline to fire. Callers only
// see "no signal" either way; tests (and metrics) need the reason.
type Outcome int

const (
	OutcomeNoMatch Outcome = iota
	OutcomeInsufficientHistory
	OutcomeSuppressed
	OutcomeFired
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInsufficientHistory:
		return "insufficient_history"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeFired:
		return "fired"
	default:
		return "no_match"
	}
}

// Result is one detector's verdict for one ingestion event.
type Result struct {
	Type    models.SignalType
	Outcome Outcome
	Signal  *models.Signal
}

// Evaluation is the verdict of the full detector pass for one event.
// Primary is the first detector that fired in priority order; All carries
// every fired signal for the emit-all mode.
type Evaluation struct {
	Results []Result
	Primary *models.Signal
	All     []*models.Signal
}

func (e *Evaluation) add(r Result) {
	e.Results = append(e.Results, r)
	if r.Outcome == OutcomeFired && r.Signal != nil {
		e.All = append(e.All, r.Signal)
		if e.Primary == nil {
			e.Primary = r.Signal
		}
	}
}

// OutcomeOf returns the verdict for a detector type within this evaluation.
func (e *Evaluation) OutcomeOf(t models.SignalType) Outcome {
	for _, r := range e.Results {
		if r.Type == t {
			return r.Outcome
		}
	}
	return OutcomeNoMatch
}
