package ledger

import "time"

// #region ledger

// Ledger applies the confidence update rule. It is pure over its inputs and
// total: every valid (hypothesis, decision) pair produces a result.
type Ledger struct {
	config Config
}

// NewLedger creates a ledger with the given scoring configuration.
func NewLedger(config Config) *Ledger {
	return &Ledger{config: config}
}

// Config returns the scoring configuration in use.
func (l *Ledger) Config() Config {
	return l.config
}

// #endregion ledger

// #region new-hypothesis

// NewHypothesis creates an ACTIVE hypothesis at the initial confidence.
func (l *Ledger) NewHypothesis(entityID string, category Category) *Hypothesis {
	return &Hypothesis{
		EntityID:   entityID,
		Category:   category,
		Confidence: l.config.InitialConfidence,
		Status:     StatusActive,
	}
}

// #endregion new-hypothesis

// #region apply

// Apply computes the next confidence for h from a decision label and records
// the iteration in the hypothesis history.
//
// The category multiplier is 1/(1+acceptedSignals) computed before the
// accepted-signal count is incremented, so the first ACCEPT in a category
// always lands at full strength and later ACCEPTs diminish.
func (l *Ledger) Apply(h *Hypothesis, decision Decision, evidenceRef string, cost float64, now time.Time) ApplyResult {
	multiplier := 1.0 / (1.0 + float64(h.AcceptedSignals))
	rawDelta := l.config.Deltas[decision]
	applied := rawDelta * multiplier

	newConfidence := clamp(h.Confidence+applied, l.config.MinConfidence, l.config.MaxConfidence)
	actualDelta := newConfidence - h.Confidence
	h.Confidence = newConfidence

	if decision == DecisionAccept {
		h.AcceptedSignals++
	}

	h.History = append(h.History, IterationRecord{
		Iteration:   len(h.History),
		Decision:    decision,
		RawDelta:    rawDelta,
		Multiplier:  multiplier,
		Confidence:  newConfidence,
		EvidenceRef: evidenceRef,
		Cost:        cost,
		Timestamp:   now,
	})

	return ApplyResult{
		NewConfidence: newConfidence,
		AppliedDelta:  actualDelta,
		RawDelta:      rawDelta,
		Multiplier:    multiplier,
	}
}

// #endregion apply

// #region helpers

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion helpers
