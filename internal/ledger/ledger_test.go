package ledger

import (
	"math"
	"testing"
	"time"
)

func testTime() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestApplyFirstAcceptFullStrength(t *testing.T) {
	l := NewLedger(DefaultConfig())
	h := l.NewHypothesis("ent-1", "digital_infrastructure")

	if h.Confidence != 0.20 {
		t.Fatalf("expected initial confidence 0.20, got %f", h.Confidence)
	}

	res := l.Apply(h, DecisionAccept, "ev-1", 0.01, testTime())
	if res.Multiplier != 1.0 {
		t.Fatalf("first accept should use multiplier 1.0, got %f", res.Multiplier)
	}
	if math.Abs(res.NewConfidence-0.26) > 1e-12 {
		t.Fatalf("expected 0.26, got %f", res.NewConfidence)
	}
	if h.AcceptedSignals != 1 {
		t.Fatalf("expected 1 accepted signal, got %d", h.AcceptedSignals)
	}
}

func TestApplyDiminishingReturns(t *testing.T) {
	l := NewLedger(DefaultConfig())
	h := l.NewHypothesis("ent-1", "commercial_systems")

	// Scenario from the scoring rule: 0.20 → 0.26 → 0.29
	r1 := l.Apply(h, DecisionAccept, "ev-1", 0, testTime())
	r2 := l.Apply(h, DecisionAccept, "ev-2", 0, testTime())

	if math.Abs(r1.NewConfidence-0.26) > 1e-12 {
		t.Fatalf("first accept: expected 0.26, got %f", r1.NewConfidence)
	}
	if r2.Multiplier != 0.5 {
		t.Fatalf("second accept should use multiplier 0.5, got %f", r2.Multiplier)
	}
	if math.Abs(r2.NewConfidence-0.29) > 1e-12 {
		t.Fatalf("second accept: expected 0.29, got %f", r2.NewConfidence)
	}

	// Each further accept must move confidence no more than the previous one.
	prev := r2.AppliedDelta
	for i := 0; i < 10; i++ {
		r := l.Apply(h, DecisionAccept, "ev-n", 0, testTime())
		if r.AppliedDelta > prev+1e-12 {
			t.Fatalf("accept %d delta %f exceeds previous %f", i+3, r.AppliedDelta, prev)
		}
		prev = r.AppliedDelta
	}
}

func TestApplyRejectAndNoProgressAreZero(t *testing.T) {
	l := NewLedger(DefaultConfig())
	h := l.NewHypothesis("ent-1", "partnerships")

	for _, d := range []Decision{DecisionReject, DecisionNoProgress} {
		before := h.Confidence
		res := l.Apply(h, d, "ev", 0, testTime())
		if res.AppliedDelta != 0 {
			t.Fatalf("%s should apply zero delta, got %f", d, res.AppliedDelta)
		}
		if h.Confidence != before {
			t.Fatalf("%s moved confidence from %f to %f", d, before, h.Confidence)
		}
	}
	if h.AcceptedSignals != 0 {
		t.Fatalf("rejects must not count as accepted signals, got %d", h.AcceptedSignals)
	}
}

func TestApplyBoundsInvariant(t *testing.T) {
	l := NewLedger(DefaultConfig())
	h := l.NewHypothesis("ent-1", "media_coverage")

	// Hammer with accepts; confidence must never leave [0.05, 0.95].
	for i := 0; i < 200; i++ {
		res := l.Apply(h, DecisionAccept, "ev", 0, testTime())
		if res.NewConfidence < 0.05 || res.NewConfidence > 0.95 {
			t.Fatalf("confidence %f out of bounds at iteration %d", res.NewConfidence, i)
		}
	}
}

func TestApplyClampAtCeiling(t *testing.T) {
	cfg := DefaultConfig()
	l := NewLedger(cfg)
	h := l.NewHypothesis("ent-1", "hiring_signals")
	h.Confidence = 0.94

	res := l.Apply(h, DecisionAccept, "ev", 0, testTime())
	if res.NewConfidence != 0.95 {
		t.Fatalf("expected clamp to 0.95, got %f", res.NewConfidence)
	}
	if math.Abs(res.AppliedDelta-0.01) > 1e-12 {
		t.Fatalf("applied delta should reflect the clamp, got %f", res.AppliedDelta)
	}
}

func TestApplyAppendsHistory(t *testing.T) {
	l := NewLedger(DefaultConfig())
	h := l.NewHypothesis("ent-1", "technology_stack")

	l.Apply(h, DecisionAccept, "ev-1", 0.02, testTime())
	l.Apply(h, DecisionReject, "ev-2", 0.01, testTime())

	if len(h.History) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(h.History))
	}
	if h.History[0].Iteration != 0 || h.History[1].Iteration != 1 {
		t.Fatalf("iteration indices must be monotonic: %+v", h.History)
	}
	if h.History[1].Decision != DecisionReject {
		t.Fatalf("expected reject in second record, got %s", h.History[1].Decision)
	}
	if h.History[0].EvidenceRef != "ev-1" {
		t.Fatalf("expected evidence ref ev-1, got %s", h.History[0].EvidenceRef)
	}
}

func TestDecisionValid(t *testing.T) {
	for _, d := range []Decision{DecisionAccept, DecisionWeakAccept, DecisionReject, DecisionNoProgress} {
		if !d.Valid() {
			t.Fatalf("%s should be valid", d)
		}
	}
	if Decision("maybe").Valid() {
		t.Fatal("unknown label should be invalid")
	}
}
