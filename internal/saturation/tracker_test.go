package saturation

import (
	"testing"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

const cat = ledger.Category("digital_infrastructure")

func TestThreeRejectsSaturateCategory(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	s := tr.Observe(cat, ledger.DecisionReject, 0)
	if s.CategorySaturated {
		t.Fatal("one reject must not saturate")
	}
	s = tr.Observe(cat, ledger.DecisionReject, 0)
	if s.CategorySaturated {
		t.Fatal("two rejects must not saturate")
	}
	s = tr.Observe(cat, ledger.DecisionReject, 0)
	if !s.CategorySaturated {
		t.Fatal("three consecutive rejects must saturate the category")
	}
}

func TestAcceptResetsRejectStreak(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	tr.Observe(cat, ledger.DecisionReject, 0)
	tr.Observe(cat, ledger.DecisionReject, 0)
	tr.Observe(cat, ledger.DecisionWeakAccept, 0.02)
	if tr.RejectStreak(cat) != 0 {
		t.Fatalf("weak accept should reset streak, got %d", tr.RejectStreak(cat))
	}

	s := tr.Observe(cat, ledger.DecisionReject, 0)
	if s.CategorySaturated {
		t.Fatal("streak must restart after an accept")
	}
}

func TestNoProgressPolicyDefaultOff(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	for i := 0; i < 5; i++ {
		s := tr.Observe(cat, ledger.DecisionNoProgress, 0)
		if s.CategorySaturated {
			t.Fatal("no_progress must not extend the streak under the default policy")
		}
	}
}

func TestNoProgressPolicyOptIn(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CountNoProgress = true
	tr := NewTracker(cfg)

	tr.Observe(cat, ledger.DecisionNoProgress, 0)
	tr.Observe(cat, ledger.DecisionReject, 0)
	s := tr.Observe(cat, ledger.DecisionNoProgress, 0)
	if !s.CategorySaturated {
		t.Fatal("mixed reject/no_progress streak should saturate when policy counts both")
	}
}

func TestStreaksAreIndependentPerCategory(t *testing.T) {
	tr := NewTracker(DefaultConfig())
	other := ledger.Category("market_presence")

	tr.Observe(cat, ledger.DecisionReject, 0)
	tr.Observe(cat, ledger.DecisionReject, 0)
	s := tr.Observe(other, ledger.DecisionReject, 0)
	if s.CategorySaturated {
		t.Fatal("rejects in another category must not leak into this streak")
	}
	s = tr.Observe(cat, ledger.DecisionReject, 0)
	if !s.CategorySaturated {
		t.Fatal("third reject in the same category should saturate")
	}
}

func TestGlobalSaturationNeedsFullWindow(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	for i := 0; i < 9; i++ {
		s := tr.Observe(cat, ledger.DecisionNoProgress, 0)
		if s.GlobalSaturated {
			t.Fatalf("only %d deltas observed, window not full", i+1)
		}
	}
	s := tr.Observe(cat, ledger.DecisionNoProgress, 0)
	if !s.GlobalSaturated {
		t.Fatal("ten zero deltas should globally saturate the entity")
	}
}

func TestGlobalSaturationClearedByGain(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	for i := 0; i < 10; i++ {
		tr.Observe(cat, ledger.DecisionNoProgress, 0)
	}
	if !tr.GlobalSaturated() {
		t.Fatal("expected global saturation")
	}

	// Fresh qualifying evidence pushes the window back over the threshold.
	tr.Observe(cat, ledger.DecisionAccept, 0.06)
	if tr.GlobalSaturated() {
		t.Fatal("a 0.06 gain inside the window should clear global saturation")
	}
}

func TestFailureStreakForcesSaturation(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	if tr.ObserveFailure(cat) {
		t.Fatal("one failure must not force saturation")
	}
	if tr.ObserveFailure(cat) {
		t.Fatal("two failures must not force saturation")
	}
	if !tr.ObserveFailure(cat) {
		t.Fatal("three consecutive failures must force saturation")
	}
}

func TestSuccessfulEvaluationResetsFailureStreak(t *testing.T) {
	tr := NewTracker(DefaultConfig())

	tr.ObserveFailure(cat)
	tr.ObserveFailure(cat)
	tr.Observe(cat, ledger.DecisionReject, 0)
	if tr.ObserveFailure(cat) {
		t.Fatal("failure streak should restart after a successful evaluation")
	}
}
