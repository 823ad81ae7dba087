package saturation

import (
	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region config

// Config holds the saturation policy for a run.
type Config struct {
	// ConsecutiveRejects is the streak length that saturates a category.
	ConsecutiveRejects int
	// CountNoProgress controls whether NO_PROGRESS decisions extend the
	// reject streak. Default policy counts only REJECT.
	CountNoProgress bool
	// ConsecutiveFailures is the evaluator-failure streak that force-saturates
	// a category (fail-safe, not fail-open).
	ConsecutiveFailures int
	// WindowSize is the entity-level trailing window of applied deltas.
	WindowSize int
	// MinWindowGain is the cumulative gain a full window must show to keep
	// the entity from being globally confidence-saturated.
	MinWindowGain float64
}

// DefaultConfig returns the standard saturation policy.
func DefaultConfig() Config {
	return Config{
		ConsecutiveRejects:  3,
		CountNoProgress:     false,
		ConsecutiveFailures: 3,
		WindowSize:          10,
		MinWindowGain:       0.01,
	}
}

// #endregion config

// #region signal

// Signal is the tracker's verdict after one observation.
type Signal struct {
	CategorySaturated bool
	GlobalSaturated   bool
}

// #endregion signal

// #region tracker

// Tracker holds per-category streaks and the entity-level delta window.
// One tracker per entity run; no cross-entity state.
type Tracker struct {
	config        Config
	rejectStreak  map[ledger.Category]int
	failureStreak map[ledger.Category]int
	window        []float64
}

// NewTracker creates a tracker for a single entity run.
func NewTracker(config Config) *Tracker {
	return &Tracker{
		config:        config,
		rejectStreak:  make(map[ledger.Category]int),
		failureStreak: make(map[ledger.Category]int),
		window:        make([]float64, 0, config.WindowSize),
	}
}

// #endregion tracker

// #region observe

// Observe folds one applied decision into the streaks and the delta window.
// Any ACCEPT or WEAK_ACCEPT resets the category's reject streak; a successful
// evaluation of any kind resets its failure streak.
func (t *Tracker) Observe(category ledger.Category, decision ledger.Decision, appliedDelta float64) Signal {
	t.failureStreak[category] = 0

	switch decision {
	case ledger.DecisionAccept, ledger.DecisionWeakAccept:
		t.rejectStreak[category] = 0
	case ledger.DecisionReject:
		t.rejectStreak[category]++
	case ledger.DecisionNoProgress:
		if t.config.CountNoProgress {
			t.rejectStreak[category]++
		}
	}

	t.push(appliedDelta)

	return Signal{
		CategorySaturated: t.rejectStreak[category] >= t.config.ConsecutiveRejects,
		GlobalSaturated:   t.GlobalSaturated(),
	}
}

// ObserveFailure counts one evaluator failure for the category and reports
// whether the failure streak force-saturates it. Failed iterations are
// non-informative, so a zero delta enters the window.
func (t *Tracker) ObserveFailure(category ledger.Category) bool {
	t.failureStreak[category]++
	t.push(0)
	return t.failureStreak[category] >= t.config.ConsecutiveFailures
}

// #endregion observe

// #region predicates

// GlobalSaturated reports whether a full trailing window of deltas shows
// cumulative gain below the configured minimum.
func (t *Tracker) GlobalSaturated() bool {
	if len(t.window) < t.config.WindowSize {
		return false
	}
	var sum float64
	for _, d := range t.window {
		sum += d
	}
	return sum < t.config.MinWindowGain
}

// RejectStreak returns the current consecutive-reject count for a category.
func (t *Tracker) RejectStreak(category ledger.Category) int {
	return t.rejectStreak[category]
}

// #endregion predicates

// #region helpers

func (t *Tracker) push(delta float64) {
	t.window = append(t.window, delta)
	if len(t.window) > t.config.WindowSize {
		t.window = t.window[len(t.window)-t.config.WindowSize:]
	}
}

// #endregion helpers
