package budget

import (
	"time"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region controller

// Controller enforces the per-entity budget. One controller per entity run;
// it keeps its own counters and never touches the ledger.
type Controller struct {
	budget Budget
	now    func() time.Time

	started        bool
	startedAt      time.Time
	iterations     map[ledger.Category]int
	totalCost      float64
	evidenceCount  int
	highConfStreak int
}

// NewController creates a controller over the given limits. now is the clock
// used for the wall-clock cap; inject a fixed clock for replay.
func NewController(b Budget, now func() time.Time) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		budget:     b,
		now:        now,
		iterations: make(map[ledger.Category]int),
	}
}

// #endregion controller

// #region can-continue

// CanContinue is the single admission check, evaluated in fixed priority
// order: per-category iteration cap, cost cap, wall clock, sustained high
// confidence, evidence count. The first triggered condition is the reason;
// the order must never change or replays stop being reproducible.
func (c *Controller) CanContinue(category ledger.Category) (bool, StoppingReason) {
	if c.iterations[category] >= c.budget.MaxIterationsPerCategory {
		return false, ReasonIterationCap
	}
	if c.totalCost >= c.budget.MaxTotalCost {
		return false, ReasonCostCap
	}
	if c.started && c.now().Sub(c.startedAt) >= c.budget.MaxDuration {
		return false, ReasonTimeLimit
	}
	if c.highConfStreak > 0 {
		if c.budget.HighConfidenceStreak <= 1 {
			return false, ReasonConfidenceThreshold
		}
		if c.highConfStreak >= c.budget.HighConfidenceStreak {
			return false, ReasonConsecutiveHighConfidence
		}
	}
	if c.evidenceCount >= c.budget.MinEvidenceCount {
		return false, ReasonEvidenceCount
	}
	return true, ReasonNone
}

// #endregion can-continue

// #region record

// RecordIteration charges one admitted iteration to the category. confidence
// is the post-update confidence of the probed hypothesis; evidenceCount is
// how many evidence items this iteration consumed (0 for failed iterations).
func (c *Controller) RecordIteration(category ledger.Category, cost float64, evidenceCount int, confidence float64) {
	if !c.started {
		c.started = true
		c.startedAt = c.now()
	}
	c.iterations[category]++
	c.totalCost += cost
	c.evidenceCount += evidenceCount
	if confidence >= c.budget.ConfidenceThreshold {
		c.highConfStreak++
	} else {
		c.highConfStreak = 0
	}
}

// #endregion record

// #region accessors

// Iterations returns iterations charged to a category so far.
func (c *Controller) Iterations(category ledger.Category) int {
	return c.iterations[category]
}

// IterationsByCategory returns a copy of the per-category counters, used by
// the selector's novelty decay.
func (c *Controller) IterationsByCategory() map[ledger.Category]int {
	out := make(map[ledger.Category]int, len(c.iterations))
	for k, v := range c.iterations {
		out[k] = v
	}
	return out
}

// TotalCost returns cumulative cost charged to the entity.
func (c *Controller) TotalCost() float64 {
	return c.totalCost
}

// EvidenceCount returns total evidence items consumed.
func (c *Controller) EvidenceCount() int {
	return c.evidenceCount
}

// #endregion accessors
