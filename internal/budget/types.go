package budget

import (
	"fmt"
	"time"
)

// #region stopping-reason

// StoppingReason classifies why a per-category or per-entity loop ended.
// Exactly one reason is recorded per terminal transition.
type StoppingReason string

const (
	ReasonNone                      StoppingReason = ""
	ReasonIterationCap              StoppingReason = "iteration_cap_reached"
	ReasonCostCap                   StoppingReason = "cost_cap_reached"
	ReasonTimeLimit                 StoppingReason = "time_limit_reached"
	ReasonConfidenceThreshold       StoppingReason = "confidence_threshold_met"
	ReasonEvidenceCount             StoppingReason = "evidence_count_met"
	ReasonConsecutiveHighConfidence StoppingReason = "consecutive_high_confidence_met"
	ReasonCategorySaturated         StoppingReason = "category_saturated"
	ReasonGlobalSaturated           StoppingReason = "global_confidence_saturated"
	ReasonEvaluatorFailure          StoppingReason = "evaluator_failure"
	ReasonLockedIn                  StoppingReason = "actionable_lock_in"
	ReasonCategoriesExhausted       StoppingReason = "all_categories_exhausted"
	ReasonCancelled                 StoppingReason = "external_cancellation"
)

// #endregion stopping-reason

// #region budget

// Budget is the per-entity limit configuration. Read-only during a run.
type Budget struct {
	// MaxIterationsPerCategory caps admitted iterations per category.
	MaxIterationsPerCategory int `yaml:"max_iterations_per_category"`
	// MaxTotalCost caps cumulative evaluator-reported cost for the entity.
	MaxTotalCost float64 `yaml:"max_total_cost"`
	// MaxDuration caps wall-clock time measured from the first iteration.
	MaxDuration time.Duration `yaml:"max_duration"`
	// ConfidenceThreshold is the early-success confidence level.
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	// HighConfidenceStreak is how many consecutive iterations must sit at or
	// above the threshold. 0 or 1 stops on first crossing.
	HighConfidenceStreak int `yaml:"high_confidence_streak"`
	// MinEvidenceCount stops the run once this much evidence has been seen.
	MinEvidenceCount int `yaml:"min_evidence_count"`
}

// DefaultBudget returns the standard per-entity limits.
func DefaultBudget() Budget {
	return Budget{
		MaxIterationsPerCategory: 6,
		MaxTotalCost:             2.50,
		MaxDuration:              10 * time.Minute,
		ConfidenceThreshold:      0.80,
		HighConfidenceStreak:     3,
		MinEvidenceCount:         12,
	}
}

// Validate fails fast on malformed limits, before any entity is processed.
func (b Budget) Validate() error {
	if b.MaxIterationsPerCategory <= 0 {
		return fmt.Errorf("budget: max_iterations_per_category must be positive, got %d", b.MaxIterationsPerCategory)
	}
	if b.MaxTotalCost <= 0 {
		return fmt.Errorf("budget: max_total_cost must be positive, got %f", b.MaxTotalCost)
	}
	if b.MaxDuration <= 0 {
		return fmt.Errorf("budget: max_duration must be positive, got %s", b.MaxDuration)
	}
	if b.ConfidenceThreshold <= 0 || b.ConfidenceThreshold >= 1 {
		return fmt.Errorf("budget: confidence_threshold must be in (0,1), got %f", b.ConfidenceThreshold)
	}
	if b.HighConfidenceStreak < 0 {
		return fmt.Errorf("budget: high_confidence_streak must not be negative, got %d", b.HighConfidenceStreak)
	}
	if b.MinEvidenceCount <= 0 {
		return fmt.Errorf("budget: min_evidence_count must be positive, got %d", b.MinEvidenceCount)
	}
	return nil
}

// #endregion budget
