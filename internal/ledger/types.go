package ledger

import "time"

// #region category

// Category identifies one of the fixed evidence categories for a run.
// The set is configuration, immutable after startup.
type Category string

// #endregion category

// #region decision

// Decision is the label the external evaluator assigns to one piece of evidence.
type Decision string

const (
	DecisionAccept     Decision = "accept"
	DecisionWeakAccept Decision = "weak_accept"
	DecisionReject     Decision = "reject"
	DecisionNoProgress Decision = "no_progress"
)

// Valid reports whether d is one of the four known labels.
func (d Decision) Valid() bool {
	switch d {
	case DecisionAccept, DecisionWeakAccept, DecisionReject, DecisionNoProgress:
		return true
	}
	return false
}

// #endregion decision

// #region status

// Status is the lifecycle state of a hypothesis.
type Status string

const (
	StatusActive    Status = "active"
	StatusSaturated Status = "saturated"
	StatusLockedIn  Status = "locked_in"
)

// #endregion status

// #region iteration-record

// IterationRecord is one immutable row of a hypothesis's history.
// Insertion order is causal order.
type IterationRecord struct {
	Iteration   int       `json:"iteration"`
	Decision    Decision  `json:"decision"`
	RawDelta    float64   `json:"raw_delta"`
	Multiplier  float64   `json:"multiplier"`
	Confidence  float64   `json:"confidence"` // resulting confidence after this iteration
	EvidenceRef string    `json:"evidence_ref"`
	Cost        float64   `json:"cost"`
	Timestamp   time.Time `json:"timestamp"`
}

// #endregion iteration-record

// #region hypothesis

// Hypothesis is the (entity, category) unit of confidence tracking.
// Mutated only by Ledger.Apply; never deleted, only transitioned to
// SATURATED or LOCKED_IN.
type Hypothesis struct {
	EntityID        string            `json:"entity_id"`
	Category        Category          `json:"category"`
	Confidence      float64           `json:"confidence"`
	AcceptedSignals int               `json:"accepted_signals"`
	Status          Status            `json:"status"`
	History         []IterationRecord `json:"history"`
}

// #endregion hypothesis

// #region config

// Config holds the fixed scoring parameters for a run.
type Config struct {
	InitialConfidence float64
	MinConfidence     float64
	MaxConfidence     float64
	Deltas            map[Decision]float64
}

// DefaultConfig returns the standard scoring table.
func DefaultConfig() Config {
	return Config{
		InitialConfidence: 0.20,
		MinConfidence:     0.05,
		MaxConfidence:     0.95,
		Deltas: map[Decision]float64{
			DecisionAccept:     0.06,
			DecisionWeakAccept: 0.02,
			DecisionReject:     0.00,
			DecisionNoProgress: 0.00,
		},
	}
}

// #endregion config

// #region apply-result

// ApplyResult bundles everything computed by one Apply call.
type ApplyResult struct {
	NewConfidence float64
	AppliedDelta  float64 // post-clamp change, what the saturation window sees
	RawDelta      float64
	Multiplier    float64
}

// #endregion apply-result
