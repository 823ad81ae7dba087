package budget

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// #region yaml

// UnmarshalYAML decodes a budget section, accepting human-readable durations
// ("10m") and leaving fields the document omits untouched so file values
// overlay defaults.
func (b *Budget) UnmarshalYAML(node *yaml.Node) error {
	type raw struct {
		MaxIterationsPerCategory *int     `yaml:"max_iterations_per_category"`
		MaxTotalCost             *float64 `yaml:"max_total_cost"`
		MaxDuration              *string  `yaml:"max_duration"`
		ConfidenceThreshold      *float64 `yaml:"confidence_threshold"`
		HighConfidenceStreak     *int     `yaml:"high_confidence_streak"`
		MinEvidenceCount         *int     `yaml:"min_evidence_count"`
	}
	var r raw
	if err := node.Decode(&r); err != nil {
		return err
	}
	if r.MaxIterationsPerCategory != nil {
		b.MaxIterationsPerCategory = *r.MaxIterationsPerCategory
	}
	if r.MaxTotalCost != nil {
		b.MaxTotalCost = *r.MaxTotalCost
	}
	if r.MaxDuration != nil {
		d, err := time.ParseDuration(*r.MaxDuration)
		if err != nil {
			return fmt.Errorf("max_duration: %w", err)
		}
		b.MaxDuration = d
	}
	if r.ConfidenceThreshold != nil {
		b.ConfidenceThreshold = *r.ConfidenceThreshold
	}
	if r.HighConfidenceStreak != nil {
		b.HighConfidenceStreak = *r.HighConfidenceStreak
	}
	if r.MinEvidenceCount != nil {
		b.MinEvidenceCount = *r.MinEvidenceCount
	}
	return nil
}

// #endregion yaml
