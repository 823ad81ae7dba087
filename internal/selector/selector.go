package selector

import (
	"math"
	"sort"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region config

// Config holds the fixed expected-information-gain table for a run.
type Config struct {
	// InformationValue is the a-priori decisiveness of each category.
	InformationValue map[ledger.Category]float64
	// NoveltyDecay penalizes repeatedly probing a category; must be in (0,1).
	NoveltyDecay float64
}

// DefaultConfig returns the standard category value table.
func DefaultConfig() Config {
	return Config{
		NoveltyDecay: 0.7,
		InformationValue: map[ledger.Category]float64{
			"digital_infrastructure": 1.00,
			"commercial_systems":     0.90,
			"governance_compliance":  0.70,
			"market_presence":        0.65,
			"technology_stack":       0.85,
			"partnerships":           0.60,
			"hiring_signals":         0.55,
			"media_coverage":         0.50,
		},
	}
}

// #endregion config

// #region selector

// Selector ranks non-saturated categories by expected value of exploring next.
type Selector struct {
	config Config
}

// NewSelector creates a selector over the given value table.
func NewSelector(config Config) *Selector {
	return &Selector{config: config}
}

// #endregion selector

// #region select-next

// SelectNext returns the highest-scoring ACTIVE category, or false when every
// category is saturated or locked in. iterations maps category → iterations
// already spent there. Ties break to the lowest iteration count (breadth
// before depth), then lexicographically so the ordering is reproducible.
func (s *Selector) SelectNext(hypotheses map[ledger.Category]*ledger.Hypothesis, iterations map[ledger.Category]int) (ledger.Category, bool) {
	candidates := make([]ledger.Category, 0, len(hypotheses))
	for cat, h := range hypotheses {
		if h.Status != ledger.StatusActive {
			continue
		}
		candidates = append(candidates, cat)
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })

	best := candidates[0]
	bestScore := s.Score(best, iterations[best])
	for _, cat := range candidates[1:] {
		score := s.Score(cat, iterations[cat])
		switch {
		case score > bestScore:
			best, bestScore = cat, score
		case score == bestScore && iterations[cat] < iterations[best]:
			best = cat
		}
	}
	return best, true
}

// Score computes informationValue * noveltyDecay^spent for one category.
func (s *Selector) Score(category ledger.Category, spent int) float64 {
	return s.config.InformationValue[category] * math.Pow(s.config.NoveltyDecay, float64(spent))
}

// #endregion select-next
