package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/KieranMcFarlane/panther-scout/internal/audit"
	"github.com/KieranMcFarlane/panther-scout/internal/budget"
	"github.com/KieranMcFarlane/panther-scout/internal/evidence"
	"github.com/KieranMcFarlane/panther-scout/internal/governor"
	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
	"github.com/KieranMcFarlane/panther-scout/internal/registry"
	"github.com/KieranMcFarlane/panther-scout/internal/saturation"
	"github.com/KieranMcFarlane/panther-scout/internal/selector"
	"github.com/KieranMcFarlane/panther-scout/internal/store"
)

// #region fixture

// Fixture is a recorded exploration scenario: scripted collaborator outputs
// plus the outcome the governor must reproduce. Stored as JSON so trajectories
// can be exported from production runs and replayed in tests.
type Fixture struct {
	Name       string             `json:"name"`
	Entity     registry.Entity    `json:"entity"`
	Budget     budget.Budget      `json:"budget"`
	Categories []FixtureCategory  `json:"categories"`
	Steps      []FixtureStep      `json:"steps"`
	Expect     FixtureExpectation `json:"expect"`
}

// FixtureCategory mirrors one selector table row.
type FixtureCategory struct {
	Name      string  `json:"name"`
	InfoValue float64 `json:"info_value"`
}

// FixtureStep scripts one evaluator call in governor call order. A non-empty
// Error makes the step a collaborator failure.
type FixtureStep struct {
	Decision string  `json:"decision,omitempty"`
	Cost     float64 `json:"cost,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// FixtureExpectation is the outcome the replay must reproduce exactly.
type FixtureExpectation struct {
	StoppingReason  string             `json:"stopping_reason"`
	LockedIn        bool               `json:"locked_in"`
	Iterations      int                `json:"iterations"`
	FinalConfidence map[string]float64 `json:"final_confidence"`
	// ChainHead pins the audit chain head hash. Empty skips the check;
	// populated after the first verified replay to freeze the trajectory.
	ChainHead string `json:"chain_head,omitempty"`
}

// LoadFixture reads one fixture file.
func LoadFixture(path string) (Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return Fixture{}, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Categories) == 0 || len(f.Steps) == 0 {
		return Fixture{}, fmt.Errorf("fixture %s: needs categories and steps", path)
	}
	return f, nil
}

// #endregion fixture

// #region scripted-collaborators

type scriptedSource struct{}

func (scriptedSource) Fetch(_ context.Context, entityName string, category ledger.Category) (evidence.RawEvidence, error) {
	// The evaluator script decides the outcome; the source just hands over a
	// stable reference so evidence refs replay byte-identically.
	return evidence.RawEvidence{
		Ref:   fmt.Sprintf("replay://%s/%s", entityName, category),
		Title: "replayed evidence",
	}, nil
}

type scriptedEvaluator struct {
	steps []FixtureStep
	calls int
}

func (e *scriptedEvaluator) Evaluate(_ context.Context, _ string, _ ledger.Category, _ evidence.RawEvidence, _ []ledger.IterationRecord) (evidence.Evaluation, error) {
	if e.calls >= len(e.steps) {
		return evidence.Evaluation{}, fmt.Errorf("script exhausted after %d steps", len(e.steps))
	}
	step := e.steps[e.calls]
	e.calls++
	if step.Error != "" {
		return evidence.Evaluation{}, fmt.Errorf("scripted failure: %s", step.Error)
	}
	return evidence.Evaluation{
		Decision:  ledger.Decision(step.Decision),
		Rationale: "replayed",
		Cost:      step.Cost,
	}, nil
}

// #endregion scripted-collaborators

// #region run

// Outcome is one replay's result plus any divergences from the expectation.
type Outcome struct {
	Result     governor.Result
	ChainHead  string
	Mismatches []string
}

// OK reports whether the replay matched the fixture's expectation.
func (o Outcome) OK() bool {
	return len(o.Mismatches) == 0
}

// Run replays a fixture through the real governor on in-memory state with a
// fixed stepping clock, then diffs the outcome against the expectation.
func Run(ctx context.Context, f Fixture) (Outcome, error) {
	info := make(map[ledger.Category]float64, len(f.Categories))
	cats := make([]ledger.Category, 0, len(f.Categories))
	for _, c := range f.Categories {
		info[ledger.Category(c.Name)] = c.InfoValue
		cats = append(cats, ledger.Category(c.Name))
	}

	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	memLog := audit.NewMemoryLog()
	gov := governor.New(governor.Config{
		Ledger:     ledger.DefaultConfig(),
		Saturation: saturation.DefaultConfig(),
		Selector:   selector.Config{InformationValue: info, NoveltyDecay: selector.DefaultConfig().NoveltyDecay},
		Categories: cats,
	}, scriptedSource{}, &scriptedEvaluator{steps: f.Steps}, store.NewMemoryStore(), memLog, now)

	result, err := gov.RunEntity(ctx, f.Entity, f.Budget)
	if err != nil {
		return Outcome{}, fmt.Errorf("replay %s: %w", f.Name, err)
	}

	out := Outcome{Result: result, ChainHead: memLog.Head(f.Entity.ID)}
	out.Mismatches = diff(f.Expect, result, out.ChainHead)
	return out, nil
}

func diff(want FixtureExpectation, got governor.Result, head string) []string {
	var m []string
	if want.StoppingReason != string(got.StoppingReason) {
		m = append(m, fmt.Sprintf("stopping_reason: want %s, got %s", want.StoppingReason, got.StoppingReason))
	}
	if want.LockedIn != got.LockedIn {
		m = append(m, fmt.Sprintf("locked_in: want %t, got %t", want.LockedIn, got.LockedIn))
	}
	if want.Iterations != got.Iterations {
		m = append(m, fmt.Sprintf("iterations: want %d, got %d", want.Iterations, got.Iterations))
	}
	for cat, conf := range want.FinalConfidence {
		if g, ok := got.FinalConfidence[ledger.Category(cat)]; !ok || math.Abs(g-conf) > 1e-9 {
			m = append(m, fmt.Sprintf("confidence[%s]: want %.4f, got %.4f", cat, conf, g))
		}
	}
	if want.ChainHead != "" && want.ChainHead != head {
		m = append(m, fmt.Sprintf("chain_head: want %s, got %s", want.ChainHead, head))
	}
	return m
}

// #endregion run
