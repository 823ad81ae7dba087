package governor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/KieranMcFarlane/panther-scout/internal/audit"
	"github.com/KieranMcFarlane/panther-scout/internal/budget"
	"github.com/KieranMcFarlane/panther-scout/internal/evidence"
	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
	"github.com/KieranMcFarlane/panther-scout/internal/registry"
	"github.com/KieranMcFarlane/panther-scout/internal/saturation"
	"github.com/KieranMcFarlane/panther-scout/internal/selector"
	"github.com/KieranMcFarlane/panther-scout/internal/store"
)

// #region config

// Actionable gate: locking in requires this many ACCEPT decisions spread
// over this many distinct categories, on top of the confidence threshold.
const (
	actionableMinAccepts    = 2
	actionableMinCategories = 2
)

// Config fixes the decision rules for every entity a governor processes.
// Immutable after construction.
type Config struct {
	Ledger     ledger.Config
	Saturation saturation.Config
	Selector   selector.Config
	Categories []ledger.Category
}

// #endregion config

// #region governor

// Governor runs the per-entity exploration loop: pick a category, check the
// budget, fetch and evaluate evidence, apply the ledger update, watch for
// saturation, and audit every step. Given identical collaborator outputs and
// an identical clock it produces identical trajectories; the only
// non-determinism lives behind the Source and Evaluator interfaces.
type Governor struct {
	config    Config
	ledger    *ledger.Ledger
	selector  *selector.Selector
	source    evidence.Source
	evaluator evidence.Evaluator
	store     store.Store
	audit     audit.Log
	now       func() time.Time
}

// New creates a governor. now is the clock stamped into audit entries and the
// budget controller; nil means wall clock.
func New(config Config, source evidence.Source, evaluator evidence.Evaluator, st store.Store, auditLog audit.Log, now func() time.Time) *Governor {
	if now == nil {
		now = time.Now
	}
	return &Governor{
		config:    config,
		ledger:    ledger.NewLedger(config.Ledger),
		selector:  selector.NewSelector(config.Selector),
		source:    source,
		evaluator: evaluator,
		store:     st,
		audit:     auditLog,
		now:       now,
	}
}

// Result is the terminal outcome for one entity.
type Result struct {
	EntityID        string
	FinalConfidence map[ledger.Category]float64
	StoppingReason  budget.StoppingReason
	LockedIn        bool
	Iterations      int
	TotalCost       float64
	// AuditHandle names the audit partition holding this run's trail.
	AuditHandle string
}

// #endregion governor

// #region run-entity

// RunEntity drives one entity until a stopping reason is produced. Partial
// progress is always persisted: every admitted iteration leaves either a
// ledger update or a failed-iteration record in the audit trail.
func (g *Governor) RunEntity(ctx context.Context, entity registry.Entity, b budget.Budget) (Result, error) {
	if err := b.Validate(); err != nil {
		return Result{}, err
	}

	hyps, err := g.loadHypotheses(ctx, entity.ID)
	if err != nil {
		return Result{}, err
	}

	controller := budget.NewController(b, g.now)
	tracker := saturation.NewTracker(g.config.Saturation)

	for {
		// Cancellation is honored between iterations only, never mid-call.
		if ctx.Err() != nil {
			return g.stop(ctx, entity, hyps, controller, budget.ReasonCancelled, false)
		}

		category, ok := g.selector.SelectNext(hyps, controller.IterationsByCategory())
		if !ok {
			return g.stop(ctx, entity, hyps, controller, budget.ReasonCategoriesExhausted, false)
		}

		if ok, reason := controller.CanContinue(category); !ok {
			return g.stop(ctx, entity, hyps, controller, reason, false)
		}

		h := hyps[category]
		ev, evalResult, evalErr := g.evaluateOnce(ctx, entity, category, h)
		if evalErr != nil {
			log.Printf("[GOV] entity=%s category=%s iteration failed: %v", entity.ID, category, evalErr)
			controller.RecordIteration(category, 0, 0, h.Confidence)
			if err := g.appendFailure(ctx, entity.ID, category, h.Confidence, evalErr); err != nil {
				return Result{}, err
			}
			if tracker.ObserveFailure(category) {
				h.Status = ledger.StatusSaturated
				if err := g.appendSaturation(ctx, entity.ID, category, h.Confidence, budget.ReasonEvaluatorFailure); err != nil {
					return Result{}, err
				}
			}
			continue
		}

		applied := g.ledger.Apply(h, evalResult.Decision, ev.Ref, evalResult.Cost, g.now())
		controller.RecordIteration(category, evalResult.Cost, 1, applied.NewConfidence)
		signal := tracker.Observe(category, evalResult.Decision, applied.AppliedDelta)

		if _, err := g.audit.Append(ctx, audit.Entry{
			EntityID:    entity.ID,
			Timestamp:   g.now(),
			Event:       audit.EventIteration,
			Category:    string(category),
			Decision:    string(evalResult.Decision),
			RawDelta:    applied.RawDelta,
			Multiplier:  applied.Multiplier,
			Confidence:  applied.NewConfidence,
			Cost:        evalResult.Cost,
			EvidenceRef: ev.Ref,
			Rationale:   evalResult.Rationale,
		}); err != nil {
			return Result{}, fmt.Errorf("audit iteration: %w", err)
		}

		if signal.CategorySaturated {
			h.Status = ledger.StatusSaturated
			if err := g.appendSaturation(ctx, entity.ID, category, h.Confidence, budget.ReasonCategorySaturated); err != nil {
				return Result{}, err
			}
		}

		if g.actionable(hyps, b.ConfidenceThreshold) {
			for _, hyp := range hyps {
				if hyp.Status == ledger.StatusActive {
					hyp.Status = ledger.StatusLockedIn
				}
			}
			return g.stop(ctx, entity, hyps, controller, budget.ReasonLockedIn, true)
		}

		if signal.GlobalSaturated {
			return g.stop(ctx, entity, hyps, controller, budget.ReasonGlobalSaturated, false)
		}
	}
}

// evaluateOnce performs the two collaborator calls for one admitted
// iteration. Either failing makes the whole iteration a failure.
func (g *Governor) evaluateOnce(ctx context.Context, entity registry.Entity, category ledger.Category, h *ledger.Hypothesis) (evidence.RawEvidence, evidence.Evaluation, error) {
	ev, err := g.source.Fetch(ctx, entity.Name, category)
	if err != nil {
		return evidence.RawEvidence{}, evidence.Evaluation{}, fmt.Errorf("fetch: %w", err)
	}
	evalResult, err := g.evaluator.Evaluate(ctx, entity.Name, category, ev, h.History)
	if err != nil {
		return evidence.RawEvidence{}, evidence.Evaluation{}, fmt.Errorf("evaluate: %w", err)
	}
	return ev, evalResult, nil
}

// #endregion run-entity

// #region terminal

// stop appends the terminal audit entry, persists all hypothesis state and
// builds the result. Exactly one stop entry ends every run.
func (g *Governor) stop(ctx context.Context, entity registry.Entity, hyps map[ledger.Category]*ledger.Hypothesis, controller *budget.Controller, reason budget.StoppingReason, lockedIn bool) (Result, error) {
	// Terminal bookkeeping must complete even when the run was cancelled:
	// the final audit entry and the hypothesis states are the whole point.
	ctx = context.WithoutCancel(ctx)

	if _, err := g.audit.Append(ctx, audit.Entry{
		EntityID:       entity.ID,
		Timestamp:      g.now(),
		Event:          audit.EventStop,
		Confidence:     maxConfidence(hyps),
		Cost:           controller.TotalCost(),
		StoppingReason: string(reason),
	}); err != nil {
		return Result{}, fmt.Errorf("audit stop: %w", err)
	}

	all := make([]*ledger.Hypothesis, 0, len(hyps))
	final := make(map[ledger.Category]float64, len(hyps))
	iterations := 0
	for _, cat := range g.config.Categories {
		h := hyps[cat]
		all = append(all, h)
		final[cat] = h.Confidence
		iterations += controller.Iterations(cat)
	}
	if err := store.PutAll(ctx, g.store, all); err != nil {
		return Result{}, fmt.Errorf("persist hypotheses: %w", err)
	}

	log.Printf("[GOV] entity=%s stopped reason=%s iterations=%d cost=%.4f locked_in=%t",
		entity.ID, reason, iterations, controller.TotalCost(), lockedIn)

	return Result{
		EntityID:        entity.ID,
		FinalConfidence: final,
		StoppingReason:  reason,
		LockedIn:        lockedIn,
		Iterations:      iterations,
		TotalCost:       controller.TotalCost(),
		AuditHandle:     entity.ID,
	}, nil
}

// actionable reports whether the entity clears the lock-in gate: confidence
// at or above the threshold plus enough ACCEPTs across enough categories.
func (g *Governor) actionable(hyps map[ledger.Category]*ledger.Hypothesis, threshold float64) bool {
	if maxConfidence(hyps) < threshold {
		return false
	}
	accepts, categories := 0, 0
	for _, h := range hyps {
		if h.AcceptedSignals > 0 {
			accepts += h.AcceptedSignals
			categories++
		}
	}
	return accepts >= actionableMinAccepts && categories >= actionableMinCategories
}

// #endregion terminal

// #region audit-helpers

func (g *Governor) appendFailure(ctx context.Context, entityID string, category ledger.Category, confidence float64, cause error) error {
	if _, err := g.audit.Append(ctx, audit.Entry{
		EntityID:   entityID,
		Timestamp:  g.now(),
		Event:      audit.EventIterationFailed,
		Category:   string(category),
		Decision:   string(ledger.DecisionNoProgress),
		Confidence: confidence,
		Rationale:  cause.Error(),
	}); err != nil {
		return fmt.Errorf("audit failure: %w", err)
	}
	return nil
}

func (g *Governor) appendSaturation(ctx context.Context, entityID string, category ledger.Category, confidence float64, reason budget.StoppingReason) error {
	if _, err := g.audit.Append(ctx, audit.Entry{
		EntityID:       entityID,
		Timestamp:      g.now(),
		Event:          audit.EventCategorySaturated,
		Category:       string(category),
		Confidence:     confidence,
		StoppingReason: string(reason),
	}); err != nil {
		return fmt.Errorf("audit saturation: %w", err)
	}
	return nil
}

// VerifyAuditLog checks one entity's audit partition end to end.
func (g *Governor) VerifyAuditLog(ctx context.Context, entityID string) (audit.VerifyResult, error) {
	entries, err := g.audit.Entries(ctx, entityID)
	if err != nil {
		return audit.VerifyResult{}, fmt.Errorf("load audit partition %s: %w", entityID, err)
	}
	return audit.Verify(entries), nil
}

// #endregion audit-helpers

// #region state

// loadHypotheses restores persisted hypotheses and creates fresh ACTIVE ones
// for categories the entity has never explored.
func (g *Governor) loadHypotheses(ctx context.Context, entityID string) (map[ledger.Category]*ledger.Hypothesis, error) {
	existing, err := store.GetAll(ctx, g.store, entityID, g.config.Categories)
	if err != nil {
		return nil, fmt.Errorf("load hypotheses %s: %w", entityID, err)
	}
	hyps := make(map[ledger.Category]*ledger.Hypothesis, len(g.config.Categories))
	for _, cat := range g.config.Categories {
		if h, ok := existing[cat]; ok {
			hyps[cat] = h
			continue
		}
		hyps[cat] = g.ledger.NewHypothesis(entityID, cat)
	}
	return hyps, nil
}

func maxConfidence(hyps map[ledger.Category]*ledger.Hypothesis) float64 {
	best := 0.0
	for _, h := range hyps {
		if h.Confidence > best {
			best = h.Confidence
		}
	}
	return best
}

// #endregion state
