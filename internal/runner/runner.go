package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/KieranMcFarlane/panther-scout/internal/audit"
	"github.com/KieranMcFarlane/panther-scout/internal/budget"
	"github.com/KieranMcFarlane/panther-scout/internal/governor"
	"github.com/KieranMcFarlane/panther-scout/internal/registry"
)

// #region runner

// EntityRunner is the slice of the governor the pool needs.
type EntityRunner interface {
	RunEntity(ctx context.Context, entity registry.Entity, b budget.Budget) (governor.Result, error)
}

// Runner fans entities out over a bounded worker pool. Workers share the
// store and audit log only; every worker owns one entity at a time, so no
// cross-entity locking is needed.
type Runner struct {
	gov      EntityRunner
	auditLog audit.Log
	budget   budget.Budget
	workers  int
	metrics  *Metrics
}

// New creates a runner. metrics may be nil when instrumentation is off.
func New(gov EntityRunner, auditLog audit.Log, b budget.Budget, workers int, metrics *Metrics) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{gov: gov, auditLog: auditLog, budget: b, workers: workers, metrics: metrics}
}

// #endregion runner

// #region run

// Run processes all entities and returns results in input order. The first
// hard failure cancels the remaining work; normal terminal states (budget
// exhaustion, saturation, cancellation) are results, not errors.
func (r *Runner) Run(ctx context.Context, entities []registry.Entity) ([]governor.Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	results := make([]governor.Result, len(entities))
	for i, entity := range entities {
		i, entity := i, entity
		g.Go(func() error {
			started := time.Now()
			result, err := r.gov.RunEntity(ctx, entity, r.budget)
			if err != nil {
				return fmt.Errorf("entity %s: %w", entity.ID, err)
			}
			results[i] = result
			r.record(ctx, result, time.Since(started))
			log.Printf("[RUN] entity=%s reason=%s confidence_max=%.2f cost=%.4f",
				entity.ID, result.StoppingReason, maxConfidence(result), result.TotalCost)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Runner) record(ctx context.Context, result governor.Result, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.EntitiesTotal.WithLabelValues(string(result.StoppingReason)).Inc()
	r.metrics.IterationsTotal.Add(float64(result.Iterations))
	r.metrics.CostTotal.Add(result.TotalCost)
	r.metrics.RunDuration.Observe(elapsed.Seconds())

	// Decision labels come from the audit trail the run just wrote.
	entries, err := r.auditLog.Entries(ctx, result.AuditHandle)
	if err != nil {
		log.Printf("[RUN] decision metrics for %s: %v", result.AuditHandle, err)
		return
	}
	for _, e := range entries {
		if e.Event == audit.EventIteration {
			r.metrics.DecisionsTotal.WithLabelValues(e.Decision).Inc()
		}
	}
}

func maxConfidence(result governor.Result) float64 {
	best := 0.0
	for _, c := range result.FinalConfidence {
		if c > best {
			best = c
		}
	}
	return best
}

// #endregion run
