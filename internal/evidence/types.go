package evidence

import (
	"context"
	"errors"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region errors

// ErrNotFound means the source had no evidence for the (entity, category) pair.
var ErrNotFound = errors.New("evidence not found")

// #endregion errors

// #region raw-evidence

// RawEvidence is one piece of acquired evidence. Ref is the opaque pointer
// stored in iteration records and audit entries; the body itself stays with
// the source.
type RawEvidence struct {
	Ref     string
	Title   string
	Snippet string
	URL     string
}

// #endregion raw-evidence

// #region source

// Source acquires evidence for an (entity, category) pair. Implementations
// may be slow or unreliable; callers pass a context with an explicit timeout
// and hold no locks across the call.
type Source interface {
	Fetch(ctx context.Context, entityName string, category ledger.Category) (RawEvidence, error)
}

// #endregion source

// #region evaluator

// Evaluation is the evaluator's verdict on one piece of evidence. Cost is
// whatever the evaluator metered for the call and feeds the budget directly.
type Evaluation struct {
	Decision  ledger.Decision
	Rationale string
	Cost      float64
}

// Evaluator turns raw evidence into a decision label. It is external and
// non-deterministic by nature; the governor's own logic stays deterministic
// by treating its output as opaque input.
type Evaluator interface {
	Evaluate(ctx context.Context, entityName string, category ledger.Category, ev RawEvidence, prior []ledger.IterationRecord) (Evaluation, error)
}

// #endregion evaluator
