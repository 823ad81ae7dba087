package store

import (
	"context"
	"errors"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region errors

// ErrNotFound means no hypothesis exists yet for the (entity, category) pair.
var ErrNotFound = errors.New("hypothesis not found")

// #endregion errors

// #region interfaces

// Store is the persistence adapter for hypotheses. The governor only needs
// the single-item calls; batch variants are an optional upgrade.
type Store interface {
	GetHypothesis(ctx context.Context, entityID string, category ledger.Category) (*ledger.Hypothesis, error)
	PutHypothesis(ctx context.Context, h *ledger.Hypothesis) error
}

// BatchStore is implemented by stores that can read and write a whole
// entity's hypothesis set at once. Callers type-assert and fall back to the
// single-item calls when the assertion fails.
type BatchStore interface {
	Store
	GetBatch(ctx context.Context, entityID string, categories []ledger.Category) (map[ledger.Category]*ledger.Hypothesis, error)
	PutBatch(ctx context.Context, hs []*ledger.Hypothesis) error
}

// #endregion interfaces

// #region batch-helpers

// GetAll loads an entity's hypotheses using the batch call when available.
// Missing categories are simply absent from the result.
func GetAll(ctx context.Context, s Store, entityID string, categories []ledger.Category) (map[ledger.Category]*ledger.Hypothesis, error) {
	if bs, ok := s.(BatchStore); ok {
		return bs.GetBatch(ctx, entityID, categories)
	}
	out := make(map[ledger.Category]*ledger.Hypothesis)
	for _, cat := range categories {
		h, err := s.GetHypothesis(ctx, entityID, cat)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[cat] = h
	}
	return out, nil
}

// PutAll writes hypotheses using the batch call when available.
func PutAll(ctx context.Context, s Store, hs []*ledger.Hypothesis) error {
	if bs, ok := s.(BatchStore); ok {
		return bs.PutBatch(ctx, hs)
	}
	for _, h := range hs {
		if err := s.PutHypothesis(ctx, h); err != nil {
			return err
		}
	}
	return nil
}

// #endregion batch-helpers
