package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region memory-store

// MemoryStore is an in-memory Store used by the replay harness and tests.
// Values are deep-copied on the way in and out so callers cannot alias
// stored state.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*ledger.Hypothesis
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*ledger.Hypothesis)}
}

func key(entityID string, category ledger.Category) string {
	return entityID + "/" + string(category)
}

// GetHypothesis reads one hypothesis; ErrNotFound when absent.
func (s *MemoryStore) GetHypothesis(_ context.Context, entityID string, category ledger.Category) (*ledger.Hypothesis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.rows[key(entityID, category)]
	if !ok {
		return nil, ErrNotFound
	}
	return copyHypothesis(h), nil
}

// PutHypothesis upserts one hypothesis.
func (s *MemoryStore) PutHypothesis(_ context.Context, h *ledger.Hypothesis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[key(h.EntityID, h.Category)] = copyHypothesis(h)
	return nil
}

// #endregion memory-store

// #region helpers

func copyHypothesis(h *ledger.Hypothesis) *ledger.Hypothesis {
	// History holds only value types, so a JSON round trip is a cheap and
	// obviously correct deep copy.
	b, err := json.Marshal(h)
	if err != nil {
		panic(err)
	}
	var out ledger.Hypothesis
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return &out
}

// #endregion helpers
