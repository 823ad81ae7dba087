package registry

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// #region types

// Entity is a research target: one organization whose hypotheses the
// governor explores.
type Entity struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	ClusterID string `json:"cluster_id,omitempty" yaml:"cluster_id,omitempty"`
}

// ErrNotFound means the registry holds no entity with the given ID.
var ErrNotFound = errors.New("entity not found")

// Registry resolves research targets.
type Registry interface {
	Lookup(ctx context.Context, id string) (Entity, error)
	List(ctx context.Context) ([]Entity, error)
}

// #endregion types

// #region static

// StaticRegistry serves a fixed entity list. Used for replay fixtures and
// small batch runs driven straight from config.
type StaticRegistry struct {
	entities []Entity
	byID     map[string]Entity
}

// NewStaticRegistry builds a registry from a fixed list, assigning IDs to
// entities that arrive without one.
func NewStaticRegistry(entities []Entity) *StaticRegistry {
	r := &StaticRegistry{byID: make(map[string]Entity, len(entities))}
	for _, e := range entities {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		r.entities = append(r.entities, e)
		r.byID[e.ID] = e
	}
	return r
}

// Lookup resolves one entity by ID.
func (r *StaticRegistry) Lookup(_ context.Context, id string) (Entity, error) {
	e, ok := r.byID[id]
	if !ok {
		return Entity{}, ErrNotFound
	}
	return e, nil
}

// List returns entities in insertion order.
func (r *StaticRegistry) List(_ context.Context) ([]Entity, error) {
	out := make([]Entity, len(r.entities))
	copy(out, r.entities)
	return out, nil
}

// #endregion static
