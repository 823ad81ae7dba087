package audit

import (
	"context"
	"sync"
)

// #region memory-log

// MemoryLog is an in-memory Log used by the replay harness and tests.
type MemoryLog struct {
	mu         sync.Mutex
	partitions map[string][]Entry
}

// NewMemoryLog returns an empty in-memory audit log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{partitions: make(map[string][]Entry)}
}

// Append chains the entry onto the entity's partition.
func (l *MemoryLog) Append(_ context.Context, e Entry) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	part := l.partitions[e.EntityID]
	e.Seq = len(part)
	e.PrevHash = ""
	if len(part) > 0 {
		e.PrevHash = part[len(part)-1].Hash
	}
	e.Hash = e.ContentHash()
	l.partitions[e.EntityID] = append(part, e)
	return e, nil
}

// Entries returns a copy of the entity's partition in append order.
func (l *MemoryLog) Entries(_ context.Context, entityID string) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	part := l.partitions[entityID]
	out := make([]Entry, len(part))
	copy(out, part)
	return out, nil
}

// Head returns the current chain head hash for an entity, "" when empty.
// Two runs with identical inputs produce identical heads.
func (l *MemoryLog) Head(entityID string) string {
	l.mu.Lock()
	defer l.mu.Unlock()
	part := l.partitions[entityID]
	if len(part) == 0 {
		return ""
	}
	return part[len(part)-1].Hash
}

// #endregion memory-log
