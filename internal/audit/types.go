package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// #region event-type

// EventType distinguishes the kinds of audit entries a run produces.
type EventType string

const (
	EventIteration         EventType = "iteration"
	EventIterationFailed   EventType = "iteration_failed"
	EventCategorySaturated EventType = "category_saturated"
	EventStop              EventType = "stop"
)

// #endregion event-type

// #region entry

// Entry is one hash-chained audit record. All fields are plain structs and
// scalars (no maps) so json.Marshal field order is deterministic and the
// content hash is reproducible. Entries are never mutated after append.
type Entry struct {
	EntityID       string    `json:"entity_id"`
	Seq            int       `json:"seq"`
	Timestamp      time.Time `json:"ts"`
	Event          EventType `json:"event"`
	Category       string    `json:"category,omitempty"`
	Decision       string    `json:"decision,omitempty"`
	RawDelta       float64   `json:"raw_delta"`
	Multiplier     float64   `json:"multiplier"`
	Confidence     float64   `json:"confidence"`
	Cost           float64   `json:"cost"`
	EvidenceRef    string    `json:"evidence_ref,omitempty"`
	Rationale      string    `json:"rationale,omitempty"`
	StoppingReason string    `json:"stopping_reason,omitempty"`
	PrevHash       string    `json:"prev_hash"`
	Hash           string    `json:"hash"`
}

// ContentHash computes the sha256 of the entry with its own hash blanked.
// The previous hash stays in, which is what chains the partition.
func (e Entry) ContentHash() string {
	e.Hash = ""
	b, err := json.Marshal(e)
	if err != nil {
		// Entry is a flat struct of scalars; Marshal cannot fail on it.
		panic(err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// #endregion entry

// #region log-interface

// Log is an append-only, per-entity-partitioned audit store. Append fills
// Seq, PrevHash and Hash and must be atomic per entry. Different entities may
// append concurrently; within one entity the append order is causal order.
type Log interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	Entries(ctx context.Context, entityID string) ([]Entry, error)
}

// #endregion log-interface

// #region verify

// VerifyResult reports chain verification over one partition.
type VerifyResult struct {
	OK           bool
	FirstInvalid int // index of the first invalid entry; -1 when OK
}

// Verify walks an explicit entry slice in order and checks sequence
// continuity, the prev-hash link, and each content hash. A single corrupted
// byte invalidates that entry and everything after it; entries strictly
// before it remain valid.
func Verify(entries []Entry) VerifyResult {
	prevHash := ""
	for i, e := range entries {
		if e.Seq != i || e.PrevHash != prevHash || e.ContentHash() != e.Hash {
			return VerifyResult{OK: false, FirstInvalid: i}
		}
		prevHash = e.Hash
	}
	return VerifyResult{OK: true, FirstInvalid: -1}
}

// #endregion verify
