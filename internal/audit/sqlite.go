package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	entity_id  TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	payload    TEXT NOT NULL,
	hash       TEXT NOT NULL,
	prev_hash  TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (entity_id, seq)
);
`

// #endregion schema

// #region sqlite-log

// tail is the cached chain head of one partition.
type tail struct {
	seq  int
	hash string
}

// SQLiteLog stores one audit partition per entity in a shared SQLite table.
// Each append is a single INSERT (atomic per entry). Partition tails are
// cached so concurrent appends to different entities do not re-read the
// table; the map is guarded because workers share one log.
type SQLiteLog struct {
	db *sql.DB

	mu    sync.Mutex
	tails map[string]*tail
}

// NewSQLiteLog creates the audit_log table if needed and returns a log
// sharing the given database handle.
func NewSQLiteLog(db *sql.DB) (*SQLiteLog, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("audit migrate: %w", err)
	}
	return &SQLiteLog{db: db, tails: make(map[string]*tail)}, nil
}

// #endregion sqlite-log

// #region append

// Append chains and persists one entry in the entity's partition.
func (l *SQLiteLog) Append(ctx context.Context, e Entry) (Entry, error) {
	l.mu.Lock()
	t, err := l.tailLocked(ctx, e.EntityID)
	if err != nil {
		l.mu.Unlock()
		return Entry{}, err
	}

	e.Seq = t.seq
	e.PrevHash = t.hash
	e.Hash = e.ContentHash()

	payload, err := json.Marshal(e)
	if err != nil {
		l.mu.Unlock()
		return Entry{}, fmt.Errorf("marshal entry: %w", err)
	}

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO audit_log (entity_id, seq, payload, hash, prev_hash, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.EntityID, e.Seq, string(payload), e.Hash, e.PrevHash,
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		l.mu.Unlock()
		return Entry{}, fmt.Errorf("append audit entry: %w", err)
	}

	t.seq = e.Seq + 1
	t.hash = e.Hash
	l.mu.Unlock()
	return e, nil
}

// tailLocked loads the partition tail, reading the table once per entity.
func (l *SQLiteLog) tailLocked(ctx context.Context, entityID string) (*tail, error) {
	if t, ok := l.tails[entityID]; ok {
		return t, nil
	}
	t := &tail{}
	var seq int
	var hash string
	err := l.db.QueryRowContext(ctx,
		`SELECT seq, hash FROM audit_log WHERE entity_id = ? ORDER BY seq DESC LIMIT 1`,
		entityID,
	).Scan(&seq, &hash)
	switch {
	case err == sql.ErrNoRows:
		// fresh partition
	case err != nil:
		return nil, fmt.Errorf("load audit tail: %w", err)
	default:
		t.seq = seq + 1
		t.hash = hash
	}
	l.tails[entityID] = t
	return t, nil
}

// #endregion append

// #region read

// Entries returns the full partition for an entity in append order.
func (l *SQLiteLog) Entries(ctx context.Context, entityID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT payload FROM audit_log WHERE entity_id = ? ORDER BY seq ASC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("read audit partition: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		var e Entry
		if err := json.Unmarshal([]byte(payload), &e); err != nil {
			return nil, fmt.Errorf("unmarshal audit entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Partitions lists every entity with at least one audit entry.
func (l *SQLiteLog) Partitions(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT DISTINCT entity_id FROM audit_log ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("list audit partitions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan partition id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// #endregion read
