package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KieranMcFarlane/panther-scout/internal/ledger"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS hypotheses (
	entity_id        TEXT NOT NULL,
	category         TEXT NOT NULL,
	confidence       REAL NOT NULL,
	accepted_signals INTEGER NOT NULL,
	status           TEXT NOT NULL,
	history_json     TEXT NOT NULL,
	updated_at       TEXT NOT NULL,
	PRIMARY KEY (entity_id, category)
);
`

// #endregion schema

// #region sqlite-store

// SQLiteStore persists hypotheses in SQLite. Safe for concurrent use by
// workers owning different entities; a hypothesis row is only ever written
// by the single worker owning its entity.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a scout database and runs migrations.
func Open(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an existing handle and runs migrations, so the
// hypothesis table can share a database with the audit log and registry.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// DB returns the underlying handle for use by other packages (audit, registry).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// #endregion sqlite-store

// #region single

// GetHypothesis reads one hypothesis; ErrNotFound when the pair has never
// been explored.
func (s *SQLiteStore) GetHypothesis(ctx context.Context, entityID string, category ledger.Category) (*ledger.Hypothesis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT entity_id, category, confidence, accepted_signals, status, history_json
		 FROM hypotheses WHERE entity_id = ? AND category = ?`,
		entityID, string(category),
	)
	h, err := scanHypothesis(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get hypothesis %s/%s: %w", entityID, category, err)
	}
	return h, nil
}

// PutHypothesis upserts one hypothesis (last writer wins per row).
func (s *SQLiteStore) PutHypothesis(ctx context.Context, h *ledger.Hypothesis) error {
	historyJSON, err := json.Marshal(h.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO hypotheses (entity_id, category, confidence, accepted_signals, status, history_json, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_id, category) DO UPDATE SET
			confidence = excluded.confidence,
			accepted_signals = excluded.accepted_signals,
			status = excluded.status,
			history_json = excluded.history_json,
			updated_at = excluded.updated_at`,
		h.EntityID, string(h.Category), h.Confidence, h.AcceptedSignals, string(h.Status),
		string(historyJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("put hypothesis %s/%s: %w", h.EntityID, h.Category, err)
	}
	return nil
}

// #endregion single

// #region batch

// GetBatch reads an entity's hypotheses for the given categories in one query.
func (s *SQLiteStore) GetBatch(ctx context.Context, entityID string, categories []ledger.Category) (map[ledger.Category]*ledger.Hypothesis, error) {
	if len(categories) == 0 {
		return map[ledger.Category]*ledger.Hypothesis{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categories)), ",")
	args := make([]interface{}, 0, len(categories)+1)
	args = append(args, entityID)
	for _, c := range categories {
		args = append(args, string(c))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_id, category, confidence, accepted_signals, status, history_json
		 FROM hypotheses WHERE entity_id = ? AND category IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", entityID, err)
	}
	defer rows.Close()

	out := make(map[ledger.Category]*ledger.Hypothesis)
	for rows.Next() {
		h, err := scanHypothesis(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan batch row: %w", err)
		}
		out[h.Category] = h
	}
	return out, rows.Err()
}

// PutBatch writes hypotheses inside one transaction.
func (s *SQLiteStore) PutBatch(ctx context.Context, hs []*ledger.Hypothesis) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, h := range hs {
		historyJSON, err := json.Marshal(h.History)
		if err != nil {
			return fmt.Errorf("marshal history: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO hypotheses (entity_id, category, confidence, accepted_signals, status, history_json, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(entity_id, category) DO UPDATE SET
				confidence = excluded.confidence,
				accepted_signals = excluded.accepted_signals,
				status = excluded.status,
				history_json = excluded.history_json,
				updated_at = excluded.updated_at`,
			h.EntityID, string(h.Category), h.Confidence, h.AcceptedSignals, string(h.Status),
			string(historyJSON), time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("put batch %s/%s: %w", h.EntityID, h.Category, err)
		}
	}
	return tx.Commit()
}

// #endregion batch

// #region helpers

func scanHypothesis(scan func(dest ...interface{}) error) (*ledger.Hypothesis, error) {
	var h ledger.Hypothesis
	var category, status, historyJSON string
	if err := scan(&h.EntityID, &category, &h.Confidence, &h.AcceptedSignals, &status, &historyJSON); err != nil {
		return nil, err
	}
	h.Category = ledger.Category(category)
	h.Status = ledger.Status(status)
	if err := json.Unmarshal([]byte(historyJSON), &h.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return &h, nil
}

// #endregion helpers
