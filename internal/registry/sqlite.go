package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// #region schema

const schema = `
CREATE TABLE IF NOT EXISTS entities (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	cluster_id TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

// #endregion schema

// #region sqlite-registry

// SQLiteRegistry persists entities alongside the hypothesis store and audit
// log on a shared database handle.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry wraps an existing handle and runs migrations.
func NewSQLiteRegistry(db *sql.DB) (*SQLiteRegistry, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate entities: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

// Lookup resolves one entity by ID.
func (r *SQLiteRegistry) Lookup(ctx context.Context, id string) (Entity, error) {
	var e Entity
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, cluster_id FROM entities WHERE id = ?`, id,
	).Scan(&e.ID, &e.Name, &e.ClusterID)
	if err == sql.ErrNoRows {
		return Entity{}, ErrNotFound
	}
	if err != nil {
		return Entity{}, fmt.Errorf("lookup entity %s: %w", id, err)
	}
	return e, nil
}

// List returns all entities ordered by name.
func (r *SQLiteRegistry) List(ctx context.Context) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, cluster_id FROM entities ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var out []Entity
	for rows.Next() {
		var e Entity
		if err := rows.Scan(&e.ID, &e.Name, &e.ClusterID); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Seed inserts entities that are not already present, assigning IDs where
// missing, and returns the stored rows.
func (r *SQLiteRegistry) Seed(ctx context.Context, entities []Entity) ([]Entity, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	out := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (id, name, cluster_id) VALUES (?, ?, ?)
			 ON CONFLICT(id) DO NOTHING`,
			e.ID, e.Name, e.ClusterID,
		); err != nil {
			return nil, fmt.Errorf("seed entity %s: %w", e.Name, err)
		}
		out = append(out, e)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit seed: %w", err)
	}
	return out, nil
}

// #endregion sqlite-registry
