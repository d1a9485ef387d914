// Package sqlite is the embedded engine.CheckpointStore: a
// database/sql handle over modernc.org/sqlite, INSERT OR REPLACE for
// idempotent saves, and JSON encoding of the structured payload into a
// BLOB column rather than a second table per field.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/oilengine/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	run_id           TEXT NOT NULL,
	label            TEXT NOT NULL,
	step_index       INTEGER NOT NULL,
	accumulated_data TEXT,
	created_at       TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
	PRIMARY KEY (run_id, label)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_run_id ON checkpoints(run_id, created_at DESC);
`

// Store implements engine.CheckpointStore over a local SQLite file (or
// in-memory database when path is ":memory:").
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the checkpoints table if needed and returns a ready Store.
// If logger is nil, the default slog logger is used.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("checkpoint sqlite: open %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint sqlite: migrate: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists cp, replacing any prior checkpoint with the same
// (run_id, label) pair: a run re-entering the same labeled waypoint
// overwrites its accumulated data rather than accumulating duplicate rows.
func (s *Store) Save(ctx context.Context, cp engine.Checkpoint) error {
	data, err := json.Marshal(cp.AccumulatedData)
	if err != nil {
		return fmt.Errorf("checkpoint sqlite: marshal accumulated data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO checkpoints (run_id, label, step_index, accumulated_data)
		VALUES (?, ?, ?, ?)`,
		cp.RunID, cp.Label, cp.StepIndex, string(data),
	)
	if err != nil {
		return fmt.Errorf("checkpoint sqlite: save %s/%s: %w", cp.RunID, cp.Label, err)
	}

	s.logger.Debug("checkpoint sqlite: saved checkpoint",
		"run_id", cp.RunID, "label", cp.Label, "step_index", cp.StepIndex)
	return nil
}

// Last returns the most recently created checkpoint for runID, or
// (Checkpoint{}, false, nil) if the run has no checkpoints yet.
func (s *Store) Last(ctx context.Context, runID string) (engine.Checkpoint, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT label, step_index, accumulated_data
		FROM checkpoints
		WHERE run_id = ?
		ORDER BY created_at DESC
		LIMIT 1`,
		runID,
	)

	var (
		label     string
		stepIndex int
		dataJSON  sql.NullString
	)
	switch err := row.Scan(&label, &stepIndex, &dataJSON); err {
	case nil:
	case sql.ErrNoRows:
		return engine.Checkpoint{}, false, nil
	default:
		return engine.Checkpoint{}, false, fmt.Errorf("checkpoint sqlite: query last for %s: %w", runID, err)
	}

	cp := engine.Checkpoint{RunID: runID, Label: label, StepIndex: stepIndex}
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &cp.AccumulatedData); err != nil {
			return engine.Checkpoint{}, false, fmt.Errorf("checkpoint sqlite: unmarshal accumulated data: %w", err)
		}
	}
	return cp, true, nil
}

var _ engine.CheckpointStore = (*Store)(nil)
