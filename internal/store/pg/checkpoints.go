// Package pg is the optional, multi-process CheckpointStore backend:
// database/sql over pgx, migrated with golang-migrate, scoped to this
// module's one persisted type (Checkpoint).
package pg

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/nextlevelbuilder/oilengine/internal/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements engine.CheckpointStore over Postgres, reached with the
// stdlib database/sql driver pgx registers as "pgx", so one pgx import
// serves both golang-migrate and the store layer.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open connects to dsn, applies any pending embedded migrations, and
// returns a ready Store. If logger is nil, slog.Default() is used.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dsn == "" {
		return nil, fmt.Errorf("checkpoint postgres: empty DSN (set OILENGINE_POSTGRES_DSN)")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("checkpoint postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("checkpoint postgres: ping: %w", err)
	}

	if err := migrateUp(db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger}, nil
}

func migrateUp(db *sql.DB, logger *slog.Logger) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("checkpoint postgres: migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("checkpoint postgres: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("checkpoint postgres: migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("checkpoint postgres: migrate up: %w", err)
	}
	v, dirty, _ := m.Version()
	logger.Debug("checkpoint postgres: migrations applied", "version", v, "dirty", dirty)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save persists cp, replacing any prior checkpoint for the same
// (run_id, label) pair, matching the sqlite Store's last-write-wins
// semantics.
func (s *Store) Save(ctx context.Context, cp engine.Checkpoint) error {
	data, err := json.Marshal(cp.AccumulatedData)
	if err != nil {
		return fmt.Errorf("checkpoint postgres: marshal accumulated data: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (run_id, label, step_index, accumulated_data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (run_id, label) DO UPDATE
		SET step_index = EXCLUDED.step_index,
		    accumulated_data = EXCLUDED.accumulated_data,
		    created_at = now()`,
		cp.RunID, cp.Label, cp.StepIndex, data,
	)
	if err != nil {
		return fmt.Errorf("checkpoint postgres: save %s/%s: %w", cp.RunID, cp.Label, err)
	}

	s.logger.Debug("checkpoint postgres: saved checkpoint",
		"run_id", cp.RunID, "label", cp.Label, "step_index", cp.StepIndex)
	return nil
}

// Last returns the most recently created checkpoint for runID, or
// (Checkpoint{}, false, nil) if the run has no checkpoints yet.
func (s *Store) Last(ctx context.Context, runID string) (engine.Checkpoint, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT label, step_index, accumulated_data
		FROM checkpoints
		WHERE run_id = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		runID,
	)

	var (
		label     string
		stepIndex int
		dataJSON  []byte
	)
	switch err := row.Scan(&label, &stepIndex, &dataJSON); {
	case err == nil:
	case errors.Is(err, sql.ErrNoRows):
		return engine.Checkpoint{}, false, nil
	default:
		return engine.Checkpoint{}, false, fmt.Errorf("checkpoint postgres: query last for %s: %w", runID, err)
	}

	cp := engine.Checkpoint{RunID: runID, Label: label, StepIndex: stepIndex}
	if len(dataJSON) > 0 {
		if err := json.Unmarshal(dataJSON, &cp.AccumulatedData); err != nil {
			return engine.Checkpoint{}, false, fmt.Errorf("checkpoint postgres: unmarshal accumulated data: %w", err)
		}
	}
	return cp, true, nil
}

var _ engine.CheckpointStore = (*Store)(nil)
