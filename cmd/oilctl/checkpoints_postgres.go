package oilctl

import (
	"context"

	"github.com/nextlevelbuilder/oilengine/internal/config"
	"github.com/nextlevelbuilder/oilengine/internal/engine"
	"github.com/nextlevelbuilder/oilengine/internal/store/pg"
)

// newPostgresCheckpointStore wires the optional multi-process
// CheckpointStore backend. Split into its own file so the
// pgx/golang-migrate import graph stays out of run.go's otherwise
// transport-agnostic wiring.
func newPostgresCheckpointStore(ctx context.Context, cfg *config.Config) (engine.CheckpointStore, error) {
	return pg.Open(ctx, cfg.Checkpoints.PostgresDSN, nil)
}
