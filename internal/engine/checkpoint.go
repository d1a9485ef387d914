package engine

import (
	"context"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

// Checkpoint is a named, resumable waypoint within an intent run:
// {label, step_index, accumulated_data}.
type Checkpoint struct {
	RunID           string
	Label           string
	StepIndex       int
	AccumulatedData map[string]string
}

// CheckpointStore persists Checkpoints so a failed run can Resume from its
// last waypoint instead of restarting an intent from step zero.
type CheckpointStore interface {
	Save(ctx context.Context, cp Checkpoint) error
	Last(ctx context.Context, runID string) (Checkpoint, bool, error)
}

// IntentLookup resolves an intent name to its definition, honoring the
// scope precedence session > pack > built-in. The engine only
// consumes the interface; the registry provides the concrete scope chain.
type IntentLookup interface {
	Lookup(name string) (*ast.IntentDefinition, bool)
}
