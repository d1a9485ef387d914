// Package session ties the pipeline stages into the single
// `Execute(line) -> observation` entrypoint the engine exposes to a
// caller: one OIL line in, one formatted result out.
package session

import (
	"context"
	"fmt"
	"os"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/config"
	"github.com/nextlevelbuilder/oilengine/internal/engine"
	"github.com/nextlevelbuilder/oilengine/internal/observation"
	"github.com/nextlevelbuilder/oilengine/internal/parser"
	"github.com/nextlevelbuilder/oilengine/internal/registry"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
	"github.com/nextlevelbuilder/oilengine/internal/tracker"
	"github.com/nextlevelbuilder/oilengine/internal/tracing"
)

// Session is one OIL conversation: a single-threaded cooperative pipeline
// run pairing an Engine (itself wired to the Resolver, Snapshot Store, and
// a Backend) with the intent Registry and this session's diff history.
type Session struct {
	Engine   *engine.Engine
	Registry *registry.Registry
	Config   *config.Config

	// Tracer is optional; a nil Tracer (the zero value) makes every
	// StartLine call below a cheap no-op, so tracing never changes
	// pipeline behavior when telemetry is disabled.
	Tracer *tracing.Provider

	prev *snapshot.Snapshot
}

// New builds a Session. eng must already have its Backend/Resolver/
// Snapshots/Retry/Checkpoints wired; reg is the merged intent scope eng's
// IntentCall steps and this session's `run`/availability computation share.
func New(eng *engine.Engine, reg *registry.Registry, cfg *config.Config) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	eng.Registry = reg
	return &Session{Engine: eng, Registry: reg, Config: cfg}
}

// Execute parses and runs one OIL line, returning the rendered observation
// block (or a registry-op confirmation) on success. An error is always a
// structured, user-facing failure: parse/resolve/translate errors
// carry their own Error() rendering; engine failures include the
// PartialSuccess summary when the run got partway through.
func (s *Session) Execute(ctx context.Context, line string) (string, error) {
	ctx, span := s.Tracer.StartLine(ctx, line)
	var execErr error
	defer func() { tracing.EndWithError(span, execErr) }()

	cmd, perr, isComment := parser.Parse(line)
	if isComment {
		return "", nil
	}
	if perr != nil {
		execErr = perr
		return "", perr
	}

	var out string
	switch cmd.Kind {
	case ast.CmdDefine:
		out, execErr = s.execDefine(cmd)
	case ast.CmdUndefine:
		out, execErr = s.execUndefine(cmd)
	case ast.CmdExport:
		out, execErr = s.execExport(cmd)
	case ast.CmdRun:
		out, execErr = s.execRun(ctx, cmd)
	default:
		out, execErr = s.execCommand(ctx, cmd)
	}
	return out, execErr
}

func (s *Session) execDefine(cmd *ast.Command) (string, error) {
	file := cmd.Intent.Params["file"]
	if file == "" {
		return "", fmt.Errorf("define: requires --file <pack.yaml>")
	}
	if err := s.Registry.DefineFromFile(file, cmd.Intent.Name); err != nil {
		return "", err
	}
	return fmt.Sprintf("defined intent %q from %s", cmd.Intent.Name, file), nil
}

func (s *Session) execUndefine(cmd *ast.Command) (string, error) {
	if !s.Registry.UndefineSession(cmd.Intent.Name) {
		return "", fmt.Errorf("undefine: no session-defined intent %q", cmd.Intent.Name)
	}
	return fmt.Sprintf("undefined intent %q", cmd.Intent.Name), nil
}

func (s *Session) execExport(cmd *ast.Command) (string, error) {
	file := cmd.Intent.Params["file"]
	if file == "" {
		return "", fmt.Errorf("export: requires --file <pack.yaml>")
	}
	data, err := s.Registry.ExportYAML(cmd.Intent.Name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(file, data, 0o644); err != nil {
		return "", fmt.Errorf("export %s: %w", cmd.Intent.Name, err)
	}
	return fmt.Sprintf("exported intent %q to %s", cmd.Intent.Name, file), nil
}

func (s *Session) execRun(ctx context.Context, cmd *ast.Command) (string, error) {
	def, ok := s.Registry.Lookup(cmd.Intent.Name)
	if !ok {
		return "", fmt.Errorf("run: unknown intent %q", cmd.Intent.Name)
	}
	_, res, runErr := s.Engine.Start(ctx, def, nil)
	obs, obsErr := s.renderObservation(ctx)

	switch res.Kind {
	case engine.ResultSuccess:
		return obs, obsErr
	case engine.ResultPartialSuccess:
		summary := fmt.Sprintf("PartialSuccess: %d/%d steps completed, last checkpoint %q (%s)\n",
			res.Completed, res.Total, res.LastCheckpoint, res.Reason)
		if obsErr != nil {
			return "", fmt.Errorf("%s%w", summary, obsErr)
		}
		return summary + obs, runErr
	default:
		return "", fmt.Errorf("Failed: %s", res.Reason)
	}
}

// execCommand runs a single, non-registry OIL command by wrapping it as a
// one-step anonymous intent, so it gets the same retry/builtin-expansion
// machinery every composite intent step gets rather than a second,
// parallel dispatch path.
func (s *Session) execCommand(ctx context.Context, cmd *ast.Command) (string, error) {
	def := &ast.IntentDefinition{Name: "_line", Steps: []ast.Step{{Kind: ast.StepAction, Command: cmd}}}
	if _, _, err := s.Engine.Start(ctx, def, nil); err != nil {
		return "", err
	}
	return s.renderObservation(ctx)
}

// ExecuteCommand runs a single, already-parsed Command, bypassing the OIL
// text parser. It exists for callers (e.g. cmd/oilctl's interactive
// disambiguation prompt) that must re-dispatch a command whose Target was
// just replaced with a concrete Id after a human resolved an Ambiguous
// error; there is no OIL text round-trip needed for that case.
func (s *Session) ExecuteCommand(ctx context.Context, cmd *ast.Command) (string, error) {
	return s.execCommand(ctx, cmd)
}

func (s *Session) renderObservation(ctx context.Context) (string, error) {
	snap, err := s.Engine.CurrentOrRescan(ctx)
	if err != nil {
		return "", err
	}
	diff := tracker.Compute(s.prev, snap)
	avail := tracker.ComputeAll(s.Registry.All(), snap)
	s.prev = snap

	opts := observation.Options{MaxTextWidth: s.Config.Observation.MaxTextWidth, IncludeHidden: s.Config.Observation.ShowHidden}
	return observation.Render(snap, diff, avail, opts), nil
}
