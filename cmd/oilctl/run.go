package oilctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/backend"
	"github.com/nextlevelbuilder/oilengine/internal/config"
	"github.com/nextlevelbuilder/oilengine/internal/engine"
	"github.com/nextlevelbuilder/oilengine/internal/parser"
	"github.com/nextlevelbuilder/oilengine/internal/registry"
	"github.com/nextlevelbuilder/oilengine/internal/resolver"
	"github.com/nextlevelbuilder/oilengine/internal/session"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
	"github.com/nextlevelbuilder/oilengine/internal/store/sqlite"
	"github.com/nextlevelbuilder/oilengine/internal/tracing"
	"github.com/nextlevelbuilder/oilengine/internal/transport/fakebackend"
	"github.com/nextlevelbuilder/oilengine/internal/transport/wsbackend"
)

var (
	wsURL       string
	interactive bool
	packDirs    []string
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Read OIL lines from stdin and execute them against a Backend",
		Long: "run reads one OIL line per line of stdin, feeds it through " +
			"the parse/resolve/translate/dispatch pipeline, and prints the " +
			"formatted observation or a structured error for each.",
		RunE: runRun,
	}
	cmd.Flags().StringVar(&wsURL, "ws", "", "dial a browser-extension WebSocket backend at this URL instead of the in-memory fake")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "prompt with a huh.Select when resolution is Ambiguous, instead of failing the line")
	cmd.Flags().StringSliceVar(&packDirs, "pack-dir", nil, "intent pack directories to load before running (overrides config)")
	return cmd
}

func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func runRun(cmd *cobra.Command, args []string) error {
	setupLogging()

	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer tp.Shutdown(context.Background())

	be, err := newBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close(context.Background())

	cps, err := newCheckpointStore(ctx, cfg)
	if err != nil {
		return err
	}

	reg := registry.New(registry.Builtins())
	dirs := packDirs
	if len(dirs) == 0 {
		dirs = cfg.Packs.Dirs
	}
	for _, dir := range dirs {
		if err := reg.LoadDir(config.ExpandHome(dir), cfg.Packs.ForceOnReload); err != nil {
			return fmt.Errorf("load pack dir %s: %w", dir, err)
		}
	}

	timeouts := engine.Timeouts{
		Dispatch: cfg.Timeouts.Dispatch,
		Eval:     cfg.Timeouts.Eval,
		Wait:     cfg.Timeouts.Wait,
	}
	eng := &engine.Engine{
		Backend:     be,
		Resolver:    resolver.New(engine.NewSelectorDelegate(be, timeouts)),
		Snapshots:   snapshot.NewStore(),
		Checkpoints: cps,
		Retry: engine.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			Factor:      cfg.Retry.Factor,
			Jitter:      cfg.Retry.Jitter,
		},
		Timeouts: timeouts,
		Tracer:   tp,
	}
	sess := session.New(eng, reg, cfg)
	sess.Tracer = tp

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line := scanner.Text()
		out, runErr := sess.Execute(ctx, line)
		if runErr != nil {
			out, runErr = maybeDisambiguate(ctx, sess, line, runErr)
		}
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n%s\n", runErr, hintFor(runErr))
			continue
		}
		if out != "" {
			fmt.Println(out)
		}
	}
	return scanner.Err()
}

// maybeDisambiguate handles the one place agent-facing disambiguation
// meets a human operator: when a line fails with resolver.ErrAmbiguous and
// --interactive was passed, a huh.Select lets the operator pick a concrete
// element ID, and the line re-dispatches with that Id substituted for its
// original Target.
func maybeDisambiguate(ctx context.Context, sess *session.Session, line string, runErr error) (string, error) {
	if !interactive {
		return "", runErr
	}
	var rerr *resolver.ResolveError
	if !errors.As(runErr, &rerr) || rerr.Kind != resolver.ErrAmbiguous || len(rerr.Candidates) == 0 {
		return "", runErr
	}

	ids := append([]uint(nil), rerr.Candidates...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var chosen uint
	options := make([]huh.Option[uint], len(ids))
	for i, id := range ids {
		options[i] = huh.NewOption(fmt.Sprintf("[%d]", id), id)
	}
	form := huh.NewForm(huh.NewGroup(
		huh.NewSelect[uint]().
			Title(fmt.Sprintf("Ambiguous target %s: pick an element", rerr.Target.String())).
			Options(options...).
			Value(&chosen),
	))
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("%w (disambiguation cancelled: %v)", runErr, err)
	}

	cmd, rerr2 := reparseWithID(line, chosen)
	if rerr2 != nil {
		return "", rerr2
	}
	return sess.ExecuteCommand(ctx, cmd)
}

func hintFor(err error) string {
	var rerr *resolver.ResolveError
	if errors.As(err, &rerr) && rerr.Kind == resolver.ErrAmbiguous {
		return fmt.Sprintf("Available elements: %v. Run 'observe' to refresh, or retry with --interactive.", rerr.Candidates)
	}
	return "Run 'observe' to refresh the element list."
}

func newBackend(ctx context.Context, cfg *config.Config) (backend.Backend, error) {
	url := wsURL
	if url == "" {
		url = cfg.Transport.WebSocketURL
	}
	if url == "" {
		fb := fakebackend.New()
		return fb, fb.Launch(ctx)
	}
	dial := cfg.Transport.DialTimeout
	if dial <= 0 {
		dial = 10 * time.Second
	}
	be := wsbackend.New(url, dial)
	return be, be.Launch(ctx)
}

func newCheckpointStore(ctx context.Context, cfg *config.Config) (engine.CheckpointStore, error) {
	switch cfg.Checkpoints.Backend {
	case "sqlite":
		path := config.ExpandHome(cfg.Checkpoints.SQLitePath)
		return sqlite.Open(ctx, path, nil)
	case "postgres":
		return newPostgresCheckpointStore(ctx, cfg)
	default:
		return nil, nil // engine tolerates a nil CheckpointStore: Resume just errors clearly
	}
}

// reparseWithID rebuilds the Command for line but replaces its primary
// Target with a concrete ast.Id(n): the retry path for a disambiguated
// line. It reuses the parser so every other option/modifier on the
// original line (force, modifiers, submit-on-enter, ...) survives
// untouched; only the target is overridden afterward.
func reparseWithID(line string, id uint) (*ast.Command, error) {
	cmd, perr, isComment := parser.Parse(line)
	if perr != nil {
		return nil, perr
	}
	if isComment || cmd == nil {
		return nil, fmt.Errorf("cannot disambiguate a comment line")
	}
	concrete := ast.ID(int(id))
	if cmd.Target == nil {
		return nil, fmt.Errorf("line %q has no resolvable target to disambiguate", line)
	}
	cmd.Target = &concrete
	return cmd, nil
}
