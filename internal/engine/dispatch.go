package engine

import (
	"context"
	"fmt"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/backend"
	"github.com/nextlevelbuilder/oilengine/internal/resolver"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
	"github.com/nextlevelbuilder/oilengine/internal/translate"
	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

// currentSnapshot returns the cached snapshot only while it is fresh. A
// stale or missing snapshot surfaces its error so the caller decides
// between re-scanning and failing; the engine never resolves against
// pre-mutation state silently.
func (e *Engine) currentSnapshot() (*snapshot.Snapshot, error) {
	return e.Snapshots.Current(false)
}

// CurrentOrRescan returns the cached snapshot if it is fresh, or triggers
// one new scan and returns that. Exported for the session/orchestration
// layer, which needs the post-dispatch snapshot to render an observation
// without duplicating the store's acknowledge-stale contract.
func (e *Engine) CurrentOrRescan(ctx context.Context) (*snapshot.Snapshot, error) {
	snap, err := e.currentSnapshot()
	if err != nil {
		return e.rescan(ctx)
	}
	return snap, nil
}

// boundCtx caps ctx with the action's suspension timeout: the wait bound
// for scanner polling, the eval bound for JS execution, the dispatch bound
// for everything else.
func (e *Engine) boundCtx(ctx context.Context, action protocol.Action) (context.Context, context.CancelFunc) {
	t := e.Timeouts.normalized()
	d := t.Dispatch
	switch action {
	case protocol.ActionExecute:
		d = t.Eval
	case protocol.ActionWait:
		d = t.Wait
	}
	return context.WithTimeout(ctx, d)
}

// rescan dispatches a fresh scan and publishes it: used both for an Observe
// command and for the retry loop's re-scan between attempts.
func (e *Engine) rescan(ctx context.Context) (*snapshot.Snapshot, error) {
	sctx, cancel := e.boundCtx(ctx, protocol.ActionScan)
	defer cancel()
	resp, err := e.Backend.DispatchScanner(sctx, protocol.NewScannerRequest(protocol.ActionScan))
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, backend.RemoteError(resp.Error.Code, resp.Error.Message)
	}
	var payload protocol.ScanPayload
	if err := resp.DecodeData(&payload); err != nil {
		return nil, err
	}
	snap := convertScan(payload)
	e.Snapshots.Publish(snap)
	return snap, nil
}

// convertScan maps the wire ScanPayload onto the internal snapshot model.
// The two representations are deliberately decoupled; this is the one
// seam that bridges them.
func convertScan(p protocol.ScanPayload) *snapshot.Snapshot {
	els := make([]snapshot.ElementEntry, len(p.Elements))
	for i, ep := range p.Elements {
		var bounds *snapshot.Bounds
		if ep.Bounds != nil {
			bounds = &snapshot.Bounds{X: ep.Bounds.X, Y: ep.Bounds.Y, W: ep.Bounds.W, H: ep.Bounds.H}
		}
		state := make(map[snapshot.ElementState]bool, len(ep.State))
		for _, s := range ep.State {
			state[snapshot.ElementState(s)] = true
		}
		els[i] = snapshot.ElementEntry{
			ID: ep.ID, Tag: ep.Tag, Role: ep.Role, Text: ep.Text, Label: ep.Label,
			Placeholder: ep.Placeholder, Value: ep.Value, Bounds: bounds, State: state, Attrs: ep.Attrs,
		}
	}
	pats := make([]snapshot.Pattern, len(p.Patterns))
	for i, pp := range p.Patterns {
		pats[i] = snapshot.Pattern{Name: pp.Name, ElementIDs: pp.ElementIDs}
	}
	return &snapshot.Snapshot{
		Generation: p.Generation, Elements: els, Patterns: pats,
		Page: snapshot.Page{URL: p.Page.URL, Title: p.Page.Title},
	}
}

// dispatchOnce resolves cmd's target fields, translates, and dispatches
// exactly once. Retrying is the caller's (execAction's) responsibility.
func (e *Engine) dispatchOnce(ctx context.Context, cmd *ast.Command) error {
	snap, err := e.CurrentOrRescan(ctx)
	if err != nil {
		return err
	}

	rc := &translate.ResolvedCommand{Cmd: cmd}

	switch {
	case cmd.Kind == ast.CmdSubmit && cmd.Target == nil:
		id, rerr := e.Resolver.ResolveSubmit(snap)
		if rerr != nil {
			return rerr
		}
		rc.TargetID = &id
	case cmd.Target != nil:
		id, rerr := e.Resolver.Resolve(*cmd.Target, snap, resolver.RequirementFor(cmd.Kind))
		if rerr != nil {
			return rerr
		}
		rc.TargetID = &id
	}
	if cmd.Selector != nil {
		id, rerr := e.Resolver.Resolve(*cmd.Selector, snap, resolver.ReqNone)
		if rerr != nil {
			return rerr
		}
		rc.SelectorID = &id
	}
	if cmd.ScrollTarget != nil {
		id, rerr := e.Resolver.Resolve(*cmd.ScrollTarget, snap, resolver.ReqNone)
		if rerr != nil {
			return rerr
		}
		rc.ScrollTargetID = &id
	}
	if cmd.Wait.Target != nil {
		id, rerr := e.Resolver.Resolve(*cmd.Wait.Target, snap, resolver.ReqNone)
		if rerr != nil {
			return rerr
		}
		rc.WaitTargetID = &id
	}

	tr, terr := translate.Translate(rc)
	if terr != nil {
		return terr
	}

	switch tr.Destination {
	case translate.ToScanner:
		if tr.Scanner.Action == protocol.ActionScan {
			_, err := e.rescan(ctx)
			return err
		}
		dctx, cancel := e.boundCtx(ctx, tr.Scanner.Action)
		defer cancel()
		resp, err := e.Backend.DispatchScanner(dctx, tr.Scanner)
		if err != nil {
			return err
		}
		if !resp.OK() {
			return backend.RemoteError(resp.Error.Code, resp.Error.Message)
		}
		if isMutatingScanner(tr.Scanner.Action) {
			e.Snapshots.Invalidate()
		}
		return nil
	case translate.ToBackend:
		return e.dispatchBackendAction(ctx, tr.Backend)
	default:
		return fmt.Errorf("unknown translation destination")
	}
}

func (e *Engine) dispatchBackendAction(ctx context.Context, a *translate.BackendAction) error {
	switch a.Kind {
	case translate.ActionNavigate:
		_, err := e.Backend.Navigate(ctx, a.URL, a.Headers)
		if err == nil {
			e.Snapshots.Invalidate()
		}
		return err
	case translate.ActionBack:
		err := e.Backend.Back(ctx)
		if err == nil {
			e.Snapshots.Invalidate()
		}
		return err
	case translate.ActionForward:
		err := e.Backend.Forward(ctx)
		if err == nil {
			e.Snapshots.Invalidate()
		}
		return err
	case translate.ActionRefresh:
		err := e.Backend.Refresh(ctx, a.Hard)
		if err == nil {
			e.Snapshots.Invalidate()
		}
		return err
	case translate.ActionPress:
		err := e.Backend.Press(ctx, a.Key)
		if err == nil {
			e.Snapshots.Invalidate()
		}
		return err
	case translate.ActionScreenshot:
		_, err := e.Backend.Screenshot(ctx, selectorArg(a.Selector))
		return err
	case translate.ActionPDF:
		_, err := e.Backend.PDF(ctx)
		return err
	case translate.ActionCookies:
		_, err := e.Backend.Cookies(ctx, a.Subcommand.Action, a.Subcommand.Args)
		if err == nil && isMutatingSubcommand(a.Subcommand.Action) {
			e.Snapshots.Invalidate()
		}
		return err
	case translate.ActionTabs:
		_, err := e.Backend.Tabs(ctx, a.Subcommand.Action, a.Subcommand.Args)
		if err == nil && isMutatingSubcommand(a.Subcommand.Action) {
			e.Snapshots.Invalidate()
		}
		return err
	case translate.ActionIntercept:
		_, err := e.Backend.DevTools(ctx, "intercept", a.Subcommand.Action, a.Subcommand.Args)
		return err
	case translate.ActionConsole:
		_, err := e.Backend.DevTools(ctx, "console", a.Subcommand.Action, a.Subcommand.Args)
		return err
	case translate.ActionErrors:
		_, err := e.Backend.DevTools(ctx, "errors", a.Subcommand.Action, a.Subcommand.Args)
		return err
	case translate.ActionSetHeaders:
		_, err := e.Backend.DevTools(ctx, "headers", a.Subcommand.Action, a.Subcommand.Args)
		return err
	default:
		return fmt.Errorf("unhandled backend action kind")
	}
}

func selectorArg(t *ast.Target) string {
	if t == nil {
		return ""
	}
	return t.Value
}

// isMutatingScanner reports whether a scanner action changes page state, so
// the snapshot store must be invalidated after it succeeds.
func isMutatingScanner(a protocol.Action) bool {
	switch a {
	case protocol.ActionClick, protocol.ActionType, protocol.ActionClear, protocol.ActionCheck,
		protocol.ActionSelect, protocol.ActionSubmit, protocol.ActionStorage,
		protocol.ActionLogin, protocol.ActionSearch, protocol.ActionDismiss, protocol.ActionAccept:
		return true
	default:
		return false
	}
}

func isMutatingSubcommand(action string) bool {
	switch action {
	case "set", "delete", "clear", "save", "load", "close", "open", "new":
		return true
	default:
		return false
	}
}
