package engine

import (
	"context"
	"strconv"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/resolver"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
)

// isBuiltinIntent reports whether kind is one of the five verbs the parser
// accepts directly as a built-in intent invocation rather than a registered
// one.
func isBuiltinIntent(kind ast.CommandKind) bool {
	switch kind {
	case ast.CmdLogin, ast.CmdSearch, ast.CmdDismiss, ast.CmdAcceptCookies, ast.CmdScrollUntil:
		return true
	default:
		return false
	}
}

// expandBuiltin materializes a built-in intent invocation into an ordinary
// step list, so the rest of the engine never special-cases these five verbs
// beyond this one seam.
func (e *Engine) expandBuiltin(ctx context.Context, cmd *ast.Command, scope map[string]string) ([]ast.Step, *Error) {
	switch cmd.Kind {
	case ast.CmdLogin:
		return e.expandLogin(cmd, scope), nil
	case ast.CmdSearch:
		return e.expandSearch(cmd, scope), nil
	case ast.CmdDismiss:
		return e.expandInferredClick(ctx, e.Resolver.ResolveDismiss)
	case ast.CmdAcceptCookies:
		return e.expandInferredClick(ctx, e.Resolver.ResolveAcceptCookies)
	case ast.CmdScrollUntil:
		return expandScrollUntil(cmd, scope), nil
	default:
		return nil, &Error{Kind: ErrStepFailed, Message: "not a built-in intent"}
	}
}

// expandInferredClick resolves an inference rule (ResolveDismiss,
// ResolveAcceptCookies) against the live snapshot and materializes a single
// Click step against the concrete id it found. Unlike the other built-ins,
// this resolution happens at expansion time rather than being deferred to
// dispatch, since the inference rules operate on patterns, not a Target the
// resolver could re-resolve later. A stale snapshot triggers a fresh scan
// first so the pattern lookup never sees pre-mutation state.
func (e *Engine) expandInferredClick(ctx context.Context, resolve func(snap *snapshot.Snapshot) (uint, *resolver.ResolveError)) ([]ast.Step, *Error) {
	snap, err := e.CurrentOrRescan(ctx)
	if err != nil {
		return nil, stepFailed(err)
	}
	id, rerr := resolve(snap)
	if rerr != nil {
		return nil, stepFailed(rerr)
	}
	return []ast.Step{clickIDStep(id)}, nil
}

func actionStep(kind ast.CommandKind, target ast.Target, text string) ast.Step {
	t := target
	return ast.Step{Kind: ast.StepAction, Command: &ast.Command{Kind: kind, Target: &t, Text: text}}
}

func clickIDStep(id uint) ast.Step {
	t := ast.ID(int(id))
	return ast.Step{Kind: ast.StepAction, Command: &ast.Command{Kind: ast.CmdClick, Target: &t}}
}

// expandLogin builds: type username (falling back from an email-role field
// to a username-role field), type password, submit via the primary/submit
// inference.
func (e *Engine) expandLogin(cmd *ast.Command, scope map[string]string) []ast.Step {
	params := substituteParams(cmd.Intent.Params, scope)
	user := params["username"]
	if user == "" {
		user = params["user"]
	}
	pass := params["password"]

	userStep := ast.Step{
		Kind:  ast.StepTry,
		Body:  []ast.Step{actionStep(ast.CmdType, ast.Role("email"), user)},
		Catch: []ast.Step{actionStep(ast.CmdType, ast.Role("username"), user)},
	}
	passStep := actionStep(ast.CmdType, ast.Role("password"), pass)
	submitStep := ast.Step{Kind: ast.StepAction, Command: &ast.Command{Kind: ast.CmdSubmit}}
	return []ast.Step{userStep, passStep, submitStep}
}

// expandSearch builds: type query into the search-role field, submit.
func (e *Engine) expandSearch(cmd *ast.Command, scope map[string]string) []ast.Step {
	params := substituteParams(cmd.Intent.Params, scope)
	query := params["query"]
	if query == "" {
		query = params["q"]
	}
	return []ast.Step{
		actionStep(ast.CmdType, ast.Role("search"), query),
		{Kind: ast.StepAction, Command: &ast.Command{Kind: ast.CmdSubmit}},
	}
}

// expandScrollUntil builds a bounded while-loop: scroll the page while the
// described text is not yet visible. The condition param is read as a text
// label (the element the scroll is meant to reveal), consistent with how
// Text targets identify elements elsewhere in OIL.
func expandScrollUntil(cmd *ast.Command, scope map[string]string) []ast.Step {
	params := substituteParams(cmd.Intent.Params, scope)
	condText := params["condition"]
	max := ast.DefaultLoopMax
	if v, ok := params["max"]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			max = n
		}
	}
	cond := ast.Not(ast.Visible(ast.Text(condText)))
	scroll := ast.Command{Kind: ast.CmdScroll, ScrollDirection: ast.ScrollDown, ScrollAmount: ast.ScrollAmount{Kind: ast.AmountPage}}
	return []ast.Step{{
		Kind:      ast.StepLoop,
		LoopKind:  ast.LoopWhile,
		Condition: &cond,
		Max:       max,
		Body:      []ast.Step{{Kind: ast.StepAction, Command: &scroll}},
	}}
}

func substituteParams(params, scope map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = substitute(v, scope)
	}
	return out
}
