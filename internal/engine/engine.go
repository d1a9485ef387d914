// Package engine executes composite named intents: a step list run under
// retry, branch, loop, try, and checkpoint control flow.
package engine

import (
	"context"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/backend"
	"github.com/nextlevelbuilder/oilengine/internal/resolver"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
	"github.com/nextlevelbuilder/oilengine/internal/tracing"
	"github.com/nextlevelbuilder/oilengine/internal/verifier"
)

// Engine ties the pipeline stages together to run composite intents. One
// Engine serves one session; its collaborators are the same ones the
// session's single-step OIL pipeline already uses: single-threaded and
// cooperative per session.
type Engine struct {
	Backend     backend.Backend
	Resolver    *resolver.Resolver
	Snapshots   *snapshot.Store
	Registry    IntentLookup
	Checkpoints CheckpointStore
	Retry       RetryPolicy
	Timeouts    Timeouts

	// Tracer is optional; nil makes every StartStep call below a no-op.
	Tracer *tracing.Provider
}

// runState threads per-run bookkeeping through recursive step execution: the
// parameter/extract-result scope, the call stack for cycle detection, and
// the run's checkpoint identity.
type runState struct {
	runID     string
	callStack map[string]bool
	scope     map[string]string
}

func newRunState(runID, rootName string, scope map[string]string) *runState {
	if scope == nil {
		scope = map[string]string{}
	}
	return &runState{runID: runID, callStack: map[string]bool{rootName: true}, scope: scope}
}

// withCall pushes name onto the cycle-detection stack and gives the callee
// its own scope copy, so call arguments never leak back into the caller.
func (rs *runState) withCall(name string) *runState {
	next := map[string]bool{name: true}
	for k := range rs.callStack {
		next[k] = true
	}
	return &runState{runID: rs.runID, callStack: next, scope: cloneScope(rs.scope)}
}

func initialScope(def *ast.IntentDefinition, args map[string]string) map[string]string {
	scope := make(map[string]string, len(def.Parameters)+len(args))
	for _, p := range def.Parameters {
		scope[p.Name] = p.Default
	}
	for k, v := range args {
		scope[k] = v
	}
	return scope
}

// Start runs def from the beginning under a freshly minted run ID.
func (e *Engine) Start(ctx context.Context, def *ast.IntentDefinition, args map[string]string) (string, Result, error) {
	runID := uuid.NewString()
	res, err := e.RunIntent(ctx, runID, def, args)
	return runID, res, err
}

// RunIntent executes def's step list from the top under runID: bind args,
// execute each step in order, report the terminal Result.
func (e *Engine) RunIntent(ctx context.Context, runID string, def *ast.IntentDefinition, args map[string]string) (Result, error) {
	rs := newRunState(runID, def.Name, initialScope(def, args))
	completed, eerr, lastCP := e.execSteps(ctx, rs, def.Steps, 0)
	return e.finish(ctx, rs, def, eerr, completed, lastCP)
}

// Resume restarts def's execution from the step immediately after the run's
// last saved checkpoint, reusing its accumulated data.
func (e *Engine) Resume(ctx context.Context, runID string, def *ast.IntentDefinition) (Result, error) {
	if e.Checkpoints == nil {
		return Result{}, &Error{Kind: ErrStepFailed, Message: "no checkpoint store configured"}
	}
	cp, found, err := e.Checkpoints.Last(ctx, runID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, &Error{Kind: ErrStepFailed, Message: "no checkpoint found for run " + runID}
	}
	rs := newRunState(runID, def.Name, cp.AccumulatedData)
	completed, eerr, lastCP := e.execSteps(ctx, rs, def.Steps, cp.StepIndex+1)
	if lastCP == "" {
		lastCP = cp.Label
	}
	return e.finish(ctx, rs, def, eerr, completed, lastCP)
}

// finish turns an execution outcome into the terminal Result, running the
// intent's on_error handler first when one is declared. The handler never
// changes the reported outcome, since the steps it compensates for still didn't
// complete. A Cancelled run skips it entirely.
func (e *Engine) finish(ctx context.Context, rs *runState, def *ast.IntentDefinition, eerr *Error, completed int, lastCP string) (Result, error) {
	total := len(def.Steps)
	if eerr == nil {
		return Result{Kind: ResultSuccess, Completed: completed, Total: total}, nil
	}
	if eerr.Kind != ErrCancelled && len(def.OnError) > 0 {
		if _, herr, _ := e.execSteps(ctx, rs, def.OnError, 0); herr != nil {
			eerr = &Error{Kind: ErrStepFailed, Inner: eerr,
				Message: "on_error handler failed: " + herr.Error()}
		}
	}
	if completed == 0 && lastCP == "" {
		return Result{Kind: ResultFailed, Reason: eerr.Error()}, eerr
	}
	return Result{Kind: ResultPartialSuccess, Completed: completed, Total: total,
		LastCheckpoint: lastCP, Reason: eerr.Error()}, eerr
}

// execSteps runs steps[startIndex:] in order, stopping at the first failure.
// It returns the count of top-level steps that completed (relative to the
// full steps slice, not startIndex) and the last checkpoint label reached.
func (e *Engine) execSteps(ctx context.Context, rs *runState, steps []ast.Step, startIndex int) (int, *Error, string) {
	lastCheckpoint := ""
	for i := startIndex; i < len(steps); i++ {
		step := steps[i]
		sctx, span := e.Tracer.StartStep(ctx, rs.runID, step.Kind.String(), i)
		err := e.execStep(sctx, rs, step)
		if err != nil {
			tracing.EndWithError(span, err)
			return i, err, lastCheckpoint
		}
		tracing.EndWithError(span, nil)
		if step.Kind == ast.StepCheckpoint {
			lastCheckpoint = step.Label
			if e.Checkpoints != nil {
				_ = e.Checkpoints.Save(ctx, Checkpoint{
					RunID: rs.runID, Label: step.Label, StepIndex: i,
					AccumulatedData: cloneScope(rs.scope),
				})
			}
		}
	}
	return len(steps), nil, lastCheckpoint
}

func cloneScope(scope map[string]string) map[string]string {
	out := make(map[string]string, len(scope))
	for k, v := range scope {
		out[k] = v
	}
	return out
}

func (e *Engine) execStep(ctx context.Context, rs *runState, step ast.Step) *Error {
	select {
	case <-ctx.Done():
		return cancelled("cancelled before step start")
	default:
	}

	switch step.Kind {
	case ast.StepAction:
		return e.execAction(ctx, rs, step)
	case ast.StepBranch:
		return e.execBranch(ctx, rs, step)
	case ast.StepLoop:
		return e.execLoop(ctx, rs, step)
	case ast.StepTry:
		return e.execTry(ctx, rs, step)
	case ast.StepIntentCall:
		return e.execIntentCall(ctx, rs, step)
	case ast.StepVerify:
		return e.execVerify(ctx, rs, step)
	case ast.StepCheckpoint:
		return nil // recorded by the caller (execSteps) after this returns
	default:
		return &Error{Kind: ErrStepFailed, Message: "unknown step kind"}
	}
}

func (e *Engine) verifierContext() verifier.Context {
	return verifier.Context{Resolver: e.Resolver}
}

func (e *Engine) evalCondition(ctx context.Context, cond *ast.Condition) (bool, *Error) {
	if cond == nil {
		return false, &Error{Kind: ErrStepFailed, Message: "missing condition"}
	}
	snap, err := e.CurrentOrRescan(ctx)
	if err != nil {
		return false, stepFailed(err)
	}
	ok, verr := verifier.Evaluate(*cond, snap, e.verifierContext())
	if verr != nil {
		return false, stepFailed(verr)
	}
	return ok, nil
}

func (e *Engine) execBranch(ctx context.Context, rs *runState, step ast.Step) *Error {
	ok, err := e.evalCondition(ctx, step.Condition)
	if err != nil {
		return err
	}
	branch := step.Else
	if ok {
		branch = step.Then
	}
	_, eerr, _ := e.execSteps(ctx, rs, branch, 0)
	return eerr
}

func (e *Engine) execVerify(ctx context.Context, rs *runState, step ast.Step) *Error {
	ok, err := e.evalCondition(ctx, step.Condition)
	if err != nil {
		return err
	}
	if !ok {
		return &Error{Kind: ErrStepFailed, Message: "verify condition did not hold"}
	}
	return nil
}

func (e *Engine) execTry(ctx context.Context, rs *runState, step ast.Step) *Error {
	_, eerr, _ := e.execSteps(ctx, rs, step.Body, 0)
	if eerr == nil {
		return nil
	}
	if eerr.Kind == ErrCancelled {
		return eerr
	}
	_, catchErr, _ := e.execSteps(ctx, rs, step.Catch, 0)
	return catchErr
}

func (e *Engine) execLoop(ctx context.Context, rs *runState, step ast.Step) *Error {
	max := step.Max
	if max <= 0 {
		max = ast.DefaultLoopMax
	}
	switch step.LoopKind {
	case ast.LoopWhile:
		for i := 0; ; i++ {
			if i >= max {
				return loopLimitExceeded(max)
			}
			ok, err := e.evalCondition(ctx, step.Condition)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			if _, eerr, _ := e.execSteps(ctx, rs, step.Body, 0); eerr != nil {
				return eerr
			}
		}
	case ast.LoopOver:
		items := splitList(rs.scope[step.Over])
		for i, item := range items {
			if i >= max {
				return loopLimitExceeded(max)
			}
			rs.scope["item"] = item
			if _, eerr, _ := e.execSteps(ctx, rs, step.Body, 0); eerr != nil {
				return eerr
			}
		}
		return nil
	default:
		return &Error{Kind: ErrStepFailed, Message: "unknown loop kind"}
	}
}

func (e *Engine) execIntentCall(ctx context.Context, rs *runState, step ast.Step) *Error {
	if rs.callStack[step.IntentName] {
		return recursiveIntent(step.IntentName)
	}
	if e.Registry == nil {
		return unknownIntent(step.IntentName)
	}
	def, ok := e.Registry.Lookup(step.IntentName)
	if !ok {
		return unknownIntent(step.IntentName)
	}
	child := rs.withCall(step.IntentName)
	for k, v := range step.Args {
		child.scope[k] = substitute(v, rs.scope)
	}
	for _, p := range def.Parameters {
		if _, ok := child.scope[p.Name]; !ok {
			child.scope[p.Name] = p.Default
		}
	}
	_, eerr, _ := e.execSteps(ctx, child, def.Steps, 0)
	return eerr
}

func (e *Engine) execAction(ctx context.Context, rs *runState, step ast.Step) *Error {
	if step.Command == nil {
		return &Error{Kind: ErrStepFailed, Message: "action step missing command"}
	}

	if isBuiltinIntent(step.Command.Kind) {
		sub, err := e.expandBuiltin(ctx, step.Command, rs.scope)
		if err != nil {
			return err
		}
		_, eerr, _ := e.execSteps(ctx, rs, sub, 0)
		return eerr
	}

	cmd := substituteCommand(step.Command, rs.scope)
	policy := e.Retry.normalized()
	var lastErr error

	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return cancelled("cancelled during action retry loop")
		default:
		}

		err := e.dispatchOnce(ctx, cmd)
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTransient(err) {
			return stepFailed(err)
		}
		if attempt+1 < policy.MaxAttempts {
			e.Snapshots.Invalidate()
			sleep(ctx, policy.delay(attempt))
			// A NotFound is only worth retrying against fresh page state.
			if _, rerr := e.rescan(ctx); rerr != nil {
				return stepFailed(rerr)
			}
		}
	}
	return stepFailed(lastErr)
}
