package engine

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/backend"
	"github.com/nextlevelbuilder/oilengine/internal/resolver"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
	"github.com/nextlevelbuilder/oilengine/internal/transport/fakebackend"
	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

// memCheckpoints is a last-write-wins in-memory CheckpointStore.
type memCheckpoints struct {
	last map[string]Checkpoint
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{last: map[string]Checkpoint{}}
}

func (m *memCheckpoints) Save(ctx context.Context, cp Checkpoint) error {
	m.last[cp.RunID] = cp
	return nil
}

func (m *memCheckpoints) Last(ctx context.Context, runID string) (Checkpoint, bool, error) {
	cp, ok := m.last[runID]
	return cp, ok, nil
}

type lookupMap map[string]*ast.IntentDefinition

func (m lookupMap) Lookup(name string) (*ast.IntentDefinition, bool) {
	def, ok := m[name]
	return def, ok
}

func checkoutPayload() protocol.ScanPayload {
	return protocol.ScanPayload{
		Generation: 1,
		Page:       protocol.PagePayload{URL: "https://shop.example.com/checkout", Title: "Checkout"},
		Elements: []protocol.ElementPayload{
			{ID: 1, Tag: "input", Role: "email", Label: "Email", State: []string{"visible"}},
			{ID: 2, Tag: "input", Role: "textbox", Label: "Card", State: []string{"visible"}},
			{ID: 3, Tag: "button", Role: "submit", Text: "Place Order", State: []string{"visible", "primary"}},
			{ID: 4, Tag: "button", Text: "Next", State: []string{"visible"}},
		},
	}
}

func newTestEngine(t *testing.T, fb *fakebackend.Backend) *Engine {
	t.Helper()
	return &Engine{
		Backend:     fb,
		Resolver:    resolver.New(nil),
		Snapshots:   snapshot.NewStore(),
		Checkpoints: newMemCheckpoints(),
		Retry:       RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2, Jitter: 0},
	}
}

func countCalls(calls []string, prefix string) int {
	n := 0
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func targetStep(kind ast.CommandKind, target ast.Target, text string) ast.Step {
	t := target
	return ast.Step{Kind: ast.StepAction, Command: &ast.Command{Kind: kind, Target: &t, Text: text}}
}

func checkoutIntent() *ast.IntentDefinition {
	return &ast.IntentDefinition{
		Name: "checkout",
		Steps: []ast.Step{
			targetStep(ast.CmdType, ast.Role("email"), "u@x.io"),
			targetStep(ast.CmdType, ast.Text("Card"), "4111"),
			{Kind: ast.StepCheckpoint, Label: "paid"},
			targetStep(ast.CmdClick, ast.Text("Place Order"), ""),
		},
	}
}

func TestRunIntent_PartialSuccessWithCheckpoint(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	fb.Handlers[protocol.ActionClick] = func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
		return nil, backend.Timeout("click")
	}
	eng := newTestEngine(t, fb)

	runID, res, err := eng.Start(context.Background(), checkoutIntent(), nil)
	if err == nil {
		t.Fatal("expected the click step's timeouts to fail the run")
	}
	if res.Kind != ResultPartialSuccess {
		t.Fatalf("expected PartialSuccess, got %v (%+v)", res.Kind, res)
	}
	if res.Completed != 3 || res.Total != 4 {
		t.Errorf("expected 3/4 completed, got %d/%d", res.Completed, res.Total)
	}
	if res.LastCheckpoint != "paid" {
		t.Errorf("expected last checkpoint 'paid', got %q", res.LastCheckpoint)
	}
	if n := countCalls(fb.Calls, "scanner:click"); n != 3 {
		t.Errorf("expected 3 click attempts (retry policy), got %d", n)
	}
	if runID == "" {
		t.Error("expected a non-empty run id")
	}
}

func TestResume_ReexecutesOnlyStepsAfterCheckpoint(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	fb.Handlers[protocol.ActionClick] = func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
		return nil, backend.Timeout("click")
	}
	eng := newTestEngine(t, fb)
	def := checkoutIntent()

	runID, _, _ := eng.Start(context.Background(), def, nil)

	// The flake clears; resume from "paid" must re-run only the click.
	delete(fb.Handlers, protocol.ActionClick)
	fb.Calls = nil

	res, err := eng.Resume(context.Background(), runID, def)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if res.Kind != ResultSuccess {
		t.Fatalf("expected Success after resume, got %v (%+v)", res.Kind, res)
	}
	if res.Completed > res.Total {
		t.Errorf("completed %d exceeds total %d", res.Completed, res.Total)
	}
	if n := countCalls(fb.Calls, "scanner:type"); n != 0 {
		t.Errorf("resume must not re-run the type steps before the checkpoint, saw %d", n)
	}
	if n := countCalls(fb.Calls, "scanner:click"); n != 1 {
		t.Errorf("expected exactly 1 click after resume, got %d", n)
	}
}

func TestLoop_BoundEnforced(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	eng := newTestEngine(t, fb)

	cond := ast.Visible(ast.Text("Next"))
	def := &ast.IntentDefinition{
		Name: "paginate",
		Steps: []ast.Step{{
			Kind:      ast.StepLoop,
			LoopKind:  ast.LoopWhile,
			Condition: &cond,
			Max:       5,
			Body:      []ast.Step{targetStep(ast.CmdClick, ast.Text("Next"), "")},
		}},
	}

	_, res, err := eng.Start(context.Background(), def, nil)
	if err == nil {
		t.Fatal("expected LoopLimitExceeded")
	}
	var eerr *Error
	if !asEngineError(err, &eerr) || eerr.Kind != ErrLoopLimitExceeded {
		t.Fatalf("expected ErrLoopLimitExceeded, got %v", err)
	}
	if res.Kind != ResultFailed {
		t.Errorf("expected Failed, got %v", res.Kind)
	}
	if n := countCalls(fb.Calls, "scanner:click"); n != 5 {
		t.Errorf("expected exactly 5 click dispatches, got %d", n)
	}
}

func asEngineError(err error, target **Error) bool {
	e, ok := err.(*Error)
	if ok {
		*target = e
	}
	return ok
}

func TestIntentCall_RecursionDetected(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	eng := newTestEngine(t, fb)

	a := &ast.IntentDefinition{Name: "a", Steps: []ast.Step{{Kind: ast.StepIntentCall, IntentName: "b"}}}
	b := &ast.IntentDefinition{Name: "b", Steps: []ast.Step{{Kind: ast.StepIntentCall, IntentName: "a"}}}
	eng.Registry = lookupMap{"a": a, "b": b}

	_, _, err := eng.Start(context.Background(), a, nil)
	var eerr *Error
	if !asEngineError(err, &eerr) || eerr.Kind != ErrRecursiveIntent {
		t.Fatalf("expected ErrRecursiveIntent, got %v", err)
	}
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	attempts := 0
	fb.Handlers[protocol.ActionClick] = func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
		attempts++
		if attempts < 2 {
			return nil, backend.Timeout("click")
		}
		return &protocol.ScannerResponse{Status: protocol.StatusOK}, nil
	}
	eng := newTestEngine(t, fb)

	def := &ast.IntentDefinition{Name: "one-click",
		Steps: []ast.Step{targetStep(ast.CmdClick, ast.Text("Place Order"), "")}}
	_, res, err := eng.Start(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("expected second attempt to succeed: %v", err)
	}
	if res.Kind != ResultSuccess {
		t.Fatalf("expected Success, got %v", res.Kind)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestRetry_PermanentErrorNotRetried(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	attempts := 0
	fb.Handlers[protocol.ActionClick] = func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
		attempts++
		return nil, backend.NotSupported("click", "transport gap")
	}
	eng := newTestEngine(t, fb)

	def := &ast.IntentDefinition{Name: "one-click",
		Steps: []ast.Step{targetStep(ast.CmdClick, ast.Text("Place Order"), "")}}
	_, _, err := eng.Start(context.Background(), def, nil)
	if err == nil {
		t.Fatal("expected the permanent error to abort the step")
	}
	if attempts != 1 {
		t.Errorf("permanent errors must not retry, saw %d attempts", attempts)
	}
}

func TestOnErrorHandlerRunsOnFailure(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	eng := newTestEngine(t, fb)

	failing := ast.PatternExists("never_present")
	def := &ast.IntentDefinition{
		Name: "guarded",
		Steps: []ast.Step{
			targetStep(ast.CmdClick, ast.Text("Place Order"), ""),
			{Kind: ast.StepVerify, Condition: &failing},
		},
		OnError: []ast.Step{targetStep(ast.CmdClick, ast.Text("Next"), "")},
	}

	_, res, err := eng.Start(context.Background(), def, nil)
	if err == nil {
		t.Fatal("expected the verify step to fail the run")
	}
	if res.Kind != ResultPartialSuccess || res.Completed != 1 {
		t.Fatalf("expected PartialSuccess with 1 completed step, got %+v", res)
	}
	if n := countCalls(fb.Calls, "scanner:click"); n != 2 {
		t.Errorf("expected the on_error click to run after the main click, got %d clicks", n)
	}
}

func TestTry_CatchInterceptsFailure(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	eng := newTestEngine(t, fb)

	def := &ast.IntentDefinition{
		Name: "tolerant",
		Steps: []ast.Step{{
			Kind:  ast.StepTry,
			Body:  []ast.Step{targetStep(ast.CmdClick, ast.Text("No Such Button"), "")},
			Catch: []ast.Step{targetStep(ast.CmdClick, ast.Text("Next"), "")},
		}},
	}

	_, res, err := eng.Start(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("expected catch to intercept the failure: %v", err)
	}
	if res.Kind != ResultSuccess {
		t.Fatalf("expected Success, got %v", res.Kind)
	}
	if n := countCalls(fb.Calls, "scanner:click"); n != 1 {
		t.Errorf("expected exactly the catch click to dispatch, got %d", n)
	}
}

func TestBranch_TakesThenOrElse(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	eng := newTestEngine(t, fb)

	cond := ast.URLContains("/checkout")
	def := &ast.IntentDefinition{
		Name: "branched",
		Steps: []ast.Step{{
			Kind:      ast.StepBranch,
			Condition: &cond,
			Then:      []ast.Step{targetStep(ast.CmdClick, ast.Text("Place Order"), "")},
			Else:      []ast.Step{targetStep(ast.CmdClick, ast.Text("Next"), "")},
		}},
	}

	_, res, err := eng.Start(context.Background(), def, nil)
	if err != nil || res.Kind != ResultSuccess {
		t.Fatalf("branch run failed: %v %+v", err, res)
	}
	if n := countCalls(fb.Calls, "scanner:click"); n != 1 {
		t.Errorf("expected one click from the taken branch, got %d", n)
	}
}

func TestParameterSubstitution(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	var typed string
	fb.Handlers[protocol.ActionType] = func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
		typed, _ = req.Fields["text"].(string)
		return &protocol.ScannerResponse{Status: protocol.StatusOK}, nil
	}
	eng := newTestEngine(t, fb)

	def := &ast.IntentDefinition{
		Name:       "typed",
		Parameters: []ast.IntentParameter{{Name: "who", Default: "nobody"}},
		Steps:      []ast.Step{targetStep(ast.CmdType, ast.Role("email"), "hello $who")},
	}
	if _, _, err := eng.Start(context.Background(), def, map[string]string{"who": "ada"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if typed != "hello ada" {
		t.Errorf("expected substituted text, got %q", typed)
	}
}

// withScanSequence scripts the fake scanner to serve each payload in order,
// repeating the last one once the sequence is exhausted.
func withScanSequence(fb *fakebackend.Backend, payloads ...protocol.ScanPayload) *int {
	scans := new(int)
	fb.Handlers[protocol.ActionScan] = func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
		i := *scans
		if i >= len(payloads) {
			i = len(payloads) - 1
		}
		*scans++
		data, _ := json.Marshal(payloads[i])
		return &protocol.ScannerResponse{Status: protocol.StatusOK, Data: data}, nil
	}
	return scans
}

func TestMutatingActionInvalidatesAndRescans(t *testing.T) {
	after := protocol.ScanPayload{
		Generation: 2,
		Page:       protocol.PagePayload{URL: "https://shop.example.com/confirmed", Title: "Confirmed"},
		Elements: []protocol.ElementPayload{
			{ID: 11, Tag: "div", Text: "Order placed", State: []string{"visible"}},
		},
	}
	fb := fakebackend.New()
	scans := withScanSequence(fb, checkoutPayload(), after)
	eng := newTestEngine(t, fb)

	def := &ast.IntentDefinition{Name: "one-click",
		Steps: []ast.Step{targetStep(ast.CmdClick, ast.Text("Place Order"), "")}}
	if _, _, err := eng.Start(context.Background(), def, nil); err != nil {
		t.Fatalf("run: %v", err)
	}

	// The click invalidated the snapshot, so the next read must be a fresh
	// scan reflecting post-action state, not the pre-click inventory.
	snap, err := eng.CurrentOrRescan(context.Background())
	if err != nil {
		t.Fatalf("CurrentOrRescan: %v", err)
	}
	if snap.Generation != 2 {
		t.Fatalf("expected the post-action snapshot (generation 2), got %d", snap.Generation)
	}
	if _, ok := snap.ByID(11); !ok {
		t.Errorf("expected post-action element 11 in the fresh snapshot")
	}
	if _, ok := snap.ByID(3); ok {
		t.Errorf("pre-click element 3 must not survive the re-scan")
	}
	if *scans < 2 {
		t.Errorf("expected a second scan after the mutating click, got %d", *scans)
	}
}

func TestConditionEvaluationSeesPostMutationState(t *testing.T) {
	after := protocol.ScanPayload{
		Generation: 2,
		Page:       protocol.PagePayload{URL: "https://shop.example.com/checkout", Title: "Checkout"},
		Elements: []protocol.ElementPayload{
			{ID: 20, Tag: "button", Text: "Place Order", State: []string{"visible", "primary"}},
		},
	}
	fb := fakebackend.New()
	withScanSequence(fb, checkoutPayload(), after)
	eng := newTestEngine(t, fb)

	// The first scan has a visible "Next"; the post-click scan does not, so
	// a loop gated on it must stop after one iteration instead of reading
	// the stale inventory five times.
	cond := ast.Visible(ast.Text("Next"))
	def := &ast.IntentDefinition{
		Name: "paginate",
		Steps: []ast.Step{{
			Kind:      ast.StepLoop,
			LoopKind:  ast.LoopWhile,
			Condition: &cond,
			Max:       5,
			Body:      []ast.Step{targetStep(ast.CmdClick, ast.Text("Next"), "")},
		}},
	}
	_, res, err := eng.Start(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("expected the loop to terminate once Next disappears: %v", err)
	}
	if res.Kind != ResultSuccess {
		t.Fatalf("expected Success, got %v", res.Kind)
	}
	if n := countCalls(fb.Calls, "scanner:click"); n != 1 {
		t.Errorf("expected exactly 1 click before the condition saw fresh state, got %d", n)
	}
}

func TestSelectorDelegateQueriesScanner(t *testing.T) {
	fb := fakebackend.New()
	fb.Handlers[protocol.ActionExecute] = func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
		if req.Fields["resolve"] != "css" || req.Fields["selector"] != "div.cart" {
			t.Errorf("unexpected delegate request fields: %+v", req.Fields)
		}
		return &protocol.ScannerResponse{Status: protocol.StatusOK, Data: []byte(`{"id": 9, "found": true}`)}, nil
	}

	d := NewSelectorDelegate(fb, Timeouts{})
	id, found, err := d.ResolveCSS("div.cart")
	if err != nil {
		t.Fatalf("ResolveCSS: %v", err)
	}
	if !found || id != 9 {
		t.Errorf("got (%d, %v), want (9, true)", id, found)
	}
}

func TestCancellationStopsBeforeNextStep(t *testing.T) {
	fb := fakebackend.New().WithScan(checkoutPayload())
	eng := newTestEngine(t, fb)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := eng.Start(ctx, checkoutIntent(), nil)
	var eerr *Error
	if !asEngineError(err, &eerr) || eerr.Kind != ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
