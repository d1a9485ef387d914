package session

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/oilengine/internal/config"
	"github.com/nextlevelbuilder/oilengine/internal/engine"
	"github.com/nextlevelbuilder/oilengine/internal/registry"
	"github.com/nextlevelbuilder/oilengine/internal/resolver"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
	"github.com/nextlevelbuilder/oilengine/internal/transport/fakebackend"
	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

func newTestSession(t *testing.T) (*Session, *fakebackend.Backend) {
	t.Helper()
	fb := fakebackend.New().WithScan(protocol.ScanPayload{
		Generation: 1,
		Page:       protocol.PagePayload{URL: "https://example.com/", Title: "Example"},
		Elements: []protocol.ElementPayload{
			{ID: 1, Tag: "button", Role: "submit", Label: "Go", State: []string{"visible"}},
		},
	})
	eng := &engine.Engine{
		Backend:   fb,
		Resolver:  resolver.New(nil),
		Snapshots: snapshot.NewStore(),
		Retry:     engine.DefaultRetryPolicy(),
	}
	reg := registry.New(registry.Builtins())
	return New(eng, reg, config.Default()), fb
}

func TestExecuteObserveRendersElements(t *testing.T) {
	s, _ := newTestSession(t)
	out, err := s.Execute(context.Background(), "observe")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, `[1] button/submit "Go"`) {
		t.Fatalf("expected rendered element, got:\n%s", out)
	}
}

func TestExecuteCommentLineIsNoOp(t *testing.T) {
	s, fb := newTestSession(t)
	out, err := s.Execute(context.Background(), "# just a note")
	if err != nil || out != "" {
		t.Fatalf("expected silent no-op, got (%q, %v)", out, err)
	}
	if len(fb.Calls) != 0 {
		t.Fatalf("comment line must not dispatch anything, got %v", fb.Calls)
	}
}

func TestExecuteInvalidLineReturnsParseError(t *testing.T) {
	s, _ := newTestSession(t)
	if _, err := s.Execute(context.Background(), "clikc 5"); err == nil {
		t.Fatal("expected a parse error for an unknown command")
	}
}

func TestExecuteDefineRunUndefineLifecycle(t *testing.T) {
	s, _ := newTestSession(t)
	dir := t.TempDir()
	packPath := dir + "/pack.yaml"
	writeFile(t, packPath, `
name: say-hi
steps:
  - kind: checkpoint
    label: done
`)

	if _, err := s.Execute(context.Background(), "define say-hi --file "+packPath); err != nil {
		t.Fatalf("define: %v", err)
	}
	if _, ok := s.Registry.Lookup("say-hi"); !ok {
		t.Fatal("expected say-hi to be registered after define")
	}

	out, err := s.Execute(context.Background(), "run say-hi")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out == "" {
		t.Fatal("expected an observation after run")
	}

	if _, err := s.Execute(context.Background(), "undefine say-hi"); err != nil {
		t.Fatalf("undefine: %v", err)
	}
	if _, ok := s.Registry.Lookup("say-hi"); ok {
		t.Fatal("expected say-hi to be gone after undefine")
	}
}

func TestObservationReflectsPostActionState(t *testing.T) {
	before := protocol.ScanPayload{
		Generation: 1,
		Page:       protocol.PagePayload{URL: "https://example.com/", Title: "Example"},
		Elements: []protocol.ElementPayload{
			{ID: 1, Tag: "button", Text: "Go", State: []string{"visible"}},
		},
	}
	after := protocol.ScanPayload{
		Generation: 2,
		Page:       protocol.PagePayload{URL: "https://example.com/done", Title: "Done"},
		Elements: []protocol.ElementPayload{
			{ID: 2, Tag: "div", Text: "It worked", State: []string{"visible"}},
		},
	}

	fb := fakebackend.New()
	scans := 0
	fb.Handlers[protocol.ActionScan] = func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
		scans++
		payload := before
		if scans > 1 {
			payload = after
		}
		data, _ := json.Marshal(payload)
		return &protocol.ScannerResponse{Status: protocol.StatusOK, Data: data}, nil
	}

	eng := &engine.Engine{
		Backend:   fb,
		Resolver:  resolver.New(nil),
		Snapshots: snapshot.NewStore(),
		Retry:     engine.DefaultRetryPolicy(),
	}
	s := New(eng, registry.New(nil), config.Default())

	// The click resolves against the first scan; the rendered observation
	// must come from a fresh post-click scan, not the stale inventory.
	out, err := s.Execute(context.Background(), `click "Go"`)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, `[2] div "It worked"`) {
		t.Fatalf("expected post-action element in observation, got:\n%s", out)
	}
	if strings.Contains(out, `[1] button "Go"`) {
		t.Fatalf("observation rendered the pre-click snapshot:\n%s", out)
	}
	if !strings.Contains(out, `@ example.com/done "Done"`) {
		t.Fatalf("expected the post-action page header, got:\n%s", out)
	}
	if scans < 2 {
		t.Fatalf("expected a second scan after the mutating click, got %d", scans)
	}
}

func TestExecuteRunUnknownIntentFails(t *testing.T) {
	s, _ := newTestSession(t)
	if _, err := s.Execute(context.Background(), "run does-not-exist"); err == nil {
		t.Fatal("expected an error for an unknown intent")
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
