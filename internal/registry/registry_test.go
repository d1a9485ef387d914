package registry

import (
	"errors"
	"strings"
	"testing"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

func TestLookupPrecedence(t *testing.T) {
	builtin := &ast.IntentDefinition{Name: "thing", Steps: []ast.Step{{Kind: ast.StepCheckpoint, Label: "b"}}}
	r := New([]*ast.IntentDefinition{builtin})

	def, ok := r.Lookup("thing")
	if !ok || def != builtin {
		t.Fatalf("expected builtin definition, got %+v, %v", def, ok)
	}

	packDef, err := (&intentSpec{Name: "thing", Steps: []stepSpec{{Kind: "checkpoint", Label: "p"}}}).compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, err := r.LoadPack("pack-a.yaml", []*intentSpec{{Name: "thing", Steps: []stepSpec{{Kind: "checkpoint", Label: "p"}}}}, false); err != nil {
		t.Fatalf("LoadPack: %v", err)
	}
	def, ok = r.Lookup("thing")
	if !ok || def.Steps[0].Label != "p" {
		t.Fatalf("expected pack definition to shadow builtin, got %+v", def)
	}
	_ = packDef

	r.DefineSession(&ast.IntentDefinition{Name: "thing", Steps: []ast.Step{{Kind: ast.StepCheckpoint, Label: "s"}}})
	def, ok = r.Lookup("thing")
	if !ok || def.Steps[0].Label != "s" {
		t.Fatalf("expected session definition to shadow pack, got %+v", def)
	}

	if !r.UndefineSession("thing") {
		t.Fatal("expected UndefineSession to report a removal")
	}
	def, ok = r.Lookup("thing")
	if !ok || def.Steps[0].Label != "p" {
		t.Fatalf("expected pack definition to resurface after undefine, got %+v", def)
	}
}

func TestLoadPackConflictRequiresForce(t *testing.T) {
	r := New(nil)
	spec := []*intentSpec{{Name: "dup", Steps: []stepSpec{{Kind: "checkpoint", Label: "x"}}}}
	if _, err := r.LoadPack("a.yaml", spec, false); err != nil {
		t.Fatalf("first load: %v", err)
	}
	_, err := r.LoadPack("b.yaml", spec, false)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if _, err := r.LoadPack("b.yaml", spec, true); err != nil {
		t.Fatalf("force load should bypass conflict: %v", err)
	}
}

func TestLoadPackAtomicOnInvalidDefinition(t *testing.T) {
	r := New(nil)
	specs := []*intentSpec{
		{Name: "good", Steps: []stepSpec{{Kind: "checkpoint", Label: "ok"}}},
		{Name: "bad", Steps: []stepSpec{{Kind: "unknown-kind"}}},
	}
	if _, err := r.LoadPack("pack.yaml", specs, false); err == nil {
		t.Fatal("expected validation failure")
	}
	if _, ok := r.Lookup("good"); ok {
		t.Fatal("expected no partial registration: 'good' must not be registered")
	}
}

func TestValidateRejectsMissingName(t *testing.T) {
	s := &intentSpec{Steps: []stepSpec{{Kind: "checkpoint", Label: "x"}}}
	if err := s.validate(); err == nil {
		t.Fatal("expected missing-name validation error")
	}
}

func TestValidateRejectsStepsAndFlowTogether(t *testing.T) {
	s := &intentSpec{
		Name:  "both",
		Steps: []stepSpec{{Kind: "checkpoint", Label: "x"}},
		Flow:  &flowSpec{Start: "p1", Pages: []pageSpec{{Name: "p1"}}},
	}
	if err := s.validate(); err == nil {
		t.Fatal("expected steps/flow exclusivity validation error")
	}
}

func TestValidateRejectsUnknownStepKind(t *testing.T) {
	s := &intentSpec{Name: "x", Steps: []stepSpec{{Kind: "teleport"}}}
	err := s.validate()
	if err == nil || !strings.Contains(err.Error(), "unknown step kind") {
		t.Fatalf("expected unknown step kind error, got %v", err)
	}
}

func TestValidateRejectsUnknownConditionKind(t *testing.T) {
	s := &intentSpec{
		Name:  "x",
		Steps: []stepSpec{{Kind: "verify", Condition: &conditionSpec{Kind: "guess"}}},
	}
	err := s.validate()
	if err == nil || !strings.Contains(err.Error(), "unknown condition kind") {
		t.Fatalf("expected unknown condition kind error, got %v", err)
	}
}

func TestCompileFlowLinearTransition(t *testing.T) {
	s := &intentSpec{
		Name: "flow-intent",
		Flow: &flowSpec{
			Start: "start",
			Pages: []pageSpec{
				{
					Name:  "start",
					Steps: []stepSpec{{Kind: "checkpoint", Label: "entered"}},
					Next: []transitionSpec{
						{When: &conditionSpec{Kind: "pattern_exists", PatternName: "ok"}, Page: "done"},
						{Page: "done"},
					},
				},
				{Name: "done", Steps: []stepSpec{{Kind: "checkpoint", Label: "finished"}}},
			},
		},
	}
	if err := s.validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	def, err := s.compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(def.Steps) != 2 {
		t.Fatalf("expected checkpoint + branch cascade, got %d steps", len(def.Steps))
	}
	if def.Steps[1].Kind != ast.StepBranch {
		t.Fatalf("expected second step to be a branch cascade, got %v", def.Steps[1].Kind)
	}
}

func TestCompileFlowRejectsCycle(t *testing.T) {
	f := &flowSpec{
		Start: "a",
		Pages: []pageSpec{
			{Name: "a", Next: []transitionSpec{{Page: "b"}}},
			{Name: "b", Next: []transitionSpec{{Page: "a"}}},
		},
	}
	if _, err := compileFlow(f); err == nil || !strings.Contains(err.Error(), "revisited") {
		t.Fatalf("expected cyclic flow rejection, got %v", err)
	}
}

func TestDecodePackFileMultiDocument(t *testing.T) {
	data := []byte(`
name: one
steps:
  - kind: checkpoint
    label: a
---
name: two
steps:
  - kind: checkpoint
    label: b
`)
	specs, err := DecodePackFile(data)
	if err != nil {
		t.Fatalf("DecodePackFile: %v", err)
	}
	if len(specs) != 2 || specs[0].Name != "one" || specs[1].Name != "two" {
		t.Fatalf("expected two decoded specs, got %+v", specs)
	}
}

func TestBuiltinsRegisterAndResolve(t *testing.T) {
	r := New(Builtins())
	for _, name := range []string{"login", "search", "fill_form", "accept_cookies"} {
		if _, ok := r.Lookup(name); !ok {
			t.Errorf("expected built-in intent %q to be registered", name)
		}
	}
	all := r.All()
	if len(all) != len(Builtins()) {
		t.Fatalf("expected All() to return every built-in, got %d", len(all))
	}
}

func TestUnloadPackRemovesOnlyItsOwnIntents(t *testing.T) {
	r := New(nil)
	if _, err := r.LoadPack("a.yaml", []*intentSpec{{Name: "fromA", Steps: []stepSpec{{Kind: "checkpoint", Label: "x"}}}}, false); err != nil {
		t.Fatalf("LoadPack a: %v", err)
	}
	if _, err := r.LoadPack("b.yaml", []*intentSpec{{Name: "fromB", Steps: []stepSpec{{Kind: "checkpoint", Label: "x"}}}}, false); err != nil {
		t.Fatalf("LoadPack b: %v", err)
	}
	n := r.UnloadPack("a.yaml")
	if n != 1 {
		t.Fatalf("expected 1 intent removed, got %d", n)
	}
	if _, ok := r.Lookup("fromA"); ok {
		t.Fatal("fromA should have been unloaded")
	}
	if _, ok := r.Lookup("fromB"); !ok {
		t.Fatal("fromB should still be registered")
	}
}
