package verifier

import (
	"testing"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/resolver"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
)

func fixtureSnap() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Page: snapshot.Page{URL: "https://shop.example.com/cart", Title: "Cart"},
		Patterns: []snapshot.Pattern{
			{Name: "cookie_banner", ElementIDs: []uint{9}},
		},
		Elements: []snapshot.ElementEntry{
			{ID: 1, Tag: "div", Text: "Your cart is empty", State: map[snapshot.ElementState]bool{snapshot.StateVisible: true}},
			{ID: 2, Tag: "div", Text: "Checkout", Attrs: map[string]string{"class": "row highlight"},
				State: map[snapshot.ElementState]bool{snapshot.StateHidden: true}},
			{ID: 3, Tag: "div", Attrs: map[string]string{"class": "row"}},
			{ID: 4, Tag: "div", Attrs: map[string]string{"class": "row"}},
		},
	}
}

func TestEvaluate_PatternExists(t *testing.T) {
	ok, err := Evaluate(ast.PatternExists("cookie_banner"), fixtureSnap(), Context{})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v %v", ok, err)
	}
	ok, err = Evaluate(ast.PatternExists("login_form"), fixtureSnap(), Context{})
	if err != nil || ok {
		t.Fatalf("expected false, got %v %v", ok, err)
	}
}

func TestEvaluate_URLContains(t *testing.T) {
	ok, err := Evaluate(ast.URLContains("/cart"), fixtureSnap(), Context{})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v %v", ok, err)
	}
}

func TestEvaluate_URLMatchesFallsBackOnBadRegex(t *testing.T) {
	var warned string
	ctx := Context{Warn: func(msg string) { warned = msg }}
	ok, err := Evaluate(ast.URLMatches("[unterminated(cart"), fixtureSnap(), ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Errorf("expected substring fallback to find no literal match for the malformed pattern")
	}
	if warned == "" {
		t.Errorf("expected a warning on regex compile failure")
	}
}

func TestEvaluate_URLMatchesValidRegex(t *testing.T) {
	ok, err := Evaluate(ast.URLMatches(`^https://shop\.example\.com/.*`), fixtureSnap(), Context{})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v %v", ok, err)
	}
}

func TestEvaluate_VisibleHidden(t *testing.T) {
	r := resolver.New(nil)
	ctx := Context{Resolver: r}
	ok, err := Evaluate(ast.Visible(ast.ID(1)), fixtureSnap(), ctx)
	if err != nil || !ok {
		t.Fatalf("expected element 1 visible, got %v %v", ok, err)
	}
	ok, err = Evaluate(ast.Hidden(ast.ID(2)), fixtureSnap(), ctx)
	if err != nil || !ok {
		t.Fatalf("expected element 2 hidden, got %v %v", ok, err)
	}
}

func TestEvaluate_Count(t *testing.T) {
	ok, err := Evaluate(ast.Count(".row", ast.CountGE, 2), fixtureSnap(), Context{})
	if err != nil || !ok {
		t.Fatalf("expected >= 2 rows, got %v %v", ok, err)
	}
	ok, err = Evaluate(ast.Count(".row", ast.CountEQ, 99), fixtureSnap(), Context{})
	if err != nil || ok {
		t.Fatalf("expected false for impossible count, got %v %v", ok, err)
	}
}

func TestEvaluate_AndOrNotShortCircuit(t *testing.T) {
	c := ast.And(ast.URLContains("/cart"), ast.Not(ast.PatternExists("login_form")))
	ok, err := Evaluate(c, fixtureSnap(), Context{})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v %v", ok, err)
	}

	c2 := ast.Or(ast.PatternExists("login_form"), ast.URLContains("/cart"))
	ok, err = Evaluate(c2, fixtureSnap(), Context{})
	if err != nil || !ok {
		t.Fatalf("expected true, got %v %v", ok, err)
	}
}

func TestEvaluate_IsPure(t *testing.T) {
	c := ast.URLContains("/cart")
	snap := fixtureSnap()
	a, _ := Evaluate(c, snap, Context{})
	b, _ := Evaluate(c, snap, Context{})
	if a != b {
		t.Errorf("expected deterministic result, got %v then %v", a, b)
	}
}
