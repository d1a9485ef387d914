package registry

import (
	"fmt"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/parser"
)

// compile turns a validated intentSpec into the ast.IntentDefinition the
// engine actually executes. Flow-shaped specs are first lowered to a
// flat step list by inlining page transitions as nested branches.
func (s *intentSpec) compile() (*ast.IntentDefinition, error) {
	def := &ast.IntentDefinition{
		Name:        s.Name,
		Description: s.Description,
	}
	for _, p := range s.Parameters {
		def.Parameters = append(def.Parameters, ast.IntentParameter{
			Name: p.Name, Required: p.Required, Default: p.Default,
		})
	}
	if s.Triggers != nil {
		def.Trigger = &ast.IntentTrigger{
			URLPattern:      s.Triggers.URLPattern,
			RequiresPattern: s.Triggers.RequiresPattern,
		}
	}
	if len(s.OnError) > 0 {
		steps, err := compileSteps(s.OnError)
		if err != nil {
			return nil, err
		}
		def.OnError = steps
	}

	if s.Flow != nil && len(s.Flow.Pages) > 0 {
		steps, err := compileFlow(s.Flow)
		if err != nil {
			return nil, err
		}
		def.Steps = steps
		return def, nil
	}

	steps, err := compileSteps(s.Steps)
	if err != nil {
		return nil, err
	}
	def.Steps = steps
	return def, nil
}

func compileSteps(specs []stepSpec) ([]ast.Step, error) {
	out := make([]ast.Step, 0, len(specs))
	for i := range specs {
		step, err := compileStep(&specs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, nil
}

func compileStep(s *stepSpec) (ast.Step, error) {
	switch s.Kind {
	case "action":
		cmd, perr, _ := parser.Parse(s.Action)
		if perr != nil {
			return ast.Step{}, fmt.Errorf("compile action step: %w", perr)
		}
		return ast.Step{Kind: ast.StepAction, Command: cmd}, nil

	case "branch":
		cond, err := compileCondition(s.Condition)
		if err != nil {
			return ast.Step{}, err
		}
		then, err := compileSteps(s.Then)
		if err != nil {
			return ast.Step{}, err
		}
		els, err := compileSteps(s.Else)
		if err != nil {
			return ast.Step{}, err
		}
		return ast.Step{Kind: ast.StepBranch, Condition: &cond, Then: then, Else: els}, nil

	case "loop":
		body, err := compileSteps(s.Body)
		if err != nil {
			return ast.Step{}, err
		}
		max := s.Max
		if max <= 0 {
			max = ast.DefaultLoopMax
		}
		if s.While != nil {
			cond, err := compileCondition(s.While)
			if err != nil {
				return ast.Step{}, err
			}
			return ast.Step{Kind: ast.StepLoop, LoopKind: ast.LoopWhile, Condition: &cond, Max: max, Body: body}, nil
		}
		return ast.Step{Kind: ast.StepLoop, LoopKind: ast.LoopOver, Over: s.Over, Max: max, Body: body}, nil

	case "try":
		body, err := compileSteps(s.Try)
		if err != nil {
			return ast.Step{}, err
		}
		catch, err := compileSteps(s.Catch)
		if err != nil {
			return ast.Step{}, err
		}
		return ast.Step{Kind: ast.StepTry, Body: body, Catch: catch}, nil

	case "intent_call":
		return ast.Step{Kind: ast.StepIntentCall, IntentName: s.Call, Args: s.Args}, nil

	case "verify":
		cond, err := compileCondition(s.Condition)
		if err != nil {
			return ast.Step{}, err
		}
		return ast.Step{Kind: ast.StepVerify, Condition: &cond}, nil

	case "checkpoint":
		return ast.Step{Kind: ast.StepCheckpoint, Label: s.Label}, nil

	default:
		return ast.Step{}, fmt.Errorf("unknown step kind: %s", s.Kind)
	}
}

func compileCondition(c *conditionSpec) (ast.Condition, error) {
	switch c.Kind {
	case "pattern_exists":
		return ast.PatternExists(c.PatternName), nil
	case "pattern_gone":
		return ast.PatternGone(c.PatternName), nil
	case "url_contains":
		return ast.URLContains(c.URL), nil
	case "url_matches":
		return ast.URLMatches(c.URL), nil
	case "visible", "hidden":
		t, err := parser.ParseTarget(c.Target)
		if err != nil {
			return ast.Condition{}, fmt.Errorf("compile %s condition: %w", c.Kind, err)
		}
		if c.Kind == "visible" {
			return ast.Visible(t), nil
		}
		return ast.Hidden(t), nil
	case "text_contains":
		t, err := parser.ParseTarget(c.Target)
		if err != nil {
			return ast.Condition{}, fmt.Errorf("compile text_contains condition: %w", err)
		}
		return ast.TextContains(t, c.Text), nil
	case "count":
		return ast.Count(c.Selector, compileCountOp(c.Op), c.N), nil
	case "and":
		cs, err := compileConditions(c.Operands)
		if err != nil {
			return ast.Condition{}, err
		}
		return ast.And(cs...), nil
	case "or":
		cs, err := compileConditions(c.Operands)
		if err != nil {
			return ast.Condition{}, err
		}
		return ast.Or(cs...), nil
	case "not":
		inner, err := compileCondition(c.Operand)
		if err != nil {
			return ast.Condition{}, err
		}
		return ast.Not(inner), nil
	default:
		return ast.Condition{}, fmt.Errorf("unknown condition kind: %s", c.Kind)
	}
}

func compileConditions(specs []conditionSpec) ([]ast.Condition, error) {
	out := make([]ast.Condition, 0, len(specs))
	for i := range specs {
		c, err := compileCondition(&specs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func compileCountOp(op string) ast.CountOp {
	switch op {
	case "gt":
		return ast.CountGT
	case "ge":
		return ast.CountGE
	case "lt":
		return ast.CountLT
	case "le":
		return ast.CountLE
	default:
		return ast.CountEQ
	}
}

// compileFlow lowers a page/transition graph to a flat Step list: each page
// becomes its own steps followed by a Branch cascade over its outbound
// transitions (conditioned "next" entries checked in order; an unconditioned
// entry is an unconditional fallthrough). Cycles are rejected at validation
// time by nothing in validateFlow directly, but compileFlow itself bounds
// recursion by page visitation so a cyclic flow fails closed with an error
// instead of infinite-looping the compiler.
func compileFlow(f *flowSpec) ([]ast.Step, error) {
	byName := make(map[string]*pageSpec, len(f.Pages))
	for i := range f.Pages {
		byName[f.Pages[i].Name] = &f.Pages[i]
	}
	visiting := map[string]bool{}
	return compilePage(f.Start, byName, visiting)
}

func compilePage(name string, pages map[string]*pageSpec, visiting map[string]bool) ([]ast.Step, error) {
	if visiting[name] {
		return nil, fmt.Errorf("flow page %q revisited: cyclic flows must use an intent_call, not a direct transition loop", name)
	}
	page, ok := pages[name]
	if !ok {
		return nil, fmt.Errorf("flow references unknown page: %s", name)
	}
	visiting[name] = true
	defer delete(visiting, name)

	steps, err := compileSteps(page.Steps)
	if err != nil {
		return nil, err
	}

	if len(page.Next) == 0 {
		return steps, nil
	}
	tail, err := compileTransitions(page.Next, pages, visiting)
	if err != nil {
		return nil, err
	}
	return append(steps, tail...), nil
}

// compileTransitions walks "next" entries in order, building a cascading
// if/elseif/else of Branch steps; an unconditioned transition is the final
// else (and must be last).
func compileTransitions(next []transitionSpec, pages map[string]*pageSpec, visiting map[string]bool) ([]ast.Step, error) {
	t := next[0]
	rest := next[1:]

	if t.When == nil {
		return compilePage(t.Page, pages, visiting)
	}

	cond, err := compileCondition(t.When)
	if err != nil {
		return nil, err
	}
	then, err := compilePage(t.Page, pages, visiting)
	if err != nil {
		return nil, err
	}
	var els []ast.Step
	if len(rest) > 0 {
		els, err = compileTransitions(rest, pages, visiting)
		if err != nil {
			return nil, err
		}
	}
	return []ast.Step{{Kind: ast.StepBranch, Condition: &cond, Then: then, Else: els}}, nil
}
