package registry

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

// ExportYAML renders a currently-registered intent (any scope) back to its
// pack-file form, a convenience for round-tripping a
// session-defined or built-in intent out to a file an `export` command's
// --file option points at.
func (r *Registry) ExportYAML(name string) ([]byte, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("export: no such intent: %s", name)
	}
	return yaml.Marshal(decompile(def))
}

func decompile(def *ast.IntentDefinition) *intentSpec {
	s := &intentSpec{Name: def.Name, Description: def.Description}
	for _, p := range def.Parameters {
		s.Parameters = append(s.Parameters, paramSpec{Name: p.Name, Required: p.Required, Default: p.Default})
	}
	if def.Trigger != nil {
		s.Triggers = &triggerSpec{URLPattern: def.Trigger.URLPattern, RequiresPattern: def.Trigger.RequiresPattern}
	}
	s.Steps = decompileSteps(def.Steps)
	s.OnError = decompileSteps(def.OnError)
	return s
}

func decompileSteps(steps []ast.Step) []stepSpec {
	out := make([]stepSpec, 0, len(steps))
	for _, st := range steps {
		out = append(out, decompileStep(st))
	}
	return out
}

func decompileStep(st ast.Step) stepSpec {
	switch st.Kind {
	case ast.StepAction:
		return stepSpec{Kind: "action", Action: actionLine(st.Command)}
	case ast.StepBranch:
		return stepSpec{
			Kind: "branch", Condition: decompileCondition(st.Condition),
			Then: decompileSteps(st.Then), Else: decompileSteps(st.Else),
		}
	case ast.StepLoop:
		s := stepSpec{Kind: "loop", Over: st.Over, Max: st.Max, Body: decompileSteps(st.Body)}
		if st.LoopKind == ast.LoopWhile {
			s.While = decompileCondition(st.Condition)
		}
		return s
	case ast.StepTry:
		return stepSpec{Kind: "try", Try: decompileSteps(st.Body), Catch: decompileSteps(st.Catch)}
	case ast.StepIntentCall:
		return stepSpec{Kind: "intent_call", Call: st.IntentName, Args: st.Args}
	case ast.StepVerify:
		return stepSpec{Kind: "verify", Condition: decompileCondition(st.Condition)}
	case ast.StepCheckpoint:
		return stepSpec{Kind: "checkpoint", Label: st.Label}
	default:
		return stepSpec{Kind: "unknown"}
	}
}

// actionLine recovers the OIL line an action step dispatches. Steps compiled
// from a pack's "action" field retain the original text verbatim
// (ast.Command.Raw, round-trip guarantee); steps built in Go
// directly (the registry's own built-in intents) never had surface text, so
// this falls back to a best-effort reconstruction covering the handful of
// command kinds those built-ins actually use.
func actionLine(cmd *ast.Command) string {
	if cmd == nil {
		return ""
	}
	if cmd.Raw != "" {
		return cmd.Raw
	}
	switch cmd.Kind {
	case ast.CmdType:
		if cmd.Target != nil {
			return fmt.Sprintf("type %s %q", cmd.Target.String(), cmd.Text)
		}
	case ast.CmdClick:
		if cmd.Target != nil {
			return "click " + cmd.Target.String()
		}
	case ast.CmdSubmit:
		return "submit"
	case ast.CmdAcceptCookies:
		return "accept cookies"
	case ast.CmdWait:
		if cmd.Wait.Kind == ast.WaitNetworkIdle {
			return "wait networkidle"
		}
	}
	return fmt.Sprintf("# unrenderable built-in step (kind=%d)", cmd.Kind)
}

func decompileCondition(c *ast.Condition) *conditionSpec {
	if c == nil {
		return nil
	}
	switch c.Kind {
	case ast.CondPatternExists:
		return &conditionSpec{Kind: "pattern_exists", PatternName: c.PatternName}
	case ast.CondPatternGone:
		return &conditionSpec{Kind: "pattern_gone", PatternName: c.PatternName}
	case ast.CondURLContains:
		return &conditionSpec{Kind: "url_contains", URL: c.Pattern}
	case ast.CondURLMatches:
		return &conditionSpec{Kind: "url_matches", URL: c.Pattern}
	case ast.CondVisible:
		return &conditionSpec{Kind: "visible", Target: targetString(c.Target)}
	case ast.CondHidden:
		return &conditionSpec{Kind: "hidden", Target: targetString(c.Target)}
	case ast.CondTextContains:
		return &conditionSpec{Kind: "text_contains", Target: targetString(c.Target), Text: c.Text}
	case ast.CondCount:
		return &conditionSpec{Kind: "count", Selector: c.Selector, Op: decompileCountOp(c.Op), N: c.N}
	case ast.CondAnd:
		return &conditionSpec{Kind: "and", Operands: decompileConditions(c.Operands)}
	case ast.CondOr:
		return &conditionSpec{Kind: "or", Operands: decompileConditions(c.Operands)}
	case ast.CondNot:
		return &conditionSpec{Kind: "not", Operand: decompileCondition(c.Operand)}
	default:
		return &conditionSpec{Kind: "unknown"}
	}
}

func decompileConditions(cs []ast.Condition) []conditionSpec {
	out := make([]conditionSpec, 0, len(cs))
	for i := range cs {
		out = append(out, *decompileCondition(&cs[i]))
	}
	return out
}

func targetString(t *ast.Target) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func decompileCountOp(op ast.CountOp) string {
	switch op {
	case ast.CountGT:
		return "gt"
	case ast.CountGE:
		return "ge"
	case ast.CountLT:
		return "lt"
	case ast.CountLE:
		return "le"
	default:
		return "eq"
	}
}
