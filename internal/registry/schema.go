package registry

import (
	"fmt"

	"github.com/nextlevelbuilder/oilengine/internal/parser"
)

// intentSpec is the YAML-equivalent schema for an Intent Definition:
// required name + (steps XOR flow); optional description,
// parameters, triggers, on_error.
type intentSpec struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Parameters  []paramSpec  `yaml:"parameters,omitempty"`
	Triggers    *triggerSpec `yaml:"triggers,omitempty"`
	Steps       []stepSpec   `yaml:"steps,omitempty"`
	Flow        *flowSpec    `yaml:"flow,omitempty"`
	OnError     []stepSpec   `yaml:"on_error,omitempty"`
}

type paramSpec struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required,omitempty"`
	Default  string `yaml:"default,omitempty"`
}

type triggerSpec struct {
	URLPattern      string `yaml:"url_pattern,omitempty"`
	RequiresPattern string `yaml:"requires_pattern,omitempty"`
}

// stepSpec is the tagged union of Step, written as YAML with an
// explicit "kind" discriminator so the validator can reject unknown step
// kinds outright.
type stepSpec struct {
	Kind string `yaml:"kind"`

	// kind: action, an OIL-equivalent command line, parsed with the same
	// parser a live session uses, so pack authors never learn a second
	// command grammar.
	Action string `yaml:"action,omitempty"`

	// kind: branch
	Condition *conditionSpec `yaml:"condition,omitempty"`
	Then      []stepSpec     `yaml:"then,omitempty"`
	Else      []stepSpec     `yaml:"else,omitempty"`

	// kind: loop
	While *conditionSpec `yaml:"while,omitempty"`
	Over  string         `yaml:"over,omitempty"`
	Max   int            `yaml:"max,omitempty"`
	Body  []stepSpec     `yaml:"body,omitempty"`

	// kind: try
	Try   []stepSpec `yaml:"try,omitempty"`
	Catch []stepSpec `yaml:"catch,omitempty"`

	// kind: intent_call
	Call string            `yaml:"call,omitempty"`
	Args map[string]string `yaml:"args,omitempty"`

	// kind: checkpoint
	Label string `yaml:"label,omitempty"`
}

// conditionSpec is the YAML shape of the Condition closed set.
type conditionSpec struct {
	Kind            string            `yaml:"kind"`
	PatternName     string            `yaml:"pattern,omitempty"`
	URL             string            `yaml:"url,omitempty"`
	Target          string            `yaml:"target,omitempty"`
	Text            string            `yaml:"text,omitempty"`
	Selector        string            `yaml:"selector,omitempty"`
	Op              string            `yaml:"op,omitempty"`
	N               int               `yaml:"n,omitempty"`
	Operands        []conditionSpec   `yaml:"operands,omitempty"`
	Operand         *conditionSpec    `yaml:"operand,omitempty"`
}

// flowSpec is the alternative page/transition encoding allowed instead
// of a flat step list: named pages, each with its own steps and a list of
// possible transitions to other pages, gated by a condition.
type flowSpec struct {
	Start string     `yaml:"start"`
	Pages []pageSpec `yaml:"pages"`
}

type pageSpec struct {
	Name  string           `yaml:"name"`
	Steps []stepSpec       `yaml:"steps,omitempty"`
	Next  []transitionSpec `yaml:"next,omitempty"`
}

type transitionSpec struct {
	When *conditionSpec `yaml:"when,omitempty"`
	Page string         `yaml:"page"`
}

// ValidationError reports a pack file that failed schema validation:
// invalid definitions are rejected without partial registration.
type ValidationError struct {
	Name   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("intent %q: %s", e.Name, e.Reason)
}

// validate checks required fields, the steps/flow exclusivity rule, unique
// page names, and valid transition targets.
func (s *intentSpec) validate() error {
	if s.Name == "" {
		return &ValidationError{Name: "(unnamed)", Reason: "missing required field 'name'"}
	}
	hasSteps := len(s.Steps) > 0
	hasFlow := s.Flow != nil && len(s.Flow.Pages) > 0
	if !hasSteps && !hasFlow {
		return &ValidationError{Name: s.Name, Reason: "must set exactly one of 'steps' or 'flow'"}
	}
	if hasSteps && hasFlow {
		return &ValidationError{Name: s.Name, Reason: "'steps' and 'flow' are mutually exclusive"}
	}
	for _, p := range s.Parameters {
		if p.Name == "" {
			return &ValidationError{Name: s.Name, Reason: "parameter with empty name"}
		}
	}
	if hasSteps {
		if err := validateSteps(s.Name, s.Steps); err != nil {
			return err
		}
	}
	if hasFlow {
		if err := validateFlow(s.Name, s.Flow); err != nil {
			return err
		}
	}
	if err := validateSteps(s.Name, s.OnError); err != nil {
		return err
	}
	return nil
}

func validateSteps(intentName string, steps []stepSpec) error {
	for i := range steps {
		if err := validateStep(intentName, &steps[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(intentName string, s *stepSpec) error {
	switch s.Kind {
	case "action":
		if s.Action == "" {
			return &ValidationError{Name: intentName, Reason: "action step missing 'action' line"}
		}
		if _, perr, isComment := parser.Parse(s.Action); perr != nil || isComment {
			return &ValidationError{Name: intentName, Reason: "action step has invalid OIL line: " + s.Action}
		}
	case "branch":
		if s.Condition == nil {
			return &ValidationError{Name: intentName, Reason: "branch step missing 'condition'"}
		}
		if err := validateCondition(intentName, s.Condition); err != nil {
			return err
		}
		if err := validateSteps(intentName, s.Then); err != nil {
			return err
		}
		if err := validateSteps(intentName, s.Else); err != nil {
			return err
		}
	case "loop":
		if s.While == nil && s.Over == "" {
			return &ValidationError{Name: intentName, Reason: "loop step requires 'while' or 'over'"}
		}
		if s.While != nil {
			if err := validateCondition(intentName, s.While); err != nil {
				return err
			}
		}
		if err := validateSteps(intentName, s.Body); err != nil {
			return err
		}
	case "try":
		if err := validateSteps(intentName, s.Try); err != nil {
			return err
		}
		if err := validateSteps(intentName, s.Catch); err != nil {
			return err
		}
	case "intent_call":
		if s.Call == "" {
			return &ValidationError{Name: intentName, Reason: "intent_call step missing 'call'"}
		}
	case "verify":
		if s.Condition == nil {
			return &ValidationError{Name: intentName, Reason: "verify step missing 'condition'"}
		}
		if err := validateCondition(intentName, s.Condition); err != nil {
			return err
		}
	case "checkpoint":
		if s.Label == "" {
			return &ValidationError{Name: intentName, Reason: "checkpoint step missing 'label'"}
		}
	default:
		return &ValidationError{Name: intentName, Reason: "unknown step kind: " + s.Kind}
	}
	return nil
}

func validateCondition(intentName string, c *conditionSpec) error {
	switch c.Kind {
	case "pattern_exists", "pattern_gone":
		if c.PatternName == "" {
			return &ValidationError{Name: intentName, Reason: c.Kind + " condition missing 'pattern'"}
		}
	case "url_contains", "url_matches":
		if c.URL == "" {
			return &ValidationError{Name: intentName, Reason: c.Kind + " condition missing 'url'"}
		}
	case "visible", "hidden":
		if c.Target == "" {
			return &ValidationError{Name: intentName, Reason: c.Kind + " condition missing 'target'"}
		}
		if _, perr := parser.ParseTarget(c.Target); perr != nil {
			return &ValidationError{Name: intentName, Reason: c.Kind + " condition has invalid target: " + c.Target}
		}
	case "text_contains":
		if c.Target == "" {
			return &ValidationError{Name: intentName, Reason: "text_contains condition missing 'target'"}
		}
		if _, perr := parser.ParseTarget(c.Target); perr != nil {
			return &ValidationError{Name: intentName, Reason: "text_contains condition has invalid target: " + c.Target}
		}
	case "count":
		if c.Selector == "" {
			return &ValidationError{Name: intentName, Reason: "count condition missing 'selector'"}
		}
		switch c.Op {
		case "eq", "gt", "ge", "lt", "le":
		default:
			return &ValidationError{Name: intentName, Reason: "count condition has invalid op: " + c.Op}
		}
	case "and", "or":
		if len(c.Operands) == 0 {
			return &ValidationError{Name: intentName, Reason: c.Kind + " condition requires 'operands'"}
		}
		for i := range c.Operands {
			if err := validateCondition(intentName, &c.Operands[i]); err != nil {
				return err
			}
		}
	case "not":
		if c.Operand == nil {
			return &ValidationError{Name: intentName, Reason: "not condition requires 'operand'"}
		}
		if err := validateCondition(intentName, c.Operand); err != nil {
			return err
		}
	default:
		return &ValidationError{Name: intentName, Reason: "unknown condition kind: " + c.Kind}
	}
	return nil
}

// validateFlow enforces unique page names and that every transition targets
// a page that exists.
func validateFlow(intentName string, f *flowSpec) error {
	if f.Start == "" {
		return &ValidationError{Name: intentName, Reason: "flow missing 'start' page"}
	}
	seen := make(map[string]bool, len(f.Pages))
	for _, p := range f.Pages {
		if p.Name == "" {
			return &ValidationError{Name: intentName, Reason: "flow page missing 'name'"}
		}
		if seen[p.Name] {
			return &ValidationError{Name: intentName, Reason: "duplicate flow page name: " + p.Name}
		}
		seen[p.Name] = true
		if err := validateSteps(intentName, p.Steps); err != nil {
			return err
		}
	}
	if !seen[f.Start] {
		return &ValidationError{Name: intentName, Reason: "flow 'start' references unknown page: " + f.Start}
	}
	for _, p := range f.Pages {
		for _, t := range p.Next {
			if !seen[t.Page] {
				return &ValidationError{Name: intentName, Reason: "flow page '" + p.Name + "' transitions to unknown page: " + t.Page}
			}
			if t.When != nil {
				if err := validateCondition(intentName, t.When); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
