package tracker

import (
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
)

// Status is the closed availability set.
type Status int

const (
	Ready Status = iota
	NavigateRequired
	MissingPattern
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "Ready"
	case NavigateRequired:
		return "NavigateRequired"
	case MissingPattern:
		return "MissingPattern"
	default:
		return "Unavailable"
	}
}

// Icon returns the status marker glyph.
func (s Status) Icon() string {
	switch s {
	case Ready:
		return "✓"
	case NavigateRequired:
		return "→"
	case MissingPattern:
		return "?"
	default:
		return "✗"
	}
}

// Availability is one "Available Intents" row.
type Availability struct {
	Name   string
	Status Status
	Reason string
}

// ComputeAvailability evaluates a single intent's trigger against snap.
func ComputeAvailability(def *ast.IntentDefinition, snap *snapshot.Snapshot) Availability {
	a := Availability{Name: def.Name, Status: Ready}
	if snap == nil {
		return Availability{Name: def.Name, Status: Unavailable, Reason: "no snapshot available"}
	}
	if def.Trigger == nil {
		return a
	}
	if def.Trigger.URLPattern != "" && !urlMatches(def.Trigger.URLPattern, snap.Page.URL) {
		return Availability{Name: def.Name, Status: NavigateRequired,
			Reason: "page url does not match '" + def.Trigger.URLPattern + "'"}
	}
	if def.Trigger.RequiresPattern != "" {
		if _, ok := snap.Pattern(def.Trigger.RequiresPattern); !ok {
			return Availability{Name: def.Name, Status: MissingPattern,
				Reason: "pattern '" + def.Trigger.RequiresPattern + "' not present"}
		}
	}
	return a
}

// ComputeAll evaluates every registered intent, preserving caller-supplied
// order.
func ComputeAll(defs []*ast.IntentDefinition, snap *snapshot.Snapshot) []Availability {
	out := make([]Availability, 0, len(defs))
	for _, def := range defs {
		out = append(out, ComputeAvailability(def, snap))
	}
	return out
}

func urlMatches(pattern, url string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return strings.Contains(url, pattern)
	}
	return re.MatchString(url)
}
