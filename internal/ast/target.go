// Package ast defines the Command AST and Target types that every pipeline
// stage (parser, resolver, translator) passes along the line.
package ast

import "fmt"

// TargetKind tags the closed set of semantic reference variants.
type TargetKind int

const (
	TargetID TargetKind = iota
	TargetText
	TargetRole
	TargetCSS
	TargetXPath
	TargetNear
	TargetInside
	TargetAfter
	TargetBefore
	TargetContains
)

func (k TargetKind) String() string {
	switch k {
	case TargetID:
		return "id"
	case TargetText:
		return "text"
	case TargetRole:
		return "role"
	case TargetCSS:
		return "css"
	case TargetXPath:
		return "xpath"
	case TargetNear:
		return "near"
	case TargetInside:
		return "inside"
	case TargetAfter:
		return "after"
	case TargetBefore:
		return "before"
	case TargetContains:
		return "contains"
	default:
		return "unknown"
	}
}

// ReservedRoles is the closed set of role words the parser and resolver
// recognize without quoting.
var ReservedRoles = map[string]bool{
	"email": true, "password": true, "search": true, "submit": true,
	"username": true, "phone": true, "url": true,
}

// Target is a semantic reference to an element. Relational
// variants (Near/Inside/After/Before/Contains) wrap exactly one inner Target
// plus one relation argument Target, so cycles are syntactically impossible:
// each constructor introduces a fresh sub-target.
type Target struct {
	Kind TargetKind

	// TargetID
	ID int

	// TargetText / TargetRole / TargetCSS / TargetXPath
	Value string

	// Relational: Inner is the target being qualified, Arg is the relation's
	// other operand (anchor/container/ref/needle).
	Inner *Target
	Arg   *Target
}

func ID(n int) Target              { return Target{Kind: TargetID, ID: n} }
func Text(s string) Target         { return Target{Kind: TargetText, Value: s} }
func Role(s string) Target         { return Target{Kind: TargetRole, Value: s} }
func CSS(s string) Target          { return Target{Kind: TargetCSS, Value: s} }
func XPath(s string) Target        { return Target{Kind: TargetXPath, Value: s} }

func Near(inner, anchor Target) Target     { return Target{Kind: TargetNear, Inner: &inner, Arg: &anchor} }
func Inside(inner, container Target) Target { return Target{Kind: TargetInside, Inner: &inner, Arg: &container} }
func After(inner, ref Target) Target       { return Target{Kind: TargetAfter, Inner: &inner, Arg: &ref} }
func Before(inner, ref Target) Target      { return Target{Kind: TargetBefore, Inner: &inner, Arg: &ref} }
func Contains(inner, needle Target) Target { return Target{Kind: TargetContains, Inner: &inner, Arg: &needle} }

// String renders t back into its OIL target expression (parser
// round-trip property: parse(Parse(t.String())) == t for any non-relational
// t, and for relational chains in the left-nested shape the parser builds,
// where no Arg is itself relational).
func (t Target) String() string {
	switch t.Kind {
	case TargetID:
		return fmt.Sprintf("%d", t.ID)
	case TargetText:
		return fmt.Sprintf("%q", t.Value)
	case TargetRole:
		return t.Value
	case TargetCSS:
		return "css(" + t.Value + ")"
	case TargetXPath:
		return "xpath(" + t.Value + ")"
	default:
		if t.IsRelational() && t.Inner != nil && t.Arg != nil {
			return fmt.Sprintf("%s %s %s", t.Inner.String(), t.RelationWord(), t.Arg.String())
		}
		return "unknown()"
	}
}

// IsRelational reports whether t wraps an inner target + relation argument.
func (t Target) IsRelational() bool {
	switch t.Kind {
	case TargetNear, TargetInside, TargetAfter, TargetBefore, TargetContains:
		return true
	default:
		return false
	}
}

// RelationWord returns the OIL keyword for a relational target's kind, or ""
// if t isn't relational.
func (t Target) RelationWord() string {
	switch t.Kind {
	case TargetNear:
		return "near"
	case TargetInside:
		return "inside"
	case TargetAfter:
		return "after"
	case TargetBefore:
		return "before"
	case TargetContains:
		return "contains"
	default:
		return ""
	}
}
