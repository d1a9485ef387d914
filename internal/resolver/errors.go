package resolver

import (
	"fmt"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

// ErrorKind is the closed resolution error taxonomy.
type ErrorKind int

const (
	ErrNotFound ErrorKind = iota
	ErrAmbiguous
	ErrStaleSnapshot
	ErrUnsatisfiedRequirement
	ErrInvalidSelector
	ErrRelationNotResolvable
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "NotFound"
	case ErrAmbiguous:
		return "Ambiguous"
	case ErrStaleSnapshot:
		return "StaleSnapshot"
	case ErrUnsatisfiedRequirement:
		return "UnsatisfiedRequirement"
	case ErrInvalidSelector:
		return "InvalidSelector"
	case ErrRelationNotResolvable:
		return "RelationNotResolvable"
	default:
		return "Unknown"
	}
}

// ResolveError is a structured resolution failure. Candidates is populated
// for Ambiguous, ordered by the same preference rules that would have broken
// the tie automatically (state preference, then document order) so a caller
// (e.g. an interactive CLI) can present them in a sensible default order.
type ResolveError struct {
	Kind       ErrorKind
	Target     ast.Target
	Candidates []uint
	ElementID  uint // set for UnsatisfiedRequirement: the resolved-but-nonconforming element
	Message    string
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newErr(kind ErrorKind, target ast.Target, msg string) *ResolveError {
	return &ResolveError{Kind: kind, Target: target, Message: msg}
}
