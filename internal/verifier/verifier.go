// Package verifier is a pure evaluate(Condition, snapshot, context) -> bool
// over the closed Condition set.
package verifier

import (
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/resolver"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
)

// Context carries the collaborators evaluate needs for the Resolver
// delegation rule and for recording non-fatal warnings (regex fallback).
type Context struct {
	Resolver *resolver.Resolver
	Warn     func(msg string) // optional; called on non-fatal regex compile failure
}

func (c Context) warn(msg string) {
	if c.Warn != nil {
		c.Warn(msg)
	}
}

// Evaluate is the pure evaluate() function. It never mutates
// snap or ctx, and produces identical output for identical input.
func Evaluate(cond ast.Condition, snap *snapshot.Snapshot, ctx Context) (bool, *Error) {
	if snap == nil {
		return false, badCondition("no snapshot available")
	}

	switch cond.Kind {
	case ast.CondPatternExists:
		_, ok := snap.Pattern(cond.PatternName)
		return ok, nil

	case ast.CondPatternGone:
		_, ok := snap.Pattern(cond.PatternName)
		return !ok, nil

	case ast.CondURLContains:
		return strings.Contains(snap.Page.URL, cond.Pattern), nil

	case ast.CondURLMatches:
		re, err := regexp.Compile(cond.Pattern)
		if err != nil {
			ctx.warn("UrlMatches pattern failed to compile, falling back to substring: " + err.Error())
			return strings.Contains(snap.Page.URL, cond.Pattern), nil
		}
		return re.MatchString(snap.Page.URL), nil

	case ast.CondVisible:
		el, found := resolveForCondition(cond.Target, snap, ctx)
		if !found {
			return false, nil
		}
		return !el.HasState(snapshot.StateHidden), nil

	case ast.CondHidden:
		el, found := resolveForCondition(cond.Target, snap, ctx)
		if !found {
			return true, nil
		}
		return el.HasState(snapshot.StateHidden), nil

	case ast.CondTextContains:
		el, found := resolveForCondition(cond.Target, snap, ctx)
		if !found {
			return false, nil
		}
		return strings.Contains(strings.ToLower(el.Text), strings.ToLower(cond.Text)), nil

	case ast.CondCount:
		n := countMatching(snap, cond.Selector)
		return compareCount(cond.Op, n, cond.N), nil

	case ast.CondAnd:
		for _, c := range cond.Operands {
			ok, err := Evaluate(c, snap, ctx)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case ast.CondOr:
		for _, c := range cond.Operands {
			ok, err := Evaluate(c, snap, ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case ast.CondNot:
		if cond.Operand == nil {
			return false, badCondition("Not condition missing operand")
		}
		ok, err := Evaluate(*cond.Operand, snap, ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, badCondition("unknown condition kind")
	}
}

func resolveForCondition(target *ast.Target, snap *snapshot.Snapshot, ctx Context) (*snapshot.ElementEntry, bool) {
	if target == nil || ctx.Resolver == nil {
		return nil, false
	}
	id, rerr := ctx.Resolver.Resolve(*target, snap, resolver.ReqNone)
	if rerr != nil {
		return nil, false
	}
	el, ok := snap.ByID(id)
	return el, ok
}

func compareCount(op ast.CountOp, n, want int) bool {
	switch op {
	case ast.CountEQ:
		return n == want
	case ast.CountGT:
		return n > want
	case ast.CountGE:
		return n >= want
	case ast.CountLT:
		return n < want
	case ast.CountLE:
		return n <= want
	default:
		return false
	}
}
