package parser

import (
	"strconv"
	"strings"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

var relationWords = map[string]bool{
	"near": true, "inside": true, "after": true, "before": true, "contains": true,
}

// parseTargetStream consumes one Target (possibly a relational chain) from
// toks starting at *pos, advancing *pos past everything consumed. It
// implements the target disambiguation rules in order, plus the
// relational-modifier grammar ("target near target", chainable).
func parseTargetStream(line string, toks []token, pos *int) (ast.Target, *ParseError) {
	t, err := parseSingleTarget(line, toks, pos)
	if err != nil {
		return ast.Target{}, err
	}

	for *pos < len(toks) && toks[*pos].kind == tokWord && relationWords[strings.ToLower(toks[*pos].value)] {
		rel := strings.ToLower(toks[*pos].value)
		*pos++
		if *pos >= len(toks) {
			return ast.Target{}, newErr(ErrMissingArgument, line, toks[*pos-1].offset, "relational modifier '"+rel+"' requires a target argument")
		}
		arg, aerr := parseSingleTarget(line, toks, pos)
		if aerr != nil {
			return ast.Target{}, aerr
		}
		switch rel {
		case "near":
			t = ast.Near(t, arg)
		case "inside":
			t = ast.Inside(t, arg)
		case "after":
			t = ast.After(t, arg)
		case "before":
			t = ast.Before(t, arg)
		case "contains":
			t = ast.Contains(t, arg)
		}
	}
	return t, nil
}

// parseSingleTarget applies the disambiguation rules to exactly
// one token (never a relational chain; that's parseTargetStream's job).
func parseSingleTarget(line string, toks []token, pos *int) (ast.Target, *ParseError) {
	if *pos >= len(toks) {
		return ast.Target{}, newErr(ErrMissingArgument, line, len(line)+1, "expected a target")
	}
	tok := toks[*pos]

	switch tok.kind {
	case tokSelector:
		*pos++
		return parseSelectorToken(line, tok)

	case tokQuoted:
		*pos++
		return ast.Text(tok.value), nil

	case tokWord:
		// A pure integer (optionally negative) is an Id; negative is an error.
		if isIntegerLiteral(tok.value) {
			*pos++
			n, _ := strconv.Atoi(tok.value)
			if n < 0 {
				return ast.Target{}, newErr(ErrInvalidTarget, line, tok.offset, "numeric target id cannot be negative")
			}
			return ast.ID(n), nil
		}
		// A reserved role word (case-insensitive) is a Role target.
		lower := strings.ToLower(tok.value)
		if ast.ReservedRoles[lower] {
			*pos++
			return ast.Role(lower), nil
		}
		// Any remaining unquoted word is treated as Text; see DESIGN.md for
		// why bare words are accepted rather than rejected.
		*pos++
		return ast.Text(tok.value), nil

	default:
		return ast.Target{}, newErr(ErrUnexpectedToken, line, tok.offset, "unexpected token where a target was expected: "+tok.raw)
	}
}

func parseSelectorToken(line string, tok token) (ast.Target, *ParseError) {
	raw := tok.value
	lower := strings.ToLower(raw)
	var kwLen int
	var isCSS bool
	switch {
	case strings.HasPrefix(lower, "css("):
		kwLen, isCSS = len("css("), true
	case strings.HasPrefix(lower, "xpath("):
		kwLen, isCSS = len("xpath("), false
	default:
		return ast.Target{}, newErr(ErrInvalidSelector, line, tok.offset, "malformed selector: "+raw)
	}
	if !strings.HasSuffix(raw, ")") || len(raw) < kwLen+1 {
		return ast.Target{}, newErr(ErrInvalidSelector, line, tok.offset, "unbalanced selector: "+raw)
	}
	inner := raw[kwLen : len(raw)-1]
	if isCSS {
		return ast.CSS(inner), nil
	}
	return ast.XPath(inner), nil
}

// ParseTarget parses a single standalone Target expression (e.g. a YAML
// intent pack's condition operand), reusing the same disambiguation rules
// and relational grammar as a full command line. Used by the
// registry loader to build Verify/Branch conditions from pack files
// without inventing a second target grammar.
func ParseTarget(s string) (ast.Target, *ParseError) {
	toks, err := tokenize(s)
	if err != nil {
		return ast.Target{}, err
	}
	if len(toks) == 0 {
		return ast.Target{}, newErr(ErrMissingArgument, s, 0, "expected a target")
	}
	pos := 0
	t, terr := parseTargetStream(s, toks, &pos)
	if terr != nil {
		return ast.Target{}, terr
	}
	if pos != len(toks) {
		return ast.Target{}, newErr(ErrUnexpectedToken, s, toks[pos].offset, "unexpected trailing input after target: "+toks[pos].raw)
	}
	return t, nil
}

func isIntegerLiteral(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[0] == '-' {
		i = 1
	}
	if i >= len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}
