package engine

import (
	"strings"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

// substitute expands every "$name" token in s against scope, leaving
// unmatched tokens verbatim (step 1: "$name substitutions into
// string arguments of the embedded Command").
func substitute(s string, scope map[string]string) string {
	if !strings.Contains(s, "$") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '$' {
			b.WriteByte(s[i])
			continue
		}
		j := i + 1
		for j < len(s) && isIdentByte(s[j]) {
			j++
		}
		if j == i+1 {
			b.WriteByte(s[i])
			continue
		}
		name := s[i+1 : j]
		if v, ok := scope[name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s[i:j])
		}
		i = j - 1
	}
	return b.String()
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func substituteTarget(t *ast.Target, scope map[string]string) *ast.Target {
	if t == nil {
		return nil
	}
	out := *t
	out.Value = substitute(out.Value, scope)
	out.Inner = substituteTarget(out.Inner, scope)
	out.Arg = substituteTarget(out.Arg, scope)
	return &out
}
