package resolver

import (
	"strings"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
)

// RequirementKind is the implicit element shape a command needs from its
// resolved target.
type RequirementKind int

const (
	ReqNone RequirementKind = iota
	ReqTypeable
	ReqCheckable
	ReqSelectable
)

var typeableTags = map[string]bool{"input": true, "textarea": true}
var typeableRoles = map[string]bool{"textbox": true, "searchbox": true, "combobox": true}

// RequirementFor returns the implicit requirement a command kind places on
// its resolved target, or ReqNone if any element will do.
func RequirementFor(kind ast.CommandKind) RequirementKind {
	switch kind {
	case ast.CmdType, ast.CmdClear:
		return ReqTypeable
	case ast.CmdCheck, ast.CmdUncheck:
		return ReqCheckable
	case ast.CmdSelect:
		return ReqSelectable
	default:
		return ReqNone
	}
}

func satisfiesRequirement(el snapshot.ElementEntry, req RequirementKind) bool {
	tag := strings.ToLower(el.Tag)
	role := strings.ToLower(el.Role)
	switch req {
	case ReqNone:
		return true
	case ReqTypeable:
		return typeableTags[tag] || typeableRoles[role]
	case ReqCheckable:
		return role == "checkbox" || role == "radio"
	case ReqSelectable:
		return tag == "select" || role == "listbox" || role == "combobox"
	default:
		return false
	}
}
