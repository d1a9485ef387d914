package registry

import (
	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

// Builtins returns the process-global, immutable built-in intent scope:
// named, composable scripts such as "login", "search", and "fill_form".
// These are distinct from the five single-verb OIL built-ins
// (Login/Search/Dismiss/AcceptCookies/ScrollUntil, expanded inline by
// internal/engine/builtins.go); the named "login" intent composes the
// same primitive steps but adds the retry, checkpoint, and verify control
// flow a named intent is for.
func Builtins() []*ast.IntentDefinition {
	return []*ast.IntentDefinition{loginIntent(), searchIntent(), fillFormIntent(), acceptCookiesIntent()}
}

func loginIntent() *ast.IntentDefinition {
	userField := ast.Step{
		Kind:  ast.StepTry,
		Body:  []ast.Step{typeStep(ast.Role("email"), "$username")},
		Catch: []ast.Step{typeStep(ast.Role("username"), "$username")},
	}
	passField := typeStep(ast.Role("password"), "$password")
	checkpoint := ast.Step{Kind: ast.StepCheckpoint, Label: "credentials-entered"}
	submit := ast.Step{Kind: ast.StepAction, Command: &ast.Command{Kind: ast.CmdSubmit}}
	verify := ast.Step{Kind: ast.StepVerify, Condition: loggedOutGoneCondition()}

	return &ast.IntentDefinition{
		Name:        "login",
		Description: "Fill credentials into the page's login form and submit.",
		Parameters: []ast.IntentParameter{
			{Name: "username", Required: true},
			{Name: "password", Required: true},
		},
		Trigger: &ast.IntentTrigger{RequiresPattern: "login_form"},
		Steps:   []ast.Step{userField, passField, checkpoint, submit, verify},
	}
}

func loggedOutGoneCondition() *ast.Condition {
	c := ast.PatternGone("login_form")
	return &c
}

func searchIntent() *ast.IntentDefinition {
	typeQuery := typeStep(ast.Role("search"), "$query")
	submit := ast.Step{Kind: ast.StepAction, Command: &ast.Command{Kind: ast.CmdSubmit}}
	wait := ast.Step{Kind: ast.StepAction, Command: &ast.Command{
		Kind: ast.CmdWait,
		Wait: ast.WaitCondition{Kind: ast.WaitNetworkIdle},
	}}
	return &ast.IntentDefinition{
		Name:        "search",
		Description: "Type a query into the page's search field, submit, and wait for results to settle.",
		Parameters:  []ast.IntentParameter{{Name: "query", Required: true}},
		Trigger:     &ast.IntentTrigger{RequiresPattern: "search_box"},
		Steps:       []ast.Step{typeQuery, submit, wait},
	}
}

// fillFormIntent fills whichever of a fixed set of well-known roles the
// page actually has, tolerating absent fields via Try/Catch rather than
// failing the whole intent (a generic "any form" intent cannot assume every
// field exists).
func fillFormIntent() *ast.IntentDefinition {
	tolerant := func(role ast.Target, param string) ast.Step {
		return ast.Step{Kind: ast.StepTry, Body: []ast.Step{typeStep(role, "$"+param)}}
	}
	return &ast.IntentDefinition{
		Name:        "fill_form",
		Description: "Fill any of the page's email/phone/url fields that are present, tolerating missing ones.",
		Parameters: []ast.IntentParameter{
			{Name: "email"}, {Name: "phone"}, {Name: "url"},
		},
		Steps: []ast.Step{
			tolerant(ast.Role("email"), "email"),
			tolerant(ast.Role("phone"), "phone"),
			tolerant(ast.Role("url"), "url"),
		},
	}
}

func acceptCookiesIntent() *ast.IntentDefinition {
	return &ast.IntentDefinition{
		Name:        "accept_cookies",
		Description: "Dismiss the page's cookie consent banner, if one is present.",
		Trigger:     &ast.IntentTrigger{RequiresPattern: "cookie_banner"},
		Steps: []ast.Step{
			{Kind: ast.StepAction, Command: &ast.Command{Kind: ast.CmdAcceptCookies}},
		},
	}
}

func typeStep(target ast.Target, text string) ast.Step {
	return ast.Step{Kind: ast.StepAction, Command: &ast.Command{Kind: ast.CmdType, Target: &target, Text: text}}
}
