package parser

import (
	"strings"
	"testing"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

func mustParse(t *testing.T, line string) *ast.Command {
	t.Helper()
	cmd, perr, isComment := Parse(line)
	if perr != nil {
		t.Fatalf("Parse(%q) returned error: %s", line, perr.Error())
	}
	if isComment {
		t.Fatalf("Parse(%q) unexpectedly treated as comment", line)
	}
	if cmd == nil {
		t.Fatalf("Parse(%q) returned nil command with no error", line)
	}
	return cmd
}

func TestParse_CommentAndBlankLines(t *testing.T) {
	for _, line := range []string{"", "   ", "# a full line comment", "   # indented comment"} {
		cmd, perr, isComment := Parse(line)
		if !isComment || cmd != nil || perr != nil {
			t.Errorf("Parse(%q) = (%v, %v, %v), want (nil, nil, true)", line, cmd, perr, isComment)
		}
	}
}

func TestParse_GoTo(t *testing.T) {
	cmd := mustParse(t, "goto https://example.com/")
	if cmd.Kind != ast.CmdGoTo || cmd.URL != "https://example.com/" {
		t.Errorf("got %+v", cmd)
	}

	cmd = mustParse(t, "go to 'https://例え.jp/'")
	if cmd.Kind != ast.CmdGoTo || cmd.URL != "https://例え.jp/" {
		t.Errorf("go to alias with quoted unicode url failed: %+v", cmd)
	}

	cmd = mustParse(t, "navigate https://x.test --timeout=5000")
	if cmd.Timeout.Milliseconds() != 5000 {
		t.Errorf("expected timeout 5000ms, got %v", cmd.Timeout)
	}
}

func TestParse_ClickWithOptions(t *testing.T) {
	cmd := mustParse(t, `CliCk "Sign In" --force`)
	if cmd.Kind != ast.CmdClick {
		t.Fatalf("expected CmdClick, got %v", cmd.Kind)
	}
	if cmd.Target == nil || cmd.Target.Kind != ast.TargetText || cmd.Target.Value != "Sign In" {
		t.Errorf("expected Text(\"Sign In\") target, got %+v", cmd.Target)
	}
	if !cmd.Click.Force {
		t.Errorf("expected --force to be set")
	}
}

func TestParse_ClickModifiersAndButton(t *testing.T) {
	cmd := mustParse(t, "click 42 --ctrl --shift --button=right --double")
	if cmd.Target.Kind != ast.TargetID || cmd.Target.ID != 42 {
		t.Errorf("expected Id(42), got %+v", cmd.Target)
	}
	if !cmd.Click.Modifiers[ast.ModCtrl] || !cmd.Click.Modifiers[ast.ModShift] {
		t.Errorf("expected ctrl+shift modifiers, got %+v", cmd.Click.Modifiers)
	}
	if cmd.Click.Button != ast.ButtonRight || !cmd.Click.Double {
		t.Errorf("expected right button + double click, got %+v", cmd.Click)
	}
}

func TestParse_ReservedRoleTarget(t *testing.T) {
	cmd := mustParse(t, "click email")
	if cmd.Target.Kind != ast.TargetRole || cmd.Target.Value != "email" {
		t.Errorf("expected Role(email), got %+v", cmd.Target)
	}
}

func TestParse_SelectorTargets(t *testing.T) {
	cmd := mustParse(t, "click css(div.btn[data-id='x'])")
	if cmd.Target.Kind != ast.TargetCSS || cmd.Target.Value != "div.btn[data-id='x']" {
		t.Errorf("expected Css target, got %+v", cmd.Target)
	}

	cmd = mustParse(t, "click xpath(//button[@id='go'])")
	if cmd.Target.Kind != ast.TargetXPath || cmd.Target.Value != "//button[@id='go']" {
		t.Errorf("expected XPath target, got %+v", cmd.Target)
	}
}

func TestParse_RelationalTargetChain(t *testing.T) {
	cmd := mustParse(t, `click "Buy" near "Price" inside css(#cart)`)
	if cmd.Target.Kind != ast.TargetInside {
		t.Fatalf("expected outer Inside, got %v", cmd.Target.Kind)
	}
	if cmd.Target.Arg.Kind != ast.TargetCSS || cmd.Target.Arg.Value != "#cart" {
		t.Errorf("expected inside container css(#cart), got %+v", cmd.Target.Arg)
	}
	near := cmd.Target.Inner
	if near.Kind != ast.TargetNear {
		t.Fatalf("expected inner Near, got %v", near.Kind)
	}
	if near.Inner.Value != "Buy" || near.Arg.Value != "Price" {
		t.Errorf("unexpected near operands: %+v", near)
	}
}

func TestParse_TypeCommand(t *testing.T) {
	cmd := mustParse(t, `type username "jdoe" --append`)
	if cmd.Kind != ast.CmdType {
		t.Fatalf("expected CmdType, got %v", cmd.Kind)
	}
	if cmd.Target.Kind != ast.TargetRole || cmd.Target.Value != "username" {
		t.Errorf("expected Role(username) target, got %+v", cmd.Target)
	}
	if cmd.Text != "jdoe" || !cmd.Type.Append {
		t.Errorf("got text=%q append=%v", cmd.Text, cmd.Type.Append)
	}
}

func TestParse_ScrollDefaults(t *testing.T) {
	cmd := mustParse(t, "scroll")
	if cmd.ScrollDirection != ast.ScrollDown {
		t.Errorf("expected default direction down, got %v", cmd.ScrollDirection)
	}
	if cmd.ScrollAmount.Kind != ast.AmountPage {
		t.Errorf("expected default amount page, got %v", cmd.ScrollAmount.Kind)
	}
}

func TestParse_ScrollPixels(t *testing.T) {
	cmd := mustParse(t, "scroll --direction up --pixels 300")
	if cmd.ScrollDirection != ast.ScrollUp {
		t.Errorf("expected up, got %v", cmd.ScrollDirection)
	}
	if cmd.ScrollAmount.Kind != ast.AmountPixels || cmd.ScrollAmount.Pixels != 300 {
		t.Errorf("expected 300px, got %+v", cmd.ScrollAmount)
	}
}

func TestParse_WaitVariants(t *testing.T) {
	cmd := mustParse(t, "wait load")
	if cmd.Wait.Kind != ast.WaitLoad {
		t.Errorf("expected WaitLoad, got %v", cmd.Wait.Kind)
	}

	cmd = mustParse(t, `wait visible "Dashboard" --timeout=2000`)
	if cmd.Wait.Kind != ast.WaitVisible || cmd.Wait.Target.Value != "Dashboard" {
		t.Errorf("got %+v", cmd.Wait)
	}
	if cmd.Timeout.Milliseconds() != 2000 {
		t.Errorf("expected 2000ms timeout, got %v", cmd.Timeout)
	}

	cmd = mustParse(t, "wait itemscount css(.row) 5")
	if cmd.Wait.Kind != ast.WaitItemsCount || cmd.Wait.Selector != "css(.row)" || cmd.Wait.Count != 5 {
		t.Errorf("got %+v", cmd.Wait)
	}
}

func TestParse_Extract(t *testing.T) {
	cmd := mustParse(t, "extract links")
	if cmd.ExtractSource.Kind != ast.ExtractLinks {
		t.Errorf("got %+v", cmd.ExtractSource)
	}

	cmd = mustParse(t, "extract css .price")
	if cmd.ExtractSource.Kind != ast.ExtractCSS || cmd.ExtractSource.Selector != ".price" {
		t.Errorf("got %+v", cmd.ExtractSource)
	}
}

func TestParse_Subcommands(t *testing.T) {
	cmd := mustParse(t, "cookies set name=session value=abc123")
	if cmd.Kind != ast.CmdCookies || cmd.Subcommand.Action != "set" {
		t.Fatalf("got %+v", cmd)
	}
	if cmd.Subcommand.Args["name"] != "session" || cmd.Subcommand.Args["value"] != "abc123" {
		t.Errorf("got args %+v", cmd.Subcommand.Args)
	}

	cmd = mustParse(t, "tab new")
	if cmd.Kind != ast.CmdTab || cmd.Subcommand.Action != "new" {
		t.Errorf("got %+v", cmd)
	}
}

func TestParse_BuiltinIntents(t *testing.T) {
	cmd := mustParse(t, "login --username bob --password hunter2")
	if cmd.Kind != ast.CmdLogin || cmd.Intent.Params["username"] != "bob" {
		t.Errorf("got %+v", cmd)
	}

	cmd = mustParse(t, "accept cookies")
	if cmd.Kind != ast.CmdAcceptCookies {
		t.Errorf("expected accept_cookies, got %v", cmd.Kind)
	}

	cmd = mustParse(t, "scroll until \"end of results\"")
	if cmd.Kind != ast.CmdScrollUntil || cmd.Intent.Params["condition"] != "end of results" {
		t.Errorf("got %+v", cmd)
	}
}

func TestParse_RegistryOps(t *testing.T) {
	cmd := mustParse(t, "define checkout-flow --file checkout.yaml")
	if cmd.Kind != ast.CmdDefine || cmd.Intent.Name != "checkout-flow" || cmd.Intent.Params["file"] != "checkout.yaml" {
		t.Errorf("got %+v", cmd)
	}

	cmd = mustParse(t, "run checkout-flow")
	if cmd.Kind != ast.CmdRun || cmd.Intent.Name != "checkout-flow" {
		t.Errorf("got %+v", cmd)
	}
}

func TestParse_UnknownCommandSuggestsAlternatives(t *testing.T) {
	_, perr, isComment := Parse("clikc 5")
	if isComment {
		t.Fatalf("unexpected comment classification")
	}
	if perr == nil {
		t.Fatalf("expected a parse error for unknown command")
	}
	if perr.Kind != ErrUnknownCommand {
		t.Errorf("expected ErrUnknownCommand, got %v", perr.Kind)
	}
	found := false
	for _, s := range perr.Suggestions {
		if s == "click" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'click' among suggestions, got %v", perr.Suggestions)
	}
}

func TestParse_UnknownOptionRejected(t *testing.T) {
	_, perr, _ := Parse("click 1 --bogus")
	if perr == nil || perr.Kind != ErrInvalidOption {
		t.Fatalf("expected ErrInvalidOption, got %v", perr)
	}
}

func TestParse_MissingOptionValue(t *testing.T) {
	_, perr, _ := Parse("goto --timeout")
	if perr == nil {
		t.Fatalf("expected an error")
	}
	if perr.Kind != ErrMissingArgument && perr.Kind != ErrInvalidOption {
		t.Errorf("got unexpected error kind %v: %s", perr.Kind, perr.Error())
	}
}

func TestParse_UnterminatedString(t *testing.T) {
	_, perr, _ := Parse(`click "unterminated`)
	if perr == nil || perr.Kind != ErrUnterminatedString {
		t.Fatalf("expected ErrUnterminatedString, got %v", perr)
	}
}

func TestParse_RawRoundTrip(t *testing.T) {
	line := `click "Sign In" --force`
	cmd := mustParse(t, line)
	if cmd.Raw != line {
		t.Errorf("expected Raw=%q, got %q", line, cmd.Raw)
	}
}

func TestParse_InlineCommentStripped(t *testing.T) {
	cmd := mustParse(t, `click 1 # press the first button`)
	if cmd.Target.Kind != ast.TargetID || cmd.Target.ID != 1 {
		t.Errorf("got %+v", cmd.Target)
	}

	cmd = mustParse(t, `click "a # b"`) // '#' inside quotes is not a comment
	if cmd.Target.Value != "a # b" {
		t.Errorf("expected quoted '#' preserved, got %q", cmd.Target.Value)
	}
}

func TestParse_NegativeNumberTargetRejected(t *testing.T) {
	_, perr, _ := Parse("click -5")
	if perr == nil || perr.Kind != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget for negative id, got %v", perr)
	}
}

func TestLevenshteinSuggestions(t *testing.T) {
	s := suggestCommands("clikc")
	if len(s) == 0 {
		t.Fatalf("expected at least one suggestion for 'clikc'")
	}
	if !strings.Contains(strings.Join(s, ","), "click") {
		t.Errorf("expected 'click' among %v", s)
	}
}
