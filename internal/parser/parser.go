// Package parser turns OIL text into a typed Command AST, with
// forgiveness (aliases, quote variants, option syntaxes) and structured
// error reports.
package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

// Parse turns one line of OIL into a Command. Comment-only and blank lines
// return (nil, nil, true) via isComment. Parsing is pure: no I/O, no shared
// state, and a failing parse never returns a partial Command.
func Parse(line string) (cmd *ast.Command, err *ParseError, isComment bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return nil, nil, true
	}

	stripped := stripComment(line)
	toks, terr := tokenize(stripped)
	if terr != nil {
		return nil, terr, false
	}
	if len(toks) == 0 {
		return nil, nil, true
	}

	words := leadingWords(toks)
	canon, consumed, ok := resolveVerb(words)
	if !ok {
		word := toks[0].value
		return nil, newErr(ErrUnknownCommand, stripped, toks[0].offset,
			"unknown command: "+word, suggestCommands(strings.ToLower(word))...), false
	}
	rest := toks[consumed:]

	c, perr := buildCommand(stripped, canon, rest)
	if perr != nil {
		return nil, perr, false
	}
	c.Raw = trimmed
	return c, nil, false
}

// leadingWords returns the string values of the first (up to 2) plain word
// tokens, used to resolve a possibly-two-word verb phrase.
func leadingWords(toks []token) []string {
	var words []string
	for i := 0; i < len(toks) && i < 2; i++ {
		if toks[i].kind != tokWord {
			break
		}
		words = append(words, strings.ToLower(toks[i].value))
	}
	return words
}

func buildCommand(line, canon string, toks []token) (*ast.Command, *ParseError) {
	switch canon {
	case "goto":
		return buildGoTo(line, toks)
	case "back":
		return &ast.Command{Kind: ast.CmdBack}, nil
	case "forward":
		return &ast.Command{Kind: ast.CmdForward}, nil
	case "refresh":
		return buildRefresh(line, toks)
	case "url":
		return buildSelectorCmd(line, ast.CmdURL, toks)
	case "title":
		return buildSelectorCmd(line, ast.CmdTitle, toks)
	case "html":
		return buildSelectorCmd(line, ast.CmdHTML, toks)
	case "text":
		return buildSelectorCmd(line, ast.CmdText, toks)
	case "observe":
		return buildObserve(line, toks)
	case "screenshot":
		return buildScreenshot(line, toks)
	case "pdf":
		return &ast.Command{Kind: ast.CmdPDF}, nil
	case "click":
		return buildClick(line, toks)
	case "type":
		return buildType(line, toks)
	case "clear":
		return buildSimpleTargetCmd(line, ast.CmdClear, toks)
	case "focus":
		return buildSimpleTargetCmd(line, ast.CmdFocus, toks)
	case "hover":
		return buildSimpleTargetCmd(line, ast.CmdHover, toks)
	case "check":
		return buildSimpleTargetCmd(line, ast.CmdCheck, toks)
	case "uncheck":
		return buildSimpleTargetCmd(line, ast.CmdUncheck, toks)
	case "submit":
		return buildSimpleTargetCmd(line, ast.CmdSubmit, toks)
	case "select":
		return buildSelect(line, toks)
	case "press":
		return buildPress(line, toks)
	case "scroll":
		return buildScroll(line, toks)
	case "wait":
		return buildWait(line, toks)
	case "extract":
		return buildExtract(line, toks)
	case "cookies", "storage", "session", "state", "headers", "tab", "intercept", "console", "errors":
		return buildSubcommand(line, canon, toks)
	case "login", "search", "dismiss":
		return buildIntentInvocation(line, canon, toks)
	case "accept_cookies":
		return &ast.Command{Kind: ast.CmdAcceptCookies}, nil
	case "scroll_until":
		return buildScrollUntil(line, toks)
	case "define":
		return buildRegistryOp(line, ast.CmdDefine, toks)
	case "undefine":
		return buildRegistryOp(line, ast.CmdUndefine, toks)
	case "export":
		return buildRegistryOp(line, ast.CmdExport, toks)
	case "run":
		return buildRegistryOp(line, ast.CmdRun, toks)
	default:
		return nil, newErr(ErrUnknownCommand, line, 1, "unrecognized canonical command: "+canon)
	}
}

// --- navigation ---

func buildGoTo(line string, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{"timeout": false, "header": false})
	if perr != nil {
		return nil, perr
	}
	if len(positional) == 0 {
		return nil, newErr(ErrMissingArgument, line, 1, "goto requires a url")
	}
	url := tokenPlainValue(positional[0])
	c := &ast.Command{Kind: ast.CmdGoTo, URL: url}
	if v, ok := opts.Get("timeout"); ok {
		c.Timeout = parseDurationMS(v)
	}
	if v, ok := opts.Get("header"); ok {
		c.Headers = parseHeaderOpt(v)
	}
	return c, nil
}

func buildRefresh(line string, toks []token) (*ast.Command, *ParseError) {
	_, opts, perr := splitOptions(line, toks, map[string]bool{"hard": true})
	if perr != nil {
		return nil, perr
	}
	return &ast.Command{Kind: ast.CmdRefresh, Refresh: ast.RefreshOptions{Hard: opts.Bool("hard")}}, nil
}

func buildSelectorCmd(line string, kind ast.CommandKind, toks []token) (*ast.Command, *ParseError) {
	positional, _, perr := splitOptions(line, toks, map[string]bool{})
	if perr != nil {
		return nil, perr
	}
	c := &ast.Command{Kind: kind}
	if len(positional) > 0 {
		pos := 0
		t, terr := parseTargetStream(line, positional, &pos)
		if terr != nil {
			return nil, terr
		}
		c.Selector = &t
	}
	return c, nil
}

// --- observe / screenshot ---

func buildObserve(line string, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{
		"full": true, "minimal": true, "viewport-only": true, "include-hidden": true,
		"positions": true, "near": false,
	})
	if perr != nil {
		return nil, perr
	}
	_ = positional
	o := ast.ObserveOptions{
		Full: opts.Bool("full"), Minimal: opts.Bool("minimal"),
		ViewportOnly: opts.Bool("viewport-only"), IncludeHidden: opts.Bool("include-hidden"),
		Positions: opts.Bool("positions"),
	}
	if v, ok := opts.Get("near"); ok {
		t := ast.Text(v)
		o.Near = &t
	}
	return &ast.Command{Kind: ast.CmdObserve, Observe: o}, nil
}

func buildScreenshot(line string, toks []token) (*ast.Command, *ParseError) {
	positional, _, perr := splitOptions(line, toks, map[string]bool{})
	if perr != nil {
		return nil, perr
	}
	c := &ast.Command{Kind: ast.CmdScreenshot}
	if len(positional) > 0 {
		pos := 0
		t, terr := parseTargetStream(line, positional, &pos)
		if terr != nil {
			return nil, terr
		}
		c.Selector = &t
	}
	return c, nil
}

// --- interaction ---

func buildClick(line string, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{
		"ctrl": true, "shift": true, "alt": true, "meta": true,
		"double": true, "force": true, "button": false,
	})
	if perr != nil {
		return nil, perr
	}
	if len(positional) == 0 {
		return nil, newErr(ErrMissingArgument, line, 1, "click requires a target")
	}
	pos := 0
	t, terr := parseTargetStream(line, positional, &pos)
	if terr != nil {
		return nil, terr
	}
	mods := map[ast.Modifier]bool{}
	if opts.Bool("ctrl") {
		mods[ast.ModCtrl] = true
	}
	if opts.Bool("shift") {
		mods[ast.ModShift] = true
	}
	if opts.Bool("alt") {
		mods[ast.ModAlt] = true
	}
	if opts.Bool("meta") {
		mods[ast.ModMeta] = true
	}
	button := ast.ButtonLeft
	if v, ok := opts.Get("button"); ok {
		switch strings.ToLower(v) {
		case "right":
			button = ast.ButtonRight
		case "middle":
			button = ast.ButtonMiddle
		case "left":
			button = ast.ButtonLeft
		default:
			return nil, newErr(ErrInvalidOption, line, 1, "invalid --button value: "+v)
		}
	}
	return &ast.Command{
		Kind:   ast.CmdClick,
		Target: &t,
		Click: ast.ClickOptions{
			Modifiers: mods, Button: button,
			Double: opts.Bool("double"), Force: opts.Bool("force"),
		},
	}, nil
}

func buildType(line string, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{
		"append": true, "submit-on-enter": true, "delay": false,
	})
	if perr != nil {
		return nil, perr
	}
	if len(positional) < 2 {
		return nil, newErr(ErrMissingArgument, line, 1, "type requires a target and text")
	}
	pos := 0
	t, terr := parseTargetStream(line, positional, &pos)
	if terr != nil {
		return nil, terr
	}
	if pos >= len(positional) {
		return nil, newErr(ErrMissingArgument, line, 1, "type requires text to enter")
	}
	text := tokenPlainValue(positional[pos])
	to := ast.TypeOptions{Append: opts.Bool("append"), SubmitOnEnter: opts.Bool("submit-on-enter")}
	if v, ok := opts.Get("delay"); ok {
		to.PerKeyDelay = parseDurationMS(v)
	}
	return &ast.Command{Kind: ast.CmdType, Target: &t, Text: text, Type: to}, nil
}

func buildSimpleTargetCmd(line string, kind ast.CommandKind, toks []token) (*ast.Command, *ParseError) {
	positional, _, perr := splitOptions(line, toks, map[string]bool{})
	if perr != nil {
		return nil, perr
	}
	if len(positional) == 0 {
		return nil, newErr(ErrMissingArgument, line, 1, "command requires a target")
	}
	pos := 0
	t, terr := parseTargetStream(line, positional, &pos)
	if terr != nil {
		return nil, terr
	}
	return &ast.Command{Kind: kind, Target: &t}, nil
}

func buildSelect(line string, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{"value": false, "text": false, "index": false})
	if perr != nil {
		return nil, perr
	}
	if len(positional) == 0 {
		return nil, newErr(ErrMissingArgument, line, 1, "select requires a target")
	}
	pos := 0
	t, terr := parseTargetStream(line, positional, &pos)
	if terr != nil {
		return nil, terr
	}
	opt := ast.SelectOption{By: ast.SelectByText}
	switch {
	case hasOpt(opts, "value"):
		v, _ := opts.Get("value")
		opt = ast.SelectOption{By: ast.SelectByValue, Value: v}
	case hasOpt(opts, "index"):
		v, _ := opts.Get("index")
		n, _ := strconv.Atoi(v)
		opt = ast.SelectOption{By: ast.SelectByIndex, Index: n}
	case hasOpt(opts, "text"):
		v, _ := opts.Get("text")
		opt = ast.SelectOption{By: ast.SelectByText, Value: v}
	case pos < len(positional):
		opt = ast.SelectOption{By: ast.SelectByText, Value: tokenPlainValue(positional[pos])}
	default:
		return nil, newErr(ErrMissingArgument, line, 1, "select requires an option (--value, --text, --index, or a bare value)")
	}
	return &ast.Command{Kind: ast.CmdSelect, Target: &t, Option: opt}, nil
}

func hasOpt(o *options, key string) bool {
	_, ok := o.Get(key)
	return ok
}

func buildPress(line string, toks []token) (*ast.Command, *ParseError) {
	positional, _, perr := splitOptions(line, toks, map[string]bool{})
	if perr != nil {
		return nil, perr
	}
	if len(positional) == 0 {
		return nil, newErr(ErrMissingArgument, line, 1, "press requires a key")
	}
	return &ast.Command{Kind: ast.CmdPress, Key: tokenPlainValue(positional[0])}, nil
}

var scrollDirectionWords = map[string]bool{
	"up": true, "down": true, "left": true, "right": true, "top": true, "bottom": true,
}

func buildScroll(line string, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{
		"direction": false, "amount": false, "pixels": false,
	})
	if perr != nil {
		return nil, perr
	}
	c := &ast.Command{Kind: ast.CmdScroll}
	// A bare direction word ("scroll down", "scroll top") is a direction,
	// never a Text target; anything else positional is the scroll target.
	bareDir := ""
	if len(positional) > 0 && positional[0].kind == tokWord && scrollDirectionWords[strings.ToLower(positional[0].value)] {
		bareDir = strings.ToLower(positional[0].value)
		positional = positional[1:]
	}
	if len(positional) > 0 {
		pos := 0
		t, terr := parseTargetStream(line, positional, &pos)
		if terr != nil {
			return nil, terr
		}
		c.ScrollTarget = &t
	}
	dir, ok := opts.Get("direction")
	if !ok {
		dir = "down"
		if bareDir != "" {
			dir = bareDir
		}
	}
	switch strings.ToLower(dir) {
	case "up":
		c.ScrollDirection = ast.ScrollUp
	case "down":
		c.ScrollDirection = ast.ScrollDown
	case "left":
		c.ScrollDirection = ast.ScrollLeft
	case "right":
		c.ScrollDirection = ast.ScrollRight
	case "top":
		c.ScrollDirection = ast.ScrollTop
	case "bottom":
		c.ScrollDirection = ast.ScrollBottom
	default:
		return nil, newErr(ErrInvalidOption, line, 1, "invalid --direction value: "+dir)
	}
	if v, ok := opts.Get("pixels"); ok {
		n, _ := strconv.Atoi(v)
		c.ScrollAmount = ast.ScrollAmount{Kind: ast.AmountPixels, Pixels: n}
	} else if v, ok := opts.Get("amount"); ok {
		switch strings.ToLower(v) {
		case "line":
			c.ScrollAmount = ast.ScrollAmount{Kind: ast.AmountLine}
		case "page":
			c.ScrollAmount = ast.ScrollAmount{Kind: ast.AmountPage}
		default:
			return nil, newErr(ErrInvalidOption, line, 1, "invalid --amount value: "+v)
		}
	} else {
		c.ScrollAmount = ast.ScrollAmount{Kind: ast.AmountPage}
	}
	return c, nil
}

func buildWait(line string, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{"timeout": false})
	if perr != nil {
		return nil, perr
	}
	if len(positional) == 0 {
		return nil, newErr(ErrMissingArgument, line, 1, "wait requires a condition")
	}
	kw := strings.ToLower(tokenPlainValue(positional[0]))
	rest := positional[1:]
	wc := ast.WaitCondition{}
	switch kw {
	case "load":
		wc.Kind = ast.WaitLoad
	case "networkidle", "network-idle":
		wc.Kind = ast.WaitNetworkIdle
	case "ready":
		wc.Kind = ast.WaitReady
	case "visible":
		t, terr := requireTarget(line, rest)
		if terr != nil {
			return nil, terr
		}
		wc.Kind, wc.Target = ast.WaitVisible, &t
	case "hidden":
		t, terr := requireTarget(line, rest)
		if terr != nil {
			return nil, terr
		}
		wc.Kind, wc.Target = ast.WaitHidden, &t
	case "exists":
		if len(rest) == 0 {
			return nil, newErr(ErrMissingArgument, line, 1, "wait exists requires a selector")
		}
		wc.Kind, wc.Selector = ast.WaitExists, tokenPlainValue(rest[0])
	case "gone":
		if len(rest) == 0 {
			return nil, newErr(ErrMissingArgument, line, 1, "wait gone requires a selector")
		}
		wc.Kind, wc.Selector = ast.WaitGone, tokenPlainValue(rest[0])
	case "urlmatches", "url-matches":
		if len(rest) == 0 {
			return nil, newErr(ErrMissingArgument, line, 1, "wait urlmatches requires a pattern")
		}
		wc.Kind, wc.Pattern = ast.WaitURLMatches, tokenPlainValue(rest[0])
	case "until":
		if len(rest) == 0 {
			return nil, newErr(ErrMissingArgument, line, 1, "wait until requires an expression")
		}
		wc.Kind, wc.Expr = ast.WaitUntil, tokenPlainValue(rest[0])
	case "itemscount", "items-count":
		if len(rest) < 2 {
			return nil, newErr(ErrMissingArgument, line, 1, "wait itemscount requires a selector and a count")
		}
		n, convErr := strconv.Atoi(tokenPlainValue(rest[1]))
		if convErr != nil {
			return nil, newErr(ErrInvalidSyntax, line, 1, "itemscount count must be an integer")
		}
		wc.Kind, wc.Selector, wc.Count = ast.WaitItemsCount, tokenPlainValue(rest[0]), n
	default:
		return nil, newErr(ErrInvalidSyntax, line, positional[0].offset, "unknown wait condition: "+kw)
	}

	c := &ast.Command{Kind: ast.CmdWait, Wait: wc}
	if v, ok := opts.Get("timeout"); ok {
		c.Timeout = parseDurationMS(v)
	}
	return c, nil
}

func requireTarget(line string, toks []token) (ast.Target, *ParseError) {
	if len(toks) == 0 {
		return ast.Target{}, newErr(ErrMissingArgument, line, 1, "expected a target")
	}
	pos := 0
	return parseTargetStream(line, toks, &pos)
}

func buildExtract(line string, toks []token) (*ast.Command, *ParseError) {
	positional, _, perr := splitOptions(line, toks, map[string]bool{})
	if perr != nil {
		return nil, perr
	}
	if len(positional) == 0 {
		return nil, newErr(ErrMissingArgument, line, 1, "extract requires a source")
	}
	kw := strings.ToLower(tokenPlainValue(positional[0]))
	src := ast.ExtractSource{}
	switch kw {
	case "links":
		src.Kind = ast.ExtractLinks
	case "images":
		src.Kind = ast.ExtractImages
	case "tables":
		src.Kind = ast.ExtractTables
	case "meta":
		src.Kind = ast.ExtractMeta
	case "css":
		if len(positional) < 2 {
			return nil, newErr(ErrMissingArgument, line, 1, "extract css requires a selector")
		}
		src.Kind, src.Selector = ast.ExtractCSS, tokenPlainValue(positional[1])
	case "text":
		src.Kind = ast.ExtractText
		if len(positional) >= 2 {
			src.Selector = tokenPlainValue(positional[1])
		}
	default:
		return nil, newErr(ErrInvalidSyntax, line, positional[0].offset, "unknown extract source: "+kw)
	}
	return &ast.Command{Kind: ast.CmdExtract, ExtractSource: src}, nil
}

// --- grouped subcommands (cookies/storage/session/state/headers/tab/intercept/console/errors) ---

var groupToKind = map[string]ast.CommandKind{
	"cookies": ast.CmdCookies, "storage": ast.CmdStorage, "session": ast.CmdSession,
	"state": ast.CmdState, "headers": ast.CmdHeaders, "tab": ast.CmdTab,
	"intercept": ast.CmdIntercept, "console": ast.CmdConsole, "errors": ast.CmdErrors,
}

// buildSubcommand parses "<group> <action> [key=value ...]", e.g.
// "cookies set name=session value=abc123" or "tab new".
func buildSubcommand(line, group string, toks []token) (*ast.Command, *ParseError) {
	positional, _, perr := splitOptions(line, toks, map[string]bool{})
	if perr != nil {
		return nil, perr
	}
	action := "list"
	start := 0
	if len(positional) > 0 && positional[0].kind == tokWord && !strings.Contains(tokenPlainValue(positional[0]), "=") {
		action = strings.ToLower(tokenPlainValue(positional[0]))
		start = 1
	}
	args := map[string]string{}
	for _, t := range positional[start:] {
		v := tokenPlainValue(t)
		if eq := strings.IndexByte(v, '='); eq >= 0 {
			args[v[:eq]] = v[eq+1:]
		} else {
			args["value"] = v
		}
	}
	return &ast.Command{Kind: groupToKind[group], Subcommand: ast.SubcommandTag{Group: group, Action: action, Args: args}}, nil
}

// --- built-in intents & registry ops ---

func buildIntentInvocation(line, canon string, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{
		"username": false, "user": false, "password": false, "query": false, "q": false,
	})
	if perr != nil {
		return nil, perr
	}
	params := map[string]string{}
	for k, v := range opts.values {
		params[k] = v
	}
	if len(positional) > 0 {
		switch canon {
		case "search":
			params["query"] = tokenPlainValue(positional[0])
		}
	}
	kind := ast.CmdLogin
	if canon == "search" {
		kind = ast.CmdSearch
	} else if canon == "dismiss" {
		kind = ast.CmdDismiss
	}
	return &ast.Command{Kind: kind, Intent: ast.IntentInvocation{Name: canon, Params: params}}, nil
}

func buildScrollUntil(line string, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{"max": false})
	if perr != nil {
		return nil, perr
	}
	if len(positional) == 0 {
		return nil, newErr(ErrMissingArgument, line, 1, "scroll until requires a condition description")
	}
	params := map[string]string{"condition": tokenPlainValue(positional[0])}
	if v, ok := opts.Get("max"); ok {
		params["max"] = v
	}
	return &ast.Command{Kind: ast.CmdScrollUntil, Intent: ast.IntentInvocation{Name: "scroll_until", Params: params}}, nil
}

func buildRegistryOp(line string, kind ast.CommandKind, toks []token) (*ast.Command, *ParseError) {
	positional, opts, perr := splitOptions(line, toks, map[string]bool{"force": true, "file": false})
	if perr != nil {
		return nil, perr
	}
	if len(positional) == 0 {
		return nil, newErr(ErrMissingArgument, line, 1, "registry operation requires a name")
	}
	params := map[string]string{}
	if opts.Bool("force") {
		params["force"] = "true"
	}
	if v, ok := opts.Get("file"); ok {
		params["file"] = v
	}
	return &ast.Command{Kind: kind, Intent: ast.IntentInvocation{Name: tokenPlainValue(positional[0]), Params: params}}, nil
}

// --- shared helpers ---

func parseDurationMS(v string) time.Duration {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return time.Duration(n) * time.Millisecond
}

func parseHeaderOpt(v string) map[string]string {
	h := map[string]string{}
	if eq := strings.IndexByte(v, ':'); eq >= 0 {
		h[strings.TrimSpace(v[:eq])] = strings.TrimSpace(v[eq+1:])
	}
	return h
}
