// Package translate routes a resolved Command to either an in-page
// ScannerRequest or a process-level BackendAction.
package translate

import (
	"fmt"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

// Destination tags which half of the system a Translation targets.
type Destination int

const (
	ToScanner Destination = iota
	ToBackend
)

// Translation is the translate() result: exactly one of Scanner or Backend
// is populated, selected by Destination.
type Translation struct {
	Destination Destination
	Scanner     *protocol.ScannerRequest
	Backend     *BackendAction
}

// TranslationError reports a command the translator refuses to silently
// degrade.
type TranslationError struct {
	Command ast.CommandKind
	Message string
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("unsupported: %s", e.Message)
}

func unsupported(kind ast.CommandKind, msg string) (*Translation, *TranslationError) {
	return nil, &TranslationError{Command: kind, Message: msg}
}

// ResolvedCommand is a Command whose semantic Target fields have already
// been resolved to concrete element IDs by the resolver. Exactly the ID
// fields relevant to Cmd.Kind are meaningful; the rest are nil.
type ResolvedCommand struct {
	Cmd            *ast.Command
	TargetID       *uint
	SelectorID     *uint
	ScrollTargetID *uint
	WaitTargetID   *uint
}

// Translate routes rc to a ScannerRequest or BackendAction, preserving every
// semantic option the Command carries.
func Translate(rc *ResolvedCommand) (*Translation, *TranslationError) {
	c := rc.Cmd
	switch c.Kind {
	case ast.CmdGoTo:
		return toBackend(&BackendAction{Kind: ActionNavigate, URL: c.URL, Headers: c.Headers, Timeout: c.Timeout}), nil
	case ast.CmdBack:
		return toBackend(&BackendAction{Kind: ActionBack}), nil
	case ast.CmdForward:
		return toBackend(&BackendAction{Kind: ActionForward}), nil
	case ast.CmdRefresh:
		return toBackend(&BackendAction{Kind: ActionRefresh, Hard: c.Refresh.Hard}), nil
	case ast.CmdPress:
		return toBackend(&BackendAction{Kind: ActionPress, Key: c.Key}), nil

	case ast.CmdURL:
		return toScanner(protocol.NewScannerRequest(protocol.ActionExecute).With("js", "location.href")), nil
	case ast.CmdTitle:
		return toScanner(protocol.NewScannerRequest(protocol.ActionExecute).With("js", "document.title")), nil
	case ast.CmdHTML:
		return translateSelectorScan(c, rc.SelectorID, protocol.ActionGetHTML)
	case ast.CmdText:
		return translateSelectorScan(c, rc.SelectorID, protocol.ActionGetText)

	case ast.CmdScreenshot:
		return toBackend(&BackendAction{Kind: ActionScreenshot, Selector: c.Selector}), nil
	case ast.CmdPDF:
		return toBackend(&BackendAction{Kind: ActionPDF}), nil

	case ast.CmdObserve:
		req := protocol.NewScannerRequest(protocol.ActionScan).
			With("full", c.Observe.Full).
			With("minimal", c.Observe.Minimal).
			With("viewport_only", c.Observe.ViewportOnly).
			With("include_hidden", c.Observe.IncludeHidden).
			With("positions", c.Observe.Positions)
		if c.Observe.Near != nil {
			req.With("near", c.Observe.Near.Value)
		}
		return toScanner(req), nil

	case ast.CmdClick:
		if rc.TargetID == nil {
			return unsupported(c.Kind, "click requires a resolved target id")
		}
		mods := make([]string, 0, len(c.Click.Modifiers))
		for m, on := range c.Click.Modifiers {
			if on {
				mods = append(mods, modifierName(m))
			}
		}
		req := protocol.NewScannerRequest(protocol.ActionClick).
			With("id", *rc.TargetID).
			With("button", buttonName(c.Click.Button)).
			With("double", c.Click.Double).
			With("force", c.Click.Force).
			With("modifiers", mods)
		return toScanner(req), nil

	case ast.CmdType:
		if rc.TargetID == nil {
			return unsupported(c.Kind, "type requires a resolved target id")
		}
		req := protocol.NewScannerRequest(protocol.ActionType).
			With("id", *rc.TargetID).
			With("text", c.Text).
			With("append", c.Type.Append).
			With("submit_on_enter", c.Type.SubmitOnEnter).
			With("per_key_delay_ms", c.Type.PerKeyDelay.Milliseconds())
		return toScanner(req), nil

	case ast.CmdClear:
		return translateIDOnly(c, rc.TargetID, protocol.ActionClear)
	case ast.CmdFocus:
		return translateIDOnly(c, rc.TargetID, protocol.ActionFocus)
	case ast.CmdHover:
		return translateIDOnly(c, rc.TargetID, protocol.ActionHover)
	case ast.CmdCheck:
		return translateIDFlag(c, rc.TargetID, protocol.ActionCheck, true)
	case ast.CmdUncheck:
		return translateIDFlag(c, rc.TargetID, protocol.ActionCheck, false)
	case ast.CmdSubmit:
		return translateIDOnly(c, rc.TargetID, protocol.ActionSubmit)

	case ast.CmdSelect:
		if rc.TargetID == nil {
			return unsupported(c.Kind, "select requires a resolved target id")
		}
		req := protocol.NewScannerRequest(protocol.ActionSelect).With("id", *rc.TargetID)
		switch c.Option.By {
		case ast.SelectByValue:
			req.With("by", "value").With("value", c.Option.Value)
		case ast.SelectByText:
			req.With("by", "text").With("value", c.Option.Value)
		case ast.SelectByIndex:
			req.With("by", "index").With("index", c.Option.Index)
		}
		return toScanner(req), nil

	case ast.CmdScroll:
		req := protocol.NewScannerRequest(protocol.ActionExecute).
			With("direction", scrollDirectionName(c.ScrollDirection)).
			With("amount_kind", scrollAmountName(c.ScrollAmount.Kind)).
			With("pixels", c.ScrollAmount.Pixels)
		if rc.ScrollTargetID != nil {
			req.With("id", *rc.ScrollTargetID)
		}
		return toScanner(req), nil

	case ast.CmdWait:
		return translateWait(c, rc.WaitTargetID)

	case ast.CmdExtract:
		req := protocol.NewScannerRequest(protocol.ActionExtract).
			With("source", extractSourceName(c.ExtractSource.Kind)).
			With("selector", c.ExtractSource.Selector)
		return toScanner(req), nil

	case ast.CmdCookies:
		return toBackend(&BackendAction{Kind: ActionCookies, Subcommand: c.Subcommand}), nil
	case ast.CmdTab:
		return toBackend(&BackendAction{Kind: ActionTabs, Subcommand: c.Subcommand}), nil
	case ast.CmdIntercept:
		return toBackend(&BackendAction{Kind: ActionIntercept, Subcommand: c.Subcommand}), nil
	case ast.CmdConsole:
		return toBackend(&BackendAction{Kind: ActionConsole, Subcommand: c.Subcommand}), nil
	case ast.CmdErrors:
		return toBackend(&BackendAction{Kind: ActionErrors, Subcommand: c.Subcommand}), nil
	case ast.CmdHeaders:
		return toBackend(&BackendAction{Kind: ActionSetHeaders, Subcommand: c.Subcommand}), nil

	case ast.CmdStorage, ast.CmdSession, ast.CmdState:
		req := protocol.NewScannerRequest(protocol.ActionStorage).
			With("scope", c.Subcommand.Group).
			With("action", c.Subcommand.Action)
		for k, v := range c.Subcommand.Args {
			req.With(k, v)
		}
		return toScanner(req), nil

	case ast.CmdLogin, ast.CmdSearch, ast.CmdDismiss, ast.CmdAcceptCookies, ast.CmdScrollUntil,
		ast.CmdDefine, ast.CmdUndefine, ast.CmdExport, ast.CmdRun:
		return unsupported(c.Kind, "intent-level command must be expanded by the engine before translation")

	default:
		return unsupported(c.Kind, "unrecognized command kind")
	}
}

func translateSelectorScan(c *ast.Command, selID *uint, action protocol.Action) (*Translation, *TranslationError) {
	req := protocol.NewScannerRequest(action)
	if selID != nil {
		req.With("id", *selID)
	}
	return toScanner(req), nil
}

func translateIDOnly(c *ast.Command, id *uint, action protocol.Action) (*Translation, *TranslationError) {
	if id == nil {
		return unsupported(c.Kind, "command requires a resolved target id")
	}
	return toScanner(protocol.NewScannerRequest(action).With("id", *id)), nil
}

func translateIDFlag(c *ast.Command, id *uint, action protocol.Action, flag bool) (*Translation, *TranslationError) {
	if id == nil {
		return unsupported(c.Kind, "command requires a resolved target id")
	}
	return toScanner(protocol.NewScannerRequest(action).With("id", *id).With("checked", flag)), nil
}

func translateWait(c *ast.Command, targetID *uint) (*Translation, *TranslationError) {
	req := protocol.NewScannerRequest(protocol.ActionWait).With("timeout_ms", c.Timeout.Milliseconds())
	switch c.Wait.Kind {
	case ast.WaitLoad:
		req.With("condition", "load")
	case ast.WaitNetworkIdle:
		req.With("condition", "network_idle")
	case ast.WaitReady:
		req.With("condition", "ready")
	case ast.WaitVisible:
		if targetID == nil {
			return unsupported(c.Kind, "wait visible requires a resolved target id")
		}
		req.With("condition", "visible").With("id", *targetID)
	case ast.WaitHidden:
		if targetID == nil {
			return unsupported(c.Kind, "wait hidden requires a resolved target id")
		}
		req.With("condition", "hidden").With("id", *targetID)
	case ast.WaitExists:
		req.With("condition", "exists").With("selector", c.Wait.Selector)
	case ast.WaitGone:
		req.With("condition", "gone").With("selector", c.Wait.Selector)
	case ast.WaitURLMatches:
		req.With("condition", "url_matches").With("pattern", c.Wait.Pattern)
	case ast.WaitUntil:
		req.With("condition", "until").With("expr", c.Wait.Expr)
	case ast.WaitItemsCount:
		req.With("condition", "items_count").With("selector", c.Wait.Selector).With("count", c.Wait.Count)
	default:
		return unsupported(c.Kind, "unknown wait condition")
	}
	return toScanner(req), nil
}

func toScanner(req *protocol.ScannerRequest) *Translation {
	return &Translation{Destination: ToScanner, Scanner: req}
}

func toBackend(a *BackendAction) *Translation {
	return &Translation{Destination: ToBackend, Backend: a}
}

func modifierName(m ast.Modifier) string {
	switch m {
	case ast.ModCtrl:
		return "ctrl"
	case ast.ModShift:
		return "shift"
	case ast.ModAlt:
		return "alt"
	case ast.ModMeta:
		return "meta"
	default:
		return "unknown"
	}
}

func buttonName(b ast.MouseButton) string {
	switch b {
	case ast.ButtonRight:
		return "right"
	case ast.ButtonMiddle:
		return "middle"
	default:
		return "left"
	}
}

func scrollDirectionName(d ast.ScrollDirection) string {
	switch d {
	case ast.ScrollUp:
		return "up"
	case ast.ScrollLeft:
		return "left"
	case ast.ScrollRight:
		return "right"
	case ast.ScrollTop:
		return "top"
	case ast.ScrollBottom:
		return "bottom"
	default:
		return "down"
	}
}

func scrollAmountName(k ast.ScrollAmountKind) string {
	switch k {
	case ast.AmountLine:
		return "line"
	case ast.AmountPixels:
		return "pixels"
	default:
		return "page"
	}
}

func extractSourceName(k ast.ExtractSourceKind) string {
	switch k {
	case ast.ExtractLinks:
		return "links"
	case ast.ExtractImages:
		return "images"
	case ast.ExtractTables:
		return "tables"
	case ast.ExtractCSS:
		return "css"
	case ast.ExtractMeta:
		return "meta"
	default:
		return "text"
	}
}
