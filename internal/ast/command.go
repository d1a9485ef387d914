package ast

import "time"

// CommandKind tags the closed Command variant set.
type CommandKind int

const (
	CmdGoTo CommandKind = iota
	CmdBack
	CmdForward
	CmdRefresh
	CmdURL
	CmdTitle
	CmdHTML
	CmdText
	CmdObserve
	CmdScreenshot
	CmdPDF
	CmdClick
	CmdType
	CmdClear
	CmdFocus
	CmdHover
	CmdCheck
	CmdUncheck
	CmdSubmit
	CmdSelect
	CmdPress
	CmdScroll
	CmdWait
	CmdExtract
	CmdCookies
	CmdStorage
	CmdSession
	CmdState
	CmdHeaders
	CmdTab
	CmdIntercept
	CmdConsole
	CmdErrors
	CmdLogin
	CmdSearch
	CmdDismiss
	CmdAcceptCookies
	CmdScrollUntil
	CmdDefine
	CmdUndefine
	CmdExport
	CmdRun
)

// MouseButton is the closed set of buttons a Click may use.
type MouseButton int

const (
	ButtonLeft MouseButton = iota
	ButtonRight
	ButtonMiddle
)

// Modifier is a keyboard modifier held during a Click.
type Modifier int

const (
	ModCtrl Modifier = iota
	ModShift
	ModAlt
	ModMeta
)

// ScrollDirection is the closed set of Scroll directions.
type ScrollDirection int

const (
	ScrollUp ScrollDirection = iota
	ScrollDown
	ScrollLeft
	ScrollRight
	ScrollTop
	ScrollBottom
)

// ScrollAmountKind distinguishes line/page/pixel scroll amounts.
type ScrollAmountKind int

const (
	AmountLine ScrollAmountKind = iota
	AmountPage
	AmountPixels
)

type ScrollAmount struct {
	Kind   ScrollAmountKind
	Pixels int // only meaningful when Kind == AmountPixels
}

// WaitConditionKind is the closed set of Wait conditions.
type WaitConditionKind int

const (
	WaitLoad WaitConditionKind = iota
	WaitNetworkIdle
	WaitVisible
	WaitHidden
	WaitExists
	WaitGone
	WaitURLMatches
	WaitUntil
	WaitReady
	WaitItemsCount
)

type WaitCondition struct {
	Kind     WaitConditionKind
	Target   *Target // Visible/Hidden
	Selector string  // Exists/Gone (opaque selector, delegated to scanner)
	Pattern  string  // UrlMatches (regex source)
	Expr     string  // Until (js expression, opaque to core)
	Count    int     // ItemsCount
}

// ExtractSourceKind is the closed set of Extract sources.
type ExtractSourceKind int

const (
	ExtractLinks ExtractSourceKind = iota
	ExtractImages
	ExtractTables
	ExtractCSS
	ExtractMeta
	ExtractText
)

type ExtractSource struct {
	Kind     ExtractSourceKind
	Selector string // Css/Text(sel?)
}

// SelectBy is the closed set of ways a Select option may be identified.
type SelectBy int

const (
	SelectByValue SelectBy = iota
	SelectByText
	SelectByIndex
)

type SelectOption struct {
	By    SelectBy
	Value string
	Index int
}

// ObserveOptions controls what an Observe command reports.
type ObserveOptions struct {
	Full          bool
	Minimal       bool
	Near          *Target
	ViewportOnly  bool
	IncludeHidden bool
	Positions     bool
}

// ClickOptions captures a Click command's fields beyond its target.
type ClickOptions struct {
	Modifiers map[Modifier]bool
	Button    MouseButton
	Double    bool
	Force     bool
}

// TypeOptions captures a Type command's fields beyond target and text.
type TypeOptions struct {
	Append        bool
	SubmitOnEnter bool
	PerKeyDelay   time.Duration
}

// RefreshOptions captures Refresh's single flag.
type RefreshOptions struct {
	Hard bool
}

// SubcommandTag carries the structured sub-verb for the grouped commands
// (Cookies/Storage/Session*/State*/Headers/Tab*/Intercept/Console/Errors).
// The core treats these as opaque routing keys; the scanner/backend owns
// the actual semantics for each action.
type SubcommandTag struct {
	Group  string            // "cookies", "storage", "session", "state", "headers", "tab", "intercept", "console", "errors"
	Action string            // "get", "set", "delete", "list", "clear", "save", "load", ...
	Args   map[string]string // free-form key/value payload (key, value, name, url, ...)
}

// IntentInvocation carries parameters for a built-in intent verb (Login,
// Search, Dismiss, AcceptCookies, ScrollUntil) or a registry op (Define,
// Undefine, Export, Run).
type IntentInvocation struct {
	Name   string
	Params map[string]string
}

// Command is a tagged sum of variants. Only the fields relevant
// to Kind are populated; the rest are zero values.
type Command struct {
	Kind CommandKind

	// GoTo
	URL     string
	Headers map[string]string
	Timeout time.Duration

	// Refresh
	Refresh RefreshOptions

	// Url/Title/Html/Text (selector form)
	Selector *Target

	// Observe
	Observe ObserveOptions

	// Click/Type/Clear/Focus/Hover/Check/Uncheck/Submit/Select
	Target *Target

	// Click
	Click ClickOptions

	// Type
	Text string
	Type TypeOptions

	// Select
	Option SelectOption

	// Press
	Key string

	// Scroll
	ScrollTarget    *Target
	ScrollDirection ScrollDirection
	ScrollAmount    ScrollAmount

	// Wait
	Wait WaitCondition

	// Extract
	ExtractSource ExtractSource

	// Cookies/Storage/Session*/State*/Headers/Tab*/Intercept/Console/Errors
	Subcommand SubcommandTag

	// Login/Search/Dismiss/AcceptCookies/ScrollUntil/Define/Undefine/Export/Run
	Intent IntentInvocation

	// Raw is the original input line, retained for error reporting and the
	// parser round-trip property.
	Raw string
}
