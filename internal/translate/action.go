package translate

import (
	"time"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

// ActionKind is the closed set of process-level Backend operations a
// Command can translate to.
type ActionKind int

const (
	ActionNavigate ActionKind = iota
	ActionBack
	ActionForward
	ActionRefresh
	ActionPress
	ActionScreenshot
	ActionPDF
	ActionTabs
	ActionCookies
	ActionIntercept
	ActionConsole
	ActionErrors
	ActionSetHeaders
)

// BackendAction is a process-level operation dispatched straight to the
// Backend, bypassing the in-page scanner (second routing list).
type BackendAction struct {
	Kind ActionKind

	URL     string
	Headers map[string]string
	Timeout time.Duration
	Hard    bool
	Key     string

	Selector *ast.Target // screenshot/pdf: crop to this element's bounds

	Subcommand ast.SubcommandTag // cookies/tabs/intercept/console/errors/headers
}
