// Package backend defines the abstract, async capability set a concrete
// browser transport (CDP, WebDriver, or an extension over WebSocket) must
// implement. The core never talks to a specific transport; it talks to
// this interface.
package backend

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

// NavResult is the result of a successful navigate call.
type NavResult struct {
	FinalURL string
	LoadTime time.Duration
}

// Capability names used with NotSupported (capability map).
const (
	CapPDF         = "pdf"
	CapScreenshot  = "screenshot"
	CapTabs        = "tabs"
	CapIntercept   = "intercept"
	CapConsole     = "console"
	CapCookies     = "cookies"
)

// Backend is the abstract capability interface. Every method
// is asynchronous in spirit: Go expresses that with a context-scoped
// blocking call a caller may run in its own goroutine, rather than an
// explicit future type, since that's the idiomatic Go shape for a single
// in-flight request/response pair.
type Backend interface {
	Launch(ctx context.Context) error
	Close(ctx context.Context) error
	IsReady(ctx context.Context) bool

	Navigate(ctx context.Context, url string, headers map[string]string) (NavResult, error)
	Back(ctx context.Context) error
	Forward(ctx context.Context) error
	Refresh(ctx context.Context, hard bool) error
	Press(ctx context.Context, keyChord string) error

	DispatchScanner(ctx context.Context, req *protocol.ScannerRequest) (*protocol.ScannerResponse, error)

	Screenshot(ctx context.Context, selector string) ([]byte, error)
	PDF(ctx context.Context) ([]byte, error)

	Cookies(ctx context.Context, action string, args map[string]string) (map[string]any, error)
	Tabs(ctx context.Context, action string, args map[string]string) (map[string]any, error)

	// DevTools covers the remaining process-level debug surfaces (request
	// intercept, console capture, js error capture, extra headers) that
	// only a real transport can back with a CDP/WebDriver session; area
	// selects which one ("intercept", "console", "errors", "headers").
	DevTools(ctx context.Context, area, action string, args map[string]string) (map[string]any, error)
}
