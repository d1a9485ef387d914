package engine

import (
	"context"

	"github.com/nextlevelbuilder/oilengine/internal/backend"
	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

// backendSelectorDelegate answers the resolver's Css/Xpath lookups by asking
// the scanner, which owns all DOM access. The scanner evaluates the selector
// against the live page and reports the matching element's current scan id.
type backendSelectorDelegate struct {
	backend backend.Backend
	timeout Timeouts
}

// NewSelectorDelegate builds the scanner-backed selector delegate a
// Resolver needs for Css/Xpath targets.
func NewSelectorDelegate(be backend.Backend, timeouts Timeouts) backendSelectorDelegate {
	return backendSelectorDelegate{backend: be, timeout: timeouts}
}

func (d backendSelectorDelegate) ResolveCSS(selector string) (uint, bool, error) {
	return d.query("css", selector)
}

func (d backendSelectorDelegate) ResolveXPath(selector string) (uint, bool, error) {
	return d.query("xpath", selector)
}

func (d backendSelectorDelegate) query(kind, selector string) (uint, bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout.normalized().Eval)
	defer cancel()

	req := protocol.NewScannerRequest(protocol.ActionExecute).
		With("resolve", kind).
		With("selector", selector)
	resp, err := d.backend.DispatchScanner(ctx, req)
	if err != nil {
		return 0, false, err
	}
	if !resp.OK() {
		return 0, false, backend.RemoteError(resp.Error.Code, resp.Error.Message)
	}
	var out struct {
		ID    uint `json:"id"`
		Found bool `json:"found"`
	}
	if err := resp.DecodeData(&out); err != nil {
		return 0, false, err
	}
	return out.ID, out.Found, nil
}
