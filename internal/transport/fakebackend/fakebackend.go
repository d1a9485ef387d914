// Package fakebackend is an in-memory Backend used by engine and session
// tests, and by cmd/oilctl when no WebSocket URL is configured, for offline
// smoke-testing OIL scripts without a real browser.
package fakebackend

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nextlevelbuilder/oilengine/internal/backend"
	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

// Handler answers one ScannerRequest. Tests register handlers per action to
// script exact scanner behavior.
type Handler func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error)

// Backend is a scriptable fake satisfying backend.Backend.
type Backend struct {
	mu sync.Mutex

	ready bool
	url   string

	Handlers map[protocol.Action]Handler

	NavigateErr error
	NavResult   backend.NavResult

	cookies map[string]string
	Calls   []string // action log, for assertions
}

func New() *Backend {
	return &Backend{Handlers: map[protocol.Action]Handler{}, cookies: map[string]string{}}
}

func (b *Backend) record(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Calls = append(b.Calls, name)
}

func (b *Backend) Launch(ctx context.Context) error { b.ready = true; b.record("launch"); return nil }
func (b *Backend) Close(ctx context.Context) error   { b.ready = false; b.record("close"); return nil }
func (b *Backend) IsReady(ctx context.Context) bool  { return b.ready }

func (b *Backend) Navigate(ctx context.Context, url string, headers map[string]string) (backend.NavResult, error) {
	b.record("navigate:" + url)
	if b.NavigateErr != nil {
		return backend.NavResult{}, b.NavigateErr
	}
	b.url = url
	if b.NavResult.FinalURL == "" {
		return backend.NavResult{FinalURL: url, LoadTime: time.Millisecond}, nil
	}
	return b.NavResult, nil
}

func (b *Backend) Back(ctx context.Context) error    { b.record("back"); return nil }
func (b *Backend) Forward(ctx context.Context) error { b.record("forward"); return nil }
func (b *Backend) Refresh(ctx context.Context, hard bool) error {
	b.record("refresh")
	return nil
}
func (b *Backend) Press(ctx context.Context, keyChord string) error {
	b.record("press:" + keyChord)
	return nil
}

func (b *Backend) DispatchScanner(ctx context.Context, req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
	b.record("scanner:" + string(req.Action))
	if h, ok := b.Handlers[req.Action]; ok {
		return h(req)
	}
	return &protocol.ScannerResponse{Status: protocol.StatusOK, Data: json.RawMessage(`{}`)}, nil
}

func (b *Backend) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	b.record("screenshot")
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

func (b *Backend) PDF(ctx context.Context) ([]byte, error) {
	return nil, backend.NotSupported(backend.CapPDF, "fake backend does not render pdf")
}

func (b *Backend) Cookies(ctx context.Context, action string, args map[string]string) (map[string]any, error) {
	b.record("cookies:" + action)
	b.mu.Lock()
	defer b.mu.Unlock()
	switch action {
	case "set":
		b.cookies[args["name"]] = args["value"]
		return nil, nil
	case "get":
		return map[string]any{"value": b.cookies[args["name"]]}, nil
	case "delete":
		delete(b.cookies, args["name"])
		return nil, nil
	case "list":
		out := make(map[string]any, len(b.cookies))
		for k, v := range b.cookies {
			out[k] = v
		}
		return out, nil
	default:
		return nil, backend.ProtocolError("unknown-action", action)
	}
}

func (b *Backend) Tabs(ctx context.Context, action string, args map[string]string) (map[string]any, error) {
	b.record("tabs:" + action)
	return map[string]any{}, nil
}

func (b *Backend) DevTools(ctx context.Context, area, action string, args map[string]string) (map[string]any, error) {
	b.record("devtools:" + area + ":" + action)
	return map[string]any{}, nil
}

// WithScan registers a canned "scan" response.
func (b *Backend) WithScan(payload protocol.ScanPayload) *Backend {
	data, _ := json.Marshal(payload)
	b.Handlers[protocol.ActionScan] = func(req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
		return &protocol.ScannerResponse{Status: protocol.StatusOK, Data: data}, nil
	}
	return b
}
