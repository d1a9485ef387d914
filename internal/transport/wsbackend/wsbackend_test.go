package wsbackend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/oilengine/internal/backend"
	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

// fakeExtension is a minimal echo/responder server standing in for the
// browser extension side of the socket, so the Backend can be exercised
// without a real browser.
func fakeExtension(t *testing.T, handle func(envelope) any) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		for {
			var req envelope
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			result := handle(req)
			raw, _ := json.Marshal(result)
			_ = conn.WriteJSON(response{ID: req.ID, Result: raw})
		}
	}))
	return srv
}

func dialTestBackend(t *testing.T, srv *httptest.Server) *Backend {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	b := New(url, 2*time.Second)
	if err := b.Launch(context.Background()); err != nil {
		t.Fatalf("launch: %v", err)
	}
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b
}

func TestLaunchAndIsReady(t *testing.T) {
	srv := fakeExtension(t, func(envelope) any { return map[string]any{} })
	defer srv.Close()

	b := New("ws://"+strings.TrimPrefix(srv.URL, "http://"), time.Second)
	if b.IsReady(context.Background()) {
		t.Fatal("expected not ready before Launch")
	}
	if err := b.Launch(context.Background()); err != nil {
		t.Fatalf("launch: %v", err)
	}
	if !b.IsReady(context.Background()) {
		t.Fatal("expected ready after Launch")
	}
}

func TestNavigateRoundTrip(t *testing.T) {
	srv := fakeExtension(t, func(req envelope) any {
		if req.Method != "navigate" {
			t.Errorf("unexpected method %s", req.Method)
		}
		return map[string]any{"final_url": "https://example.com/", "load_ms": 42}
	})
	defer srv.Close()
	b := dialTestBackend(t, srv)

	res, err := b.Navigate(context.Background(), "https://example.com", nil)
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if res.FinalURL != "https://example.com/" {
		t.Fatalf("unexpected final url: %q", res.FinalURL)
	}
	if res.LoadTime != 42*time.Millisecond {
		t.Fatalf("unexpected load time: %v", res.LoadTime)
	}
}

func TestDispatchScannerPreservesEnvelope(t *testing.T) {
	srv := fakeExtension(t, func(req envelope) any {
		var sreq protocol.ScannerRequest
		if err := json.Unmarshal(req.Params, &sreq); err != nil {
			t.Errorf("decode scanner request: %v", err)
		}
		if sreq.Action != protocol.ActionScan {
			t.Errorf("expected scan action, got %v", sreq.Action)
		}
		return protocol.ScannerResponse{Status: protocol.StatusOK}
	})
	defer srv.Close()
	b := dialTestBackend(t, srv)

	resp, err := b.DispatchScanner(context.Background(), protocol.NewScannerRequest(protocol.ActionScan))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !resp.OK() {
		t.Fatalf("expected OK response, got %+v", resp)
	}
}

func TestCallNotConnectedBeforeLaunch(t *testing.T) {
	b := New("ws://127.0.0.1:1/", time.Second)
	if _, err := b.Navigate(context.Background(), "https://example.com", nil); err == nil {
		t.Fatal("expected an error before Launch")
	} else if berr, ok := err.(*backend.Error); !ok || berr.Kind.String() != "NotConnected" {
		t.Fatalf("expected NotConnected, got %v", err)
	}
}

func TestRemoteErrorIsClassified(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _ := upgrader.Upgrade(w, r, nil)
		defer conn.Close()
		var req envelope
		_ = conn.ReadJSON(&req)
		msg := "element not found"
		_ = conn.WriteJSON(response{ID: req.ID, Error: &msg})
	}))
	defer srv.Close()
	b := dialTestBackend(t, srv)

	err := b.Press(context.Background(), "Enter")
	if err == nil {
		t.Fatal("expected a remote error")
	}
	berr, ok := err.(*backend.Error)
	if !ok || berr.Kind.String() != "RemoteError" {
		t.Fatalf("expected RemoteError, got %v", err)
	}
}

func TestCookiesAndTabsDecodeResultMap(t *testing.T) {
	srv := fakeExtension(t, func(req envelope) any {
		switch req.Method {
		case "cookies":
			return map[string]any{"count": 2}
		case "tabs":
			return map[string]any{"active": "tab-1"}
		}
		return map[string]any{}
	})
	defer srv.Close()
	b := dialTestBackend(t, srv)

	cookies, err := b.Cookies(context.Background(), "list", nil)
	if err != nil {
		t.Fatalf("cookies: %v", err)
	}
	if cookies["count"].(float64) != 2 {
		t.Fatalf("unexpected cookies result: %+v", cookies)
	}

	tabs, err := b.Tabs(context.Background(), "list", nil)
	if err != nil {
		t.Fatalf("tabs: %v", err)
	}
	if tabs["active"] != "tab-1" {
		t.Fatalf("unexpected tabs result: %+v", tabs)
	}
}
