// Package wsbackend implements the Backend interface over a WebSocket
// connection to a browser extension: WriteJSON a request envelope,
// ReadJSON the matching response. A full CDP/WebDriver driver is a
// separate, external transport this package does not attempt.
package wsbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nextlevelbuilder/oilengine/internal/backend"
	"github.com/nextlevelbuilder/oilengine/pkg/protocol"
)

// cropPNG decodes a full-page PNG capture and crops it to the given
// element bounds, re-encoding the result as PNG.
func cropPNG(data []byte, x, y, w, h int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, backend.ProtocolError("decode-screenshot-image", err.Error())
	}
	rect := image.Rect(x, y, x+w, y+h)
	cropped := imaging.Crop(img, rect)
	var buf bytes.Buffer
	if err := png.Encode(&buf, cropped); err != nil {
		return nil, backend.ProtocolError("encode-screenshot-image", err.Error())
	}
	return buf.Bytes(), nil
}

// envelope is the one request/response frame shape every RPC (not just
// scanner dispatch) rides over this transport, so Navigate/Press/Screenshot/
// etc. share the same connection as scan/click/type without a second
// protocol.
type envelope struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *string         `json:"error,omitempty"`
}

// Backend is a websocket-backed backend.Backend. The core dispatches one
// request at a time per session,
// so this need not multiplex concurrent calls; mu simply guards the
// connection handle itself against concurrent misuse from outside that
// contract.
type Backend struct {
	mu   sync.Mutex
	conn *websocket.Conn
	url  string

	DialTimeout time.Duration
}

// New builds a Backend that dials url on Launch.
func New(url string, dialTimeout time.Duration) *Backend {
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &Backend{url: url, DialTimeout: dialTimeout}
}

func (b *Backend) Launch(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = b.DialTimeout
	conn, _, err := dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return backend.ConnectionFailed(err.Error())
	}
	b.conn = conn
	return nil
}

func (b *Backend) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

func (b *Backend) IsReady(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil
}

// call sends one method/params envelope and waits for its matching response,
// serialized by mu so a single connection never interleaves two frames.
func (b *Backend) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.conn == nil {
		return nil, backend.NotConnected("websocket backend not launched")
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, backend.ProtocolError("marshal-params", err.Error())
	}
	req := envelope{ID: uuid.NewString(), Method: method, Params: raw}

	if dl, ok := ctx.Deadline(); ok {
		_ = b.conn.SetWriteDeadline(dl)
		_ = b.conn.SetReadDeadline(dl)
	}

	if err := b.conn.WriteJSON(req); err != nil {
		return nil, backend.ConnectionFailed(err.Error())
	}

	var resp response
	if err := b.conn.ReadJSON(&resp); err != nil {
		if isTimeoutErr(err) {
			return nil, backend.Timeout(method)
		}
		return nil, backend.ConnectionFailed(err.Error())
	}
	if resp.ID != req.ID {
		return nil, backend.ProtocolError("id-mismatch", fmt.Sprintf("expected %s, got %s", req.ID, resp.ID))
	}
	if resp.Error != nil {
		return nil, backend.RemoteError(method, *resp.Error)
	}
	return resp.Result, nil
}

func isTimeoutErr(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}

func (b *Backend) Navigate(ctx context.Context, url string, headers map[string]string) (backend.NavResult, error) {
	raw, err := b.call(ctx, "navigate", map[string]any{"url": url, "headers": headers})
	if err != nil {
		return backend.NavResult{}, err
	}
	var out struct {
		FinalURL string `json:"final_url"`
		LoadMS   int64  `json:"load_ms"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return backend.NavResult{}, backend.ProtocolError("decode-navigate", err.Error())
	}
	return backend.NavResult{FinalURL: out.FinalURL, LoadTime: time.Duration(out.LoadMS) * time.Millisecond}, nil
}

func (b *Backend) Back(ctx context.Context) error {
	_, err := b.call(ctx, "back", struct{}{})
	return err
}

func (b *Backend) Forward(ctx context.Context) error {
	_, err := b.call(ctx, "forward", struct{}{})
	return err
}

func (b *Backend) Refresh(ctx context.Context, hard bool) error {
	_, err := b.call(ctx, "refresh", map[string]any{"hard": hard})
	return err
}

func (b *Backend) Press(ctx context.Context, keyChord string) error {
	_, err := b.call(ctx, "press", map[string]any{"key": keyChord})
	return err
}

// DispatchScanner forwards req verbatim as the envelope's params: the
// scanner protocol already defines its own action/fields shape,
// so this transport just carries it rather than re-wrapping it.
func (b *Backend) DispatchScanner(ctx context.Context, req *protocol.ScannerRequest) (*protocol.ScannerResponse, error) {
	raw, err := b.call(ctx, "scanner", req)
	if err != nil {
		return nil, err
	}
	var resp protocol.ScannerResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, backend.ProtocolError("decode-scanner-response", err.Error())
	}
	return &resp, nil
}

// Screenshot requests a full-page capture from the extension and, when
// selector names an element, crops the decoded PNG to that element's
// bounds rather than asking the extension to do element-level cropping
// itself: one capture primitive on the wire, cropping done locally.
func (b *Backend) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	raw, err := b.call(ctx, "screenshot", map[string]any{"selector": selector})
	if err != nil {
		return nil, err
	}
	var out struct {
		Data   []byte `json:"data"`
		Bounds *struct {
			X int `json:"x"`
			Y int `json:"y"`
			W int `json:"w"`
			H int `json:"h"`
		} `json:"bounds"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, backend.ProtocolError("decode-screenshot", err.Error())
	}
	if out.Bounds == nil || selector == "" {
		return out.Data, nil
	}
	return cropPNG(out.Data, out.Bounds.X, out.Bounds.Y, out.Bounds.W, out.Bounds.H)
}

func (b *Backend) PDF(ctx context.Context) ([]byte, error) {
	raw, err := b.call(ctx, "pdf", struct{}{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Data []byte `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, backend.ProtocolError("decode-pdf", err.Error())
	}
	return out.Data, nil
}

func (b *Backend) Cookies(ctx context.Context, action string, args map[string]string) (map[string]any, error) {
	return b.callMap(ctx, "cookies", action, args)
}

func (b *Backend) Tabs(ctx context.Context, action string, args map[string]string) (map[string]any, error) {
	return b.callMap(ctx, "tabs", action, args)
}

func (b *Backend) DevTools(ctx context.Context, area, action string, args map[string]string) (map[string]any, error) {
	params := map[string]any{"area": area, "action": action, "args": args}
	raw, err := b.call(ctx, "devtools", params)
	if err != nil {
		return nil, err
	}
	return decodeMap(raw)
}

func (b *Backend) callMap(ctx context.Context, method, action string, args map[string]string) (map[string]any, error) {
	raw, err := b.call(ctx, method, map[string]any{"action": action, "args": args})
	if err != nil {
		return nil, err
	}
	return decodeMap(raw)
}

func decodeMap(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, backend.ProtocolError("decode-result", err.Error())
	}
	return out, nil
}
