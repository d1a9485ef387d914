// Package protocol defines the wire envelope the scanner (in-page agent)
// and the core engine exchange over whatever transport a Backend uses: a
// JSON request/response pair, never multiplexed.
package protocol

import "encoding/json"

// Action is the closed set of scanner request verbs.
type Action string

const (
	ActionScan     Action = "scan"
	ActionClick    Action = "click"
	ActionType     Action = "type"
	ActionClear    Action = "clear"
	ActionCheck    Action = "check"
	ActionFocus    Action = "focus"
	ActionHover    Action = "hover"
	ActionSelect   Action = "select"
	ActionSubmit   Action = "submit"
	ActionGetText  Action = "get_text"
	ActionGetHTML  Action = "get_html"
	ActionExtract  Action = "extract"
	ActionWait     Action = "wait"
	ActionStorage  Action = "storage"
	ActionExecute  Action = "execute"
	ActionLogin    Action = "login"
	ActionSearch   Action = "search"
	ActionDismiss  Action = "dismiss"
	ActionAccept   Action = "accept"
)

// ScannerRequest is the envelope sent to the in-page scanner: {"action":
// "<verb>", ...fields}. Fields is a flat bag rather than per-action structs
// because the wire format is intentionally loose JSON; callers
// populate it via the With* helpers for type safety on the Go side.
type ScannerRequest struct {
	Action Action         `json:"action"`
	Fields map[string]any `json:"-"`
}

// MarshalJSON flattens Fields alongside "action" into one JSON object.
func (r ScannerRequest) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		m[k] = v
	}
	m["action"] = string(r.Action)
	return json.Marshal(m)
}

// UnmarshalJSON splits "action" back out from the rest of the flat object.
func (r *ScannerRequest) UnmarshalJSON(b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	if a, ok := m["action"].(string); ok {
		r.Action = Action(a)
	}
	delete(m, "action")
	r.Fields = m
	return nil
}

func NewScannerRequest(action Action) *ScannerRequest {
	return &ScannerRequest{Action: action, Fields: map[string]any{}}
}

func (r *ScannerRequest) With(key string, val any) *ScannerRequest {
	r.Fields[key] = val
	return r
}

// Status is the closed set of response outcomes.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// ResponseError is the {"code","message"} pair on an error response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ScannerResponse is the envelope returned by the scanner.
// Responses correspond 1:1 to requests; they are never multiplexed.
type ScannerResponse struct {
	Status Status          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

func (r *ScannerResponse) OK() bool { return r.Status == StatusOK }

// DecodeData unmarshals the response's Data payload into v.
func (r *ScannerResponse) DecodeData(v any) error {
	return json.Unmarshal(r.Data, v)
}
