package protocol

// ScanPayload is the wire shape of a "scan" response's data field: the
// element inventory plus detected patterns and page metadata. It is a
// plain JSON mirror, decoupled from the internal snapshot
// model; internal/backend converts between the two at the transport edge.
type ScanPayload struct {
	Generation uint64             `json:"generation"`
	Elements   []ElementPayload   `json:"elements"`
	Patterns   []PatternPayload   `json:"patterns"`
	Page       PagePayload        `json:"page"`
}

type BoundsPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type ElementPayload struct {
	ID          uint              `json:"id"`
	Tag         string            `json:"tag"`
	Role        string            `json:"role"`
	Text        string            `json:"text,omitempty"`
	Label       string            `json:"label,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Value       string            `json:"value,omitempty"`
	Bounds      *BoundsPayload    `json:"bounds,omitempty"`
	State       []string          `json:"state,omitempty"`
	Attrs       map[string]string `json:"attrs,omitempty"`
}

type PatternPayload struct {
	Name       string `json:"name"`
	ElementIDs []uint `json:"element_ids"`
}

type PagePayload struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}
