// Package snapshot holds the scanner's element inventory and the
// single-writer, multiple-reader store that caches the latest one.
package snapshot

// ElementState is one of the closed set of boolean flags an element may carry.
type ElementState string

const (
	StateVisible  ElementState = "visible"
	StateHidden   ElementState = "hidden"
	StateDisabled ElementState = "disabled"
	StateRequired ElementState = "required"
	StateChecked  ElementState = "checked"
	StatePrimary  ElementState = "primary"
	StateFocused  ElementState = "focused"
)

// Bounds is a viewport-relative bounding box.
type Bounds struct {
	X, Y, W, H float64
}

// ElementEntry is one row of a scan snapshot.
type ElementEntry struct {
	ID          uint
	Tag         string
	Role        string
	Text        string
	Label       string
	Placeholder string
	Value       string
	Bounds      *Bounds
	State       map[ElementState]bool
	Attrs       map[string]string
}

// HasState reports whether the element carries the given state flag.
func (e *ElementEntry) HasState(s ElementState) bool {
	return e.State != nil && e.State[s]
}

// Fingerprint is the structural identity used by the change tracker to
// recognize "the same element" across snapshots even if its ID was
// reissued.
type Fingerprint struct {
	Tag, Role, Label, Text string
}

func (e *ElementEntry) Fingerprint() Fingerprint {
	return Fingerprint{Tag: e.Tag, Role: e.Role, Label: e.Label, Text: e.Text}
}

// Page records the page-level metadata accompanying a scan.
type Page struct {
	URL   string
	Title string
}

// Pattern is a named cluster of elements the scanner detected (login_form,
// search_box, cookie_banner, pagination, ...).
type Pattern struct {
	Name       string
	ElementIDs []uint
}

// Snapshot is an immutable scan result. Once published it is
// never mutated; a new scan replaces it atomically via Store.Publish.
type Snapshot struct {
	Generation uint64
	Elements   []ElementEntry
	Patterns   []Pattern
	Page       Page
}

// ByID returns the element with the given ID, if present.
func (s *Snapshot) ByID(id uint) (*ElementEntry, bool) {
	for i := range s.Elements {
		if s.Elements[i].ID == id {
			return &s.Elements[i], true
		}
	}
	return nil, false
}

// Pattern returns the named pattern, if present.
func (s *Snapshot) Pattern(name string) (*Pattern, bool) {
	for i := range s.Patterns {
		if s.Patterns[i].Name == name {
			return &s.Patterns[i], true
		}
	}
	return nil, false
}
