// Package tracker diffs successive snapshots and computes per-intent
// availability.
package tracker

import (
	"fmt"

	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
)

// FieldChange is one "~ [id] field: from -> to" delta.
type FieldChange struct {
	ID    uint
	Field string
	From  string
	To    string
}

// URLChange records a page navigation between two snapshots.
type URLChange struct {
	From string
	To   string
}

// Diff is the result of comparing two snapshots.
type Diff struct {
	Appeared    []uint
	Disappeared []uint
	Changed     []FieldChange
	URLChanged  *URLChange
}

// Compute diffs next against prev, identifying "the same element" by ID
// first and falling back to structural fingerprint when a scan reissues
// IDs. prev may be nil (first scan): everything in next appears.
func Compute(prev, next *snapshot.Snapshot) Diff {
	var d Diff
	if next == nil {
		return d
	}
	if prev == nil {
		for _, el := range next.Elements {
			d.Appeared = append(d.Appeared, el.ID)
		}
		if next.Page.URL != "" {
			d.URLChanged = &URLChange{From: "", To: next.Page.URL}
		}
		return d
	}

	prevByID := indexByID(prev.Elements)
	nextByID := indexByID(next.Elements)

	matchedPrev := map[uint]bool{}
	matchedNext := map[uint]bool{}

	// Pass 1: same ID in both snapshots.
	for id, nel := range nextByID {
		if pel, ok := prevByID[id]; ok {
			d.Changed = append(d.Changed, fieldChanges(pel, nel)...)
			matchedPrev[id] = true
			matchedNext[id] = true
		}
	}

	// Pass 2: reissued IDs recognized by structural fingerprint.
	var remainingPrev []snapshot.ElementEntry
	for _, el := range prev.Elements {
		if !matchedPrev[el.ID] {
			remainingPrev = append(remainingPrev, el)
		}
	}
	usedPrev := map[uint]bool{}
	for _, nel := range next.Elements {
		if matchedNext[nel.ID] {
			continue
		}
		fp := nel.Fingerprint()
		for _, pel := range remainingPrev {
			if usedPrev[pel.ID] {
				continue
			}
			if pel.Fingerprint() == fp {
				usedPrev[pel.ID] = true
				matchedNext[nel.ID] = true
				matchedPrev[pel.ID] = true
				d.Changed = append(d.Changed, fieldChanges(pel, nel)...)
				break
			}
		}
	}

	for _, el := range prev.Elements {
		if !matchedPrev[el.ID] {
			d.Disappeared = append(d.Disappeared, el.ID)
		}
	}
	for _, el := range next.Elements {
		if !matchedNext[el.ID] {
			d.Appeared = append(d.Appeared, el.ID)
		}
	}

	if prev.Page.URL != next.Page.URL {
		d.URLChanged = &URLChange{From: prev.Page.URL, To: next.Page.URL}
	}
	return d
}

func indexByID(els []snapshot.ElementEntry) map[uint]snapshot.ElementEntry {
	m := make(map[uint]snapshot.ElementEntry, len(els))
	for _, el := range els {
		m[el.ID] = el
	}
	return m
}

func fieldChanges(prev, next snapshot.ElementEntry) []FieldChange {
	var out []FieldChange
	if prev.Text != next.Text {
		out = append(out, FieldChange{ID: next.ID, Field: "text", From: prev.Text, To: next.Text})
	}
	if prev.Value != next.Value {
		out = append(out, FieldChange{ID: next.ID, Field: "value", From: prev.Value, To: next.Value})
	}
	for _, flag := range stateFlags {
		was, is := prev.HasState(flag), next.HasState(flag)
		if was != is {
			out = append(out, FieldChange{ID: next.ID, Field: "state:" + string(flag),
				From: fmt.Sprintf("%v", was), To: fmt.Sprintf("%v", is)})
		}
	}
	return out
}

var stateFlags = []snapshot.ElementState{
	snapshot.StateVisible, snapshot.StateHidden, snapshot.StateDisabled,
	snapshot.StateRequired, snapshot.StateChecked, snapshot.StatePrimary, snapshot.StateFocused,
}
