package verifier

import (
	"regexp"
	"strings"

	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
)

// compoundSelectorPart matches one #id/.class component of a
// single-element CSS compound selector: an optional tag name followed by
// any number of #id/.class components (no combinators). Count conditions operate purely over the flat snapshot, so
// full CSS (descendant/child combinators) is out of scope; see DESIGN.md.
var compoundSelectorPart = regexp.MustCompile(`[#.][-\w]+`)

func matchesCompoundSelector(el *snapshot.ElementEntry, selector string) bool {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return false
	}

	tagEnd := len(selector)
	if i := strings.IndexAny(selector, "#."); i >= 0 {
		tagEnd = i
	}
	tag := selector[:tagEnd]
	if tag != "" && !strings.EqualFold(tag, el.Tag) {
		return false
	}

	classes := strings.Fields(el.Attrs["class"])
	classSet := make(map[string]bool, len(classes))
	for _, c := range classes {
		classSet[c] = true
	}

	for _, part := range compoundSelectorPart.FindAllString(selector[tagEnd:], -1) {
		switch part[0] {
		case '#':
			if el.Attrs["id"] != part[1:] {
				return false
			}
		case '.':
			if !classSet[part[1:]] {
				return false
			}
		}
	}
	return true
}

func countMatching(snap *snapshot.Snapshot, selector string) int {
	n := 0
	for i := range snap.Elements {
		if matchesCompoundSelector(&snap.Elements[i], selector) {
			n++
		}
	}
	return n
}
