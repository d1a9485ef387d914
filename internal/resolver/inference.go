package resolver

import (
	"sort"
	"strings"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
)

// dismissPatternKinds are the pattern names whose nearest instance a Dismiss
// intent closes.
var dismissPatternKinds = map[string]bool{"popup": true, "modal": true, "banner": true}

var dismissWords = []string{"close", "dismiss", "×", "x"}

// ResolveSubmit finds the element a bare "submit" intent should click: one
// whose state includes primary, or whose role is submit.
func (r *Resolver) ResolveSubmit(snap *snapshot.Snapshot) (uint, *ResolveError) {
	if snap == nil {
		return 0, newErr(ErrStaleSnapshot, ast.Target{}, "no snapshot available")
	}
	var primary, submitRole []snapshot.ElementEntry
	for _, el := range snap.Elements {
		if el.HasState(snapshot.StatePrimary) {
			primary = append(primary, el)
		}
		if strings.EqualFold(el.Role, "submit") {
			submitRole = append(submitRole, el)
		}
	}
	if id, err := r.pickUnique(ast.Target{}, snap.Elements, primary, nil); err == nil {
		return id, nil
	} else if err.Kind == ErrAmbiguous {
		return 0, err
	}
	return r.pickUnique(ast.Target{}, snap.Elements, submitRole, nil)
}

// ResolveDismiss finds the close/dismiss control within the nearest
// popup/modal/banner pattern.
func (r *Resolver) ResolveDismiss(snap *snapshot.Snapshot) (uint, *ResolveError) {
	if snap == nil {
		return 0, newErr(ErrStaleSnapshot, ast.Target{}, "no snapshot available")
	}
	for _, p := range snap.Patterns {
		if !dismissPatternKinds[p.Name] {
			continue
		}
		if id, ok := findDismissElement(snap, p.ElementIDs); ok {
			return id, nil
		}
	}
	return 0, newErr(ErrNotFound, ast.Target{}, "no popup/modal/banner with a dismiss control")
}

// ResolveAcceptCookies finds a cookie_banner pattern's accept element.
func (r *Resolver) ResolveAcceptCookies(snap *snapshot.Snapshot) (uint, *ResolveError) {
	if snap == nil {
		return 0, newErr(ErrStaleSnapshot, ast.Target{}, "no snapshot available")
	}
	p, ok := snap.Pattern("cookie_banner")
	if !ok {
		return 0, newErr(ErrNotFound, ast.Target{}, "no cookie_banner pattern in snapshot")
	}
	for _, id := range p.ElementIDs {
		el, ok := snap.ByID(id)
		if !ok {
			continue
		}
		if strings.EqualFold(el.Role, "accept") || strings.Contains(strings.ToLower(el.Text), "accept") {
			return id, nil
		}
	}
	return 0, newErr(ErrNotFound, ast.Target{}, "cookie_banner has no accept control")
}

func findDismissElement(snap *snapshot.Snapshot, ids []uint) (uint, bool) {
	var cands []snapshot.ElementEntry
	for _, id := range ids {
		el, ok := snap.ByID(id)
		if !ok {
			continue
		}
		if strings.EqualFold(el.Role, "dismiss") || matchesDismissWord(el) {
			cands = append(cands, *el)
		}
	}
	if len(cands) == 0 {
		return 0, false
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })
	return cands[0].ID, true
}

func matchesDismissWord(el *snapshot.ElementEntry) bool {
	text := strings.ToLower(strings.TrimSpace(el.Text))
	label := strings.ToLower(el.Attrs["aria-label"])
	for _, w := range dismissWords {
		if text == w || label == w || strings.Contains(label, w) {
			return true
		}
	}
	return false
}
