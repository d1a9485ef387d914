// Package resolver turns a semantic Target into a concrete element ID
// against a cached scan snapshot, via the Id/Text/Role/Css/Xpath/relational
// fallback chain.
package resolver

import (
	"math"
	"sort"
	"strings"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
	"github.com/nextlevelbuilder/oilengine/internal/snapshot"
)

// SelectorDelegate resolves Css/Xpath targets, which the core has no opinion
// on and must hand off to whatever scanner produced the snapshot. The
// delegate answers with a single concrete ID or not-found.
type SelectorDelegate interface {
	ResolveCSS(selector string) (uint, bool, error)
	ResolveXPath(selector string) (uint, bool, error)
}

// DefaultNearThreshold is the distance, in viewport pixels between bounds
// centers, under which two elements are considered "near" each other.
const DefaultNearThreshold = 150.0

// Resolver resolves Targets against Snapshots. It is stateless
// beyond its configuration, so one instance is safe to reuse across an
// entire session.
type Resolver struct {
	Delegate      SelectorDelegate
	NearThreshold float64
}

// New builds a Resolver with the default near-threshold.
func New(delegate SelectorDelegate) *Resolver {
	return &Resolver{Delegate: delegate, NearThreshold: DefaultNearThreshold}
}

func (r *Resolver) threshold() float64 {
	if r.NearThreshold > 0 {
		return r.NearThreshold
	}
	return DefaultNearThreshold
}

// Resolve finds the concrete element ID a Target refers to within snap,
// validating it against req. snap must be the current,
// non-stale snapshot; callers are responsible for checking
// snapshot.Store.Current before calling Resolve (ErrStaleSnapshot is
// returned here only when snap itself is nil).
func (r *Resolver) Resolve(target ast.Target, snap *snapshot.Snapshot, req RequirementKind) (uint, *ResolveError) {
	if snap == nil {
		return 0, newErr(ErrStaleSnapshot, target, "no snapshot available")
	}

	id, rerr := r.resolveInPool(target, snap, snap.Elements)
	if rerr != nil {
		// A tie between a label and the control it names is not a real
		// ambiguity when the command constrains the element shape: narrow
		// the candidate set to the ones that can actually satisfy it.
		if rerr.Kind == ErrAmbiguous && req != ReqNone {
			if nid, ok := narrowByRequirement(rerr.Candidates, snap, req); ok {
				return nid, nil
			}
		}
		return 0, rerr
	}

	if req == ReqNone {
		return id, nil
	}

	el, ok := snap.ByID(id)
	if !ok {
		return 0, newErr(ErrNotFound, target, "resolved id vanished from snapshot")
	}
	if satisfiesRequirement(*el, req) {
		return id, nil
	}
	// Label association fallback: if the resolved element is a label,
	// follow its "for" attribute to the associated control, or, absent
	// one, fall back to the control the label spatially contains (the
	// common wrapping-label pattern with no explicit "for=").
	if strings.EqualFold(el.Tag, "label") {
		if forID, ok := el.Attrs["for"]; ok {
			if ctl, found := findByAttrID(snap, forID); found {
				if satisfiesRequirement(*ctl, req) {
					return ctl.ID, nil
				}
			}
		}
		if el.Bounds != nil {
			if ctl, found := findContained(snap, el); found {
				if satisfiesRequirement(*ctl, req) {
					return ctl.ID, nil
				}
			}
		}
	}
	return 0, &ResolveError{Kind: ErrUnsatisfiedRequirement, Target: target, ElementID: id,
		Message: "resolved element does not satisfy the command's requirement"}
}

// narrowByRequirement keeps only the ambiguous candidates that satisfy req,
// directly or through their label's associated control. A unique survivor
// resolves the tie; anything else leaves the ambiguity standing.
func narrowByRequirement(candidates []uint, snap *snapshot.Snapshot, req RequirementKind) (uint, bool) {
	var conforming []uint
	for _, id := range candidates {
		el, ok := snap.ByID(id)
		if !ok {
			continue
		}
		if satisfiesRequirement(*el, req) {
			conforming = append(conforming, id)
			continue
		}
		if strings.EqualFold(el.Tag, "label") {
			if forID, ok := el.Attrs["for"]; ok {
				if ctl, found := findByAttrID(snap, forID); found && satisfiesRequirement(*ctl, req) {
					conforming = append(conforming, ctl.ID)
				}
			}
		}
	}
	conforming = dedupIDs(conforming)
	if len(conforming) == 1 {
		return conforming[0], true
	}
	return 0, false
}

func dedupIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func findByAttrID(snap *snapshot.Snapshot, wantID string) (*snapshot.ElementEntry, bool) {
	for i := range snap.Elements {
		if snap.Elements[i].Attrs["id"] == wantID {
			return &snap.Elements[i], true
		}
	}
	return nil, false
}

// findContained returns the smallest interactive control bounds-contained
// within label, for the wrapping-label pattern ("<label>Name <input></label>")
// that carries no "for=" attribute to follow instead.
func findContained(snap *snapshot.Snapshot, label *snapshot.ElementEntry) (*snapshot.ElementEntry, bool) {
	var best *snapshot.ElementEntry
	var bestArea float64
	for i := range snap.Elements {
		el := &snap.Elements[i]
		if el.ID == label.ID || el.Bounds == nil {
			continue
		}
		if !boundsContain(label.Bounds, el.Bounds) {
			continue
		}
		area := el.Bounds.W * el.Bounds.H
		if best == nil || area < bestArea {
			best, bestArea = el, area
		}
	}
	return best, best != nil
}

func (r *Resolver) resolveInPool(target ast.Target, snap *snapshot.Snapshot, pool []snapshot.ElementEntry) (uint, *ResolveError) {
	if target.IsRelational() {
		return r.resolveRelational(target, snap, pool)
	}

	switch target.Kind {
	case ast.TargetID:
		return r.resolveID(target, pool)
	case ast.TargetRole:
		return r.resolveRole(target, pool)
	case ast.TargetText:
		return r.resolveText(target, pool)
	case ast.TargetCSS:
		return r.resolveSelector(target, false)
	case ast.TargetXPath:
		return r.resolveSelector(target, true)
	default:
		return 0, newErr(ErrNotFound, target, "unknown target kind")
	}
}

// resolveRelational resolves Arg (the anchor/container/ref/needle) against
// the full snapshot, filters pool by spatial/order relation to it, then
// resolves Inner (the target actually being located) within that filtered
// set. An Inner that matches elsewhere in the snapshot but not within the
// filtered set is reported as RelationNotResolvable rather than NotFound.
func (r *Resolver) resolveRelational(target ast.Target, snap *snapshot.Snapshot, pool []snapshot.ElementEntry) (uint, *ResolveError) {
	anchorID, aerr := r.resolveInPool(*target.Arg, snap, snap.Elements)
	if aerr != nil {
		return 0, aerr
	}
	anchor, ok := snap.ByID(anchorID)
	if !ok {
		return 0, newErr(ErrRelationNotResolvable, target, "anchor element vanished from snapshot")
	}

	filtered := filterByRelation(target.Kind, pool, snap, anchor, r.threshold())
	if len(filtered) == 0 {
		return 0, newErr(ErrRelationNotResolvable, target, "no elements satisfy relation '"+target.RelationWord()+"'")
	}

	id, ierr := r.resolveInPool(*target.Inner, snap, filtered)
	if ierr != nil && ierr.Kind == ErrNotFound {
		if _, anyErr := r.resolveInPool(*target.Inner, snap, snap.Elements); anyErr == nil || anyErr.Kind != ErrNotFound {
			return 0, newErr(ErrRelationNotResolvable, target, "no match satisfies relation '"+target.RelationWord()+"'")
		}
	}
	return id, ierr
}

func filterByRelation(kind ast.TargetKind, pool []snapshot.ElementEntry, snap *snapshot.Snapshot, anchor *snapshot.ElementEntry, nearThreshold float64) []snapshot.ElementEntry {
	var out []snapshot.ElementEntry
	anchorIdx := indexOf(snap, anchor.ID)

	for _, el := range pool {
		if el.ID == anchor.ID {
			continue
		}
		switch kind {
		case ast.TargetNear:
			if el.Bounds != nil && anchor.Bounds != nil && centerDistance(el.Bounds, anchor.Bounds) <= nearThreshold {
				out = append(out, el)
			}
		case ast.TargetInside:
			if el.Bounds != nil && anchor.Bounds != nil && boundsContain(anchor.Bounds, el.Bounds) {
				out = append(out, el)
			}
		case ast.TargetContains:
			if el.Bounds != nil && anchor.Bounds != nil && boundsContain(el.Bounds, anchor.Bounds) {
				out = append(out, el)
			}
		case ast.TargetAfter:
			if indexOf(snap, el.ID) > anchorIdx {
				out = append(out, el)
			}
		case ast.TargetBefore:
			if indexOf(snap, el.ID) < anchorIdx {
				out = append(out, el)
			}
		}
	}
	return out
}

func indexOf(snap *snapshot.Snapshot, id uint) int {
	for i := range snap.Elements {
		if snap.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

func centerDistance(a, b *snapshot.Bounds) float64 {
	ax, ay := a.X+a.W/2, a.Y+a.H/2
	bx, by := b.X+b.W/2, b.Y+b.H/2
	dx, dy := ax-bx, ay-by
	return math.Sqrt(dx*dx + dy*dy)
}

func boundsContain(outer, inner *snapshot.Bounds) bool {
	return inner.X >= outer.X && inner.Y >= outer.Y &&
		inner.X+inner.W <= outer.X+outer.W && inner.Y+inner.H <= outer.Y+outer.H
}

func (r *Resolver) resolveID(target ast.Target, pool []snapshot.ElementEntry) (uint, *ResolveError) {
	id := uint(target.ID)
	for _, el := range pool {
		if el.ID == id {
			return id, nil
		}
	}
	return 0, newErr(ErrNotFound, target, "no element with that id")
}

func (r *Resolver) resolveRole(target ast.Target, pool []snapshot.ElementEntry) (uint, *ResolveError) {
	want := strings.ToLower(target.Value)
	var cands []snapshot.ElementEntry
	for _, el := range pool {
		if strings.ToLower(el.Role) == want {
			cands = append(cands, el)
		}
	}
	return r.pickUnique(target, pool, cands, preferVisibleRequired)
}

func (r *Resolver) resolveText(target ast.Target, pool []snapshot.ElementEntry) (uint, *ResolveError) {
	want := target.Value

	var exact []snapshot.ElementEntry
	for _, el := range pool {
		if el.Text == want || el.Label == want {
			exact = append(exact, el)
		}
	}
	if len(exact) > 0 {
		return r.pickUnique(target, pool, exact, preferPrimary)
	}

	lowerWant := strings.ToLower(want)
	var ciExact []snapshot.ElementEntry
	for _, el := range pool {
		if strings.ToLower(el.Text) == lowerWant || strings.ToLower(el.Label) == lowerWant {
			ciExact = append(ciExact, el)
		}
	}
	if len(ciExact) > 0 {
		return r.pickUnique(target, pool, ciExact, preferPrimary)
	}

	var sub []snapshot.ElementEntry
	for _, el := range pool {
		if strings.Contains(strings.ToLower(el.Text), lowerWant) ||
			strings.Contains(strings.ToLower(el.Label), lowerWant) ||
			strings.Contains(strings.ToLower(el.Placeholder), lowerWant) ||
			strings.Contains(strings.ToLower(el.Value), lowerWant) {
			sub = append(sub, el)
		}
	}
	return r.pickUnique(target, pool, sub, preferPrimary)
}

// pickUnique applies pref (the target kind's own state preference:
// visible+required for roles, primary for text matches; nil skips the
// filter) and returns the winner, or an Ambiguous error carrying the full
// ordered candidate list if more than one remains after preference
// filtering.
func (r *Resolver) pickUnique(target ast.Target, fullPool, cands []snapshot.ElementEntry, pref func([]snapshot.ElementEntry) []snapshot.ElementEntry) (uint, *ResolveError) {
	if len(cands) == 0 {
		return 0, newErr(ErrNotFound, target, "no matching element")
	}
	if len(cands) == 1 {
		return cands[0].ID, nil
	}

	if pref != nil {
		preferred := pref(cands)
		if len(preferred) == 1 {
			return preferred[0].ID, nil
		}
		if len(preferred) > 0 {
			cands = preferred
		}
	}

	sort.Slice(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })
	ids := make([]uint, len(cands))
	for i, el := range cands {
		ids[i] = el.ID
	}
	return 0, &ResolveError{Kind: ErrAmbiguous, Target: target, Candidates: ids,
		Message: "multiple elements match"}
}

// preferVisibleRequired is the Role strategy's state preference: a Role
// candidate wins only by being both visible and required, never by being
// primary alone.
func preferVisibleRequired(cands []snapshot.ElementEntry) []snapshot.ElementEntry {
	var out []snapshot.ElementEntry
	for _, el := range cands {
		if el.HasState(snapshot.StateVisible) && el.HasState(snapshot.StateRequired) {
			out = append(out, el)
		}
	}
	return out
}

// preferPrimary is the Text strategy's state preference: a Text candidate
// wins only by being primary, never by visible+required alone.
func preferPrimary(cands []snapshot.ElementEntry) []snapshot.ElementEntry {
	var out []snapshot.ElementEntry
	for _, el := range cands {
		if el.HasState(snapshot.StatePrimary) {
			out = append(out, el)
		}
	}
	return out
}

func (r *Resolver) resolveSelector(target ast.Target, isXPath bool) (uint, *ResolveError) {
	if r.Delegate == nil {
		return 0, newErr(ErrInvalidSelector, target, "no selector delegate configured")
	}
	var id uint
	var found bool
	var err error
	if isXPath {
		id, found, err = r.Delegate.ResolveXPath(target.Value)
	} else {
		id, found, err = r.Delegate.ResolveCSS(target.Value)
	}
	if err != nil {
		return 0, newErr(ErrInvalidSelector, target, err.Error())
	}
	if !found {
		return 0, newErr(ErrNotFound, target, "selector matched no element")
	}
	return id, nil
}
