package snapshot

import (
	"errors"
	"testing"
)

func TestStore_EmptyReturnsNoSnapshot(t *testing.T) {
	s := NewStore()
	if _, err := s.Current(false); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
	if s.Generation() != 0 {
		t.Errorf("expected generation 0 before any publish, got %d", s.Generation())
	}
}

func TestStore_PublishClearsStale(t *testing.T) {
	s := NewStore()
	s.Publish(&Snapshot{Generation: 1})
	if s.Stale() {
		t.Fatal("fresh publish must not be stale")
	}

	s.Invalidate()
	if !s.Stale() {
		t.Fatal("expected stale after Invalidate")
	}
	if _, err := s.Current(false); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale without acknowledgement, got %v", err)
	}
	if _, err := s.Current(true); err != nil {
		t.Fatalf("acknowledged read of a stale snapshot must succeed, got %v", err)
	}

	s.Publish(&Snapshot{Generation: 2})
	if s.Stale() {
		t.Fatal("publish must clear staleness")
	}
	if s.Generation() != 2 {
		t.Errorf("expected generation 2, got %d", s.Generation())
	}
}

func TestStore_PublishReplacesWholeSnapshot(t *testing.T) {
	s := NewStore()
	s.Publish(&Snapshot{Generation: 1, Elements: []ElementEntry{{ID: 1}}})
	s.Publish(&Snapshot{Generation: 2, Elements: []ElementEntry{{ID: 7}, {ID: 8}}})

	snap, err := s.Current(false)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if len(snap.Elements) != 2 || snap.Elements[0].ID != 7 {
		t.Errorf("expected the replacement snapshot, got %+v", snap.Elements)
	}
}

func TestSnapshot_ByIDAndPattern(t *testing.T) {
	snap := &Snapshot{
		Elements: []ElementEntry{{ID: 1, Tag: "button"}, {ID: 2, Tag: "input"}},
		Patterns: []Pattern{{Name: "login_form", ElementIDs: []uint{1, 2}}},
	}
	el, ok := snap.ByID(2)
	if !ok || el.Tag != "input" {
		t.Errorf("ByID(2) = %+v, %v", el, ok)
	}
	if _, ok := snap.ByID(99); ok {
		t.Error("expected ByID(99) to miss")
	}
	p, ok := snap.Pattern("login_form")
	if !ok || len(p.ElementIDs) != 2 {
		t.Errorf("Pattern(login_form) = %+v, %v", p, ok)
	}
	if _, ok := snap.Pattern("cookie_banner"); ok {
		t.Error("expected Pattern(cookie_banner) to miss")
	}
}
