// Package registry holds built-in, pack-loaded, and session-defined
// intents with session > pack > built-in lookup precedence, validates pack
// files against its schema, and hot-reloads pack directories via fsnotify.
package registry

import (
	"fmt"
	"sync"

	"github.com/nextlevelbuilder/oilengine/internal/ast"
)

// ConflictError is returned by LoadPack when an incoming pack's intent name
// collides with one already loaded from a *different* pack and force was
// not requested.
type ConflictError struct {
	Name       string
	PackPath   string
	ExistingAt string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("PackConflict: intent %q from pack %q already loaded from %q", e.Name, e.PackPath, e.ExistingAt)
}

// entry pairs a compiled definition with the pack file it was loaded from,
// so reload/unload can scope itself to one pack's contributions.
type entry struct {
	def      *ast.IntentDefinition
	packPath string
}

// Registry is the per-session merge of the three intent scopes.
// The built-in scope is shared process-wide and immutable after boot;
// pack and session scopes are per-session containers.
type Registry struct {
	mu sync.RWMutex

	builtins map[string]*ast.IntentDefinition // process-global, set once at construction
	packs    map[string]entry                 // name -> (definition, owning pack path)
	session  map[string]*ast.IntentDefinition
}

// New builds a Registry preloaded with the given built-in intents. Built-ins
// are a fixed process-long scope: callers pass the same slice
// from a process-wide Builtins() call, never recomputed per session.
func New(builtins []*ast.IntentDefinition) *Registry {
	r := &Registry{
		builtins: make(map[string]*ast.IntentDefinition, len(builtins)),
		packs:    make(map[string]entry),
		session:  make(map[string]*ast.IntentDefinition),
	}
	for _, b := range builtins {
		r.builtins[b.Name] = b
	}
	return r
}

// Lookup resolves name with precedence session > pack > built-in. It
// satisfies engine.IntentLookup.
func (r *Registry) Lookup(name string) (*ast.IntentDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if d, ok := r.session[name]; ok {
		return d, true
	}
	if e, ok := r.packs[name]; ok {
		return e.def, true
	}
	if d, ok := r.builtins[name]; ok {
		return d, true
	}
	return nil, false
}

// All returns every intent definition visible to this registry, in
// precedence order with duplicates resolved, for availability computation.
func (r *Registry) All() []*ast.IntentDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []*ast.IntentDefinition
	for name, d := range r.session {
		seen[name] = true
		out = append(out, d)
	}
	for name, e := range r.packs {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, e.def)
	}
	for name, d := range r.builtins {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, d)
	}
	return out
}

// DefineSession registers def in the session scope, overwriting any previous
// session-scoped definition of the same name.
func (r *Registry) DefineSession(def *ast.IntentDefinition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session[def.Name] = def
}

// UndefineSession removes a session-scoped intent. Reports whether one was
// present.
func (r *Registry) UndefineSession(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.session[name]; !ok {
		return false
	}
	delete(r.session, name)
	return true
}

// LoadPack validates and registers every intent definition decoded from
// one YAML pack file, rejecting the whole file atomically on any single
// invalid definition. force bypasses PackConflict.
func (r *Registry) LoadPack(packPath string, specs []*intentSpec, force bool) ([]*ast.IntentDefinition, error) {
	defs := make([]*ast.IntentDefinition, 0, len(specs))
	for _, s := range specs {
		if err := s.validate(); err != nil {
			return nil, err
		}
		def, err := s.compile()
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !force {
		for _, def := range defs {
			if existing, ok := r.packs[def.Name]; ok && existing.packPath != packPath {
				return nil, &ConflictError{Name: def.Name, PackPath: packPath, ExistingAt: existing.packPath}
			}
		}
	}
	for _, def := range defs {
		r.packs[def.Name] = entry{def: def, packPath: packPath}
	}
	return defs, nil
}

// UnloadPack removes every intent this registry currently attributes to
// packPath.
func (r *Registry) UnloadPack(packPath string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for name, e := range r.packs {
		if e.packPath == packPath {
			delete(r.packs, name)
			n++
		}
	}
	return n
}

// DecodePackFile parses a multi-document YAML pack file into intentSpecs,
// without validating or registering them. Exported so the loader and
// tests can separate parse errors from schema errors.
func DecodePackFile(data []byte) ([]*intentSpec, error) {
	return decodeYAMLDocuments(data)
}
