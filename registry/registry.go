// Package registry holds the symbols that docstring cross-references
// resolve against: handler functions, helper methods, and model classes.
// A Registry is built once and read-only afterwards, so resolution is
// free of side effects and repeatable within a run.
package registry

import (
	"strings"

	"github.com/vitalvas/docspec/docstring"
	"github.com/vitalvas/docspec/typeexpr"
)

// Param is one declared parameter of a callable symbol.
type Param struct {
	Name string
	Type string
}

// Symbol is a registered function, method, or model class.
//
// Return holds the raw return annotation text; empty means the symbol has
// no return annotation, which is distinct from returning None. Model is
// set for type constructors (model classes) and is what type expressions
// resolve to.
type Symbol struct {
	Name          string
	Module        string
	Class         string
	Doc           string
	Params        []Param
	Return        string
	Model         *typeexpr.Type
	LoginRequired bool

	parsed *docstring.Docstring
}

// QualifiedName is the symbol's full dotted name.
func (s *Symbol) QualifiedName() string {
	parts := make([]string, 0, 3)
	if s.Module != "" {
		parts = append(parts, s.Module)
	}
	if s.Class != "" {
		parts = append(parts, s.Class)
	}
	return strings.Join(append(parts, s.Name), ".")
}

// LocalName is the symbol's name qualified by its class only.
func (s *Symbol) LocalName() string {
	if s.Class != "" {
		return s.Class + "." + s.Name
	}
	return s.Name
}

// Docstring returns the parsed form of the symbol's docstring.
func (s *Symbol) Docstring() *docstring.Docstring {
	return s.parsed
}

// Builder accumulates symbols and produces an immutable Registry.
type Builder struct {
	syms []*Symbol
}

// Add registers a symbol. Later lookups know it under its qualified,
// class-local, and bare names.
func (b *Builder) Add(sym *Symbol) *Builder {
	b.syms = append(b.syms, sym)
	return b
}

// Build parses every symbol's docstring and freezes the table.
func (b *Builder) Build() *Registry {
	r := &Registry{
		byName:  make(map[string]*Symbol),
		modules: make(map[string]bool),
	}
	for _, sym := range b.syms {
		sym.parsed = docstring.Parse(sym.Doc)
		if sym.Module != "" {
			r.modules[sym.Module] = true
		}
		r.register(sym.QualifiedName(), sym)
		r.register(sym.LocalName(), sym)
		// Methods stay class-scoped: only free functions and classes get
		// a bare-name entry.
		if sym.Class == "" {
			r.register(sym.Name, sym)
		}
	}
	return r
}

// Registry is the immutable symbol table.
type Registry struct {
	byName  map[string]*Symbol
	modules map[string]bool
}

// register keeps the first symbol seen under a name. Ambiguous short
// names therefore resolve the same way on every lookup.
func (r *Registry) register(name string, sym *Symbol) {
	if _, ok := r.byName[name]; !ok {
		r.byName[name] = sym
	}
}

// Lookup finds a symbol by exact name.
func (r *Registry) Lookup(name string) (*Symbol, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// HasModule reports whether a module name was registered.
func (r *Registry) HasModule(name string) bool { return r.modules[name] }

// Resolve locates the symbol a cross-reference names, relative to the
// symbol whose docstring contains the reference. Strategies are tried in
// order and the first hit wins:
//
//  1. the name as written
//  2. qualified by the referring symbol's module
//  3. qualified by the last component of a dotted module
//  4. qualified by the referring symbol's class, for bare names
//
// A nil result means the reference is dangling; callers decide whether
// that is fatal.
func (r *Registry) Resolve(name string, from *Symbol) *Symbol {
	if s, ok := r.Lookup(name); ok {
		return s
	}
	if from == nil {
		return nil
	}
	if from.Module != "" {
		if s, ok := r.Lookup(from.Module + "." + name); ok {
			return s
		}
		if i := strings.LastIndex(from.Module, "."); i >= 0 {
			if s, ok := r.Lookup(from.Module[i+1:] + "." + name); ok {
				return s
			}
		}
	}
	if from.Class != "" && !strings.Contains(name, ".") {
		if s, ok := r.Lookup(from.Class + "." + name); ok {
			return s
		}
	}
	return nil
}

// ResolveRef parses a cross-reference line and resolves its target. The
// returned attr names which part of the target is wanted and defaults to
// "return".
func (r *Registry) ResolveRef(line string, from *Symbol) (sym *Symbol, attr string, ok bool) {
	target, attr, ok := docstring.ParseRef(line)
	if !ok {
		return nil, "", false
	}
	sym = r.Resolve(target, from)
	return sym, attr, sym != nil
}

// LookupType resolves model-class names for type expressions, making the
// registry usable as a typeexpr.Context.
func (r *Registry) LookupType(name string) (*typeexpr.Type, bool) {
	s, ok := r.byName[name]
	if !ok || s.Model == nil {
		return nil, false
	}
	return s.Model, true
}
