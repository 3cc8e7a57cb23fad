// Package typeexpr models Python-style type annotations as an explicit
// descriptor tree. Annotations are parsed, never executed: every name that
// is not part of the builtin grammar resolves through a caller-supplied
// Context.
package typeexpr

// Kind discriminates the descriptor variants.
type Kind int

const (
	KindAny Kind = iota
	KindScalar
	KindObject
	KindMap
	KindArray
	KindUnion
	KindCallable
)

// ArgStyle describes how a callable declares its arguments.
type ArgStyle int

const (
	// ArgsOmitted is the "Callable[[], R]" form: no argument object at all.
	ArgsOmitted ArgStyle = iota
	// ArgsAny covers bare "Callable" and "Callable[..., R]".
	ArgsAny
	// ArgsList is an explicit positional argument list.
	ArgsList
)

// Field is one named member of an object type. Order is significant.
type Field struct {
	Name string
	Type *Type
}

// Type is a parsed type descriptor.
//
// Name holds the scalar keyword ("str", "int", "float", "bool", "bytes",
// "path") or the declared name of an object type. Elem is the value type
// for maps and the element type for arrays (nil means unconstrained).
type Type struct {
	Kind     Kind
	Name     string
	Fields   []Field
	Elem     *Type
	Alts     []*Type
	Args     []*Type
	ArgStyle ArgStyle
	Ret      *Type

	nullable bool
}

// AllowNone reports whether the value may be null.
func (t *Type) AllowNone() bool { return t.nullable }

// MarkNullable flags the type as accepting null. The flag is monotonic:
// nothing ever clears it.
func (t *Type) MarkNullable() { t.nullable = true }

// Clone returns a deep copy. Context lookups hand out clones so that
// nullability marks on one use site never leak into another.
func (t *Type) Clone() *Type {
	if t == nil {
		return nil
	}
	out := *t
	if t.Fields != nil {
		out.Fields = make([]Field, len(t.Fields))
		for i, f := range t.Fields {
			out.Fields[i] = Field{Name: f.Name, Type: f.Type.Clone()}
		}
	}
	out.Elem = t.Elem.Clone()
	if t.Alts != nil {
		out.Alts = make([]*Type, len(t.Alts))
		for i, a := range t.Alts {
			out.Alts[i] = a.Clone()
		}
	}
	if t.Args != nil {
		out.Args = make([]*Type, len(t.Args))
		for i, a := range t.Args {
			out.Args[i] = a.Clone()
		}
	}
	out.Ret = t.Ret.Clone()
	return &out
}

// NewAny returns an unconstrained descriptor.
func NewAny() *Type { return &Type{Kind: KindAny} }

// NewScalar returns a scalar descriptor for the given keyword.
func NewScalar(name string) *Type { return &Type{Kind: KindScalar, Name: name} }

// NewObject returns a named object descriptor with ordered fields.
func NewObject(name string, fields []Field) *Type {
	return &Type{Kind: KindObject, Name: name, Fields: fields}
}

// NewMap returns a string-keyed map descriptor.
func NewMap(elem *Type) *Type { return &Type{Kind: KindMap, Elem: elem} }

// NewArray returns an array descriptor. A nil elem leaves the element
// type unconstrained.
func NewArray(elem *Type) *Type { return &Type{Kind: KindArray, Elem: elem} }

// NewUnion returns a union descriptor over the given alternatives.
func NewUnion(alts []*Type) *Type { return &Type{Kind: KindUnion, Alts: alts} }

// Context resolves names that the grammar does not define, typically
// model classes registered with the symbol registry or declared inline
// in a Schemas block.
type Context interface {
	LookupType(name string) (*Type, bool)
}

// MapContext is a map-backed Context.
type MapContext map[string]*Type

func (m MapContext) LookupType(name string) (*Type, bool) {
	t, ok := m[name]
	return t, ok
}

// Chain tries each context in order, first hit wins. Inline schema
// declarations chain in front of the registry this way.
type Chain []Context

func (c Chain) LookupType(name string) (*Type, bool) {
	for _, ctx := range c {
		if ctx == nil {
			continue
		}
		if t, ok := ctx.LookupType(name); ok {
			return t, ok
		}
	}
	return nil, false
}
