package schema

import (
	"strconv"

	"github.com/vitalvas/docspec/typeexpr"
)

// DefinitionsPrefix is where named schemas are referenced from while a
// document is being assembled. Aggregation rewrites it to the final
// components location.
const DefinitionsPrefix = "#/definitions/"

// ComponentsPrefix is the final reference location in the document.
const ComponentsPrefix = "#/components/schemas/"

// Definitions is the ordered named-schema table of one generation run.
type Definitions struct {
	names  []string
	byName map[string]*Node
}

func NewDefinitions() *Definitions {
	return &Definitions{byName: make(map[string]*Node)}
}

// Add registers a named schema. The first registration wins so that a
// name means the same schema everywhere in a run.
func (d *Definitions) Add(name string, n *Node) {
	if _, ok := d.byName[name]; ok {
		return
	}
	d.names = append(d.names, name)
	d.byName[name] = n
}

// Get returns the schema registered under name.
func (d *Definitions) Get(name string) (*Node, bool) {
	n, ok := d.byName[name]
	return n, ok
}

// Names returns registration order.
func (d *Definitions) Names() []string { return d.names }

func (d *Definitions) Len() int { return len(d.names) }

// scalarSchemas maps descriptor scalar names to wire type and format.
var scalarSchemas = map[string]Node{
	"str":   {Type: "string"},
	"int":   {Type: "integer"},
	"float": {Type: "number"},
	"bool":  {Type: "boolean"},
	"bytes": {Type: "string", Format: "byte"},
	"path":  {Type: "string", Format: "path"},
}

// Build converts a descriptor into its wire schema and annotates
// nullability in one step. Named object types register under defs and
// come back as references.
func Build(t *typeexpr.Type, defs *Definitions) *Node {
	n := FromType(t, defs)
	Annotate(n, t, false)
	return n
}

// FromType builds the schema shape without nullability marks. Nullability
// is a separate pass (Annotate) so that shape and annotation stay
// independently testable, matching how the two concerns layer in the
// pipeline.
func FromType(t *typeexpr.Type, defs *Definitions) *Node {
	switch t.Kind {
	case typeexpr.KindAny:
		return &Node{}
	case typeexpr.KindScalar:
		if s, ok := scalarSchemas[t.Name]; ok {
			n := s
			return &n
		}
		return &Node{Type: "string"}
	case typeexpr.KindObject:
		if t.Name == "" {
			return anonymousObject(t, defs)
		}
		if _, ok := defs.Get(t.Name); !ok {
			def := anonymousObject(t, defs)
			def.Title = t.Name
			defs.Add(t.Name, def)
		}
		return &Node{Ref: DefinitionsPrefix + t.Name}
	case typeexpr.KindMap:
		n := &Node{Type: "object"}
		if t.Elem != nil {
			n.AdditionalProperties = Build(t.Elem, defs)
		}
		return n
	case typeexpr.KindArray:
		n := &Node{Type: "array", Items: &Node{}}
		if t.Elem != nil {
			n.Items = FromType(t.Elem, defs)
		}
		return n
	case typeexpr.KindUnion:
		n := &Node{}
		for _, alt := range t.Alts {
			n.AnyOf = append(n.AnyOf, FromType(alt, defs))
		}
		return n
	case typeexpr.KindCallable:
		return callableSchema(t, defs)
	}
	return &Node{}
}

func anonymousObject(t *typeexpr.Type, defs *Definitions) *Node {
	n := &Node{Type: "object"}
	for _, f := range t.Fields {
		child := FromType(f.Type, defs)
		Annotate(child, f.Type, false)
		n.SetProperty(f.Name, child)
		if !f.Type.AllowNone() {
			n.RequiredProps = append(n.RequiredProps, f.Name)
		}
	}
	return n
}

// callableSchema encodes a function value as an object carrying an
// x-type marker, a positional args object, and the return value shape.
func callableSchema(t *typeexpr.Type, defs *Definitions) *Node {
	n := &Node{Type: "object", XType: "function"}
	switch t.ArgStyle {
	case typeexpr.ArgsOmitted:
		// No argument object at all.
	case typeexpr.ArgsAny:
		n.SetProperty("args", &Node{Type: "object"})
	case typeexpr.ArgsList:
		args := &Node{Type: "object"}
		for i, a := range t.Args {
			args.SetProperty(strconv.Itoa(i), FromType(a, defs))
		}
		n.SetProperty("args", args)
	}
	ret := &Node{}
	if t.Ret != nil {
		ret = FromType(t.Ret, defs)
	}
	n.SetProperty("retval", ret)
	return n
}
