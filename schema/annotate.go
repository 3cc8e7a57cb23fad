package schema

import (
	"strconv"

	"github.com/vitalvas/docspec/typeexpr"
)

// Annotate walks a schema and its descriptor in lockstep and injects
// nullability. Absence of the mark means "not nullable"; the walk never
// writes a false.
//
// A nullable reference cannot carry the mark directly, so it is wrapped:
//
//	{$ref: X}  ->  {anyOf: [{$ref: X}], nullable: true}
//
// processAll extends the map element rule to any concrete properties
// the node carries alongside additionalProperties.
func Annotate(n *Node, t *typeexpr.Type, processAll bool) {
	if n == nil || t == nil {
		return
	}
	if t.AllowNone() {
		if n.Ref != "" {
			ref := n.Ref
			n.Ref = ""
			n.AnyOf = []*Node{{Ref: ref}}
		}
		n.Nullable = true
	}
	switch t.Kind {
	case typeexpr.KindMap:
		if t.Elem == nil {
			return
		}
		if n.AdditionalProperties != nil {
			Annotate(n.AdditionalProperties, t.Elem, processAll)
		}
		if processAll {
			for _, p := range n.Properties {
				Annotate(p.Schema, t.Elem, processAll)
			}
		}
	case typeexpr.KindObject:
		for _, f := range t.Fields {
			if child, ok := n.Property(f.Name); ok {
				Annotate(child, f.Type, processAll)
			}
		}
	case typeexpr.KindArray:
		if t.Elem != nil && n.Items != nil {
			Annotate(n.Items, t.Elem, processAll)
		}
	case typeexpr.KindUnion:
		for i, alt := range t.Alts {
			if i < len(n.AnyOf) {
				Annotate(n.AnyOf[i], alt, processAll)
			}
		}
	case typeexpr.KindCallable:
		annotateCallable(n, t, processAll)
	}
}

func annotateCallable(n *Node, t *typeexpr.Type, processAll bool) {
	if args, ok := n.Property("args"); ok && t.ArgStyle == typeexpr.ArgsList {
		for i, a := range t.Args {
			if child, ok := args.Property(strconv.Itoa(i)); ok {
				Annotate(child, a, processAll)
			}
		}
	}
	if ret, ok := n.Property("retval"); ok && t.Ret != nil {
		Annotate(ret, t.Ret, processAll)
	}
}

// AnnotateRequired marks the required flag on a parameter schema:
// required exactly when the declared type does not allow null. The
// query-parameter synthesizer pops the flag off the schema onto the
// parameter itself, so serialized nodes rarely carry it. Map elements
// and union members are marked too, mirroring the nullability walk.
func AnnotateRequired(n *Node, t *typeexpr.Type) {
	if n == nil || t == nil {
		return
	}
	n.Required = !t.AllowNone()
	switch t.Kind {
	case typeexpr.KindMap:
		if t.Elem != nil && n.AdditionalProperties != nil {
			AnnotateRequired(n.AdditionalProperties, t.Elem)
		}
	case typeexpr.KindUnion:
		for i, alt := range t.Alts {
			if i < len(n.AnyOf) {
				AnnotateRequired(n.AnyOf[i], alt)
			}
		}
	}
}
