package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/vitalvas/docspec/docstring"
	"github.com/vitalvas/docspec/typeexpr"
)

// ErrMissingSchema reports a declaration that references a name nothing
// in scope provides. The endpoint carrying the declaration fails; the
// rest of the run continues.
var ErrMissingSchema = errors.New("schema declaration references unknown name")

// Decl is one schema class declared inline in a Schemas section.
type Decl struct {
	Name string
	Base string
	Type *typeexpr.Type
}

var classRegexp = regexp.MustCompile(`^class\s+(\w+)\s*(?:\(\s*([\w.]*)\s*\))?\s*:\s*$`)

// ParseDecls evaluates the body of a Schemas section: a sequence of
// class declarations with annotated fields.
//
//	class Payload(BaseModel):
//	    name: str
//	    task: :func:`get_stuff`
//
// A field annotation containing a cross-reference is substituted through
// resolveRef before parsing; the callback returns the referenced
// annotation text. Earlier declarations are in scope for later ones, and
// both chain in front of ctx. The declarations come back in order
// together with the combined lookup context.
func ParseDecls(lines []string, ctx typeexpr.Context, resolveRef func(ref string) (string, error)) ([]Decl, typeexpr.Context, error) {
	local := typeexpr.MapContext{}
	scope := typeexpr.Chain{local, ctx}
	var decls []Decl

	i := 0
	for i < len(lines) {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		m := classRegexp.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			return nil, nil, fmt.Errorf("%w: expected class declaration, got %q", ErrMissingSchema, strings.TrimSpace(line))
		}
		name, base := m[1], m[2]
		indent := indentOf(line)

		var fields []typeexpr.Field
		i++
		for i < len(lines) {
			body := lines[i]
			if strings.TrimSpace(body) == "" {
				i++
				continue
			}
			if indentOf(body) <= indent {
				break
			}
			f, err := parseDeclField(body, scope, resolveRef)
			if err != nil {
				return nil, nil, fmt.Errorf("in class %s: %w", name, err)
			}
			fields = append(fields, f)
			i++
		}

		t := typeexpr.NewObject(name, fields)
		local[name] = t
		decls = append(decls, Decl{Name: name, Base: base, Type: t})
	}
	return decls, scope, nil
}

func parseDeclField(line string, scope typeexpr.Context, resolveRef func(ref string) (string, error)) (typeexpr.Field, error) {
	body := strings.TrimSpace(line)
	// Default values carry no schema information.
	if i := strings.Index(body, "="); i >= 0 {
		body = strings.TrimSpace(body[:i])
	}
	name, annot, ok := strings.Cut(body, ":")
	if !ok {
		return typeexpr.Field{}, fmt.Errorf("%w: field %q has no annotation", ErrMissingSchema, body)
	}
	name = strings.TrimSpace(name)
	annot = strings.TrimSpace(annot)

	if docstring.HasRef(annot) {
		if resolveRef == nil {
			return typeexpr.Field{}, fmt.Errorf("%w: unresolvable reference %q", ErrMissingSchema, annot)
		}
		sub, err := resolveRef(annot)
		if err != nil {
			return typeexpr.Field{}, fmt.Errorf("%w: %q: %v", ErrMissingSchema, annot, err)
		}
		annot = sub
	}

	t, err := typeexpr.Parse(annot, scope)
	if err != nil {
		if errors.Is(err, typeexpr.ErrUnknownType) {
			return typeexpr.Field{}, fmt.Errorf("%w: %v", ErrMissingSchema, err)
		}
		return typeexpr.Field{}, err
	}
	return typeexpr.Field{Name: name, Type: t}, nil
}

func indentOf(line string) int {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return i
		}
	}
	return len(line)
}
