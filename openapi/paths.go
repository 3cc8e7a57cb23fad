package openapi

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/vitalvas/docspec/docstring"
	"github.com/vitalvas/docspec/registry"
	"github.com/vitalvas/docspec/schema"
	"github.com/vitalvas/docspec/typeexpr"
)

// Route is one enumerated endpoint: the framework-side route pattern,
// the HTTP method, and the handler symbol behind it. Enumeration itself
// happens outside this package.
type Route struct {
	Path          string
	Method        string
	Handler       *registry.Symbol
	LoginRequired bool
}

// ErrDeadEndRedirect reports a cross-reference no resolution strategy
// could satisfy.
var ErrDeadEndRedirect = errors.New("dead-end redirect")

// ErrDuplicateStatus reports two response entries declaring the same
// status code. Precedence between them is undefined, so the endpoint is
// rejected instead of silently keeping one.
var ErrDuplicateStatus = errors.New("duplicate response status code")

// ErrNoReturnAnnotation reports a handler whose response must be
// inferred but which has no return annotation to infer from.
var ErrNoReturnAnnotation = errors.New("missing return annotation")

// placeholderRegexp matches route placeholders of the form <type:name>
// or <name>.
var placeholderRegexp = regexp.MustCompile(`<(?:(\w+):)?(\w+)>`)

// placeholderSchemas types route placeholders. Unknown placeholder types
// fall back to string.
var placeholderSchemas = map[string]schema.Node{
	"string":  {Type: "string"},
	"int":     {Type: "integer"},
	"integer": {Type: "integer"},
	"float":   {Type: "number"},
	"uuid":    {Type: "string", Format: "uuid"},
	"path":    {Type: "string", Format: "path"},
}

// fieldRegexp matches "name (type): description" entries inside request
// parameter blocks.
var fieldRegexp = regexp.MustCompile(`^\s*(\w+)\s*(?:\(\s*([^)]*\S)\s*\))?\s*:\s*(.*)$`)

// builder synthesizes one endpoint at a time. It is created per
// generation run and shares the run's definitions table.
type builder struct {
	reg     *registry.Registry
	defs    *schema.Definitions
	tmpl    *Template
	aliases map[string]string
	routes  map[string]*registry.Symbol // path+method -> handler

	warnings []string
}

func routeKey(path, method string) string { return method + " " + path }

// buildEndpoint runs the synthesis pipeline for one route. Failures are
// returned, not raised; the generator decides between fallback and skip.
func (b *builder) buildEndpoint(route Route) (*Operation, error) {
	handler := route.Handler
	doc := handler.Docstring()
	if doc == nil {
		doc = docstring.Parse(handler.Doc)
	}

	op := &Operation{}

	// An empty docstring yields an empty endpoint, not an error.
	if !doc.HasDescription && len(doc.Sections) == 0 {
		op.Responses = defaultResponses()
		if b.tmpl != nil {
			op.OperationID = b.tmpl.Render(b.opInfo(route, handler))
		}
		if !route.LoginRequired && !handler.LoginRequired {
			op.Security = &SecurityRequirements{}
		}
		return op, nil
	}

	// A Map section hands the whole docstring over to the handler that
	// really implements the endpoint.
	if target, ok := doc.MapDirective(); ok {
		redirected, err := b.resolveMapDirective(target, route)
		if err != nil {
			return nil, err
		}
		handler = redirected
		doc = handler.Docstring()
		if doc == nil {
			doc = docstring.Parse(handler.Doc)
		}
	}

	if doc.HasDescription {
		op.Description = doc.Description
	}
	op.Tags = doc.Tags()

	// Inline schema declarations scope over everything below.
	scope, decls, err := b.declScope(doc, handler)
	if err != nil {
		return nil, err
	}

	op.Parameters = b.pathParameters(route.Path)
	if route.Method == "GET" {
		params, err := b.queryParameters(doc, handler, scope)
		if err != nil {
			return nil, err
		}
		op.Parameters = append(op.Parameters, params...)
	}

	if route.Method == "POST" {
		body, err := b.requestBody(doc, handler, scope)
		if err != nil {
			return nil, err
		}
		if body != nil {
			op.RequestBody = body
			op.XCodegenRequestBodyName = "body"
		}
	}

	op.Responses, err = b.responses(doc, handler, scope, decls)
	if err != nil {
		return nil, err
	}

	if b.tmpl != nil {
		op.OperationID = b.tmpl.Render(b.opInfo(route, handler))
	}

	if !route.LoginRequired && !handler.LoginRequired {
		op.Security = &SecurityRequirements{}
	}
	return op, nil
}

// resolveMapDirective follows a Map section. The directive is either a
// cross-reference to the real handler or the path of another registered
// route.
func (b *builder) resolveMapDirective(target string, route Route) (*registry.Symbol, error) {
	if docstring.HasRef(target) {
		sym, _, ok := b.reg.ResolveRef(target, route.Handler)
		if !ok {
			return nil, fmt.Errorf("%w: map directive %q on %s", ErrDeadEndRedirect, target, route.Path)
		}
		return sym, nil
	}
	if sym, ok := b.routes[routeKey(target, route.Method)]; ok {
		return sym, nil
	}
	// Placeholder names may differ between the directive and the
	// registered route; compare with names wildcarded.
	want := placeholderRegexp.ReplaceAllString(target, "<$1>")
	for key, sym := range b.routes {
		method, path, _ := strings.Cut(key, " ")
		if method != route.Method {
			continue
		}
		if placeholderRegexp.ReplaceAllString(path, "<$1>") == want {
			return sym, nil
		}
	}
	return nil, fmt.Errorf("%w: map directive %q on %s", ErrDeadEndRedirect, target, route.Path)
}

// declScope evaluates the Schemas section and layers it over the
// registry for type lookups.
func (b *builder) declScope(doc *docstring.Docstring, handler *registry.Symbol) (typeexpr.Context, []schema.Decl, error) {
	lines, ok := doc.Schemas()
	if !ok {
		return b.reg, nil, nil
	}
	decls, scope, err := schema.ParseDecls(lines, b.reg, func(ref string) (string, error) {
		return b.refAnnotation(ref, handler)
	})
	if err != nil {
		return nil, nil, err
	}
	return scope, decls, nil
}

// refAnnotation resolves a cross-reference to the annotation text it
// stands for: the target's return annotation, one of its parameters, or
// its model name.
func (b *builder) refAnnotation(ref string, from *registry.Symbol) (string, error) {
	sym, attr, ok := b.reg.ResolveRef(ref, from)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrDeadEndRedirect, ref)
	}
	switch attr {
	case "return":
		if sym.Model != nil {
			return sym.Name, nil
		}
		if sym.Return == "" {
			return "", fmt.Errorf("%w: %s", ErrNoReturnAnnotation, sym.QualifiedName())
		}
		return sym.Return, nil
	default:
		for _, p := range sym.Params {
			if p.Name == attr {
				return p.Type, nil
			}
		}
		return "", fmt.Errorf("%w: %q has no attribute %q", ErrDeadEndRedirect, sym.QualifiedName(), attr)
	}
}

// pathParameters types the route placeholders. Path parameters are
// always required.
func (b *builder) pathParameters(path string) []*Parameter {
	var params []*Parameter
	for _, m := range placeholderRegexp.FindAllStringSubmatch(path, -1) {
		kind, name := m[1], m[2]
		s, ok := placeholderSchemas[kind]
		if !ok {
			s = placeholderSchemas["string"]
		}
		node := s
		params = append(params, &Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   &node,
		})
	}
	return params
}

// queryParameters builds GET parameters from the "params" entry of a
// Requests section. The entry is either an inline field block or a
// redirect to another symbol's declared parameters.
func (b *builder) queryParameters(doc *docstring.Docstring, handler *registry.Symbol, scope typeexpr.Context) ([]*Parameter, error) {
	req, ok := doc.Requests()
	if !ok {
		return nil, nil
	}
	if req.Redirect != "" {
		sym := b.reg.Resolve(req.Redirect, handler)
		if sym == nil {
			return nil, fmt.Errorf("%w: %q", ErrDeadEndRedirect, req.Redirect)
		}
		return b.symbolParameters(sym, scope)
	}
	for _, e := range req.Entries {
		if e.Key != "params" {
			continue
		}
		if e.Value != "" && docstring.HasRef(e.Value) {
			sym, _, ok := b.reg.ResolveRef(e.Value, handler)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrDeadEndRedirect, e.Value)
			}
			return b.symbolParameters(sym, scope)
		}
		return b.blockParameters(e.Block, handler, scope)
	}
	return nil, nil
}

// symbolParameters infers query parameters from a symbol's declared
// parameter annotations.
func (b *builder) symbolParameters(sym *registry.Symbol, scope typeexpr.Context) ([]*Parameter, error) {
	var params []*Parameter
	for _, p := range sym.Params {
		param := &Parameter{Name: p.Name, In: "query", Required: true}
		if p.Type != "" {
			t, err := typeexpr.Parse(p.Type, scope)
			if err != nil {
				return nil, err
			}
			typedParameter(param, t, b.defs)
		} else {
			param.Schema = &schema.Node{Type: "string"}
		}
		params = append(params, param)
	}
	return params, nil
}

// typedParameter attaches the built schema and pops the required flag
// off it onto the parameter, where the wire format wants it.
func typedParameter(param *Parameter, t *typeexpr.Type, defs *schema.Definitions) {
	param.Schema = schema.Build(t, defs)
	schema.AnnotateRequired(param.Schema, t)
	param.Required = param.Schema.Required
	param.Schema.Required = false
}

// blockParameters parses "name (type): description" lines.
func (b *builder) blockParameters(lines []string, handler *registry.Symbol, scope typeexpr.Context) ([]*Parameter, error) {
	var params []*Parameter
	for _, line := range lines {
		m := fieldRegexp.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, typeText, desc := m[1], m[2], strings.TrimSpace(m[3])
		param := &Parameter{Name: name, In: "query", Description: desc, Required: true}
		if typeText != "" {
			text, err := b.substituteRefs(typeText, handler)
			if err != nil {
				return nil, err
			}
			t, err := typeexpr.Parse(text, scope)
			if err != nil {
				return nil, err
			}
			typedParameter(param, t, b.defs)
		} else {
			param.Schema = &schema.Node{Type: "string"}
		}
		params = append(params, param)
	}
	return params, nil
}

// requestBody assembles the POST payload from the "body" entry of a
// Requests section.
func (b *builder) requestBody(doc *docstring.Docstring, handler *registry.Symbol, scope typeexpr.Context) (*RequestBody, error) {
	req, ok := doc.Requests()
	if !ok {
		return nil, nil
	}

	if req.Redirect != "" {
		sym := b.reg.Resolve(req.Redirect, handler)
		if sym == nil {
			return nil, fmt.Errorf("%w: %q", ErrDeadEndRedirect, req.Redirect)
		}
		node, err := b.returnSchema(sym, scope)
		if err != nil {
			return nil, err
		}
		return jsonBody(node), nil
	}

	for _, e := range req.Entries {
		if e.Key != "body" {
			continue
		}
		if e.Value != "" {
			text, err := b.substituteRefs(e.Value, handler)
			if err != nil {
				return nil, err
			}
			t, err := typeexpr.Parse(text, scope)
			if err != nil {
				return nil, err
			}
			return jsonBody(schema.Build(t, b.defs)), nil
		}
		node, err := b.bodyObject(e.Block, handler, scope)
		if err != nil {
			return nil, err
		}
		return jsonBody(node), nil
	}
	return nil, nil
}

// bodyObject builds the body schema from field lines, substituting any
// inline cross-references inside the type text before evaluation.
func (b *builder) bodyObject(lines []string, handler *registry.Symbol, scope typeexpr.Context) (*schema.Node, error) {
	var fields []typeexpr.Field
	for _, line := range lines {
		name, typeText, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		text, err := b.substituteRefs(strings.TrimSpace(typeText), handler)
		if err != nil {
			return nil, err
		}
		t, err := typeexpr.Parse(text, scope)
		if err != nil {
			return nil, err
		}
		fields = append(fields, typeexpr.Field{Name: strings.TrimSpace(name), Type: t})
	}
	obj := typeexpr.NewObject("", fields)
	return schema.Build(obj, b.defs), nil
}

// substituteRefs rebuilds type text with every cross-reference span
// replaced by the annotation it resolves to. The output is assembled
// from the matched spans, never edited in place.
func (b *builder) substituteRefs(text string, from *registry.Symbol) (string, error) {
	spans := docstring.RefSpans(text)
	if len(spans) == 0 {
		return text, nil
	}
	var out strings.Builder
	prev := 0
	for _, span := range spans {
		out.WriteString(text[prev:span[0]])
		repl, err := b.refAnnotation(text[span[0]:span[1]], from)
		if err != nil {
			return "", err
		}
		out.WriteString(repl)
		prev = span[1]
	}
	out.WriteString(text[prev:])
	return out.String(), nil
}

func jsonBody(n *schema.Node) *RequestBody {
	return &RequestBody{
		Content:  map[string]*MediaType{"application/json": {Schema: n}},
		Required: true,
	}
}

// responses assembles the response map. Entries are literal response
// expressions or redirects; an absent section falls back to the
// handler's return annotation.
func (b *builder) responses(doc *docstring.Docstring, handler *registry.Symbol, scope typeexpr.Context, decls []schema.Decl) (map[string]*Response, error) {
	lookup := func(name string) (*schema.Node, bool) {
		for _, d := range decls {
			if d.Name == name {
				return schema.Build(d.Type, b.defs), true
			}
		}
		if t, ok := scope.LookupType(name); ok {
			return schema.Build(t, b.defs), true
		}
		return nil, false
	}

	sec, ok := doc.Responses()
	if !ok {
		ret, okRet := doc.Returns()
		if okRet && ret.Redirect != "" {
			sym := b.reg.Resolve(ret.Redirect, handler)
			if sym == nil {
				return nil, fmt.Errorf("%w: %q", ErrDeadEndRedirect, ret.Redirect)
			}
			return b.responsesFrom(sym, scope, lookup)
		}
		return b.inferResponse(handler, scope)
	}

	if sec.Redirect != "" {
		sym := b.reg.Resolve(sec.Redirect, handler)
		if sym == nil {
			return nil, fmt.Errorf("%w: %q", ErrDeadEndRedirect, sec.Redirect)
		}
		return b.responsesFrom(sym, scope, lookup)
	}

	return b.entryResponses(sec.Entries, handler, scope, lookup)
}

func (b *builder) entryResponses(entries []docstring.Entry, handler *registry.Symbol, scope typeexpr.Context, lookup func(string) (*schema.Node, bool)) (map[string]*Response, error) {
	out := make(map[string]*Response)
	for _, e := range entries {
		value := e.Value
		if value == "" && len(e.Block) > 0 {
			value = strings.Join(e.Block, " ")
		}

		if docstring.HasRef(value) {
			sym, attr, ok := b.reg.ResolveRef(value, handler)
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrDeadEndRedirect, value)
			}
			if attr == "responses" {
				nested, err := b.responsesFrom(sym, scope, lookup)
				if err != nil {
					return nil, err
				}
				for code, resp := range nested {
					if _, dup := out[code]; dup {
						return nil, fmt.Errorf("%w: %s", ErrDuplicateStatus, code)
					}
					out[code] = resp
				}
				continue
			}
			node, err := b.returnSchema(sym, scope)
			if err != nil {
				return nil, err
			}
			if _, dup := out["200"]; dup {
				return nil, fmt.Errorf("%w: 200", ErrDuplicateStatus)
			}
			out["200"] = &Response{
				Description: e.Key,
				Content:     map[string]*MediaType{"application/json": {Schema: node}},
			}
			continue
		}

		spec, err := schema.ParseResponseExpr(value)
		if err != nil {
			return nil, err
		}
		ct, node, example, err := spec.Render(lookup)
		if err != nil {
			return nil, err
		}
		code := strconv.Itoa(spec.Code)
		if _, dup := out[code]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStatus, code)
		}
		out[code] = &Response{
			Description: spec.Description,
			Content:     map[string]*MediaType{ct: {Schema: node, Example: example}},
		}
	}
	return out, nil
}

// responsesFrom pulls a target symbol's responses: its own Responses
// section when present, its return annotation otherwise.
func (b *builder) responsesFrom(sym *registry.Symbol, scope typeexpr.Context, lookup func(string) (*schema.Node, bool)) (map[string]*Response, error) {
	if doc := sym.Docstring(); doc != nil {
		if sec, ok := doc.Responses(); ok && sec.Redirect == "" {
			return b.entryResponses(sec.Entries, sym, scope, lookup)
		}
	}
	return b.inferResponse(sym, scope)
}

// inferResponse derives a 200 response from the symbol's return
// annotation. No annotation is a hard error for the endpoint; an
// annotation that produces no model schema degrades to a generic object
// with a diagnostic.
func (b *builder) inferResponse(sym *registry.Symbol, scope typeexpr.Context) (map[string]*Response, error) {
	node, err := b.returnSchema(sym, scope)
	if err != nil {
		return nil, err
	}
	if node.Ref == "" && len(node.AnyOf) == 0 && node.Type != "object" {
		b.warnings = append(b.warnings,
			fmt.Sprintf("return annotation of %s is not a model, using a generic object schema", sym.QualifiedName()))
		node = &schema.Node{Type: "object"}
	}
	return map[string]*Response{
		"200": {
			Description: "Success",
			Content:     map[string]*MediaType{"application/json": {Schema: node}},
		},
	}, nil
}

func (b *builder) returnSchema(sym *registry.Symbol, scope typeexpr.Context) (*schema.Node, error) {
	if sym.Model != nil {
		return schema.Build(sym.Model, b.defs), nil
	}
	if sym.Return == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoReturnAnnotation, sym.QualifiedName())
	}
	t, err := typeexpr.Parse(sym.Return, scope)
	if err != nil {
		return nil, err
	}
	return schema.Build(t, b.defs), nil
}

func (b *builder) opInfo(route Route, handler *registry.Symbol) OpInfo {
	module := route.Handler.Module
	if alias, ok := b.aliases[module]; ok {
		module = alias
	}
	info := OpInfo{
		Module:   module,
		Class:    route.Handler.Class,
		Function: route.Handler.Name,
		Basename: pathBasename(route.Path),
		Method:   route.Method,
	}
	if handler != route.Handler {
		info.Redirect = handler.Name
	}
	for _, m := range placeholderRegexp.FindAllStringSubmatch(route.Path, -1) {
		info.Params = append(info.Params, m[2])
	}
	return info
}

// pathBasename is the last non-placeholder segment of a route.
func pathBasename(path string) string {
	segs := strings.Split(strings.Trim(path, "/"), "/")
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" && !strings.HasPrefix(segs[i], "<") {
			return segs[i]
		}
	}
	return ""
}
