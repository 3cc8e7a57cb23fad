package openapi

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/vitalvas/docspec/registry"
	"github.com/vitalvas/docspec/schema"
)

// Config drives one generation run. Everything is explicit: there is no
// process-wide state to configure.
type Config struct {
	Title       string
	Description string
	Version     string

	// OperationIDTemplate enables operationId rendering. Empty leaves
	// operationIds out entirely.
	OperationIDTemplate string

	// ModuleAliases maps module names before template rendering.
	ModuleAliases map[string]string

	// Exclude holds route-path patterns to leave out of the document.
	Exclude []string

	// ExtraSchemas are named schemas folded into components when the
	// run's own definitions do not provide them.
	ExtraSchemas map[string]*schema.Node

	// SecuritySchemes declares how the API authenticates callers; they
	// land in components.securitySchemes.
	SecuritySchemes map[string]*SecurityScheme

	// Security is the document-level default requirement. Operations
	// on login-required routes omit their own security field and defer
	// to it; open routes carry an explicit empty list instead.
	Security SecurityRequirements
}

// PathError is one failed endpoint, carrying the route it belongs to.
type PathError struct {
	Path   string
	Method string
	Err    error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *PathError) Unwrap() error { return e.Err }

// Report is the diagnostic side of a generation run. ID identifies the
// run so that diagnostics stay correlated when runs overlap in logs.
type Report struct {
	ID       uuid.UUID
	Errors   []*PathError
	Warnings []string
	Excluded []string
}

// Failed reports whether any endpoint failed. The caller decides
// whether that fails the run as a whole.
func (r *Report) Failed() bool { return len(r.Errors) > 0 }

// Generator turns enumerated routes into an OpenAPI document.
type Generator struct {
	cfg     Config
	reg     *registry.Registry
	tmpl    *Template
	exclude []*regexp.Regexp
}

// NewGenerator validates configuration up front: a malformed operationId
// template or exclude pattern fails here, before any endpoint work.
func NewGenerator(cfg Config, reg *registry.Registry) (*Generator, error) {
	g := &Generator{cfg: cfg, reg: reg}
	if cfg.OperationIDTemplate != "" {
		tmpl, err := ParseTemplate(cfg.OperationIDTemplate)
		if err != nil {
			return nil, err
		}
		g.tmpl = tmpl
	}
	for _, pat := range cfg.Exclude {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pat, err)
		}
		g.exclude = append(g.exclude, re)
	}
	return g, nil
}

// Generate builds the document for the given routes. Endpoint failures
// are isolated: they land on the report and the run continues. The
// returned document is always usable, possibly with fewer paths than
// routes.
func (g *Generator) Generate(routes []Route) (*Document, *Report) {
	report := &Report{ID: uuid.New()}
	defs := schema.NewDefinitions()

	b := &builder{
		reg:     g.reg,
		defs:    defs,
		tmpl:    g.tmpl,
		aliases: g.cfg.ModuleAliases,
		routes:  make(map[string]*registry.Symbol),
	}
	for _, r := range routes {
		b.routes[routeKey(r.Path, r.Method)] = r.Handler
	}

	doc := &Document{
		OpenAPI: Version,
		Info: Info{
			Title:       g.cfg.Title,
			Description: g.cfg.Description,
			Version:     g.cfg.Version,
		},
		Paths: make(map[string]*PathItem),
	}

	for _, route := range routes {
		if g.excluded(route.Path) {
			report.Excluded = append(report.Excluded, route.Path)
			continue
		}
		if route.Method != "GET" && route.Method != "POST" {
			report.Errors = append(report.Errors, &PathError{
				Path: route.Path, Method: route.Method,
				Err: fmt.Errorf("unsupported method %s", route.Method),
			})
			continue
		}

		wirePath := wirePathOf(route.Path)
		item := doc.Paths[wirePath]
		if item == nil {
			item = &PathItem{}
		}
		if item.Operation(route.Method) != nil {
			report.Errors = append(report.Errors, &PathError{
				Path: route.Path, Method: route.Method,
				Err: errors.New("route maps multiple handlers to one method"),
			})
			continue
		}

		op, err := b.buildEndpoint(route)
		if err != nil {
			report.Errors = append(report.Errors, &PathError{Path: route.Path, Method: route.Method, Err: err})
			if !errors.Is(err, ErrDeadEndRedirect) {
				continue
			}
			// Dead-end redirects degrade to a generic default response
			// so the endpoint still appears in the document.
			op = &Operation{Responses: defaultResponses()}
		}

		item.SetOperation(route.Method, op)
		doc.Paths[wirePath] = item
	}

	report.Warnings = append(report.Warnings, b.warnings...)
	g.aggregate(doc, defs)
	return doc, report
}

func (g *Generator) excluded(path string) bool {
	for _, re := range g.exclude {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// wirePathOf converts framework placeholders to OpenAPI ones:
// "/v1/<string:key>" becomes "/v1/{key}".
func wirePathOf(path string) string {
	return placeholderRegexp.ReplaceAllString(path, "{$2}")
}

func defaultResponses() map[string]*Response {
	return map[string]*Response{
		"200": {
			Description: "Success",
			Content: map[string]*MediaType{
				"application/json": {Schema: &schema.Node{Type: "object"}},
			},
		},
	}
}

// aggregate moves the run's named definitions into components.schemas,
// folds configured extra schemas and security defaults in, rewrites
// every reference to the components form, and deduplicates inline
// schemas against the named ones.
func (g *Generator) aggregate(doc *Document, defs *schema.Definitions) {
	schemas := make(map[string]*schema.Node, defs.Len())
	for _, name := range defs.Names() {
		n, _ := defs.Get(name)
		schemas[name] = n
	}
	for name, n := range g.cfg.ExtraSchemas {
		if _, ok := schemas[name]; !ok {
			schemas[name] = n
		}
	}
	if len(schemas) > 0 || len(g.cfg.SecuritySchemes) > 0 {
		doc.Components = &Components{
			Schemas:         schemas,
			SecuritySchemes: g.cfg.SecuritySchemes,
		}
	}
	doc.Security = g.cfg.Security

	// First pass: all refs point at components.
	doc.walkSchemas(func(n *schema.Node) {
		if strings.HasPrefix(n.Ref, schema.DefinitionsPrefix) {
			n.Ref = schema.ComponentsPrefix + strings.TrimPrefix(n.Ref, schema.DefinitionsPrefix)
		}
	})

	// Second pass: inline schemas structurally equal to a named one
	// collapse into a reference.
	if doc.Components == nil {
		return
	}
	named := make([]string, 0, len(doc.Components.Schemas))
	for name := range doc.Components.Schemas {
		named = append(named, name)
	}
	sort.Strings(named)
	doc.walkSchemas(func(n *schema.Node) {
		if n.Ref != "" || n.Title != "" {
			return
		}
		for _, name := range named {
			def := doc.Components.Schemas[name]
			if n == def {
				continue
			}
			if schema.Equivalent(n, def) {
				*n = schema.Node{Ref: schema.ComponentsPrefix + name}
				return
			}
		}
	})
}
