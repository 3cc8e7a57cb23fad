// Package openapi assembles OpenAPI 3.0.1 documents from handler
// docstrings: per-endpoint synthesis, operationId rendering, and the
// final aggregation and deduplication passes.
package openapi

import (
	"github.com/vitalvas/docspec/schema"
)

// Version is the OpenAPI version the generated documents declare.
const Version = "3.0.1"

// Document is the root of a generated API description.
type Document struct {
	OpenAPI    string               `json:"openapi" yaml:"openapi"`
	Info       Info                 `json:"info" yaml:"info"`
	Paths      map[string]*PathItem `json:"paths" yaml:"paths"`
	Components *Components          `json:"components,omitempty" yaml:"components,omitempty"`

	// Security is the document-level default. Operations that omit
	// their own security field fall back to it.
	Security SecurityRequirements `json:"security,omitempty" yaml:"security,omitempty"`
}

// Info is the document metadata block.
type Info struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Components holds the shared named schemas and security schemes.
type Components struct {
	Schemas         map[string]*schema.Node    `json:"schemas,omitempty" yaml:"schemas,omitempty"`
	SecuritySchemes map[string]*SecurityScheme `json:"securitySchemes,omitempty" yaml:"securitySchemes,omitempty"`
}

// SecurityScheme describes one way the API authenticates callers, such
// as a session cookie or an API key header.
type SecurityScheme struct {
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Type        string `json:"type" yaml:"type"`
	In          string `json:"in,omitempty" yaml:"in,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Scheme      string `json:"scheme,omitempty" yaml:"scheme,omitempty"`
}

// PathItem carries the operations of one route. Only GET and POST are
// generated.
type PathItem struct {
	Get  *Operation `json:"get,omitempty" yaml:"get,omitempty"`
	Post *Operation `json:"post,omitempty" yaml:"post,omitempty"`
}

// Operation returns the operation stored for an HTTP method.
func (p *PathItem) Operation(method string) *Operation {
	switch method {
	case "GET":
		return p.Get
	case "POST":
		return p.Post
	}
	return nil
}

// SetOperation stores an operation under an HTTP method. Unsupported
// methods report false.
func (p *PathItem) SetOperation(method string, op *Operation) bool {
	switch method {
	case "GET":
		p.Get = op
	case "POST":
		p.Post = op
	default:
		return false
	}
	return true
}

// SecurityRequirements lists the security schemes an operation accepts.
// A present-but-empty list means "no authentication required" and is
// distinct from an absent field, which defers to the document default.
type SecurityRequirements []map[string][]string

// Operation is one (route, method) endpoint description.
type Operation struct {
	Description             string                `json:"description,omitempty" yaml:"description,omitempty"`
	Tags                    []string              `json:"tags,omitempty" yaml:"tags,omitempty"`
	OperationID             string                `json:"operationId,omitempty" yaml:"operationId,omitempty"`
	Parameters              []*Parameter          `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	RequestBody             *RequestBody          `json:"requestBody,omitempty" yaml:"requestBody,omitempty"`
	Responses               map[string]*Response  `json:"responses" yaml:"responses"`
	Security                *SecurityRequirements `json:"security,omitempty" yaml:"security,omitempty"`
	XCodegenRequestBodyName string                `json:"x-codegen-request-body-name,omitempty" yaml:"x-codegen-request-body-name,omitempty"`
}

// Parameter is a path or query parameter.
type Parameter struct {
	Name        string       `json:"name" yaml:"name"`
	In          string       `json:"in" yaml:"in"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool         `json:"required,omitempty" yaml:"required,omitempty"`
	Schema      *schema.Node `json:"schema,omitempty" yaml:"schema,omitempty"`
}

// RequestBody is the POST payload description.
type RequestBody struct {
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Content     map[string]*MediaType `json:"content" yaml:"content"`
	Required    bool                  `json:"required,omitempty" yaml:"required,omitempty"`
}

// MediaType binds one content type to its schema.
type MediaType struct {
	Schema  *schema.Node `json:"schema,omitempty" yaml:"schema,omitempty"`
	Example any          `json:"example,omitempty" yaml:"example,omitempty"`
}

// Response is one status-code entry of an operation.
type Response struct {
	Description string                `json:"description" yaml:"description"`
	Content     map[string]*MediaType `json:"content,omitempty" yaml:"content,omitempty"`
}

// walkSchemas visits every schema node reachable from the document,
// nested ones included. Visitors rewrite nodes in place; replacing a
// node wholesale is done by assigning through the pointer.
func (d *Document) walkSchemas(fn func(n *schema.Node)) {
	visit := func(n *schema.Node) {
		n.Walk(func(child *schema.Node) bool {
			fn(child)
			return true
		})
	}
	for _, item := range d.Paths {
		for _, op := range []*Operation{item.Get, item.Post} {
			if op == nil {
				continue
			}
			for _, p := range op.Parameters {
				visit(p.Schema)
			}
			if op.RequestBody != nil {
				for _, mt := range op.RequestBody.Content {
					visit(mt.Schema)
				}
			}
			for _, resp := range op.Responses {
				for _, mt := range resp.Content {
					visit(mt.Schema)
				}
			}
		}
	}
	if d.Components != nil {
		for _, n := range d.Components.Schemas {
			visit(n)
		}
	}
}
