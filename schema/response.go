package schema

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MimeType enumerates the media types a response declaration can name.
type MimeType int

const (
	MimeText MimeType = iota
	MimeHTML
	MimeForm
	MimeMultipart
	MimeJSON
	MimeBinary
)

var mimeNames = map[string]MimeType{
	"text":      MimeText,
	"html":      MimeHTML,
	"form":      MimeForm,
	"multipart": MimeMultipart,
	"json":      MimeJSON,
	"binary":    MimeBinary,
	"octet":     MimeBinary,
}

// ContentType returns the wire media type.
func (m MimeType) ContentType() string {
	switch m {
	case MimeText:
		return "text/plain"
	case MimeHTML:
		return "text/html"
	case MimeForm:
		return "application/x-www-form-urlencoded"
	case MimeMultipart:
		return "multipart/form-data"
	case MimeJSON:
		return "application/json"
	case MimeBinary:
		return "application/octet-stream"
	}
	return "application/octet-stream"
}

// ErrBadResponseExpr reports a response declaration that does not match
// the literal constructor form.
var ErrBadResponseExpr = errors.New("malformed response expression")

// ResponseSpec is a parsed response declaration:
//
//	ResponseSchema(200, "Initiated Task", MimeTypes.json, "Task")
//
// The optional fourth argument is either a schema name (json) or an
// example payload (text and html). For binary responses a name of the
// form "image_png" selects the media type image/png.
type ResponseSpec struct {
	Code        int
	Description string
	Mime        MimeType
	Arg         string
	ArgQuoted   bool
}

var responseExprRegexp = regexp.MustCompile(`^ResponseSchema\s*\((.*)\)\s*$`)

// ParseResponseExpr parses a literal response declaration. Nothing is
// evaluated: the expression must be the constructor form with literal
// arguments.
func ParseResponseExpr(expr string) (*ResponseSpec, error) {
	m := responseExprRegexp.FindStringSubmatch(strings.TrimSpace(expr))
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrBadResponseExpr, expr)
	}
	args, err := splitArgs(m[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadResponseExpr, expr, err)
	}
	if len(args) < 3 || len(args) > 4 {
		return nil, fmt.Errorf("%w: %q: want 3 or 4 arguments, got %d", ErrBadResponseExpr, expr, len(args))
	}

	code, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return nil, fmt.Errorf("%w: %q: bad status code %q", ErrBadResponseExpr, expr, args[0])
	}
	desc, ok := unquote(args[1])
	if !ok {
		return nil, fmt.Errorf("%w: %q: description must be a string literal", ErrBadResponseExpr, expr)
	}
	mime, err := parseMime(args[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrBadResponseExpr, expr, err)
	}

	spec := &ResponseSpec{Code: code, Description: desc, Mime: mime}
	if len(args) == 4 {
		if s, quoted := unquote(args[3]); quoted {
			spec.Arg, spec.ArgQuoted = s, true
		} else {
			spec.Arg = strings.TrimSpace(args[3])
		}
	}
	return spec, nil
}

// parseMime accepts "MimeTypes.json" style attribute access or a bare
// member name.
func parseMime(s string) (MimeType, error) {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, "."); i >= 0 {
		s = s[i+1:]
	}
	m, ok := mimeNames[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown media type %q", s)
	}
	return m, nil
}

// Render produces the content entry of the response: the media type key,
// the schema, and an optional example. Schema names resolve through
// lookup; a json response without one falls back to a plain object.
func (r *ResponseSpec) Render(lookup func(name string) (*Node, bool)) (contentType string, n *Node, example any, err error) {
	switch r.Mime {
	case MimeText, MimeHTML:
		n = &Node{Type: "string"}
		if r.Arg != "" {
			example = r.Arg
		}
		return r.Mime.ContentType(), n, example, nil

	case MimeJSON:
		if r.Arg == "" {
			return r.Mime.ContentType(), &Node{Type: "object"}, nil, nil
		}
		if lookup != nil {
			if found, ok := lookup(r.Arg); ok {
				return r.Mime.ContentType(), found, nil, nil
			}
		}
		return "", nil, nil, fmt.Errorf("%w: unknown schema %q", ErrMissingSchema, r.Arg)

	case MimeForm, MimeMultipart:
		if r.Arg != "" && lookup != nil {
			if found, ok := lookup(r.Arg); ok {
				return r.Mime.ContentType(), found, nil, nil
			}
		}
		return r.Mime.ContentType(), &Node{Type: "object"}, nil, nil

	case MimeBinary:
		// A keyed argument such as "image_png" narrows the media type.
		ct := r.Mime.ContentType()
		if r.Arg != "" && !r.ArgQuoted && strings.Contains(r.Arg, "_") {
			ct = strings.ReplaceAll(r.Arg, "_", "/")
		}
		return ct, &Node{Type: "string", Format: "binary"}, nil, nil
	}
	return "", nil, nil, fmt.Errorf("%w: unsupported media type", ErrBadResponseExpr)
}

// splitArgs splits a literal argument list on top-level commas, honoring
// quotes, parentheses, and brackets.
func splitArgs(s string) ([]string, error) {
	var args []string
	depth := 0
	inStr := byte(0)
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr != 0 {
			if c == inStr {
				inStr = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inStr = c
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced brackets")
			}
		case ',':
			if depth == 0 {
				args = append(args, s[start:i])
				start = i + 1
			}
		}
	}
	if inStr != 0 || depth != 0 {
		return nil, errors.New("unterminated argument list")
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(args) > 0 {
		args = append(args, s[start:])
	}
	return args, nil
}

func unquote(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return s, false
}
