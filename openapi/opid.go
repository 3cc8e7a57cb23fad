package openapi

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrBadTemplate reports a malformed operationId template: nested or
// unbalanced brackets, an unknown token, or an empty template. Template
// errors are configuration errors and surface before any endpoint is
// processed.
var ErrBadTemplate = errors.New("invalid operationId template")

// OpInfo carries the values the template tokens draw from.
type OpInfo struct {
	Module   string
	Class    string
	Function string
	Redirect string
	Basename string
	Params   []string
	Method   string
}

// Template is a parsed operationId template.
//
// The mini-language has literal text, percent tokens, and bracketed
// groups:
//
//	%m/%M  module name (camelCase / Capitalized)
//	%c/%C  class name
//	%f/%F  function name
//	%r/%R  redirect target name
//	%n/%N  route basename
//	%p/%P  parameter list
//	%h/%H  HTTP method (lower / upper)
//
// A group "[sep%a%b]" renders every non-empty token value prefixed with
// sep; empty values drop out of the group without killing it. A bare
// token directly after literal text repeats that literal as its own
// separator. The rendered string is trimmed of separator characters at
// both ends and its first letter follows the case of the first token
// that produced a value.
type Template struct {
	elems []tmplElem
}

type tmplElem struct {
	literal string
	group   *tmplGroup
	token   byte
}

type tmplGroup struct {
	sep    string
	tokens []byte
}

var tokenLetters = "mMcCfFrRnNpPhH"

// ParseTemplate validates and compiles a template.
func ParseTemplate(text string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty template", ErrBadTemplate)
	}
	t := &Template{}
	i := 0
	for i < len(text) {
		switch text[i] {
		case '[':
			end := strings.IndexByte(text[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated group", ErrBadTemplate)
			}
			body := text[i+1 : i+end]
			if strings.ContainsAny(body, "[") {
				return nil, fmt.Errorf("%w: nested brackets", ErrBadTemplate)
			}
			g, err := parseGroup(body)
			if err != nil {
				return nil, err
			}
			t.elems = append(t.elems, tmplElem{group: g})
			i += end + 1
		case ']':
			return nil, fmt.Errorf("%w: unbalanced bracket", ErrBadTemplate)
		case '%':
			if i+1 >= len(text) || !strings.ContainsRune(tokenLetters, rune(text[i+1])) {
				return nil, fmt.Errorf("%w: bad token near %q", ErrBadTemplate, text[i:])
			}
			t.elems = append(t.elems, tmplElem{token: text[i+1]})
			i += 2
		default:
			j := i
			for j < len(text) && text[j] != '[' && text[j] != ']' && text[j] != '%' {
				j++
			}
			t.elems = append(t.elems, tmplElem{literal: text[i:j]})
			i = j
		}
	}
	return t, nil
}

func parseGroup(body string) (*tmplGroup, error) {
	first := strings.IndexByte(body, '%')
	if first < 0 {
		return nil, fmt.Errorf("%w: group %q has no tokens", ErrBadTemplate, body)
	}
	g := &tmplGroup{sep: body[:first]}
	rest := body[first:]
	for i := 0; i < len(rest); i += 2 {
		if rest[i] != '%' || i+1 >= len(rest) || !strings.ContainsRune(tokenLetters, rune(rest[i+1])) {
			return nil, fmt.Errorf("%w: bad group body %q", ErrBadTemplate, body)
		}
		g.tokens = append(g.tokens, rest[i+1])
	}
	return g, nil
}

// Render produces the operationId for one endpoint.
func (t *Template) Render(info OpInfo) string {
	vals := tokenValues(info)

	var out strings.Builder
	firstToken := byte(0)
	lastLiteral := ""

	for _, e := range t.elems {
		switch {
		case e.literal != "":
			out.WriteString(e.literal)
			lastLiteral = e.literal
		case e.group != nil:
			for _, tok := range e.group.tokens {
				for _, v := range vals[tok] {
					if v == "" {
						continue
					}
					out.WriteString(e.group.sep)
					out.WriteString(v)
					if firstToken == 0 {
						firstToken = tok
					}
				}
			}
			lastLiteral = ""
		default:
			rendered := false
			for _, v := range vals[e.token] {
				if v == "" {
					continue
				}
				if !rendered && lastLiteral != "" {
					// The literal already printed once; repeat it as the
					// token's own separator.
					out.WriteString(lastLiteral)
				}
				out.WriteString(v)
				rendered = true
				if firstToken == 0 {
					firstToken = e.token
				}
			}
			lastLiteral = ""
		}
	}

	id := strings.TrimFunc(out.String(), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if id == "" || firstToken == 0 {
		return id
	}
	if firstToken >= 'A' && firstToken <= 'Z' {
		return capitalize(id)
	}
	return lowerFirst(id)
}

// tokenValues computes every token's value list, applying the duplicate
// suppression rules: a redirect matching the function renders empty, a
// class matching the function renders empty, and the basename renders
// empty when the function token already covers the same name.
func tokenValues(info OpInfo) map[byte][]string {
	module := camelCase(info.Module)
	class := info.Class
	function := info.Function
	redirect := info.Redirect
	basename := info.Basename

	if redirect == function {
		redirect = ""
	}
	if class == function {
		class = ""
	}
	if basename == function && function != "" {
		basename = ""
	}

	vals := map[byte][]string{
		'm': {module},
		'M': {capitalize(module)},
		'c': {class},
		'C': {capitalize(class)},
		'f': {function},
		'F': {capitalize(function)},
		'r': {redirect},
		'R': {capitalize(redirect)},
		'n': {basename},
		'N': {capitalize(basename)},
		'h': {strings.ToLower(info.Method)},
		'H': {strings.ToUpper(info.Method)},
	}
	vals['p'] = append([]string(nil), info.Params...)
	for _, p := range info.Params {
		vals['P'] = append(vals['P'], capitalize(p))
	}
	return vals
}

// camelCase collapses dotted and snake_case module names.
func camelCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	if len(parts) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		b.WriteString(capitalize(p))
	}
	return b.String()
}

func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func lowerFirst(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToLower(s[:1]) + s[1:]
}
