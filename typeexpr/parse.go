package typeexpr

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrUnknownType reports an identifier that neither the grammar nor the
// context could resolve.
var ErrUnknownType = errors.New("unknown type name")

// ErrSyntax reports a malformed type expression.
var ErrSyntax = errors.New("malformed type expression")

// scalarNames maps annotation keywords to canonical scalar names.
var scalarNames = map[string]string{
	"str":   "str",
	"int":   "int",
	"float": "float",
	"bool":  "bool",
	"bytes": "bytes",
	"Path":  "path",
}

// Parse evaluates a type annotation into a descriptor. Identifiers outside
// the builtin grammar resolve through ctx; a nil ctx resolves nothing.
func Parse(text string, ctx Context) (*Type, error) {
	lx := &lexer{input: text}
	t, err := parseExpr(lx, ctx)
	if err != nil {
		return nil, err
	}
	if tok := lx.next(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: trailing %q in %q", ErrSyntax, tok.text, text)
	}
	return t, nil
}

func parseExpr(lx *lexer, ctx Context) (*Type, error) {
	tok := lx.next()
	if tok.kind != tokIdent {
		return nil, fmt.Errorf("%w: unexpected %q", ErrSyntax, tok.text)
	}
	switch tok.text {
	case "Any", "object":
		return NewAny(), nil
	case "None":
		t := NewAny()
		t.MarkNullable()
		return t, nil
	case "Optional":
		inner, err := parseSingleArg(lx, ctx)
		if err != nil {
			return nil, err
		}
		inner.MarkNullable()
		return inner, nil
	case "Union":
		return parseUnion(lx, ctx)
	case "Dict", "dict", "Mapping":
		return parseDict(lx, ctx)
	case "List", "list", "Set", "set", "Sequence", "Iterable":
		return parseList(lx, ctx)
	case "Tuple", "tuple":
		return parseTuple(lx, ctx)
	case "Callable":
		return parseCallable(lx, ctx)
	}
	if name, ok := scalarNames[tok.text]; ok {
		return NewScalar(name), nil
	}
	if ctx != nil {
		if t, ok := ctx.LookupType(tok.text); ok {
			return t.Clone(), nil
		}
		// Dotted names may be registered under their last component.
		if i := strings.LastIndex(tok.text, "."); i >= 0 {
			if t, ok := ctx.LookupType(tok.text[i+1:]); ok {
				return t.Clone(), nil
			}
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownType, tok.text)
}

func parseSingleArg(lx *lexer, ctx Context) (*Type, error) {
	if err := lx.expect(tokLBracket); err != nil {
		return nil, err
	}
	t, err := parseExpr(lx, ctx)
	if err != nil {
		return nil, err
	}
	return t, lx.expect(tokRBracket)
}

// parseUnion flattens nested unions and lifts direct None or Optional
// members into a nullable mark on the union itself. Optionality nested
// deeper than one level stays where it is.
func parseUnion(lx *lexer, ctx Context) (*Type, error) {
	if err := lx.expect(tokLBracket); err != nil {
		return nil, err
	}
	var alts []*Type
	nullable := false
	for {
		switch lx.peek().kind {
		case tokIdent:
			switch lx.peek().text {
			case "None":
				lx.next()
				nullable = true
			case "Optional":
				lx.next()
				inner, err := parseSingleArg(lx, ctx)
				if err != nil {
					return nil, err
				}
				nullable = true
				alts = append(alts, inner)
			default:
				m, err := parseExpr(lx, ctx)
				if err != nil {
					return nil, err
				}
				if m.Kind == KindUnion {
					if m.AllowNone() {
						nullable = true
					}
					alts = append(alts, m.Alts...)
				} else {
					alts = append(alts, m)
				}
			}
		default:
			return nil, fmt.Errorf("%w: unexpected %q in union", ErrSyntax, lx.peek().text)
		}
		tok := lx.next()
		if tok.kind == tokRBracket {
			break
		}
		if tok.kind != tokComma {
			return nil, fmt.Errorf("%w: expected comma in union, got %q", ErrSyntax, tok.text)
		}
	}
	var out *Type
	switch len(alts) {
	case 0:
		out = NewAny()
	case 1:
		out = alts[0]
	default:
		out = NewUnion(alts)
	}
	if nullable {
		out.MarkNullable()
	}
	return out, nil
}

// parseDict returns a string-keyed map when parameterized and a bare
// anonymous object otherwise.
func parseDict(lx *lexer, ctx Context) (*Type, error) {
	if lx.peek().kind != tokLBracket {
		return &Type{Kind: KindObject}, nil
	}
	lx.next()
	if _, err := parseExpr(lx, ctx); err != nil { // key type, unused on the wire
		return nil, err
	}
	if err := lx.expect(tokComma); err != nil {
		return nil, err
	}
	val, err := parseExpr(lx, ctx)
	if err != nil {
		return nil, err
	}
	return NewMap(val), lx.expect(tokRBracket)
}

func parseList(lx *lexer, ctx Context) (*Type, error) {
	if lx.peek().kind != tokLBracket {
		return NewArray(nil), nil
	}
	lx.next()
	elem, err := parseExpr(lx, ctx)
	if err != nil {
		return nil, err
	}
	return NewArray(elem), lx.expect(tokRBracket)
}

// parseTuple renders a tuple as an array. Heterogeneous member types
// become a union element type; "Tuple[X, ...]" is an array of X.
func parseTuple(lx *lexer, ctx Context) (*Type, error) {
	if lx.peek().kind != tokLBracket {
		return NewArray(nil), nil
	}
	lx.next()
	var alts []*Type
	for {
		if lx.peek().kind == tokEllipsis {
			lx.next()
		} else {
			m, err := parseExpr(lx, ctx)
			if err != nil {
				return nil, err
			}
			alts = append(alts, m)
		}
		tok := lx.next()
		if tok.kind == tokRBracket {
			break
		}
		if tok.kind != tokComma {
			return nil, fmt.Errorf("%w: expected comma in tuple, got %q", ErrSyntax, tok.text)
		}
	}
	switch len(alts) {
	case 0:
		return NewArray(nil), nil
	case 1:
		return NewArray(alts[0]), nil
	default:
		return NewArray(NewUnion(alts)), nil
	}
}

func parseCallable(lx *lexer, ctx Context) (*Type, error) {
	t := &Type{Kind: KindCallable, ArgStyle: ArgsAny}
	if lx.peek().kind != tokLBracket {
		ret := NewAny()
		ret.MarkNullable()
		t.Ret = ret
		return t, nil
	}
	lx.next()
	switch lx.peek().kind {
	case tokEllipsis:
		lx.next()
		t.ArgStyle = ArgsAny
	case tokLBracket:
		lx.next()
		t.ArgStyle = ArgsList
		if lx.peek().kind == tokRBracket {
			lx.next()
			t.ArgStyle = ArgsOmitted
		} else {
			for {
				arg, err := parseExpr(lx, ctx)
				if err != nil {
					return nil, err
				}
				t.Args = append(t.Args, arg)
				tok := lx.next()
				if tok.kind == tokRBracket {
					break
				}
				if tok.kind != tokComma {
					return nil, fmt.Errorf("%w: expected comma in callable args, got %q", ErrSyntax, tok.text)
				}
			}
		}
	default:
		return nil, fmt.Errorf("%w: unexpected %q in callable", ErrSyntax, lx.peek().text)
	}
	if err := lx.expect(tokComma); err != nil {
		return nil, err
	}
	ret, err := parseExpr(lx, ctx)
	if err != nil {
		return nil, err
	}
	t.Ret = ret
	return t, lx.expect(tokRBracket)
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLBracket
	tokRBracket
	tokComma
	tokEllipsis
	tokInvalid
)

type token struct {
	kind tokenKind
	text string
}

type lexer struct {
	input  string
	pos    int
	peeked *token
}

func (lx *lexer) peek() token {
	if lx.peeked == nil {
		t := lx.scan()
		lx.peeked = &t
	}
	return *lx.peeked
}

func (lx *lexer) next() token {
	if lx.peeked != nil {
		t := *lx.peeked
		lx.peeked = nil
		return t
	}
	return lx.scan()
}

func (lx *lexer) expect(kind tokenKind) error {
	tok := lx.next()
	if tok.kind != kind {
		return fmt.Errorf("%w: unexpected %q", ErrSyntax, tok.text)
	}
	return nil
}

func (lx *lexer) scan() token {
	for lx.pos < len(lx.input) && (lx.input[lx.pos] == ' ' || lx.input[lx.pos] == '\t') {
		lx.pos++
	}
	if lx.pos >= len(lx.input) {
		return token{kind: tokEOF, text: "end of expression"}
	}
	c := lx.input[lx.pos]
	switch c {
	case '[':
		lx.pos++
		return token{kind: tokLBracket, text: "["}
	case ']':
		lx.pos++
		return token{kind: tokRBracket, text: "]"}
	case ',':
		lx.pos++
		return token{kind: tokComma, text: ","}
	case '.':
		start := lx.pos
		for lx.pos < len(lx.input) && lx.input[lx.pos] == '.' {
			lx.pos++
		}
		if lx.pos-start >= 3 {
			return token{kind: tokEllipsis, text: "..."}
		}
		return token{kind: tokInvalid, text: lx.input[start:lx.pos]}
	}
	if isIdentRune(rune(c)) {
		start := lx.pos
		for lx.pos < len(lx.input) && (isIdentRune(rune(lx.input[lx.pos])) || lx.input[lx.pos] == '.') {
			lx.pos++
		}
		return token{kind: tokIdent, text: strings.TrimRight(lx.input[start:lx.pos], ".")}
	}
	lx.pos++
	return token{kind: tokInvalid, text: string(c)}
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
