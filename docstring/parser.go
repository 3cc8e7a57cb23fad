package docstring

import (
	"regexp"
	"strings"
)

// headerRegexp matches a candidate section header: words and spaces
// followed by a trailing colon.
var headerRegexp = regexp.MustCompile(`^[\s\w]+:\s*$`)

// typedFieldRegexp matches the Google-style "name (type)" field prefix.
var typedFieldRegexp = regexp.MustCompile(`^\s*(.+?)\s*\(\s*(.*\S)\s*\)`)

// Parse tokenizes a docstring into a description plus ordered sections.
// It never fails: unrecognized structure folds into the nearest enclosing
// block.
func Parse(text string) *Docstring {
	p := &parser{lines: splitLines(text)}
	return p.parse()
}

type parser struct {
	lines []string
	pos   int

	inSection     bool
	sectionIndent int
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return lines
}

func (p *parser) hasNext() bool { return p.pos < len(p.lines) }

func (p *parser) peek() string {
	if p.pos < len(p.lines) {
		return p.lines[p.pos]
	}
	return ""
}

func (p *parser) peekAt(ahead int) (string, bool) {
	if p.pos+ahead < len(p.lines) {
		return p.lines[p.pos+ahead], true
	}
	return "", false
}

func (p *parser) next() string {
	l := p.lines[p.pos]
	p.pos++
	return l
}

func (p *parser) parse() *Docstring {
	d := &Docstring{}
	p.consumeEmpty()
	for p.hasNext() {
		if kind, ok := p.sectionHeader(); ok {
			p.next() // header line
			p.inSection = true
			p.sectionIndent = p.currentIndent(0)
			d.Sections = append(d.Sections, p.consumeSection(kind))
			p.inSection = false
			p.sectionIndent = 0
		} else if !d.HasDescription && len(d.Sections) == 0 {
			block := p.consumeContiguous()
			parts := make([]string, 0, len(block))
			for _, l := range block {
				parts = append(parts, strings.TrimLeft(l, " \t"))
			}
			d.Description = strings.TrimSpace(strings.Join(parts, " "))
			d.HasDescription = d.Description != ""
		} else {
			// Trailing free text between or after sections carries no
			// structured meaning.
			p.consumeToNextSection()
		}
		p.consumeEmpty()
	}
	return d
}

// sectionHeader reports whether the current line starts a recognized
// section: known name, trailing colon, and a strictly deeper following
// non-blank line.
func (p *parser) sectionHeader() (SectionKind, bool) {
	line := p.peek()
	if !headerRegexp.MatchString(line) {
		return 0, false
	}
	name := strings.ToLower(strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line), ":")))
	kind, known := sectionKinds[name]
	if !known {
		return 0, false
	}
	headerIndent := indentOf(line)
	bodyIndent := p.currentIndent(1)
	if bodyIndent <= headerIndent {
		return 0, false
	}
	return kind, true
}

// currentIndent returns the indentation of the first non-blank line at or
// after the given lookahead offset.
func (p *parser) currentIndent(ahead int) int {
	for {
		line, ok := p.peekAt(ahead)
		if !ok {
			return 0
		}
		if line != "" {
			return indentOf(line)
		}
		ahead++
	}
}

func (p *parser) sectionBreak() bool {
	if !p.hasNext() {
		return true
	}
	if _, ok := p.sectionHeader(); ok {
		return true
	}
	line := p.peek()
	return p.inSection && line != "" && indentOf(line) < p.sectionIndent
}

func (p *parser) consumeEmpty() {
	for p.hasNext() && p.peek() == "" {
		p.next()
	}
}

func (p *parser) consumeContiguous() []string {
	var lines []string
	for p.hasNext() && p.peek() != "" {
		if _, ok := p.sectionHeader(); ok {
			break
		}
		lines = append(lines, p.next())
	}
	return lines
}

func (p *parser) consumeToNextSection() []string {
	p.consumeEmpty()
	var lines []string
	for !p.sectionBreak() {
		lines = append(lines, p.next())
	}
	return lines
}

// consumeIndentedBlock consumes lines that are blank or indented at least
// the given amount, stopping at section breaks.
func (p *parser) consumeIndentedBlock(indent int) []string {
	var lines []string
	for !p.sectionBreak() {
		line := p.peek()
		if line != "" && indentOf(line) < indent {
			break
		}
		lines = append(lines, p.next())
	}
	return lines
}

func (p *parser) consumeSection(kind SectionKind) Section {
	switch kind {
	case KindParameters, KindAttributes, KindKeywordArguments, KindOtherParameters:
		return Section{Kind: kind, Fields: p.consumeFields(true)}
	case KindMethods:
		return Section{Kind: kind, Fields: p.consumeFields(false)}
	case KindReturns:
		return p.consumeReturns()
	case KindResponses:
		return p.consumeEntries(kind)
	case KindRequests:
		return p.consumeEntries(kind)
	default: // Schemas, Map, Tags, Examples, Usage
		lines := stripEdges(dedent(p.consumeToNextSection()))
		return Section{Kind: kind, Lines: lines}
	}
}

func (p *parser) consumeFields(parseType bool) []Field {
	p.consumeEmpty()
	var fields []Field
	for !p.sectionBreak() {
		f := p.consumeField(parseType)
		if f.Name != "" || f.Type != "" || len(f.Desc) > 0 {
			fields = append(fields, f)
		}
	}
	return fields
}

func (p *parser) consumeField(parseType bool) Field {
	line := p.next()
	before, _, after := partitionOnColon(line)
	f := Field{Name: before}
	if after != "" {
		f.Desc = []string{after}
	}
	if parseType {
		if m := typedFieldRegexp.FindStringSubmatch(before); m != nil {
			f.Name = m[1]
			f.Type = m[2]
		}
	}
	// Continuation lines indented deeper than the field line extend the
	// description. A dangling block at end of input is still a valid
	// description, never an error.
	cont := dedent(p.consumeIndentedBlock(indentOf(line) + 1))
	for _, l := range cont {
		if strings.TrimSpace(l) != "" || len(f.Desc) > 0 {
			f.Desc = append(f.Desc, l)
		}
	}
	for len(f.Desc) > 0 && strings.TrimSpace(f.Desc[len(f.Desc)-1]) == "" {
		f.Desc = f.Desc[:len(f.Desc)-1]
	}
	return f
}

// consumeReturns handles the Returns section. A lone "see :role:`x`" body
// short-circuits to a redirect. Otherwise the first line is partitioned
// into a type and description, yielding a single unnamed field.
func (p *parser) consumeReturns() Section {
	lines := stripEdges(dedent(p.consumeToNextSection()))
	s := Section{Kind: KindReturns, Lines: lines}
	if ref, ok := seeRedirect(lines); ok {
		s.Redirect = ref
		return s
	}
	if len(lines) == 0 {
		return s
	}
	before, colon, after := partitionOnColon(lines[0])
	f := Field{Desc: lines}
	if colon {
		f.Type = before
		if after != "" {
			f.Desc = append([]string{after}, lines[1:]...)
		} else {
			f.Desc = lines[1:]
		}
	}
	s.Fields = []Field{f}
	return s
}

// consumeEntries handles request and response blocks: a zero-indent line
// begins a named entry whose value is the inline text after the first
// colon, or the following indented lines when the inline text is empty.
func (p *parser) consumeEntries(kind SectionKind) Section {
	lines := dedent(p.consumeToNextSection())
	nonBlank := stripEdges(lines)
	s := Section{Kind: kind, Lines: nonBlank}
	if ref, ok := seeRedirect(nonBlank); ok {
		s.Redirect = ref
		return s
	}
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if indentOf(line) == 0 {
			key, value, found := cutOnColon(line)
			if !found {
				key, value = strings.TrimSpace(line), ""
			}
			s.Entries = append(s.Entries, Entry{
				Key:   strings.TrimSpace(strings.TrimSuffix(key, ":")),
				Value: strings.TrimSpace(value),
			})
		} else if len(s.Entries) > 0 {
			e := &s.Entries[len(s.Entries)-1]
			e.Block = append(e.Block, strings.TrimSpace(line))
		}
	}
	return s
}

// seeRedirect recognizes a body of the form "see :role:`target`" and
// returns the referenced target (with any attribute suffix preserved).
func seeRedirect(lines []string) (string, bool) {
	if len(lines) != 1 {
		return "", false
	}
	line := strings.TrimSpace(lines[0])
	if !strings.HasPrefix(strings.ToLower(line), "see") || !HasRef(line) {
		return "", false
	}
	return StripRefs(strings.TrimSpace(line[3:])), true
}

// partitionOnColon splits a line at the first single colon outside any
// cross-reference token. Double colons and colons inside :role:`target`
// markup do not split.
func partitionOnColon(line string) (before string, found bool, after string) {
	spans := RefSpans(line)
	idx := -1
	for i := 0; i < len(line); i++ {
		if line[i] != ':' {
			continue
		}
		if i > 0 && line[i-1] == ':' {
			continue
		}
		if i+1 < len(line) && line[i+1] == ':' {
			i++
			continue
		}
		if insideSpan(spans, i) {
			continue
		}
		idx = i
		break
	}
	if idx < 0 {
		return strings.TrimSpace(line), false, ""
	}
	return strings.TrimSpace(line[:idx]), true, strings.TrimSpace(line[idx+1:])
}

// cutOnColon is partitionOnColon keeping the raw value side.
func cutOnColon(line string) (string, string, bool) {
	before, found, after := partitionOnColon(line)
	return before, after, found
}

func insideSpan(spans [][]int, i int) bool {
	for _, sp := range spans {
		if i >= sp[0] && i < sp[1] {
			return true
		}
	}
	return false
}

func indentOf(line string) int {
	for i, r := range line {
		if r != ' ' && r != '\t' {
			return i
		}
	}
	return len(line)
}

// dedent removes the minimum shared indentation, preserving relative
// indentation inside the block.
func dedent(lines []string) []string {
	min := -1
	for _, l := range lines {
		if l == "" {
			continue
		}
		if ind := indentOf(l); min < 0 || ind < min {
			min = ind
		}
	}
	if min <= 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if len(l) >= min {
			out[i] = l[min:]
		} else {
			out[i] = ""
		}
	}
	return out
}

// stripEdges trims leading and trailing blank lines.
func stripEdges(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}
