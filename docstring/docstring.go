package docstring

import (
	"regexp"
	"strings"
)

// SectionKind identifies a recognized docstring section.
type SectionKind int

const (
	KindParameters SectionKind = iota
	KindAttributes
	KindExamples
	KindKeywordArguments
	KindMethods
	KindOtherParameters
	KindSchemas
	KindMap
	KindTags
	KindRequests
	KindResponses
	KindReturns
	KindUsage
)

var kindNames = map[SectionKind]string{
	KindParameters:       "parameters",
	KindAttributes:       "attributes",
	KindExamples:         "examples",
	KindKeywordArguments: "keyword arguments",
	KindMethods:          "methods",
	KindOtherParameters:  "other parameters",
	KindSchemas:          "schemas",
	KindMap:              "map",
	KindTags:             "tags",
	KindRequests:         "requests",
	KindResponses:        "responses",
	KindReturns:          "returns",
	KindUsage:            "usage",
}

func (k SectionKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// sectionKinds maps header text (lowercased, colon stripped) to its kind.
var sectionKinds = map[string]SectionKind{
	"args":              KindParameters,
	"arguments":         KindParameters,
	"parameters":        KindParameters,
	"attributes":        KindAttributes,
	"example":           KindExamples,
	"examples":          KindExamples,
	"keyword args":      KindKeywordArguments,
	"keyword arguments": KindKeywordArguments,
	"methods":           KindMethods,
	"other parameters":  KindOtherParameters,
	"schema":            KindSchemas,
	"schemas":           KindSchemas,
	"map":               KindMap,
	"maps":              KindMap,
	"tag":               KindTags,
	"tags":              KindTags,
	"request":           KindRequests,
	"requests":          KindRequests,
	"response":          KindResponses,
	"responses":         KindResponses,
	"return":            KindReturns,
	"returns":           KindReturns,
	"usage":             KindUsage,
}

// Field is a single documented parameter, attribute, or return entry.
// Name may be empty (unnamed return value) and Type may be empty
// (inferred later from annotations).
type Field struct {
	Name string
	Type string
	Desc []string
}

// Entry is a named sub-entry inside a request or response block. Value
// holds inline text after the key's colon; Block holds the following
// indented lines when the inline value is empty or continued.
type Entry struct {
	Key   string
	Value string
	Block []string
}

// Section is one named block of a docstring. The populated part of the
// body depends on the kind: field-style sections fill Fields, free-text
// sections fill Lines, and request/response sections fill Entries.
// Redirect is set instead when the whole body is a "see :role:`target`"
// cross-reference.
type Section struct {
	Kind     SectionKind
	Fields   []Field
	Lines    []string
	Entries  []Entry
	Redirect string
}

// Docstring is the parsed form of a handler docstring. Sections keep
// insertion order. HasDescription distinguishes a docstring that starts
// directly with a section header from one with an empty first block.
type Docstring struct {
	Description    string
	HasDescription bool
	Sections       []Section
}

// Section returns the first section of the given kind.
func (d *Docstring) Section(kind SectionKind) (*Section, bool) {
	for i := range d.Sections {
		if d.Sections[i].Kind == kind {
			return &d.Sections[i], true
		}
	}
	return nil, false
}

// Parameters returns declared parameter fields, with any Other Parameters
// section appended after the primary one.
func (d *Docstring) Parameters() []Field {
	var fields []Field
	for _, s := range d.Sections {
		if s.Kind == KindParameters || s.Kind == KindOtherParameters {
			fields = append(fields, s.Fields...)
		}
	}
	return fields
}

// Schemas returns the raw dedented lines of the Schemas section.
func (d *Docstring) Schemas() ([]string, bool) {
	s, ok := d.Section(KindSchemas)
	if !ok {
		return nil, false
	}
	return s.Lines, true
}

// Tags returns the comma-normalized tag list.
func (d *Docstring) Tags() []string {
	s, ok := d.Section(KindTags)
	if !ok {
		return nil
	}
	joined := strings.Join(s.Lines, ",")
	var tags []string
	for _, t := range strings.Split(joined, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// MapDirective returns the first line of the Map section, which redirects
// the endpoint to another handler.
func (d *Docstring) MapDirective() (string, bool) {
	s, ok := d.Section(KindMap)
	if !ok || len(s.Lines) == 0 {
		return "", false
	}
	return s.Lines[0], true
}

// Requests returns the Requests section.
func (d *Docstring) Requests() (*Section, bool) { return d.Section(KindRequests) }

// Responses returns the Responses section.
func (d *Docstring) Responses() (*Section, bool) { return d.Section(KindResponses) }

// Returns returns the Returns section.
func (d *Docstring) Returns() (*Section, bool) { return d.Section(KindReturns) }

// refRegexp matches a cross-reference token :role:`target` where role may
// be a dotted/hyphenated identifier chain.
var refRegexp = regexp.MustCompile(":(?:[a-zA-Z0-9]+[-_+:.])*[a-zA-Z0-9]+:`[^`]+`")

// refPartsRegexp captures the target inside a cross-reference token.
var refPartsRegexp = regexp.MustCompile(":(?:[a-zA-Z0-9]+[-_+:.])*[a-zA-Z0-9]+:`([^`]+)`")

// HasRef reports whether the line contains a cross-reference token.
func HasRef(s string) bool {
	return refRegexp.MatchString(s)
}

// ParseRef extracts the first cross-reference token from s, returning the
// target name and the optional attribute suffix (":role:`target`: attr").
// An absent attribute defaults to "return", meaning the target's return
// annotation is the referenced value.
func ParseRef(s string) (target, attr string, ok bool) {
	loc := refPartsRegexp.FindStringSubmatchIndex(s)
	if loc == nil {
		return "", "", false
	}
	target = strings.TrimPrefix(s[loc[2]:loc[3]], "~")
	rest := s[loc[1]:]
	if cut, found := strings.CutPrefix(strings.TrimSpace(rest), ":"); found {
		if a := firstWord(cut); a != "" {
			return target, a, true
		}
	}
	return target, "return", true
}

// StripRefs replaces every cross-reference token in s with its bare
// target name.
func StripRefs(s string) string {
	return refPartsRegexp.ReplaceAllStringFunc(s, func(m string) string {
		sub := refPartsRegexp.FindStringSubmatch(m)
		return strings.TrimPrefix(sub[1], "~")
	})
}

// RefSpans returns the byte spans of every cross-reference token in s,
// in order. Callers rebuilding a line substitute span by span instead of
// mutating in place.
func RefSpans(s string) [][]int {
	return refRegexp.FindAllStringIndex(s, -1)
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	for i, r := range s {
		if r == ' ' || r == '\t' || r == ',' {
			return s[:i]
		}
	}
	return s
}
