// Package schema builds and annotates OpenAPI schema objects from parsed
// type descriptors. Nodes keep property order, marshal identically to JSON
// and YAML, and support structural comparison for deduplication.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Prop is one ordered property of an object schema.
type Prop struct {
	Name   string
	Schema *Node
}

// Node is a single schema object. A set Ref makes the node a pure
// reference and the remaining fields are ignored on the wire. Nullable
// is tri-state by omission: false is never serialized.
type Node struct {
	Ref                  string
	Title                string
	Type                 string
	Format               string
	Description          string
	XType                string
	Properties           []Prop
	RequiredProps        []string
	Items                *Node
	AdditionalProperties *Node
	AnyOf                []*Node
	Nullable             bool
	Required             bool
	Example              any
}

// Property returns the named property schema.
func (n *Node) Property(name string) (*Node, bool) {
	for _, p := range n.Properties {
		if p.Name == name {
			return p.Schema, true
		}
	}
	return nil, false
}

// SetProperty appends or replaces a property, preserving order on
// replacement.
func (n *Node) SetProperty(name string, s *Node) {
	for i, p := range n.Properties {
		if p.Name == name {
			n.Properties[i].Schema = s
			return
		}
	}
	n.Properties = append(n.Properties, Prop{Name: name, Schema: s})
}

// DropProperty removes the named property.
func (n *Node) DropProperty(name string) {
	for i, p := range n.Properties {
		if p.Name == name {
			n.Properties = append(n.Properties[:i], n.Properties[i+1:]...)
			return
		}
	}
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Properties != nil {
		out.Properties = make([]Prop, len(n.Properties))
		for i, p := range n.Properties {
			out.Properties[i] = Prop{Name: p.Name, Schema: p.Schema.Clone()}
		}
	}
	if n.RequiredProps != nil {
		out.RequiredProps = append([]string(nil), n.RequiredProps...)
	}
	out.Items = n.Items.Clone()
	out.AdditionalProperties = n.AdditionalProperties.Clone()
	if n.AnyOf != nil {
		out.AnyOf = make([]*Node, len(n.AnyOf))
		for i, a := range n.AnyOf {
			out.AnyOf[i] = a.Clone()
		}
	}
	return &out
}

// Walk visits the node and every nested schema, depth first. Returning
// false from fn stops the walk.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, p := range n.Properties {
		if !p.Schema.Walk(fn) {
			return false
		}
	}
	if !n.Items.Walk(fn) {
		return false
	}
	if !n.AdditionalProperties.Walk(fn) {
		return false
	}
	for _, a := range n.AnyOf {
		if !a.Walk(fn) {
			return false
		}
	}
	return true
}

// Equal reports strict structural equality, titles included.
func (n *Node) Equal(o *Node) bool { return equalNodes(n, o, false) }

// Equivalent reports structural equality ignoring titles. Deduplication
// matches inline schemas against named definitions with it.
func Equivalent(a, b *Node) bool { return equalNodes(a, b, true) }

func equalNodes(a, b *Node, ignoreTitle bool) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Ref != b.Ref || a.Type != b.Type || a.Format != b.Format ||
		a.Description != b.Description || a.XType != b.XType ||
		a.Nullable != b.Nullable || a.Required != b.Required {
		return false
	}
	if !ignoreTitle && a.Title != b.Title {
		return false
	}
	if len(a.Properties) != len(b.Properties) {
		return false
	}
	for i := range a.Properties {
		if a.Properties[i].Name != b.Properties[i].Name {
			return false
		}
		if !equalNodes(a.Properties[i].Schema, b.Properties[i].Schema, ignoreTitle) {
			return false
		}
	}
	if len(a.RequiredProps) != len(b.RequiredProps) {
		return false
	}
	for i := range a.RequiredProps {
		if a.RequiredProps[i] != b.RequiredProps[i] {
			return false
		}
	}
	if !equalNodes(a.Items, b.Items, ignoreTitle) {
		return false
	}
	if !equalNodes(a.AdditionalProperties, b.AdditionalProperties, ignoreTitle) {
		return false
	}
	if len(a.AnyOf) != len(b.AnyOf) {
		return false
	}
	for i := range a.AnyOf {
		if !equalNodes(a.AnyOf[i], b.AnyOf[i], ignoreTitle) {
			return false
		}
	}
	return fmt.Sprint(a.Example) == fmt.Sprint(b.Example)
}

// pair is one serialized key of a node, in wire order.
type pair struct {
	key   string
	value any
}

func (n *Node) pairs() []pair {
	if n.Ref != "" {
		return []pair{{"$ref", n.Ref}}
	}
	var out []pair
	if n.Title != "" {
		out = append(out, pair{"title", n.Title})
	}
	if n.Type != "" {
		out = append(out, pair{"type", n.Type})
	}
	if n.Format != "" {
		out = append(out, pair{"format", n.Format})
	}
	if n.Description != "" {
		out = append(out, pair{"description", n.Description})
	}
	if n.XType != "" {
		out = append(out, pair{"x-type", n.XType})
	}
	if n.Properties != nil {
		out = append(out, pair{"properties", n.Properties})
	}
	if len(n.RequiredProps) > 0 {
		out = append(out, pair{"required", n.RequiredProps})
	}
	if n.Items != nil {
		out = append(out, pair{"items", n.Items})
	}
	if n.AdditionalProperties != nil {
		out = append(out, pair{"additionalProperties", n.AdditionalProperties})
	}
	if len(n.AnyOf) > 0 {
		out = append(out, pair{"anyOf", n.AnyOf})
	}
	if n.Nullable {
		out = append(out, pair{"nullable", true})
	}
	// The list form owns the key when both are set.
	if n.Required && len(n.RequiredProps) == 0 {
		out = append(out, pair{"required", true})
	}
	if n.Example != nil {
		out = append(out, pair{"example", n.Example})
	}
	return out
}

// MarshalJSON writes keys in wire order. An empty node is a valid
// unconstrained schema and serializes as {}.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range n.pairs() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(kv.key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		var val []byte
		if props, ok := kv.value.([]Prop); ok {
			val, err = marshalProps(props)
		} else {
			val, err = json.Marshal(kv.value)
		}
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalProps(props []Prop) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range props {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(p.Schema)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML mirrors MarshalJSON through an explicit mapping node so
// yaml.v3 keeps the key order.
func (n *Node) MarshalYAML() (any, error) {
	out := &yaml.Node{Kind: yaml.MappingNode}
	for _, kv := range n.pairs() {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: kv.key}
		var val yaml.Node
		if props, ok := kv.value.([]Prop); ok {
			val.Kind = yaml.MappingNode
			for _, p := range props {
				pk := &yaml.Node{Kind: yaml.ScalarNode, Value: p.Name}
				var pv yaml.Node
				if err := pv.Encode(p.Schema); err != nil {
					return nil, err
				}
				val.Content = append(val.Content, pk, &pv)
			}
		} else if err := val.Encode(kv.value); err != nil {
			return nil, err
		}
		out.Content = append(out.Content, key, &val)
	}
	return out, nil
}
