package cassette

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Header is a single header name together with its recorded values, in
// order.
type Header struct {
	Name   string
	Values []string
}

// Headers is an ordered multimap of header names to value sequences.
//
// Unlike net/http.Header, names are not canonicalized and iteration order
// is stable: both the order in which names appear and the order of values
// per name survive a decode/encode round trip. Names are unique within a
// decoded Headers value.
type Headers []Header

// Values returns the recorded values for name, or nil if the header is
// absent. Lookup is case-sensitive, matching the recorded form exactly.
func (h Headers) Values(name string) []string {
	for _, hdr := range h {
		if hdr.Name == name {
			return hdr.Values
		}
	}
	return nil
}

// Get returns the first recorded value for name, or "" if absent.
func (h Headers) Get(name string) string {
	if vs := h.Values(name); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Add appends value to the header name, creating the header at the end of
// the sequence if it is not yet present.
func (h *Headers) Add(name, value string) {
	for i := range *h {
		if (*h)[i].Name == name {
			(*h)[i].Values = append((*h)[i].Values, value)
			return
		}
	}
	*h = append(*h, Header{Name: name, Values: []string{value}})
}

// MarshalJSON writes the headers as a JSON object whose keys appear in
// recorded order.
func (h Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, hdr := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(hdr.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		values, err := json.Marshal(hdr.Values)
		if err != nil {
			return nil, err
		}
		buf.Write(values)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the headers as a YAML mapping whose keys appear in
// recorded order.
func (h Headers) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	if len(h) == 0 {
		// Emit {} rather than null for an empty header set.
		node.Style = yaml.FlowStyle
	}
	for _, hdr := range h {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: hdr.Name}
		values := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, v := range hdr.Values {
			values.Content = append(values.Content, &yaml.Node{
				Kind: yaml.ScalarNode, Tag: "!!str", Value: v,
			})
		}
		node.Content = append(node.Content, key, values)
	}
	return node, nil
}
