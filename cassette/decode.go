package cassette

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Decoder decodes cassette documents against a fixed set of enabled
// capabilities. The zero value accepts only bare-string bodies; use
// NewDecoder(AllCapabilities()) for the full format.
//
// A Decoder is stateless after construction and safe for concurrent use.
type Decoder struct {
	caps Capabilities
}

// NewDecoder returns a Decoder that accepts the cassette features enabled
// in caps.
func NewDecoder(caps Capabilities) *Decoder {
	return &Decoder{caps: caps}
}

// Decode parses a cassette document with every capability enabled. See
// Decoder.Decode.
func Decode(data []byte) (*Cassette, error) {
	return NewDecoder(AllCapabilities()).Decode(data)
}

// Decode parses a cassette document. Both concrete syntaxes are accepted:
// JSON documents are parsed by the same YAML engine (JSON being a subset
// of YAML), so one structural walk serves both. Any deviation from the
// cassette shape, including use of a disabled capability, is reported as
// a *SchemaError carrying the field path.
func (d *Decoder) Decode(data []byte) (*Cassette, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, schemaErrorf("$", "malformed document: %v", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, schemaErrorf("$", "empty document")
	}
	return d.decodeCassette(resolve(root.Content[0]), "$")
}

func (d *Decoder) decodeCassette(n *yaml.Node, path string) (*Cassette, error) {
	fields, err := mappingFields(n, path)
	if err != nil {
		return nil, err
	}

	c := &Cassette{HTTPInteractions: []Interaction{}}

	interactions, ok := fields["http_interactions"]
	if !ok {
		return nil, schemaErrorf(path, "missing required field %q", "http_interactions")
	}
	if interactions.Kind != yaml.SequenceNode {
		return nil, schemaErrorf(path+".http_interactions", "expected a sequence")
	}
	for i, item := range interactions.Content {
		itemPath := fmt.Sprintf("%s.http_interactions[%d]", path, i)
		interaction, err := d.decodeInteraction(resolve(item), itemPath)
		if err != nil {
			return nil, err
		}
		c.HTTPInteractions = append(c.HTTPInteractions, *interaction)
	}

	c.RecordedWith, err = requiredString(fields, "recorded_with", path)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (d *Decoder) decodeInteraction(n *yaml.Node, path string) (*Interaction, error) {
	fields, err := mappingFields(n, path)
	if err != nil {
		return nil, err
	}

	var interaction Interaction

	request, ok := fields["request"]
	if !ok {
		return nil, schemaErrorf(path, "missing required field %q", "request")
	}
	req, err := d.decodeRequest(resolve(request), path+".request")
	if err != nil {
		return nil, err
	}
	interaction.Request = *req

	response, ok := fields["response"]
	if !ok {
		return nil, schemaErrorf(path, "missing required field %q", "response")
	}
	resp, err := d.decodeResponse(resolve(response), path+".response")
	if err != nil {
		return nil, err
	}
	interaction.Response = *resp

	// The timestamp is opaque text, stored verbatim: HTTP-date strings
	// like "Tue, 01 Nov 2011 04:58:44 GMT" are never parsed here.
	interaction.RecordedAt, err = requiredString(fields, "recorded_at", path)
	if err != nil {
		return nil, err
	}
	return &interaction, nil
}

func (d *Decoder) decodeRequest(n *yaml.Node, path string) (*Request, error) {
	fields, err := mappingFields(n, path)
	if err != nil {
		return nil, err
	}

	var req Request
	if req.URI, err = requiredString(fields, "uri", path); err != nil {
		return nil, err
	}
	if req.Method, err = requiredString(fields, "method", path); err != nil {
		return nil, err
	}
	if req.Body, err = d.decodeBody(fields["body"], path+".body"); err != nil {
		return nil, err
	}
	if req.Headers, err = decodeHeaders(fields["headers"], path+".headers"); err != nil {
		return nil, err
	}
	return &req, nil
}

func (d *Decoder) decodeResponse(n *yaml.Node, path string) (*Response, error) {
	fields, err := mappingFields(n, path)
	if err != nil {
		return nil, err
	}

	var resp Response
	if resp.Body, err = decodePlainBody(fields["body"], path+".body"); err != nil {
		return nil, err
	}
	if resp.HTTPVersion, err = requiredString(fields, "http_version", path); err != nil {
		return nil, err
	}

	status, ok := fields["status"]
	if !ok {
		return nil, schemaErrorf(path, "missing required field %q", "status")
	}
	if resp.Status, err = decodeStatus(resolve(status), path+".status"); err != nil {
		return nil, err
	}

	if resp.Headers, err = decodeHeaders(fields["headers"], path+".headers"); err != nil {
		return nil, err
	}
	return &resp, nil
}

func decodeStatus(n *yaml.Node, path string) (Status, error) {
	fields, err := mappingFields(n, path)
	if err != nil {
		return Status{}, err
	}

	var status Status
	code, ok := fields["code"]
	if !ok {
		return Status{}, schemaErrorf(path, "missing required field %q", "code")
	}
	if code.Kind != yaml.ScalarNode {
		return Status{}, schemaErrorf(path+".code", "expected an integer")
	}
	status.Code, err = strconv.Atoi(code.Value)
	if err != nil {
		return Status{}, schemaErrorf(path+".code", "expected an integer, got %q", code.Value)
	}

	if status.Message, err = requiredString(fields, "message", path); err != nil {
		return Status{}, err
	}
	return status, nil
}

func decodeHeaders(n *yaml.Node, path string) (Headers, error) {
	// Absent headers decode to an empty set.
	if n == nil {
		return nil, nil
	}
	n = resolve(n)
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, schemaErrorf(path, "expected a mapping of value sequences")
	}

	var headers Headers
	for i := 0; i < len(n.Content); i += 2 {
		key, value := n.Content[i], resolve(n.Content[i+1])
		if headers.Values(key.Value) != nil {
			return nil, schemaErrorf(path, "duplicate header %q", key.Value)
		}
		if value.Kind != yaml.SequenceNode {
			return nil, schemaErrorf(fmt.Sprintf("%s.%s", path, key.Value), "expected a sequence of strings")
		}
		values := make([]string, 0, len(value.Content))
		for _, item := range value.Content {
			item = resolve(item)
			if item.Kind != yaml.ScalarNode {
				return nil, schemaErrorf(fmt.Sprintf("%s.%s", path, key.Value), "expected a string value")
			}
			values = append(values, item.Value)
		}
		headers = append(headers, Header{Name: key.Value, Values: values})
	}
	return headers, nil
}

func (d *Decoder) decodeBody(n *yaml.Node, path string) (Body, error) {
	// Absent and null bodies decode to the empty plain body.
	if n == nil {
		return PlainBody(""), nil
	}
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return PlainBody(""), nil
		}
		return PlainBody(n.Value), nil
	case yaml.MappingNode:
		if len(n.Content) == 4 {
			return decodeEncodedBody(n, path)
		}
		if len(n.Content) != 2 {
			return nil, schemaErrorf(path, "expected a json, matches, or string/encoding body")
		}
		key, value := n.Content[0], resolve(n.Content[1])
		switch key.Value {
		case "string":
			return nil, schemaErrorf(path, "missing required field %q", "encoding")
		case "encoding":
			return nil, schemaErrorf(path, "missing required field %q", "string")
		case "json":
			if !d.caps.JSON {
				return nil, schemaErrorf(path, "unsupported body shape %q: json capability disabled", "json")
			}
			v, err := anyValue(value, path+".json")
			if err != nil {
				return nil, err
			}
			return JSONBody{Value: v}, nil
		case "matches":
			if !d.caps.Matching {
				return nil, schemaErrorf(path, "unsupported body shape %q: matching capability disabled", "matches")
			}
			if value.Kind != yaml.SequenceNode {
				return nil, schemaErrorf(path+".matches", "expected a sequence of match rules")
			}
			rules := MatcherBody{}
			for i, item := range value.Content {
				rule, err := d.decodeMatchRule(resolve(item), fmt.Sprintf("%s.matches[%d]", path, i))
				if err != nil {
					return nil, err
				}
				rules = append(rules, rule)
			}
			return rules, nil
		default:
			return nil, schemaErrorf(path, "unknown body field %q", key.Value)
		}
	default:
		return nil, schemaErrorf(path, "expected a string or mapping")
	}
}

// decodeEncodedBody decodes the two-key string/encoding body form. The
// keys may appear in either order; the encoding may be null.
func decodeEncodedBody(n *yaml.Node, path string) (Body, error) {
	var body EncodedBody
	seenString, seenEncoding := false, false
	for i := 0; i < len(n.Content); i += 2 {
		key, value := n.Content[i], resolve(n.Content[i+1])
		switch key.Value {
		case "string":
			if value.Kind != yaml.ScalarNode || value.Tag == "!!null" {
				return nil, schemaErrorf(path+".string", "expected a string")
			}
			body.String = value.Value
			seenString = true
		case "encoding":
			if value.Kind != yaml.ScalarNode {
				return nil, schemaErrorf(path+".encoding", "expected a string or null")
			}
			if value.Tag != "!!null" {
				body.Encoding = value.Value
			}
			seenEncoding = true
		default:
			return nil, schemaErrorf(path, "unknown body field %q", key.Value)
		}
	}
	if !seenString {
		return nil, schemaErrorf(path, "missing required field %q", "string")
	}
	if !seenEncoding {
		return nil, schemaErrorf(path, "missing required field %q", "encoding")
	}
	return body, nil
}

// decodePlainBody decodes a response body, which only ever takes the
// bare-string form.
func decodePlainBody(n *yaml.Node, path string) (Body, error) {
	if n == nil {
		return PlainBody(""), nil
	}
	n = resolve(n)
	if n.Kind != yaml.ScalarNode {
		return nil, schemaErrorf(path, "response bodies must be plain strings")
	}
	if n.Tag == "!!null" {
		return PlainBody(""), nil
	}
	return PlainBody(n.Value), nil
}

func (d *Decoder) decodeMatchRule(n *yaml.Node, path string) (MatchRule, error) {
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return nil, schemaErrorf(path, "expected a mapping with a single substring or regex key")
	}
	key, value := n.Content[0], resolve(n.Content[1])
	if value.Kind != yaml.ScalarNode {
		return nil, schemaErrorf(fmt.Sprintf("%s.%s", path, key.Value), "expected a string")
	}
	switch key.Value {
	case "substring":
		return SubstringRule(value.Value), nil
	case "regex":
		if !d.caps.Regex {
			return nil, schemaErrorf(path, "unsupported matcher %q: regex capability disabled", "regex")
		}
		// Validate eagerly so malformed rules surface at decode time
		// rather than on first use.
		if _, err := regexp.Compile(value.Value); err != nil {
			return nil, schemaErrorf(path+".regex", "invalid regular expression: %v", err)
		}
		return RegexRule(value.Value), nil
	default:
		return nil, schemaErrorf(path, "unsupported matcher %q", key.Value)
	}
}

// anyValue converts a node subtree into the generic JSON value shape:
// map[string]interface{}, []interface{}, string, int64, float64, bool,
// or nil.
func anyValue(n *yaml.Node, path string) (interface{}, error) {
	n = resolve(n)
	switch n.Kind {
	case yaml.MappingNode:
		m := make(map[string]interface{}, len(n.Content)/2)
		for i := 0; i < len(n.Content); i += 2 {
			key := n.Content[i].Value
			v, err := anyValue(n.Content[i+1], fmt.Sprintf("%s.%s", path, key))
			if err != nil {
				return nil, err
			}
			m[key] = v
		}
		return m, nil
	case yaml.SequenceNode:
		s := make([]interface{}, 0, len(n.Content))
		for i, item := range n.Content {
			v, err := anyValue(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			s = append(s, v)
		}
		return s, nil
	case yaml.ScalarNode:
		switch n.Tag {
		case "!!null":
			return nil, nil
		case "!!bool":
			b, err := strconv.ParseBool(n.Value)
			if err != nil {
				return nil, schemaErrorf(path, "invalid boolean %q", n.Value)
			}
			return b, nil
		case "!!int":
			i, err := strconv.ParseInt(n.Value, 10, 64)
			if err != nil {
				return nil, schemaErrorf(path, "invalid integer %q", n.Value)
			}
			return i, nil
		case "!!float":
			f, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return nil, schemaErrorf(path, "invalid number %q", n.Value)
			}
			return f, nil
		default:
			return n.Value, nil
		}
	default:
		return nil, schemaErrorf(path, "unsupported value kind")
	}
}

// mappingFields indexes a mapping node by key. Unknown keys are
// tolerated so cassettes written by other tools still load.
func mappingFields(n *yaml.Node, path string) (map[string]*yaml.Node, error) {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, schemaErrorf(path, "expected a mapping")
	}
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i < len(n.Content); i += 2 {
		fields[n.Content[i].Value] = n.Content[i+1]
	}
	return fields, nil
}

func requiredString(fields map[string]*yaml.Node, name, path string) (string, error) {
	n, ok := fields[name]
	if !ok {
		return "", schemaErrorf(path, "missing required field %q", name)
	}
	n = resolve(n)
	if n.Kind != yaml.ScalarNode || n.Tag == "!!null" {
		return "", schemaErrorf(path+"."+name, "expected a string")
	}
	return n.Value, nil
}

// resolve follows alias nodes so anchors behave like their targets.
func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}
