package cassette

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Body is a recorded HTTP body. Exactly one concrete representation is
// active per value:
//
//   - PlainBody: a bare string, matched by exact text equality.
//   - EncodedBody: a string plus the encoding it was recorded in
//     ({"string": ..., "encoding": ...}). Part of the base format.
//   - JSONBody: a structured JSON value ({"json": ...} in the document),
//     matched by structural equality. Requires the JSON capability.
//   - MatcherBody: a list of match rules ({"matches": [...]}), all of
//     which must pass. Requires the Matching capability.
//
// An absent or empty body decodes to PlainBody(""). Response bodies are
// always PlainBody; the other forms are request-only.
type Body interface {
	isBody()
}

// PlainBody is a bare string body. A live request body matches only if it
// equals the recorded text exactly.
type PlainBody string

func (PlainBody) isBody() {}

// MarshalJSON writes the body as a bare JSON string.
func (b PlainBody) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(b))
}

// MarshalYAML writes the body as a bare scalar.
func (b PlainBody) MarshalYAML() (interface{}, error) {
	return string(b), nil
}

// EncodedBody is a string body recorded together with its transfer
// encoding, e.g. base64. The text is stored as recorded; no decoding is
// performed. A candidate matches only when no encoding was recorded and
// the strings are exactly equal.
type EncodedBody struct {
	// Encoding names the manner in which String was encoded, such as
	// "base64". Empty means the body was recorded without one.
	Encoding string

	// String is the encoded body text, verbatim.
	String string
}

func (EncodedBody) isBody() {}

// MarshalJSON writes the body as {"string": ..., "encoding": ...}, with
// a null encoding when none was recorded.
func (b EncodedBody) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"string":`)
	s, err := json.Marshal(b.String)
	if err != nil {
		return nil, err
	}
	buf.Write(s)
	buf.WriteString(`,"encoding":`)
	if b.Encoding == "" {
		buf.WriteString("null")
	} else {
		e, err := json.Marshal(b.Encoding)
		if err != nil {
			return nil, err
		}
		buf.Write(e)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the body as a mapping with string and encoding
// keys, in that order.
func (b EncodedBody) MarshalYAML() (interface{}, error) {
	encoding := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	if b.Encoding != "" {
		encoding = &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: b.Encoding}
	}
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "string"},
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: b.String},
		{Kind: yaml.ScalarNode, Tag: "!!str", Value: "encoding"},
		encoding,
	}}, nil
}

// JSONBody is a structured JSON body. It is matched by structural
// equality: mapping key order is irrelevant, sequence order is not.
// The Value field holds the decoded tree (maps, slices, strings, int64s,
// float64s, bools, nil). Note that whole-number floats are not
// distinguishable from integers in the document form: a Value holding
// float64(1) encodes as 1 and decodes back as int64(1).
type JSONBody struct {
	Value interface{}
}

func (JSONBody) isBody() {}

// MarshalJSON writes the body as {"json": <value>}.
func (b JSONBody) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"json":`)
	value, err := json.Marshal(b.Value)
	if err != nil {
		return nil, err
	}
	buf.Write(value)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the body as a mapping with a single json key.
func (b JSONBody) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{"json": b.Value}, nil
}

// MatcherBody is an ordered list of match rules. A candidate body matches
// only if every rule passes; an empty list matches everything.
type MatcherBody []MatchRule

func (MatcherBody) isBody() {}

// MarshalJSON writes the body as {"matches": [...]}.
func (b MatcherBody) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"matches":`)
	rules, err := json.Marshal([]MatchRule(b))
	if err != nil {
		return nil, err
	}
	buf.Write(rules)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML writes the body as a mapping with a single matches key.
func (b MatcherBody) MarshalYAML() (interface{}, error) {
	return map[string]interface{}{"matches": []MatchRule(b)}, nil
}

// MatchRule is a single predicate over a candidate body. Rules come in two
// kinds: substring containment and regular-expression search (the latter
// requires the Regex capability).
type MatchRule interface {
	isMatchRule()

	// Matches reports whether candidate satisfies the rule. The error is
	// non-nil only for a malformed rule definition, never for any
	// property of the candidate text.
	Matches(candidate string) (bool, error)
}

// SubstringRule passes when the candidate body contains the rule text as
// a contiguous span. Matching is case-sensitive.
type SubstringRule string

func (SubstringRule) isMatchRule() {}

// Matches reports whether candidate contains the rule text.
func (r SubstringRule) Matches(candidate string) (bool, error) {
	return strings.Contains(candidate, string(r)), nil
}

// MarshalJSON writes the rule as {"substring": "..."}.
func (r SubstringRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"substring": string(r)})
}

// MarshalYAML writes the rule as a mapping with a single substring key.
func (r SubstringRule) MarshalYAML() (interface{}, error) {
	return map[string]string{"substring": string(r)}, nil
}

// RegexRule passes when the compiled pattern finds a match anywhere in
// the candidate body (search semantics; use ^ and $ to anchor).
type RegexRule string

func (RegexRule) isMatchRule() {}

// Matches reports whether the pattern finds a match in candidate. An
// invalid pattern yields a *MatchError: a malformed rule is an error,
// not a mismatch.
func (r RegexRule) Matches(candidate string) (bool, error) {
	re, err := regexp.Compile(string(r))
	if err != nil {
		return false, &MatchError{Pattern: string(r), Err: err}
	}
	return re.MatchString(candidate), nil
}

// MarshalJSON writes the rule as {"regex": "..."}.
func (r RegexRule) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"regex": string(r)})
}

// MarshalYAML writes the rule as a mapping with a single regex key.
func (r RegexRule) MarshalYAML() (interface{}, error) {
	return map[string]string{"regex": string(r)}, nil
}
