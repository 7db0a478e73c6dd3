package cassette

import (
	"bytes"
	"encoding/json"

	"github.com/gowebpki/jcs"
)

// Matches reports whether a candidate body satisfies the recorded one.
//
//   - PlainBody: exact text equality.
//   - EncodedBody: exact text equality, and only when the body was
//     recorded without an encoding; an encoded body never matches raw
//     candidate text.
//   - JSONBody: the candidate is parsed as JSON and compared by
//     structural equality; mapping key order is irrelevant, sequence
//     order is significant. A candidate that fails to parse simply does
//     not match; no error is returned for it.
//   - MatcherBody: the conjunction of all rules, evaluated in order with
//     a short circuit on the first failure. An empty rule list matches
//     everything. Rule order never changes the outcome.
//
// The returned error is non-nil only for a malformed rule definition
// (see MatchError); a mismatched candidate is a normal false result.
func Matches(recorded Body, candidate string) (bool, error) {
	switch b := recorded.(type) {
	case PlainBody:
		return string(b) == candidate, nil
	case EncodedBody:
		// Candidate bodies arrive as raw text, so an encoded recording
		// can only match when no encoding was applied.
		return b.Encoding == "" && b.String == candidate, nil
	case JSONBody:
		return jsonEqual(b.Value, candidate), nil
	case MatcherBody:
		for _, rule := range b {
			ok, err := rule.Matches(candidate)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case nil:
		// A nil body behaves like the empty plain body it decodes from.
		return candidate == "", nil
	default:
		return false, nil
	}
}

// jsonEqual compares a decoded JSON value against candidate JSON text by
// canonicalizing both sides per RFC 8785 and comparing bytes. The
// canonical form sorts object keys and normalizes number formatting, so
// key order and spelling differences like 1 vs 1.0 do not affect the
// outcome, while array order does.
func jsonEqual(value interface{}, candidate string) bool {
	recorded, err := json.Marshal(value)
	if err != nil {
		return false
	}
	recordedCanon, err := jcs.Transform(recorded)
	if err != nil {
		return false
	}
	candidateCanon, err := jcs.Transform([]byte(candidate))
	if err != nil {
		// Unparsable candidates fail to match; they are not errors.
		return false
	}
	return bytes.Equal(recordedCanon, candidateCanon)
}
