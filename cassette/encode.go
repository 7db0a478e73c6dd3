package cassette

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// EncodeJSON renders the cassette as an indented JSON document in the
// shape Decode accepts, so Decode(EncodeJSON(c)) is structurally equal to
// c for every valid cassette. Empty plain bodies are always written as an
// explicit "" rather than omitted, matching the decoder's treatment of
// absent bodies.
func EncodeJSON(c *Cassette) ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// EncodeYAML renders the cassette as a YAML document in the shape Decode
// accepts, with the same round-trip guarantee as EncodeJSON.
func EncodeYAML(c *Cassette) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
