package cassette

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestDecodeExample(t *testing.T) {
	c, err := Decode(readFixture(t, "example.json"))
	require.NoError(t, err)

	assert.Equal(t, "VCR 2.0.0", c.RecordedWith)
	require.Len(t, c.HTTPInteractions, 1)

	interaction := c.HTTPInteractions[0]
	assert.Equal(t, "get", interaction.Request.Method)
	assert.Equal(t, "http://localhost:7777/foo", interaction.Request.URI)
	assert.Equal(t, PlainBody(""), interaction.Request.Body)
	assert.Equal(t, []string{"identity"}, interaction.Request.Headers.Values("Accept-Encoding"))

	assert.Equal(t, 200, interaction.Response.Status.Code)
	assert.Equal(t, "OK", interaction.Response.Status.Message)
	assert.Equal(t, "1.1", interaction.Response.HTTPVersion)
	assert.Equal(t, PlainBody("Hello foo"), interaction.Response.Body)
	assert.Equal(t, "Tue, 01 Nov 2011 04:58:44 GMT", interaction.RecordedAt)

	// Header names keep their recorded order and case.
	names := make([]string, 0, len(interaction.Response.Headers))
	for _, h := range interaction.Response.Headers {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Date", "Content-Type", "Content-Length"}, names)
}

func TestDecodeYAMLMatchesJSON(t *testing.T) {
	fromJSON, err := Decode(readFixture(t, "example.json"))
	require.NoError(t, err)

	fromYAML, err := Decode(readFixture(t, "example.yaml"))
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
}

func TestDecodeMatcherCassette(t *testing.T) {
	c, err := Decode(readFixture(t, "matchers.yaml"))
	require.NoError(t, err)
	require.Len(t, c.HTTPInteractions, 2)

	rules, ok := c.HTTPInteractions[0].Request.Body.(MatcherBody)
	require.True(t, ok, "first request body should be a matcher body")
	require.Len(t, rules, 2)
	assert.Equal(t, SubstringRule(`"sku"`), rules[0])
	assert.Equal(t, RegexRule(`"quantity":\s*\d+`), rules[1])

	jsonBody, ok := c.HTTPInteractions[1].Request.Body.(JSONBody)
	require.True(t, ok, "second request body should be a json body")
	assert.Equal(t, map[string]interface{}{
		"sku":      "WIDGET-9",
		"quantity": int64(3),
		"gift":     false,
	}, jsonBody.Value)
}

// minimalDoc returns a valid single-interaction document as a mutable
// tree, so each case below can knock out one field.
func minimalDoc() map[string]interface{} {
	return map[string]interface{}{
		"http_interactions": []interface{}{
			map[string]interface{}{
				"request": map[string]interface{}{
					"uri":    "http://example.test/",
					"body":   "",
					"method": "get",
				},
				"response": map[string]interface{}{
					"body":         "ok",
					"http_version": "1.1",
					"status": map[string]interface{}{
						"code":    200,
						"message": "OK",
					},
				},
				"recorded_at": "Tue, 01 Nov 2011 04:58:44 GMT",
			},
		},
		"recorded_with": "VCR 2.0.0",
	}
}

func TestDecodeMinimalDoc(t *testing.T) {
	data, err := yaml.Marshal(minimalDoc())
	require.NoError(t, err)

	c, err := Decode(data)
	require.NoError(t, err)

	// Absent headers and bodies take their defaults.
	assert.Empty(t, c.HTTPInteractions[0].Request.Headers)
	assert.Equal(t, PlainBody(""), c.HTTPInteractions[0].Request.Body)
}

func TestDecodeEncodedBody(t *testing.T) {
	decodeWithBody := func(t *testing.T, body interface{}) (*Cassette, error) {
		t.Helper()
		doc := minimalDoc()
		request(doc)["body"] = body
		data, err := yaml.Marshal(doc)
		require.NoError(t, err)
		return Decode(data)
	}

	t.Run("with encoding", func(t *testing.T) {
		c, err := decodeWithBody(t, map[string]interface{}{
			"string":   "aGVsbG8=",
			"encoding": "base64",
		})
		require.NoError(t, err)
		assert.Equal(t, EncodedBody{Encoding: "base64", String: "aGVsbG8="},
			c.HTTPInteractions[0].Request.Body)
	})

	t.Run("null encoding", func(t *testing.T) {
		c, err := decodeWithBody(t, map[string]interface{}{
			"string":   "hello",
			"encoding": nil,
		})
		require.NoError(t, err)
		assert.Equal(t, EncodedBody{String: "hello"},
			c.HTTPInteractions[0].Request.Body)
	})

	t.Run("key order irrelevant", func(t *testing.T) {
		doc := []byte(`
http_interactions:
  - request:
      uri: http://example.test/
      method: get
      body:
        encoding: base64
        string: aGVsbG8=
    response:
      body: ""
      http_version: "1.1"
      status: {code: 200, message: OK}
    recorded_at: Tue, 01 Nov 2011 04:58:44 GMT
recorded_with: VCR 2.0.0
`)
		c, err := Decode(doc)
		require.NoError(t, err)
		assert.Equal(t, EncodedBody{Encoding: "base64", String: "aGVsbG8="},
			c.HTTPInteractions[0].Request.Body)
	})

	t.Run("missing encoding", func(t *testing.T) {
		_, err := decodeWithBody(t, map[string]interface{}{"string": "hello"})
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Message, "encoding")
	})

	t.Run("missing string", func(t *testing.T) {
		_, err := decodeWithBody(t, map[string]interface{}{"encoding": "base64"})
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Message, "string")
	})

	t.Run("no capability needed", func(t *testing.T) {
		doc := minimalDoc()
		request(doc)["body"] = map[string]interface{}{
			"string":   "aGVsbG8=",
			"encoding": "base64",
		}
		data, err := yaml.Marshal(doc)
		require.NoError(t, err)

		_, err = NewDecoder(Capabilities{}).Decode(data)
		assert.NoError(t, err)
	})
}

func TestDecodeMissingRequiredField(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(doc map[string]interface{})
		wantPath string
	}{
		{
			name:     "http_interactions",
			mutate:   func(doc map[string]interface{}) { delete(doc, "http_interactions") },
			wantPath: "$",
		},
		{
			name:     "recorded_with",
			mutate:   func(doc map[string]interface{}) { delete(doc, "recorded_with") },
			wantPath: "$",
		},
		{
			name:     "request",
			mutate:   func(doc map[string]interface{}) { delete(interaction(doc), "request") },
			wantPath: "$.http_interactions[0]",
		},
		{
			name:     "response",
			mutate:   func(doc map[string]interface{}) { delete(interaction(doc), "response") },
			wantPath: "$.http_interactions[0]",
		},
		{
			name:     "recorded_at",
			mutate:   func(doc map[string]interface{}) { delete(interaction(doc), "recorded_at") },
			wantPath: "$.http_interactions[0]",
		},
		{
			name:     "uri",
			mutate:   func(doc map[string]interface{}) { delete(request(doc), "uri") },
			wantPath: "$.http_interactions[0].request",
		},
		{
			name:     "method",
			mutate:   func(doc map[string]interface{}) { delete(request(doc), "method") },
			wantPath: "$.http_interactions[0].request",
		},
		{
			name:     "http_version",
			mutate:   func(doc map[string]interface{}) { delete(response(doc), "http_version") },
			wantPath: "$.http_interactions[0].response",
		},
		{
			name:     "status",
			mutate:   func(doc map[string]interface{}) { delete(response(doc), "status") },
			wantPath: "$.http_interactions[0].response",
		},
		{
			name: "code",
			mutate: func(doc map[string]interface{}) {
				delete(response(doc)["status"].(map[string]interface{}), "code")
			},
			wantPath: "$.http_interactions[0].response.status",
		},
		{
			name: "message",
			mutate: func(doc map[string]interface{}) {
				delete(response(doc)["status"].(map[string]interface{}), "message")
			},
			wantPath: "$.http_interactions[0].response.status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := minimalDoc()
			tt.mutate(doc)
			data, err := yaml.Marshal(doc)
			require.NoError(t, err)

			_, err = Decode(data)
			var schemaErr *SchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, tt.wantPath, schemaErr.Path)
			assert.Contains(t, schemaErr.Message, tt.name)
		})
	}
}

func TestDecodeWrongShapes(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]interface{})
	}{
		{
			name: "http_interactions not a sequence",
			mutate: func(doc map[string]interface{}) {
				doc["http_interactions"] = "nope"
			},
		},
		{
			name: "headers not a mapping",
			mutate: func(doc map[string]interface{}) {
				request(doc)["headers"] = "nope"
			},
		},
		{
			name: "header value not a sequence",
			mutate: func(doc map[string]interface{}) {
				request(doc)["headers"] = map[string]interface{}{"Accept": "identity"}
			},
		},
		{
			name: "status code not an integer",
			mutate: func(doc map[string]interface{}) {
				response(doc)["status"].(map[string]interface{})["code"] = "two hundred"
			},
		},
		{
			name: "response body not plain",
			mutate: func(doc map[string]interface{}) {
				response(doc)["body"] = map[string]interface{}{"json": map[string]interface{}{"a": 1}}
			},
		},
		{
			name: "request body of unknown shape",
			mutate: func(doc map[string]interface{}) {
				request(doc)["body"] = map[string]interface{}{"frobnicate": "x"}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := minimalDoc()
			tt.mutate(doc)
			data, err := yaml.Marshal(doc)
			require.NoError(t, err)

			_, err = Decode(data)
			var schemaErr *SchemaError
			assert.ErrorAs(t, err, &schemaErr)
		})
	}
}

func TestDecodeCapabilityGating(t *testing.T) {
	withBody := func(body interface{}) []byte {
		doc := minimalDoc()
		request(doc)["body"] = body
		data, err := yaml.Marshal(doc)
		require.NoError(t, err)
		return data
	}

	matcherDoc := withBody(map[string]interface{}{
		"matches": []interface{}{map[string]interface{}{"substring": "foo"}},
	})
	jsonDoc := withBody(map[string]interface{}{
		"json": map[string]interface{}{"a": 1},
	})
	regexDoc := withBody(map[string]interface{}{
		"matches": []interface{}{map[string]interface{}{"regex": `\d+`}},
	})

	t.Run("matching disabled rejects matches", func(t *testing.T) {
		_, err := NewDecoder(Capabilities{JSON: true, Regex: true}).Decode(matcherDoc)
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Message, "unsupported")
	})

	t.Run("json disabled rejects json", func(t *testing.T) {
		_, err := NewDecoder(Capabilities{Matching: true, Regex: true}).Decode(jsonDoc)
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Message, "unsupported")
	})

	t.Run("regex disabled rejects regex rules", func(t *testing.T) {
		_, err := NewDecoder(Capabilities{JSON: true, Matching: true}).Decode(regexDoc)
		var schemaErr *SchemaError
		require.ErrorAs(t, err, &schemaErr)
		assert.Contains(t, schemaErr.Message, "unsupported matcher")
	})

	t.Run("everything enabled accepts all forms", func(t *testing.T) {
		for _, doc := range [][]byte{matcherDoc, jsonDoc, regexDoc} {
			_, err := Decode(doc)
			assert.NoError(t, err)
		}
	})
}

func TestDecodeInvalidRegexPattern(t *testing.T) {
	doc := minimalDoc()
	request(doc)["body"] = map[string]interface{}{
		"matches": []interface{}{map[string]interface{}{"regex": "("}},
	}
	data, err := yaml.Marshal(doc)
	require.NoError(t, err)

	_, err = Decode(data)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Message, "invalid regular expression")
}

func TestDecodeDuplicateHeader(t *testing.T) {
	// yaml.Marshal never emits duplicate keys, so spell this one out.
	doc := []byte(`
http_interactions:
  - request:
      uri: http://example.test/
      method: get
      headers:
        Accept: [a]
        Accept: [b]
    response:
      body: ""
      http_version: "1.1"
      status: {code: 200, message: OK}
    recorded_at: Tue, 01 Nov 2011 04:58:44 GMT
recorded_with: VCR 2.0.0
`)
	_, err := Decode(doc)
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Contains(t, schemaErr.Message, "duplicate header")
}

func TestDecodeMalformedDocument(t *testing.T) {
	_, err := Decode([]byte("{not json or yaml"))
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func interaction(doc map[string]interface{}) map[string]interface{} {
	return doc["http_interactions"].([]interface{})[0].(map[string]interface{})
}

func request(doc map[string]interface{}) map[string]interface{} {
	return interaction(doc)["request"].(map[string]interface{})
}

func response(doc map[string]interface{}) map[string]interface{} {
	return interaction(doc)["response"].(map[string]interface{})
}
