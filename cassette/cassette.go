// Package cassette models VCR cassette recordings: structured documents
// containing a sequence of recorded HTTP request/response pairs plus
// metadata, as produced by record/replay test tooling.
//
// A cassette can be decoded from JSON or YAML text with a Decoder and
// encoded back with EncodeJSON or EncodeYAML; decoding then encoding a
// document preserves its structural shape, including the order of
// interactions and the order of header names and values.
package cassette

// Cassette is a recorded collection of HTTP interactions plus metadata
// about the library that created the recording.
type Cassette struct {
	// HTTPInteractions holds the recorded request/response pairs in
	// recording order.
	HTTPInteractions []Interaction `json:"http_interactions" yaml:"http_interactions"`

	// RecordedWith identifies the library which created the recording,
	// e.g. "VCR 2.0.0".
	RecordedWith string `json:"recorded_with" yaml:"recorded_with"`
}

// Interaction is a single recorded HTTP request/response pair.
type Interaction struct {
	Request  Request  `json:"request" yaml:"request"`
	Response Response `json:"response" yaml:"response"`

	// RecordedAt is an HTTP-date formatted timestamp, e.g.
	// "Tue, 01 Nov 2011 04:58:44 GMT". It is stored and reproduced
	// verbatim; the text is never parsed.
	RecordedAt string `json:"recorded_at" yaml:"recorded_at"`
}

// Request is a recorded HTTP request.
type Request struct {
	URI  string `json:"uri" yaml:"uri"`
	Body Body   `json:"body" yaml:"body"`

	// Method is the lower-cased HTTP verb, e.g. "get". The verb set is
	// not validated; custom methods pass through untouched.
	Method  string  `json:"method" yaml:"method"`
	Headers Headers `json:"headers" yaml:"headers"`
}

// Response is a recorded HTTP response. Response bodies are always plain
// text; the json and matcher body forms are request-only concepts.
type Response struct {
	Body        Body    `json:"body" yaml:"body"`
	HTTPVersion string  `json:"http_version" yaml:"http_version"`
	Status      Status  `json:"status" yaml:"status"`
	Headers     Headers `json:"headers" yaml:"headers"`
}

// Status is a recorded HTTP status line. Neither field is validated: any
// integer code and any message text are accepted.
type Status struct {
	Code    int    `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}
