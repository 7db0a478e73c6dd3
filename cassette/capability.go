package cassette

// Capabilities selects which optional cassette features a Decoder
// accepts. The zero value accepts only the base format: bare-string
// bodies everywhere. Documents that use a disabled feature fail to
// decode with a *SchemaError rather than being silently dropped.
type Capabilities struct {
	// JSON enables the {"json": ...} structured body form on requests.
	JSON bool

	// Matching enables the {"matches": [...]} body form on requests.
	Matching bool

	// Regex enables the {"regex": ...} rule kind inside matcher bodies.
	// It has no effect unless Matching is also enabled.
	Regex bool
}

// AllCapabilities returns a Capabilities value with every optional
// feature enabled.
func AllCapabilities() Capabilities {
	return Capabilities{JSON: true, Matching: true, Regex: true}
}
