package cassette

import "fmt"

// SchemaError reports that a document does not conform to the cassette
// shape: a required field is missing, a field has the wrong type, or the
// document uses a body or rule variant that the enabled capabilities do
// not cover. Path locates the offending field, e.g.
// "$.http_interactions[0].request.body".
type SchemaError struct {
	Path    string
	Message string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("cassette: schema error at %s: %s", e.Path, e.Message)
}

func schemaErrorf(path, format string, args ...interface{}) *SchemaError {
	return &SchemaError{Path: path, Message: fmt.Sprintf(format, args...)}
}

// MatchError reports a malformed match rule encountered during
// evaluation, such as a regular expression that does not compile. A
// candidate body that simply fails to match is a normal false result,
// never a MatchError.
type MatchError struct {
	Pattern string
	Err     error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("cassette: invalid match rule %q: %v", e.Pattern, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }
