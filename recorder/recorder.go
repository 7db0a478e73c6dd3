// Package recorder provides an http.RoundTripper that records live HTTP
// interactions into a cassette file, or replays previously recorded ones
// in place of real network calls.
package recorder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tjfontaine/cassette/cassette"
)

// recorderName is written to new cassettes as the recorded_with
// identifier.
const recorderName = "go-cassette/1.0"

// Mode selects how the recorder treats round trips.
type Mode int

const (
	// ModeRecording performs real round trips and appends each
	// interaction to the cassette, persisted on Stop.
	ModeRecording Mode = iota

	// ModeReplaying serves responses from the loaded cassette and never
	// touches the network.
	ModeReplaying

	// ModeDisabled passes requests straight through to the real
	// transport without recording anything.
	ModeDisabled
)

// ErrInteractionNotFound is returned by replaying round trips when no
// recorded interaction matches the request.
var ErrInteractionNotFound = errors.New("recorder: no matching interaction in cassette")

// MatcherFunc decides whether a live request corresponds to a recorded
// interaction. The error is reserved for malformed match rules
// (cassette.MatchError); a plain mismatch is (false, nil).
type MatcherFunc func(r *http.Request, i *cassette.Interaction) (bool, error)

// DefaultMatcher matches on method (case-insensitively, since cassettes
// record lower-cased verbs), full URL, and body. Bodies recorded in
// matcher or json form are evaluated with cassette.Matches, so flexible
// match rules in a cassette drive replay decisions.
func DefaultMatcher(r *http.Request, i *cassette.Interaction) (bool, error) {
	if !strings.EqualFold(r.Method, i.Request.Method) {
		return false, nil
	}
	if r.URL.String() != i.Request.URI {
		return false, nil
	}
	body, err := readRequestBody(r)
	if err != nil {
		return false, err
	}
	return cassette.Matches(i.Request.Body, body)
}

// Recorder is an http.RoundTripper backed by a cassette.
type Recorder struct {
	mode          Mode
	path          string
	realTransport http.RoundTripper
	matcher       MatcherFunc

	mu   sync.Mutex
	cass *cassette.Cassette
}

// New creates a Recorder for the cassette at path. In replaying mode the
// file must exist and decode cleanly under caps; in recording mode a
// fresh cassette is started and written out by Stop. The file format is
// chosen by extension: .json for JSON, anything else for YAML.
// realTransport may be nil, in which case http.DefaultTransport is used.
func New(path string, mode Mode, caps cassette.Capabilities, realTransport http.RoundTripper) (*Recorder, error) {
	if realTransport == nil {
		realTransport = http.DefaultTransport
	}
	r := &Recorder{
		mode:          mode,
		path:          path,
		realTransport: realTransport,
		matcher:       DefaultMatcher,
	}

	switch mode {
	case ModeReplaying:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("recorder: load cassette: %w", err)
		}
		r.cass, err = cassette.NewDecoder(caps).Decode(data)
		if err != nil {
			return nil, fmt.Errorf("recorder: load cassette: %w", err)
		}
	case ModeRecording:
		r.cass = &cassette.Cassette{
			HTTPInteractions: []cassette.Interaction{},
			RecordedWith:     recorderName,
		}
	}
	return r, nil
}

// SetMatcher replaces the matcher used in replaying mode.
func (r *Recorder) SetMatcher(matcher MatcherFunc) {
	r.matcher = matcher
}

// Cassette returns the in-memory cassette. In recording mode it grows as
// interactions are captured.
func (r *Recorder) Cassette() *cassette.Cassette {
	return r.cass
}

// Client returns an http.Client that routes through the recorder.
func (r *Recorder) Client() *http.Client {
	return &http.Client{Transport: r}
}

// RoundTrip implements http.RoundTripper.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	switch r.mode {
	case ModeReplaying:
		return r.replay(req)
	case ModeRecording:
		return r.record(req)
	default:
		return r.realTransport.RoundTrip(req)
	}
}

func (r *Recorder) replay(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for idx := range r.cass.HTTPInteractions {
		interaction := &r.cass.HTTPInteractions[idx]
		ok, err := r.matcher(req, interaction)
		if err != nil {
			return nil, err
		}
		if ok {
			return buildResponse(req, interaction), nil
		}
	}
	return nil, fmt.Errorf("%w: %s %s", ErrInteractionNotFound, req.Method, req.URL)
}

func (r *Recorder) record(req *http.Request) (*http.Response, error) {
	reqBody, err := readRequestBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := r.realTransport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(respBody))

	interaction := cassette.Interaction{
		Request: cassette.Request{
			URI:     req.URL.String(),
			Method:  strings.ToLower(req.Method),
			Body:    cassette.PlainBody(reqBody),
			Headers: fromHTTPHeader(req.Header),
		},
		Response: cassette.Response{
			Body:        cassette.PlainBody(respBody),
			HTTPVersion: httpVersion(resp.Proto),
			Status: cassette.Status{
				Code:    resp.StatusCode,
				Message: statusMessage(resp),
			},
			Headers: fromHTTPHeader(resp.Header),
		},
		RecordedAt: time.Now().UTC().Format(http.TimeFormat),
	}

	r.mu.Lock()
	r.cass.HTTPInteractions = append(r.cass.HTTPInteractions, interaction)
	r.mu.Unlock()

	return resp, nil
}

// Stop persists the cassette when recording. It is a no-op in the other
// modes.
func (r *Recorder) Stop() error {
	if r.mode != ModeRecording {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(r.path), ".json") {
		data, err = cassette.EncodeJSON(r.cass)
	} else {
		data, err = cassette.EncodeYAML(r.cass)
	}
	if err != nil {
		return fmt.Errorf("recorder: encode cassette: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("recorder: save cassette: %w", err)
		}
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		return fmt.Errorf("recorder: save cassette: %w", err)
	}
	return nil
}

// buildResponse materializes a recorded interaction as an *http.Response.
func buildResponse(req *http.Request, interaction *cassette.Interaction) *http.Response {
	header := make(http.Header, len(interaction.Response.Headers))
	for _, h := range interaction.Response.Headers {
		for _, v := range h.Values {
			header.Add(h.Name, v)
		}
	}

	body := ""
	if plain, ok := interaction.Response.Body.(cassette.PlainBody); ok {
		body = string(plain)
	}

	status := interaction.Response.Status
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status.Code, status.Message),
		StatusCode:    status.Code,
		Proto:         "HTTP/" + interaction.Response.HTTPVersion,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}

// readRequestBody drains the request body and restores it so the request
// can still be sent or re-matched afterwards.
func readRequestBody(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	return string(data), nil
}

// fromHTTPHeader snapshots an http.Header with deterministic name order.
func fromHTTPHeader(src http.Header) cassette.Headers {
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)

	var headers cassette.Headers
	for _, name := range names {
		values := make([]string, len(src[name]))
		copy(values, src[name])
		headers = append(headers, cassette.Header{Name: name, Values: values})
	}
	return headers
}

// httpVersion strips the "HTTP/" prefix so cassettes store "1.1" rather
// than "HTTP/1.1".
func httpVersion(proto string) string {
	return strings.TrimPrefix(proto, "HTTP/")
}

// statusMessage extracts the reason phrase from a response status line,
// falling back to the standard text for the code.
func statusMessage(resp *http.Response) string {
	if _, message, found := strings.Cut(resp.Status, " "); found && message != "" {
		return message
	}
	return http.StatusText(resp.StatusCode)
}
