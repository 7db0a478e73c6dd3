// Package replay serves recorded cassette interactions in place of the
// upstream services they were captured from.
package replay

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/cassette/cassette"
	"github.com/tjfontaine/cassette/internal/server"
	"github.com/tjfontaine/cassette/internal/storage"
)

// Set is one loaded cassette together with the file name it came from.
type Set struct {
	Name     string
	Cassette *cassette.Cassette
}

// Handler matches incoming requests against the loaded cassettes and
// writes back the recorded response. Misses produce 404 with a JSON
// error body.
type Handler struct {
	sets   []Set
	hits   storage.HitStore // may be nil
	logger *slog.Logger
}

func NewHandler(sets []Set, hits storage.HitStore, logger *slog.Logger) *Handler {
	return &Handler{sets: sets, hits: hits, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	for _, set := range h.sets {
		for i := range set.Cassette.HTTPInteractions {
			interaction := &set.Cassette.HTTPInteractions[i]
			ok, err := matches(r, string(body), interaction)
			if err != nil {
				// A malformed rule in a loaded cassette; surface it
				// rather than skipping the interaction silently.
				server.AddError(r.Context(), err)
				h.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if ok {
				server.AddLogField(r.Context(), "cassette", set.Name)
				h.recordHit(r, set.Name, interaction.Response.Status.Code, true)
				writeInteraction(w, interaction)
				return
			}
		}
	}

	h.recordHit(r, "", http.StatusNotFound, false)
	h.writeError(w, http.StatusNotFound, "no recorded interaction matches this request")
}

// matches compares method, path and query, and body. Recorded URIs are
// absolute while incoming server requests carry only path and query, so
// the host part of the recorded URI is ignored here.
func matches(r *http.Request, body string, interaction *cassette.Interaction) (bool, error) {
	// Cassettes record lower-cased methods while net/http reports
	// upper-case ones.
	if !strings.EqualFold(r.Method, interaction.Request.Method) {
		return false, nil
	}
	recorded, err := url.Parse(interaction.Request.URI)
	if err != nil {
		return false, nil
	}
	if recorded.Path != r.URL.Path || recorded.RawQuery != r.URL.RawQuery {
		return false, nil
	}
	return cassette.Matches(interaction.Request.Body, body)
}

func writeInteraction(w http.ResponseWriter, interaction *cassette.Interaction) {
	for _, h := range interaction.Response.Headers {
		for _, v := range h.Values {
			w.Header().Add(h.Name, v)
		}
	}
	w.WriteHeader(interaction.Response.Status.Code)
	if plain, ok := interaction.Response.Body.(cassette.PlainBody); ok {
		io.WriteString(w, string(plain))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (h *Handler) recordHit(r *http.Request, cassetteName string, statusCode int, matched bool) {
	if h.hits == nil {
		return
	}
	hit := storage.Hit{
		ID:         uuid.New().String(),
		Cassette:   cassetteName,
		Method:     r.Method,
		URI:        r.URL.RequestURI(),
		StatusCode: statusCode,
		Matched:    matched,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.hits.RecordHit(r.Context(), hit); err != nil {
		h.logger.Error("failed to record replay hit", slog.String("error", err.Error()))
	}
}

// AdminCassettes lists the loaded cassettes and their interaction
// counts.
func (h *Handler) AdminCassettes(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name         string `json:"name"`
		RecordedWith string `json:"recorded_with"`
		Interactions int    `json:"interactions"`
	}
	entries := make([]entry, 0, len(h.sets))
	for _, set := range h.sets {
		entries = append(entries, entry{
			Name:         set.Name,
			RecordedWith: set.Cassette.RecordedWith,
			Interactions: len(set.Cassette.HTTPInteractions),
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// AdminHits returns the most recent entries from the hit log.
func (h *Handler) AdminHits(w http.ResponseWriter, r *http.Request) {
	if h.hits == nil {
		h.writeError(w, http.StatusNotFound, "hit log storage is not configured")
		return
	}
	hits, err := h.hits.ListHits(r.Context(), 100)
	if err != nil {
		server.AddError(r.Context(), err)
		h.writeError(w, http.StatusInternalServerError, "failed to list hits")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(hits)
}
