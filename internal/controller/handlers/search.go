package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"meetscribe/internal/analysis/search"
	"meetscribe/pkg/api"
)

// defaultContextWindow is the number of sentences shown on each side of a hit.
const defaultContextWindow = 1

// Search handles POST /search.
// Queries that cannot be answered return an empty list and a message, not an error.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	var req api.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	id, hits, message := h.searcher.Search(req.JobID, req.Query, req.Limit)

	results := make([]api.SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, api.SearchResult{
			Sentence: hit.Sentence,
			Score:    hit.Score,
			Index:    hit.Index,
		})
	}

	h.respondJson(w, http.StatusOK, api.SearchResponse{
		JobID:   id,
		Results: results,
		Message: message,
	})
}

// GetContext handles GET /jobs/{id}/context?sentence=i&window=w.
func (h *Handlers) GetContext(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	sentence, err := strconv.Atoi(q.Get("sentence"))
	if err != nil {
		h.httpError(w, "sentence must be an integer", http.StatusBadRequest)
		return
	}
	window := defaultContextWindow
	if raw := q.Get("window"); raw != "" {
		if window, err = strconv.Atoi(raw); err != nil || window < 0 {
			h.httpError(w, "window must be a non-negative integer", http.StatusBadRequest)
			return
		}
	}

	text, count, err := h.searcher.Context(r.PathValue("id"), sentence, window)
	switch {
	case errors.Is(err, search.ErrNotIndexed):
		h.httpError(w, "Transcript not found", http.StatusNotFound)
		return
	case errors.Is(err, search.ErrInvalidSentence):
		h.httpError(w, "Invalid sentence index", http.StatusBadRequest)
		return
	case err != nil:
		h.httpError(w, "Failed to read context", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, api.ContextResponse{Context: text, SentenceCount: count})
}
