// Package handlers contains HTTP handlers for the meetscribe API.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"meetscribe/internal/analysis/search"
	"meetscribe/internal/logger"
	"meetscribe/internal/observability"
	"meetscribe/internal/pipeline"
	"meetscribe/internal/store"
	"meetscribe/pkg/api"
)

// Scheduler starts a job in the background.
type Scheduler interface {
	Schedule(req pipeline.Request) error
}

// Searcher answers queries over indexed transcripts.
type Searcher interface {
	Search(jobID, query string, limit int) (string, []search.Hit, string)
	Context(jobID string, i, window int) (string, int, error)
}

// Deps are the dependencies of the handlers.
type Deps struct {
	Registry  store.Registry
	Scheduler Scheduler
	Searcher  Searcher
	// UploadDir holds one temporary directory per job. Empty means os.TempDir().
	UploadDir string
	Logger    *slog.Logger
	Metrics   *observability.Instruments
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	registry  store.Registry
	scheduler Scheduler
	searcher  Searcher
	uploadDir string
	logger    *slog.Logger
	metrics   *observability.Instruments
}

// New creates a new Handlers instance.
func New(deps Deps) *Handlers {
	h := &Handlers{
		registry:  deps.Registry,
		scheduler: deps.Scheduler,
		searcher:  deps.Searcher,
		uploadDir: deps.UploadDir,
		logger:    deps.Logger,
		metrics:   deps.Metrics,
	}
	if h.uploadDir == "" {
		h.uploadDir = os.TempDir()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.metrics == nil {
		h.metrics = observability.NopInstruments()
	}
	return h
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

func (h *Handlers) log(r *http.Request) *slog.Logger {
	return logger.FromContext(r.Context(), h.logger)
}
