package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"meetscribe/internal/analysis/audio"
	"meetscribe/internal/logger"
	"meetscribe/internal/pipeline"
	"meetscribe/internal/store"
	"meetscribe/pkg/api"
)

// StatusProcessing is reported for a freshly submitted job.
const StatusProcessing = "processing"

// multipartMemory is how much of a multipart form is buffered in memory.
const multipartMemory = 32 << 20

// errEmptyUpload is reported for zero-byte files.
var errEmptyUpload = errors.New("file is empty")

// SubmitJob handles POST /jobs.
// It stores the upload, registers a job and starts processing it in the background.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.httpError(w, "File too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.httpError(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.httpError(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	opts := parseOptions(r.FormValue("options"))

	contentType := header.Header.Get("Content-Type")
	if !audio.IsMediaContentType(contentType) {
		h.log(r).Warn("uploaded file may not be audio or video",
			"filename", header.Filename,
			"content_type", contentType,
		)
	}

	dir, path, err := h.saveUpload(file, header.Filename, contentType)
	if errors.Is(err, errEmptyUpload) {
		h.httpError(w, errEmptyUpload.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log(r).Error("failed to store upload", "error", err)
		h.httpError(w, "Failed to store upload", http.StatusInternalServerError)
		return
	}

	jobID := uuid.NewString()
	if _, err := h.registry.Create(jobID); err != nil {
		os.RemoveAll(dir)
		h.httpError(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	req := pipeline.Request{
		JobID:     jobID,
		InputPath: path,
		WorkDir:   dir,
		Options:   opts,
	}
	if err := h.scheduler.Schedule(req); err != nil {
		os.RemoveAll(dir)
		if uerr := h.registry.Update(jobID, func(j *store.Job) error {
			return j.Fail(err.Error(), "Error: "+err.Error())
		}); uerr != nil {
			h.log(r).Error("failed to mark unscheduled job as failed", "job_id", jobID, "error", uerr)
		}
		h.httpError(w, "Server is shutting down", http.StatusServiceUnavailable)
		return
	}

	h.metrics.JobSubmitted(r.Context())
	logger.FromContext(logger.WithJobID(r.Context(), jobID), h.logger).Info("job submitted",
		"filename", header.Filename,
		"points", opts.NumSummaryPoints,
		"style", opts.SummaryStyle,
	)

	h.respondJson(w, http.StatusOK, api.SubmitResponse{JobID: jobID, Status: StatusProcessing})
}

// saveUpload copies the upload into a fresh per-job directory.
// Nothing is left on disk when it fails.
func (h *Handlers) saveUpload(src io.Reader, filename, contentType string) (string, string, error) {
	dir, err := os.MkdirTemp(h.uploadDir, "meetscribe-")
	if err != nil {
		return "", "", fmt.Errorf("failed to create upload dir: %w", err)
	}

	path := filepath.Join(dir, "input."+audio.ResolveExtension(filename, contentType))
	n, err := writeFile(path, src)
	if err == nil && n == 0 {
		err = errEmptyUpload
	}
	if err != nil {
		os.RemoveAll(dir)
		return "", "", err
	}
	return dir, path, nil
}

func writeFile(path string, src io.Reader) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("failed to write upload: %w", err)
	}
	return n, nil
}

// parseOptions decodes the "options" form field. Malformed or missing values fall
// back to defaults and the point count is clamped to the allowed range.
func parseOptions(raw string) api.SubmitOptions {
	opts := api.DefaultSubmitOptions()
	if strings.TrimSpace(raw) != "" {
		var in api.SubmitOptions
		if err := json.Unmarshal([]byte(raw), &in); err == nil {
			if in.NumSummaryPoints != 0 {
				opts.NumSummaryPoints = in.NumSummaryPoints
			}
			if in.SummaryStyle != "" {
				opts.SummaryStyle = in.SummaryStyle
			}
		}
	}

	opts.NumSummaryPoints = max(api.SummaryPointsMin, min(api.SummaryPointsMax, opts.NumSummaryPoints))
	switch {
	case strings.EqualFold(opts.SummaryStyle, api.SummaryStyleParagraph):
		opts.SummaryStyle = api.SummaryStyleParagraph
	default:
		opts.SummaryStyle = api.SummaryStyleBullets
	}
	return opts
}

// GetJob handles GET /jobs/{id}.
// The response shape depends on the job state.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.registry.Get(r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.httpError(w, "Failed to read job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, statusResponse(job))
}

func statusResponse(job store.Job) api.JobStatusResponse {
	resp := api.JobStatusResponse{Status: strings.ToLower(string(job.State))}

	switch job.State {
	case store.JobStateError:
		resp.Message = job.Message
		resp.Error = job.Error
	case store.JobStateComplete:
		resp.Results = &api.JobResults{
			Transcript: job.Result.Transcript,
			Summary:    job.Result.Summary,
			Sentiment:  job.Result.Sentiment,
		}
	default:
		progress := job.Progress
		resp.Progress = &progress
		resp.Message = job.Message
	}
	return resp
}
