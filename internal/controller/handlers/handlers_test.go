package handlers

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"testing"

	"meetscribe/internal/analysis/search"
	"meetscribe/internal/pipeline"
	"meetscribe/internal/store/memory"
)

// Mock scheduler
type mockScheduler struct {
	err       error
	scheduled []pipeline.Request
}

func (m *mockScheduler) Schedule(req pipeline.Request) error {
	if m.err != nil {
		return m.err
	}
	m.scheduled = append(m.scheduled, req)
	return nil
}

// Mock searcher
type mockSearcher struct {
	id      string
	hits    []search.Hit
	message string

	context    string
	count      int
	contextErr error

	// Spies
	capturedJobID  string
	capturedQuery  string
	capturedLimit  int
	capturedIndex  int
	capturedWindow int
}

func (m *mockSearcher) Search(jobID, query string, limit int) (string, []search.Hit, string) {
	m.capturedJobID = jobID
	m.capturedQuery = query
	m.capturedLimit = limit
	return m.id, m.hits, m.message
}

func (m *mockSearcher) Context(jobID string, i, window int) (string, int, error) {
	m.capturedJobID = jobID
	m.capturedIndex = i
	m.capturedWindow = window
	return m.context, m.count, m.contextErr
}

type testEnv struct {
	h         *Handlers
	registry  *memory.Registry
	scheduler *mockScheduler
	searcher  *mockSearcher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		registry:  memory.New(),
		scheduler: &mockScheduler{},
		searcher:  &mockSearcher{},
	}
	env.h = New(Deps{
		Registry:  env.registry,
		Scheduler: env.scheduler,
		Searcher:  env.searcher,
		UploadDir: t.TempDir(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return env
}

// multipartBody builds a submission form. An empty contentType omits the part header.
func multipartBody(t *testing.T, filename, contentType string, data []byte, options string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(header)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(data)

	if options != "" {
		mw.WriteField("options", options)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func newSubmitRequest(t *testing.T, filename, contentType string, data []byte, options string) *http.Request {
	t.Helper()
	body, ct := multipartBody(t, filename, contentType, data, options)
	req, _ := http.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", ct)
	return req
}
