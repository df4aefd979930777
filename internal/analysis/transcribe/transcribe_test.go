package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"meetscribe/internal/fallback"
	"meetscribe/internal/runtime"
)

type recordingSink struct {
	mu      sync.Mutex
	reports []int
	msgs    []string
}

func (s *recordingSink) Report(progress int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, progress)
	s.msgs = append(s.msgs, message)
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	if err := os.WriteFile(path, []byte("RIFF fake wav"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// Wire shapes of the AssemblyAI endpoints served by the fake API.
type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

type transcriptRequest struct {
	AudioURL          string `json:"audio_url"`
	LanguageDetection bool   `json:"language_detection"`
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text,omitempty"`
	Error  string `json:"error,omitempty"`
}

// newAssemblyAIServer fakes the AssemblyAI API. Polls report "processing" until
// pollsBeforeDone is reached; pollsBeforeDone < 0 never finishes.
func newAssemblyAIServer(t *testing.T, pollsBeforeDone int, final transcriptResponse) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	polls := 0

	unauthorized := func(w http.ResponseWriter, r *http.Request) bool {
		if r.Header.Get("Authorization") == "test-key" {
			return false
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "Authentication error, API token missing/invalid"})
		return true
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/upload", func(w http.ResponseWriter, r *http.Request) {
		if unauthorized(w, r) {
			return
		}
		b, _ := io.ReadAll(r.Body)
		if string(b) != "RIFF fake wav" {
			t.Errorf("unexpected upload body %q", b)
		}
		json.NewEncoder(w).Encode(uploadResponse{UploadURL: "https://cdn.example/upload/1"})
	})
	mux.HandleFunc("POST /v2/transcript", func(w http.ResponseWriter, r *http.Request) {
		if unauthorized(w, r) {
			return
		}
		var req transcriptRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.AudioURL != "https://cdn.example/upload/1" || !req.LanguageDetection {
			t.Errorf("unexpected transcript request %+v", req)
		}
		json.NewEncoder(w).Encode(transcriptResponse{ID: "tr-1", Status: "queued"})
	})
	mux.HandleFunc("GET /v2/transcript/{id}", func(w http.ResponseWriter, r *http.Request) {
		if unauthorized(w, r) {
			return
		}
		if r.PathValue("id") != "tr-1" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "transcript not found"})
			return
		}
		mu.Lock()
		polls++
		n := polls
		mu.Unlock()
		if pollsBeforeDone < 0 || n <= pollsBeforeDone {
			json.NewEncoder(w).Encode(transcriptResponse{ID: "tr-1", Status: "processing"})
			return
		}
		json.NewEncoder(w).Encode(final)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAssemblyAI_Transcribe(t *testing.T) {
	srv := newAssemblyAIServer(t, 2, transcriptResponse{ID: "tr-1", Status: "completed", Text: "Hello team."})

	a := NewAssemblyAI(AssemblyAIConfig{APIKey: "test-key", BaseURL: srv.URL, PollInterval: time.Millisecond})
	sink := &recordingSink{}

	text, err := a.Transcribe(context.Background(), writeAudio(t), sink)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "Hello team." {
		t.Errorf("text = %q", text)
	}

	for i := 1; i < len(sink.reports); i++ {
		if sink.reports[i] < sink.reports[i-1] {
			t.Errorf("sub-progress decreased: %v", sink.reports)
		}
	}
	if last := sink.reports[len(sink.reports)-1]; last != 100 {
		t.Errorf("last report = %d, want 100", last)
	}
	if !strings.Contains(strings.Join(sink.msgs, "|"), "Transcription in progress...") {
		t.Errorf("missing in-progress message: %v", sink.msgs)
	}
}

func TestAssemblyAI_TranscriptError(t *testing.T) {
	srv := newAssemblyAIServer(t, 0, transcriptResponse{ID: "tr-1", Status: "error", Error: "audio has no speech"})

	a := NewAssemblyAI(AssemblyAIConfig{APIKey: "test-key", BaseURL: srv.URL, PollInterval: time.Millisecond})
	_, err := a.Transcribe(context.Background(), writeAudio(t), Discard)
	if !errors.Is(err, ErrTranscription) || !strings.Contains(err.Error(), "audio has no speech") {
		t.Errorf("error = %v", err)
	}
}

func TestAssemblyAI_BadKey(t *testing.T) {
	srv := newAssemblyAIServer(t, 0, transcriptResponse{})

	a := NewAssemblyAI(AssemblyAIConfig{APIKey: "wrong", BaseURL: srv.URL})
	_, err := a.Transcribe(context.Background(), writeAudio(t), Discard)
	if !errors.Is(err, ErrTranscription) || !strings.Contains(err.Error(), "upload") {
		t.Errorf("error = %v, want upload failure", err)
	}
}

func TestAssemblyAI_GivesUpAfterMaxWait(t *testing.T) {
	srv := newAssemblyAIServer(t, -1, transcriptResponse{})

	a := NewAssemblyAI(AssemblyAIConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		PollInterval: time.Millisecond,
		MaxWait:      50 * time.Millisecond,
	})

	done := make(chan error, 1)
	go func() {
		_, err := a.Transcribe(context.Background(), writeAudio(t), Discard)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrTranscription) || !strings.Contains(err.Error(), "not ready after") {
			t.Errorf("error = %v, want max wait failure", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Transcribe did not give up on a transcript stuck in processing")
	}
}

func TestAssemblyAI_UnavailableWithoutKey(t *testing.T) {
	a := NewAssemblyAI(AssemblyAIConfig{})
	if err := a.Available(); !errors.Is(err, fallback.ErrUnavailable) {
		t.Errorf("Available = %v, want ErrUnavailable", err)
	}
}

func TestOpenAI_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("model") != "whisper-1" {
			t.Errorf("model = %q", r.FormValue("model"))
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		if hdr.Filename != "audio.wav" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		json.NewEncoder(w).Encode(openAIResponse{Text: " Let's begin. "})
	}))
	defer srv.Close()

	o := NewOpenAI(OpenAIConfig{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	text, err := New(fallback.OnUnavailable, o).Transcribe(context.Background(), writeAudio(t), nil)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "Let's begin." {
		t.Errorf("text = %q", text)
	}
}

type fakeRuntime struct {
	RunFunc func(opts runtime.StartOptions) (runtime.ExitResult, error)
	Calls   []runtime.StartOptions
}

func (f *fakeRuntime) Start(ctx context.Context, opts runtime.StartOptions) (runtime.Handle, error) {
	f.Calls = append(f.Calls, opts)
	return &fakeHandle{res: func() (runtime.ExitResult, error) { return f.RunFunc(opts) }}, nil
}

type fakeHandle struct {
	res func() (runtime.ExitResult, error)
}

func (h *fakeHandle) Wait(ctx context.Context) (runtime.ExitResult, error) { return h.res() }
func (h *fakeHandle) Stop(ctx context.Context) error                       { return nil }

func newWhisper(t *testing.T, rt runtime.Runtime) *WhisperCPP {
	t.Helper()
	model := filepath.Join(t.TempDir(), "ggml-base.en.bin")
	os.WriteFile(model, []byte("model"), 0o600)
	w := NewWhisperCPP(rt, "", model)
	w.lookPath = func(string) (string, error) { return "/usr/local/bin/whisper-cli", nil }
	return w
}

func TestWhisperCPP_Transcribe(t *testing.T) {
	rt := &fakeRuntime{RunFunc: func(opts runtime.StartOptions) (runtime.ExitResult, error) {
		base := opts.Command[6]
		return runtime.ExitResult{}, os.WriteFile(base+".txt", []byte("  the budget is approved\n"), 0o600)
	}}
	w := newWhisper(t, rt)

	audio := writeAudio(t)
	text, err := w.Transcribe(context.Background(), audio, Discard)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if strings.TrimSpace(text) != "the budget is approved" {
		t.Errorf("text = %q", text)
	}

	cmd := rt.Calls[0].Command
	if cmd[0] != "whisper-cli" || cmd[1] != "-m" || cmd[3] != "-f" || cmd[4] != audio || cmd[7] != "-otxt" {
		t.Errorf("unexpected command %v", cmd)
	}
	if _, err := os.Stat(cmd[6] + ".txt"); !os.IsNotExist(err) {
		t.Error("transcript export was not removed")
	}
}

func TestWhisperCPP_MissingOutput(t *testing.T) {
	rt := &fakeRuntime{RunFunc: func(opts runtime.StartOptions) (runtime.ExitResult, error) {
		return runtime.ExitResult{}, nil
	}}
	_, err := newWhisper(t, rt).Transcribe(context.Background(), writeAudio(t), Discard)
	if !errors.Is(err, ErrTranscription) {
		t.Errorf("error = %v, want ErrTranscription", err)
	}
}

func TestWhisperCPP_UnavailableWithoutModel(t *testing.T) {
	w := NewWhisperCPP(&fakeRuntime{}, "", "")
	if err := w.Available(); !errors.Is(err, fallback.ErrUnavailable) {
		t.Errorf("Available = %v, want ErrUnavailable", err)
	}
}

func TestTranscriber_FallsThroughUnavailableBackends(t *testing.T) {
	rt := &fakeRuntime{RunFunc: func(opts runtime.StartOptions) (runtime.ExitResult, error) {
		return runtime.ExitResult{}, os.WriteFile(opts.Command[6]+".txt", []byte("local transcript"), 0o600)
	}}

	tr := New(fallback.OnUnavailable,
		NewAssemblyAI(AssemblyAIConfig{}),
		NewOpenAI(OpenAIConfig{}),
		newWhisper(t, rt),
	)

	text, err := tr.Transcribe(context.Background(), writeAudio(t), Discard)
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "local transcript" {
		t.Errorf("text = %q", text)
	}
}

func TestTranscriber_NothingAvailable(t *testing.T) {
	tr := New(fallback.OnUnavailable, NewAssemblyAI(AssemblyAIConfig{}), NewOpenAI(OpenAIConfig{}))

	_, err := tr.Transcribe(context.Background(), writeAudio(t), Discard)
	if !errors.Is(err, fallback.ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
	for _, name := range []string{"assemblyai", "openai"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error %q does not name %s", err, name)
		}
	}
}
