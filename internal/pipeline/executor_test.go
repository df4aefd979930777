package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"meetscribe/internal/analysis/audio"
	"meetscribe/internal/analysis/search"
	"meetscribe/internal/analysis/transcribe"
	"meetscribe/internal/store"
	"meetscribe/internal/store/memory"
	"meetscribe/internal/worker"
	"meetscribe/pkg/api"
)

type fakeProber struct{ info audio.Info }

func (f *fakeProber) Probe(ctx context.Context, path string) audio.Info { return f.info }

type fakeNormalizer struct {
	out string
	err error
}

func (f *fakeNormalizer) Normalize(ctx context.Context, path string) (string, error) {
	return f.out, f.err
}

type fakeTranscriber struct {
	text  string
	err   error
	panic bool
	gotIn string
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, path string, sink transcribe.ProgressSink) (string, error) {
	f.gotIn = path
	if f.panic {
		panic("decoder exploded")
	}
	sink.Report(0, "Preparing audio for transcription...")
	sink.Report(50, "Transcription in progress...")
	sink.Report(100, "Transcription completed successfully!")
	return f.text, f.err
}

type fakeIndexer struct {
	mu    sync.Mutex
	texts map[string]string
	err   error
}

func (f *fakeIndexer) Index(jobID, transcript string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	if f.texts == nil {
		f.texts = make(map[string]string)
	}
	f.texts[jobID] = transcript
	return nil
}

type fakeSentiment struct{}

func (fakeSentiment) Analyze(string) api.SentimentReport {
	return api.SentimentReport{Overall: "Positive", Positive: 60, Neutral: 40}
}

// recordingRegistry captures every progress value the executor writes.
type recordingRegistry struct {
	*memory.Registry
	mu       sync.Mutex
	progress []int
	messages []string
}

func (r *recordingRegistry) Update(id string, fn store.Mutator) error {
	return r.Registry.Update(id, func(j *store.Job) error {
		if err := fn(j); err != nil {
			return err
		}
		r.mu.Lock()
		r.progress = append(r.progress, j.Progress)
		r.messages = append(r.messages, j.Message)
		r.mu.Unlock()
		return nil
	})
}

type fixture struct {
	registry    *recordingRegistry
	normalizer  *fakeNormalizer
	transcriber *fakeTranscriber
	indexer     *fakeIndexer
	exec        *Executor
	removed     []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registry:    &recordingRegistry{Registry: memory.New()},
		normalizer:  &fakeNormalizer{out: "/tmp/job/in.normalized.wav"},
		transcriber: &fakeTranscriber{text: "We shipped the release. Everyone was happy."},
		indexer:     &fakeIndexer{},
	}
	f.exec = New(Deps{
		Registry:    f.registry,
		Prober:      &fakeProber{info: audio.Info{Duration: 3, SampleRate: 16000, Channels: 1}},
		Normalizer:  f.normalizer,
		Transcriber: f.transcriber,
		Indexer:     f.indexer,
		Sentiment:   fakeSentiment{},
		Summarize: func(text string, n int) string {
			return "• first point\n• second point"
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	f.exec.remove = func(path string) error {
		f.removed = append(f.removed, path)
		return nil
	}
	if _, err := f.registry.Create("job-1"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return f
}

func request() Request {
	return Request{
		JobID:     "job-1",
		InputPath: "/tmp/job/in.mp3",
		WorkDir:   "/tmp/job",
		Options:   api.DefaultSubmitOptions(),
	}
}

func TestRun_Success(t *testing.T) {
	f := newFixture(t)

	f.exec.Run(context.Background(), request())

	job, err := f.registry.Get("job-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.State != store.JobStateComplete {
		t.Fatalf("state = %s, want COMPLETE (error %q)", job.State, job.Error)
	}
	if job.Progress != 100 || job.Message != "Processing complete" {
		t.Errorf("progress/message = %d %q", job.Progress, job.Message)
	}
	if job.Result.Transcript != f.transcriber.text {
		t.Errorf("transcript = %q", job.Result.Transcript)
	}
	if job.Result.Summary != "• first point\n• second point" {
		t.Errorf("summary = %q", job.Result.Summary)
	}
	if job.Result.Sentiment.Overall != "Positive" {
		t.Errorf("sentiment = %+v", job.Result.Sentiment)
	}
	if f.transcriber.gotIn != f.normalizer.out {
		t.Errorf("transcriber got %q, want normalized path", f.transcriber.gotIn)
	}
	if f.indexer.texts["job-1"] != f.transcriber.text {
		t.Error("transcript was not indexed under the job id")
	}
	if len(f.removed) != 1 || f.removed[0] != "/tmp/job" {
		t.Errorf("removed = %v, want the work dir", f.removed)
	}
}

func TestRun_ProgressIsMonotonicAndScaled(t *testing.T) {
	f := newFixture(t)

	f.exec.Run(context.Background(), request())

	last := -1
	for i, p := range f.registry.progress {
		if p < last {
			t.Errorf("progress went backwards at update %d: %d -> %d", i, last, p)
		}
		last = p
	}

	want := map[string]bool{
		"Checking audio file format...":                 false,
		"Audio file: 3.00s, 16000Hz, 1 channel(s)":      false,
		"Audio converted successfully":                  false,
		"Transcription in progress...":                  false,
		"Transcription complete. Generating summary...": false,
		"Analyzing sentiment...":                        false,
		"Processing complete":                           false,
	}
	for i, m := range f.registry.messages {
		if _, ok := want[m]; ok {
			want[m] = true
		}
		if m == "Transcription in progress..." && f.registry.progress[i] != 52 {
			t.Errorf("mid transcription progress = %d, want 52", f.registry.progress[i])
		}
	}
	for m, seen := range want {
		if !seen {
			t.Errorf("message %q never reported", m)
		}
	}
}

func TestRun_ParagraphStyle(t *testing.T) {
	f := newFixture(t)
	req := request()
	req.Options.SummaryStyle = api.SummaryStyleParagraph

	f.exec.Run(context.Background(), req)

	job, _ := f.registry.Get("job-1")
	if job.Result == nil {
		t.Fatalf("job failed: %s", job.Error)
	}
	if job.Result.Summary != "first point second point" {
		t.Errorf("summary = %q", job.Result.Summary)
	}
}

func TestRun_StageFailures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		wantStage Stage
	}{
		{
			name:      "normalize",
			setup:     func(f *fixture) { f.normalizer.err = errors.New("all strategies failed") },
			wantStage: StageNormalize,
		},
		{
			name:      "transcribe",
			setup:     func(f *fixture) { f.transcriber.err = errors.New("quota exceeded") },
			wantStage: StageTranscribe,
		},
		{
			name:      "transcribe panic",
			setup:     func(f *fixture) { f.transcriber.panic = true },
			wantStage: StageTranscribe,
		},
		{
			name:      "index",
			setup:     func(f *fixture) { f.indexer.err = errors.New("index corrupt") },
			wantStage: StageIndex,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			f.exec.Run(context.Background(), request())

			job, _ := f.registry.Get("job-1")
			if job.State != store.JobStateError {
				t.Fatalf("state = %s, want ERROR", job.State)
			}
			if job.Result != nil {
				t.Error("failed job must not carry a result")
			}
			if !strings.HasPrefix(job.Error, string(tt.wantStage)+":") {
				t.Errorf("error = %q, want prefix %q", job.Error, tt.wantStage)
			}
			if job.Message != "Error: "+job.Error {
				t.Errorf("message = %q", job.Message)
			}
			if len(f.removed) != 1 {
				t.Errorf("temp files not cleaned up after failure: %v", f.removed)
			}
		})
	}
}

func TestRun_EmptyTranscriptStillCompletes(t *testing.T) {
	f := newFixture(t)
	f.indexer.err = search.ErrEmptyTranscript

	f.exec.Run(context.Background(), request())

	job, _ := f.registry.Get("job-1")
	if job.State != store.JobStateComplete {
		t.Errorf("state = %s, want COMPLETE (error %q)", job.State, job.Error)
	}
}

func TestRun_CleanupFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t)
	f.exec.remove = func(string) error { return errors.New("permission denied") }

	f.exec.Run(context.Background(), request())

	job, _ := f.registry.Get("job-1")
	if job.State != store.JobStateComplete {
		t.Errorf("state = %s, want COMPLETE", job.State)
	}
}

func TestRun_CleanupRemovesRealFiles(t *testing.T) {
	f := newFixture(t)
	f.exec.remove = os.RemoveAll

	dir := filepath.Join(t.TempDir(), "job-1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "in.mp3")
	os.WriteFile(in, []byte("data"), 0o600)

	req := request()
	req.InputPath = in
	req.WorkDir = dir
	f.exec.Run(context.Background(), req)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("work dir still exists: %v", err)
	}
}

func TestRun_EvictedJobIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.registry.Sweep(time.Now().Add(time.Hour), 0)

	f.exec.Run(context.Background(), request())

	if f.registry.Len() != 0 {
		t.Error("executor resurrected an evicted job")
	}
}

func TestScale(t *testing.T) {
	tests := []struct{ in, want int }{
		{-10, 25},
		{0, 25},
		{50, 52},
		{100, 80},
		{150, 80},
	}
	for _, tt := range tests {
		if got := scale(tt.in); got != tt.want {
			t.Errorf("scale(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestStageError(t *testing.T) {
	inner := errors.New("boom")
	err := error(&StageError{Stage: StageNormalize, Err: inner})

	if err.Error() != "normalize: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("StageError must unwrap to the cause")
	}
}

func TestScheduler_RunsInBackground(t *testing.T) {
	f := newFixture(t)
	d := worker.NewDispatcher(slog.New(slog.NewTextHandler(io.Discard, nil)))
	s := NewScheduler(d, f.exec)

	if err := s.Schedule(request()); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	job, _ := f.registry.Get("job-1")
	if job.State != store.JobStateComplete {
		t.Errorf("state = %s, want COMPLETE", job.State)
	}
	if err := s.Schedule(request()); !errors.Is(err, worker.ErrShuttingDown) {
		t.Errorf("Schedule after shutdown = %v, want ErrShuttingDown", err)
	}
}
