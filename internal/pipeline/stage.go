// Package pipeline runs one uploaded recording through every analysis stage and
// records progress and the outcome in the job registry.
package pipeline

import (
	"context"
	"fmt"

	"meetscribe/internal/analysis/audio"
	"meetscribe/internal/analysis/transcribe"
	"meetscribe/pkg/api"
)

// Stage names a step of the pipeline.
type Stage string

const (
	StageFormatCheck Stage = "format_check"
	StageNormalize   Stage = "normalize"
	StageTranscribe  Stage = "transcribe"
	StageIndex       Stage = "index"
	StageSummarize   Stage = "summarize"
	StageSentiment   Stage = "sentiment"
)

// StageError records which stage failed a job.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Prober inspects the uploaded file. Problems are reported, never returned.
type Prober interface {
	Probe(ctx context.Context, path string) audio.Info
}

// Normalizer converts the upload into mono PCM WAV and returns the new path.
type Normalizer interface {
	Normalize(ctx context.Context, path string) (string, error)
}

// Transcriber turns normalized audio into text, reporting sub-progress to sink.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, sink transcribe.ProgressSink) (string, error)
}

// Indexer makes a transcript searchable.
type Indexer interface {
	Index(jobID, transcript string) error
}

// SentimentAnalyzer scores a transcript.
type SentimentAnalyzer interface {
	Analyze(transcript string) api.SentimentReport
}

// SummarizeFunc extracts n summary points from a transcript.
type SummarizeFunc func(transcript string, n int) string

// Request describes one job to execute.
type Request struct {
	JobID string
	// InputPath is the stored upload.
	InputPath string
	// WorkDir is removed with everything in it once the job ends. It must only
	// contain files owned by this job.
	WorkDir string
	Options api.SubmitOptions
}
