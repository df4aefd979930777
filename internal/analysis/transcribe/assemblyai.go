package transcribe

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"

	"meetscribe/internal/fallback"
)

// DefaultAssemblyAIURL is the public AssemblyAI API.
const DefaultAssemblyAIURL = "https://api.assemblyai.com"

// AssemblyAIConfig configures the AssemblyAI backend.
type AssemblyAIConfig struct {
	APIKey       string
	BaseURL      string
	PollInterval time.Duration
	// MaxWait bounds how long a submitted transcript may stay queued or processing.
	MaxWait time.Duration
}

// AssemblyAI uploads the file, requests a transcript with language detection and polls
// until it completes.
type AssemblyAI struct {
	config AssemblyAIConfig
	client *aai.Client
}

// NewAssemblyAI creates the AssemblyAI backend.
func NewAssemblyAI(config AssemblyAIConfig) *AssemblyAI {
	if config.BaseURL == "" {
		config.BaseURL = DefaultAssemblyAIURL
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 3 * time.Second
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 30 * time.Minute
	}
	client := aai.NewClientWithOptions(
		aai.WithAPIKey(config.APIKey),
		aai.WithBaseURL(config.BaseURL),
		aai.WithHTTPClient(&http.Client{Timeout: 5 * time.Minute}),
	)
	return &AssemblyAI{config: config, client: client}
}

func (a *AssemblyAI) Name() string { return "assemblyai" }

func (a *AssemblyAI) Available() error {
	if a.config.APIKey == "" {
		return fmt.Errorf("%w: assemblyai api key not set", fallback.ErrUnavailable)
	}
	return nil
}

// Transcribe implements Strategy.
func (a *AssemblyAI) Transcribe(ctx context.Context, audioPath string, sink ProgressSink) (string, error) {
	sink.Report(5, "Preparing audio for transcription...")

	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	uploadURL, err := a.client.Upload(ctx, f)
	if err != nil {
		return "", fmt.Errorf("%w: assemblyai upload: %v", ErrTranscription, err)
	}

	sink.Report(30, "Starting transcription with AssemblyAI...")
	tr, err := a.client.Transcripts.SubmitFromURL(ctx, uploadURL, &aai.TranscriptOptionalParams{
		LanguageDetection: aai.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("%w: assemblyai submit: %v", ErrTranscription, err)
	}

	sink.Report(40, "Submitting audio for transcription...")
	return a.poll(ctx, aai.ToString(tr.ID), sink)
}

func (a *AssemblyAI) poll(ctx context.Context, id string, sink ProgressSink) (string, error) {
	ticker := time.NewTicker(a.config.PollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(a.config.MaxWait)
	defer timeout.Stop()

	progress := 50
	for {
		tr, err := a.client.Transcripts.Get(ctx, id)
		if err != nil {
			return "", fmt.Errorf("%w: assemblyai poll: %v", ErrTranscription, err)
		}

		switch tr.Status {
		case aai.TranscriptStatusCompleted:
			sink.Report(100, "Transcription completed successfully!")
			return aai.ToString(tr.Text), nil
		case aai.TranscriptStatusError:
			msg := aai.ToString(tr.Error)
			if msg == "" {
				msg = "Unknown error"
			}
			return "", fmt.Errorf("%w: %s", ErrTranscription, msg)
		default:
			sink.Report(progress, "Transcription in progress...")
			if progress < 95 {
				progress += 5
			}
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout.C:
			return "", fmt.Errorf("%w: transcript %s not ready after %s", ErrTranscription, id, a.config.MaxWait)
		case <-ticker.C:
		}
	}
}
