// Package transcribe turns normalized audio into text using one of several backends.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"meetscribe/internal/fallback"
)

// ErrTranscription wraps failures reported by a backend.
var ErrTranscription = errors.New("transcription failed")

// ProgressSink receives sub-progress (0-100) from a running transcription.
type ProgressSink interface {
	Report(progress int, message string)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(progress int, message string)

func (f ProgressFunc) Report(progress int, message string) { f(progress, message) }

// Discard is a sink that drops every report.
var Discard ProgressSink = ProgressFunc(func(int, string) {})

// Strategy is one transcription backend.
type Strategy interface {
	fallback.Strategy
	Transcribe(ctx context.Context, audioPath string, sink ProgressSink) (string, error)
}

// Transcriber runs backends in order until one produces a transcript.
type Transcriber struct {
	strategies []Strategy
	policy     fallback.Policy
}

// New creates a Transcriber.
func New(policy fallback.Policy, strategies ...Strategy) *Transcriber {
	return &Transcriber{strategies: strategies, policy: policy}
}

// Transcribe returns the transcript of the audio file at audioPath.
func (t *Transcriber) Transcribe(ctx context.Context, audioPath string, sink ProgressSink) (string, error) {
	if sink == nil {
		sink = Discard
	}
	return fallback.Run(ctx, t.strategies, t.policy, func(ctx context.Context, s Strategy) (string, error) {
		text, err := s.Transcribe(ctx, audioPath, sink)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(text), nil
	})
}

// apiError reads a non-2xx response into an error.
func apiError(service string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%w: %s http %d: %s", ErrTranscription, service, resp.StatusCode, strings.TrimSpace(string(b)))
}
