package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"meetscribe/internal/fallback"
	"meetscribe/internal/runtime"
)

// WhisperCPP runs a local whisper.cpp binary and reads its .txt export.
type WhisperCPP struct {
	rt       runtime.Runtime
	path     string
	model    string
	lookPath func(string) (string, error)
}

// NewWhisperCPP creates the whisper.cpp backend.
func NewWhisperCPP(rt runtime.Runtime, binaryPath, modelPath string) *WhisperCPP {
	if binaryPath == "" {
		binaryPath = "whisper-cli"
	}
	return &WhisperCPP{rt: rt, path: binaryPath, model: modelPath, lookPath: exec.LookPath}
}

func (w *WhisperCPP) Name() string { return "whispercpp" }

func (w *WhisperCPP) Available() error {
	if w.model == "" {
		return fmt.Errorf("%w: whisper model not configured", fallback.ErrUnavailable)
	}
	if _, err := os.Stat(w.model); err != nil {
		return fmt.Errorf("%w: whisper model: %v", fallback.ErrUnavailable, err)
	}
	if _, err := w.lookPath(w.path); err != nil {
		return fmt.Errorf("%w: %s not found: %v", fallback.ErrUnavailable, w.path, err)
	}
	return nil
}

func whisperArgs(model, audioPath, textBase string) []string {
	return []string{
		"-m", model,
		"-f", audioPath,
		"-of", textBase,
		"-otxt",
	}
}

// Transcribe implements Strategy.
func (w *WhisperCPP) Transcribe(ctx context.Context, audioPath string, sink ProgressSink) (string, error) {
	textBase := strings.TrimSuffix(audioPath, ".wav") + ".transcript"
	textPath := textBase + ".txt"
	defer os.Remove(textPath)

	sink.Report(10, "Running whisper.cpp...")

	res, err := runtime.Run(ctx, w.rt, runtime.StartOptions{
		Command: append([]string{w.path}, whisperArgs(w.model, audioPath, textBase)...),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("%w: whisper.cpp exited with code %d: %s", ErrTranscription, res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	b, err := os.ReadFile(textPath)
	if err != nil {
		return "", fmt.Errorf("%w: whisper.cpp completed but transcript file is missing: %v", ErrTranscription, err)
	}

	sink.Report(100, "Transcription completed successfully!")
	return string(b), nil
}
