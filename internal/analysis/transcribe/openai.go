package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meetscribe/internal/fallback"
)

// DefaultOpenAIURL is the public OpenAI API.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIConfig configures the OpenAI backend.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAI sends the file to the audio transcriptions endpoint in one request.
type OpenAI struct {
	config     OpenAIConfig
	httpClient *http.Client
}

// NewOpenAI creates the OpenAI backend.
func NewOpenAI(config OpenAIConfig) *OpenAI {
	if config.Model == "" {
		config.Model = "whisper-1"
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultOpenAIURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	return &OpenAI{
		config:     config,
		httpClient: &http.Client{Timeout: 60 * time.Minute},
	}
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Available() error {
	if o.config.APIKey == "" {
		return fmt.Errorf("%w: openai api key not set", fallback.ErrUnavailable)
	}
	return nil
}

type openAIResponse struct {
	Text string `json:"text"`
}

// Transcribe implements Strategy.
func (o *OpenAI) Transcribe(ctx context.Context, audioPath string, sink ProgressSink) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", o.config.Model); err != nil {
		return "", err
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	sink.Report(20, "Uploading audio to OpenAI...")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.config.BaseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+o.config.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranscription, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", apiError("openai", resp)
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode openai response: %v", ErrTranscription, err)
	}

	sink.Report(100, "Transcription completed successfully!")
	return out.Text, nil
}
