// Package config loads server settings from an optional YAML file, environment variables and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"meetscribe/internal/fallback"
)

// Config holds all configuration values for the server.
type Config struct {
	HTTPPort        int
	ShutdownTimeout time.Duration
	LogLevel        string

	// Job lifecycle
	JobRetention      time.Duration
	ReaperInterval    time.Duration
	WorkerConcurrency int

	// Uploads
	UploadDir       string
	MaxUploadBytes  int64
	SubmitRateLimit float64
	SubmitRateBurst int

	// Normalization
	SampleRate          int
	FFmpegPath          string
	FFprobePath         string
	NormalizeStrategies []string
	NormalizeFallbackOn fallback.Policy
	DockerFFmpegImage   string

	// Transcription
	TranscribeStrategies   []string
	TranscribeFallbackOn   fallback.Policy
	AssemblyAIAPIKey       string
	AssemblyAIBaseURL      string
	AssemblyAIPollInterval time.Duration
	AssemblyAIMaxWait      time.Duration
	OpenAIAPIKey           string
	OpenAIModel            string
	OpenAIBaseURL          string
	WhisperPath            string
	WhisperModel           string

	// Telemetry
	TracingEnabled   bool
	OTELEndpoint     string
	TraceSampleRatio float64
}

// Known strategy names.
var (
	NormalizeStrategyNames  = []string{"ffmpeg", "docker"}
	TranscribeStrategyNames = []string{"assemblyai", "openai", "whispercpp"}
)

// key -> environment variable.
var envBindings = map[string]string{
	"http_port":                "PORT",
	"shutdown_timeout":         "SHUTDOWN_TIMEOUT",
	"log_level":                "LOG_LEVEL",
	"job_retention":            "JOB_RETENTION",
	"reaper_interval":          "REAPER_INTERVAL",
	"worker_concurrency":       "WORKER_CONCURRENCY",
	"upload_dir":               "UPLOAD_DIR",
	"max_upload_bytes":         "MAX_UPLOAD_BYTES",
	"submit_rate_limit":        "SUBMIT_RATE_LIMIT",
	"submit_rate_burst":        "SUBMIT_RATE_BURST",
	"sample_rate":              "SAMPLE_RATE",
	"ffmpeg_path":              "FFMPEG_PATH",
	"ffprobe_path":             "FFPROBE_PATH",
	"normalize_strategies":     "NORMALIZE_STRATEGIES",
	"normalize_fallback_on":    "NORMALIZE_FALLBACK_ON",
	"docker_ffmpeg_image":      "DOCKER_FFMPEG_IMAGE",
	"transcribe_strategies":    "TRANSCRIBE_STRATEGIES",
	"transcribe_fallback_on":   "TRANSCRIBE_FALLBACK_ON",
	"assemblyai_api_key":       "ASSEMBLYAI_API_KEY",
	"assemblyai_base_url":      "ASSEMBLYAI_BASE_URL",
	"assemblyai_poll_interval": "ASSEMBLYAI_POLL_INTERVAL",
	"assemblyai_max_wait":      "ASSEMBLYAI_MAX_WAIT",
	"openai_api_key":           "OPENAI_API_KEY",
	"openai_model":             "OPENAI_MODEL",
	"openai_base_url":          "OPENAI_BASE_URL",
	"whisper_path":             "WHISPER_PATH",
	"whisper_model":            "WHISPER_MODEL",
	"tracing_enabled":          "TRACING_ENABLED",
	"otel_endpoint":            "OTEL_EXPORTER_OTLP_ENDPOINT",
	"trace_sample_ratio":       "TRACE_SAMPLE_RATIO",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_port", 8000)
	v.SetDefault("shutdown_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("job_retention", 24*time.Hour)
	v.SetDefault("reaper_interval", time.Hour)
	v.SetDefault("worker_concurrency", 4)
	v.SetDefault("upload_dir", os.TempDir())
	v.SetDefault("max_upload_bytes", int64(500<<20))
	v.SetDefault("submit_rate_limit", 0.0)
	v.SetDefault("submit_rate_burst", 5)
	v.SetDefault("sample_rate", 16000)
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("ffprobe_path", "ffprobe")
	v.SetDefault("normalize_strategies", "ffmpeg,docker")
	v.SetDefault("normalize_fallback_on", string(fallback.OnError))
	v.SetDefault("docker_ffmpeg_image", "jrottenberg/ffmpeg:6.1-alpine")
	v.SetDefault("transcribe_strategies", "assemblyai,openai,whispercpp")
	v.SetDefault("transcribe_fallback_on", string(fallback.OnUnavailable))
	v.SetDefault("assemblyai_base_url", "https://api.assemblyai.com")
	v.SetDefault("assemblyai_poll_interval", 3*time.Second)
	v.SetDefault("assemblyai_max_wait", 30*time.Minute)
	v.SetDefault("openai_model", "whisper-1")
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("whisper_path", "whisper-cli")
	v.SetDefault("tracing_enabled", false)
	v.SetDefault("otel_endpoint", "localhost:4317")
	v.SetDefault("trace_sample_ratio", 1.0)
}

// Load reads configuration. path names an optional YAML file; when empty,
// meetscribe.yaml in the working directory is used if it exists.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("meetscribe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPPort:               v.GetInt("http_port"),
		ShutdownTimeout:        v.GetDuration("shutdown_timeout"),
		LogLevel:               v.GetString("log_level"),
		JobRetention:           v.GetDuration("job_retention"),
		ReaperInterval:         v.GetDuration("reaper_interval"),
		WorkerConcurrency:      v.GetInt("worker_concurrency"),
		UploadDir:              v.GetString("upload_dir"),
		MaxUploadBytes:         v.GetInt64("max_upload_bytes"),
		SubmitRateLimit:        v.GetFloat64("submit_rate_limit"),
		SubmitRateBurst:        v.GetInt("submit_rate_burst"),
		SampleRate:             v.GetInt("sample_rate"),
		FFmpegPath:             v.GetString("ffmpeg_path"),
		FFprobePath:            v.GetString("ffprobe_path"),
		NormalizeStrategies:    getList(v, "normalize_strategies"),
		DockerFFmpegImage:      v.GetString("docker_ffmpeg_image"),
		TranscribeStrategies:   getList(v, "transcribe_strategies"),
		AssemblyAIAPIKey:       v.GetString("assemblyai_api_key"),
		AssemblyAIBaseURL:      v.GetString("assemblyai_base_url"),
		AssemblyAIPollInterval: v.GetDuration("assemblyai_poll_interval"),
		AssemblyAIMaxWait:      v.GetDuration("assemblyai_max_wait"),
		OpenAIAPIKey:           v.GetString("openai_api_key"),
		OpenAIModel:            v.GetString("openai_model"),
		OpenAIBaseURL:          v.GetString("openai_base_url"),
		WhisperPath:            v.GetString("whisper_path"),
		WhisperModel:           v.GetString("whisper_model"),
		TracingEnabled:         v.GetBool("tracing_enabled"),
		OTELEndpoint:           v.GetString("otel_endpoint"),
		TraceSampleRatio:       v.GetFloat64("trace_sample_ratio"),
	}

	var err error
	if cfg.NormalizeFallbackOn, err = fallback.ParsePolicy(v.GetString("normalize_fallback_on")); err != nil {
		return nil, fmt.Errorf("normalize_fallback_on: %w (env: NORMALIZE_FALLBACK_ON)", err)
	}
	if cfg.TranscribeFallbackOn, err = fallback.ParsePolicy(v.GetString("transcribe_fallback_on")); err != nil {
		return nil, fmt.Errorf("transcribe_fallback_on: %w (env: TRANSCRIBE_FALLBACK_ON)", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535 (env: PORT)")
	}
	if c.JobRetention <= 0 {
		return fmt.Errorf("job_retention must be positive (env: JOB_RETENTION)")
	}
	if c.ReaperInterval <= 0 {
		return fmt.Errorf("reaper_interval must be positive (env: REAPER_INTERVAL)")
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("worker_concurrency must be positive (env: WORKER_CONCURRENCY)")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive (env: MAX_UPLOAD_BYTES)")
	}
	if c.SubmitRateLimit < 0 {
		return fmt.Errorf("submit_rate_limit must not be negative (env: SUBMIT_RATE_LIMIT)")
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("trace_sample_ratio must be between 0 and 1 (env: TRACE_SAMPLE_RATIO)")
	}
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000 (env: SAMPLE_RATE)")
	}
	if err := checkNames("normalize_strategies", "NORMALIZE_STRATEGIES", c.NormalizeStrategies, NormalizeStrategyNames); err != nil {
		return err
	}
	return checkNames("transcribe_strategies", "TRANSCRIBE_STRATEGIES", c.TranscribeStrategies, TranscribeStrategyNames)
}

func checkNames(key, env string, got, known []string) error {
	if len(got) == 0 {
		return fmt.Errorf("%s must name at least one strategy (env: %s)", key, env)
	}
	for _, name := range got {
		ok := false
		for _, k := range known {
			if name == k {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("%s: unknown strategy %q, want one of %s (env: %s)", key, name, strings.Join(known, ", "), env)
		}
	}
	return nil
}

// getList accepts either a comma-separated string (env) or a YAML sequence.
func getList(v *viper.Viper, key string) []string {
	switch raw := v.Get(key).(type) {
	case string:
		return splitList(raw)
	default:
		return splitList(strings.Join(v.GetStringSlice(key), ","))
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
