// Package main is the entry point for the meetscribe server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"

	"meetscribe/internal/analysis/audio"
	"meetscribe/internal/analysis/search"
	"meetscribe/internal/analysis/sentiment"
	"meetscribe/internal/analysis/summarize"
	"meetscribe/internal/analysis/transcribe"
	"meetscribe/internal/config"
	"meetscribe/internal/controller"
	"meetscribe/internal/controller/handlers"
	"meetscribe/internal/logger"
	"meetscribe/internal/observability"
	"meetscribe/internal/pipeline"
	"meetscribe/internal/runtime"
	"meetscribe/internal/store/memory"
	"meetscribe/internal/worker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: meetscribe.yaml in current directory)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Invalid log level: %v", err)
	}
	logr := logger.New(level)
	slog.SetDefault(logr)

	ctx := context.Background()

	// Tracing
	if cfg.TracingEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, observability.TracingConfig{
			ServiceName:    "meetscribe",
			ServiceVersion: version,
			Endpoint:       cfg.OTELEndpoint,
			SampleRatio:    cfg.TraceSampleRatio,
		})
		if err != nil {
			log.Fatalf("Failed to init tracing: %v", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logr.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	// Metrics
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to init metrics: %v", err)
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			logr.Error("failed to shutdown metrics", "error", err)
		}
	}()
	meter := otel.Meter(observability.MeterName)
	instruments, err := observability.NewInstruments(meter)
	if err != nil {
		log.Fatalf("Failed to create instruments: %v", err)
	}

	// Analysis stages
	execRT := runtime.NewExecRuntime()
	containerRT := dockerRuntime(logr)

	normalizer, err := buildNormalizer(cfg, execRT, containerRT)
	if err != nil {
		log.Fatalf("Failed to build normalizer: %v", err)
	}
	transcriber, err := buildTranscriber(cfg, execRT)
	if err != nil {
		log.Fatalf("Failed to build transcriber: %v", err)
	}
	engine := search.NewEngine()

	// Job registry. Evicted jobs lose their search index too.
	registry := memory.New(memory.WithEvictHook(func(id string) {
		engine.Drop(id)
		instruments.JobsEvicted(context.Background(), 1)
	}))
	if err := observability.ObserveRegistrySize(meter, registry.Len); err != nil {
		logr.Warn("failed to register registry size metric", "error", err)
	}

	// Background execution
	dispatcher := worker.NewDispatcher(logr)
	executor := pipeline.New(pipeline.Deps{
		Registry:    registry,
		Pool:        worker.NewPool(cfg.WorkerConcurrency),
		Prober:      audio.NewProber(execRT, cfg.FFprobePath),
		Normalizer:  normalizer,
		Transcriber: transcriber,
		Indexer:     engine,
		Sentiment:   sentiment.NewAnalyzer(),
		Summarize:   summarize.Summarize,
		Logger:      logr,
		Metrics:     instruments,
		Tracer:      otel.Tracer(observability.TracerName),
	})
	reaper := worker.NewReaper(registry, cfg.ReaperInterval, cfg.JobRetention, logr)

	reaperCtx, stopReaper := context.WithCancel(ctx)
	reaperDone := make(chan struct{})
	go func() {
		defer close(reaperDone)
		reaper.Run(reaperCtx)
	}()

	// HTTP server
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		log.Fatalf("Failed to create upload dir: %v", err)
	}
	h := handlers.New(handlers.Deps{
		Registry:  registry,
		Scheduler: pipeline.NewScheduler(dispatcher, executor),
		Searcher:  engine,
		UploadDir: cfg.UploadDir,
		Logger:    logr,
		Metrics:   instruments,
	})
	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	srv := controller.New(h, controller.Options{
		Addr:            addr,
		ShutdownTimeout: cfg.ShutdownTimeout,
		MaxUploadBytes:  cfg.MaxUploadBytes,
		SubmitRateLimit: cfg.SubmitRateLimit,
		SubmitRateBurst: cfg.SubmitRateBurst,
		Metrics:         metricsHandler,
		Logger:          logr,
	})

	serverCtx, stopServer := context.WithCancel(ctx)
	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		logr.Info("meetscribe server starting", "addr", addr)
		if err := srv.Run(serverCtx); err != nil {
			logr.Error("server stopped", "error", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logr.Info("shutting down")
	stopServer()
	<-serverDone

	stopReaper()
	<-reaperDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logr.Warn("jobs cancelled at shutdown", "error", err)
	}

	if containerRT != nil {
		containerRT.Close()
	}
	logr.Info("server exited properly")
}

// dockerRuntime returns nil when no Docker client can be created.
func dockerRuntime(logr *slog.Logger) *runtime.DockerRuntime {
	rt, err := runtime.NewDockerRuntime()
	if err != nil {
		logr.Warn("docker unavailable, containerized conversion disabled", "error", err)
		return nil
	}
	return rt
}

func buildNormalizer(cfg *config.Config, execRT runtime.Runtime, containerRT *runtime.DockerRuntime) (*audio.Normalizer, error) {
	var strategies []audio.Strategy
	for _, name := range cfg.NormalizeStrategies {
		switch name {
		case "ffmpeg":
			strategies = append(strategies, audio.NewFFmpegStrategy(execRT, cfg.FFmpegPath, cfg.SampleRate))
		case "docker":
			var rt audio.ContainerRuntime
			if containerRT != nil {
				rt = containerRT
			}
			strategies = append(strategies, audio.NewDockerStrategy(rt, cfg.DockerFFmpegImage, cfg.SampleRate))
		default:
			return nil, fmt.Errorf("unknown normalize strategy %q", name)
		}
	}
	return audio.NewNormalizer(cfg.NormalizeFallbackOn, strategies...), nil
}

func buildTranscriber(cfg *config.Config, execRT runtime.Runtime) (*transcribe.Transcriber, error) {
	var strategies []transcribe.Strategy
	for _, name := range cfg.TranscribeStrategies {
		switch name {
		case "assemblyai":
			strategies = append(strategies, transcribe.NewAssemblyAI(transcribe.AssemblyAIConfig{
				APIKey:       cfg.AssemblyAIAPIKey,
				BaseURL:      cfg.AssemblyAIBaseURL,
				PollInterval: cfg.AssemblyAIPollInterval,
				MaxWait:      cfg.AssemblyAIMaxWait,
			}))
		case "openai":
			strategies = append(strategies, transcribe.NewOpenAI(transcribe.OpenAIConfig{
				APIKey:  cfg.OpenAIAPIKey,
				Model:   cfg.OpenAIModel,
				BaseURL: cfg.OpenAIBaseURL,
			}))
		case "whispercpp":
			strategies = append(strategies, transcribe.NewWhisperCPP(execRT, cfg.WhisperPath, cfg.WhisperModel))
		default:
			return nil, fmt.Errorf("unknown transcribe strategy %q", name)
		}
	}
	return transcribe.New(cfg.TranscribeFallbackOn, strategies...), nil
}
