package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"meetscribe/internal/analysis/search"
	"meetscribe/internal/analysis/summarize"
	"meetscribe/internal/analysis/transcribe"
	"meetscribe/internal/logger"
	"meetscribe/internal/observability"
	"meetscribe/internal/store"
	"meetscribe/internal/worker"
	"meetscribe/pkg/api"
)

// Transcription sub-progress is scaled into this band of the job's progress.
const (
	transcribeStart = 25
	transcribeEnd   = 80
)

// Deps are the collaborators of an Executor.
type Deps struct {
	Registry    store.Registry
	Pool        *worker.Pool
	Prober      Prober
	Normalizer  Normalizer
	Transcriber Transcriber
	Indexer     Indexer
	Sentiment   SentimentAnalyzer
	Summarize   SummarizeFunc
	Logger      *slog.Logger
	Metrics     *observability.Instruments
	Tracer      trace.Tracer
}

// Executor runs jobs. One Run call owns one job from start to terminal state.
type Executor struct {
	Deps
	remove func(path string) error
}

// New creates an Executor. Summarize, Metrics and Tracer have defaults.
func New(deps Deps) *Executor {
	if deps.Summarize == nil {
		deps.Summarize = summarize.Summarize
	}
	if deps.Metrics == nil {
		deps.Metrics = observability.NopInstruments()
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(observability.TracerName)
	}
	if deps.Pool == nil {
		deps.Pool = worker.NewPool(1)
	}
	return &Executor{Deps: deps, remove: os.RemoveAll}
}

// Run executes the job described by req and leaves it COMPLETE or ERROR.
// It never panics and never returns an error: every failure is recorded on the job.
func (e *Executor) Run(ctx context.Context, req Request) {
	ctx = logger.WithJobID(ctx, req.JobID)
	log := logger.FromContext(ctx, e.Logger)
	start := time.Now()

	ctx, span := e.Tracer.Start(ctx, "process_job",
		trace.WithAttributes(
			attribute.String("job.id", req.JobID),
			attribute.Int("summary.points", req.Options.NumSummaryPoints),
			attribute.String("summary.style", req.Options.SummaryStyle),
		),
	)
	defer span.End()

	defer e.cleanup(log, req)

	result, err := e.process(ctx, log, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.fail(ctx, log, req.JobID, err)
		return
	}

	e.update(log, req.JobID, func(j *store.Job) error {
		return j.Complete(result, "Processing complete")
	})
	e.Metrics.JobFinished(ctx, api.StatusComplete)
	log.Info("job complete", "duration", time.Since(start).String())
}

func (e *Executor) process(ctx context.Context, log *slog.Logger, req Request) (res store.Result, err error) {
	current := StageFormatCheck
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: current, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	report := func(progress int, message string) {
		e.update(log, req.JobID, func(j *store.Job) error {
			return j.Report(progress, message)
		})
	}

	report(5, "Checking audio file format...")
	var probeMsg string
	err = e.stage(ctx, StageFormatCheck, func(ctx context.Context) error {
		info := e.Prober.Probe(ctx, req.InputPath)
		if info.Issue != "" {
			log.Warn("audio format check reported an issue", "issue", info.Issue, "mime", info.MIME)
		}
		probeMsg = info.Message()
		return nil
	})
	if err != nil {
		return res, err
	}
	report(10, probeMsg)

	current = StageNormalize
	report(15, "Converting audio to proper format...")
	var wavPath string
	err = e.stage(ctx, StageNormalize, func(ctx context.Context) error {
		var err error
		wavPath, err = e.Normalizer.Normalize(ctx, req.InputPath)
		return err
	})
	if err != nil {
		return res, err
	}
	report(20, "Audio converted successfully")

	current = StageTranscribe
	report(transcribeStart, "Starting transcription...")
	sink := transcribe.ProgressFunc(func(p int, message string) {
		report(scale(p), message)
	})
	err = e.stage(ctx, StageTranscribe, func(ctx context.Context) error {
		var err error
		res.Transcript, err = e.Transcriber.Transcribe(ctx, wavPath, sink)
		return err
	})
	if err != nil {
		return res, err
	}
	report(transcribeEnd, "Transcription complete. Generating summary...")

	current = StageIndex
	err = e.stage(ctx, StageIndex, func(ctx context.Context) error {
		err := e.Indexer.Index(req.JobID, res.Transcript)
		if errors.Is(err, search.ErrEmptyTranscript) {
			log.Warn("transcript is empty, nothing to index")
			return nil
		}
		return err
	})
	if err != nil {
		return res, err
	}

	current = StageSummarize
	report(85, "Generating summary...")
	err = e.stage(ctx, StageSummarize, func(ctx context.Context) error {
		res.Summary = e.Summarize(res.Transcript, req.Options.NumSummaryPoints)
		if req.Options.SummaryStyle == api.SummaryStyleParagraph {
			res.Summary = summarize.Paragraph(res.Summary)
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	current = StageSentiment
	report(90, "Analyzing sentiment...")
	err = e.stage(ctx, StageSentiment, func(ctx context.Context) error {
		res.Sentiment = e.Sentiment.Analyze(res.Transcript)
		return nil
	})
	if err != nil {
		return res, err
	}
	report(95, "Sentiment analysis complete")

	return res, nil
}

// stage runs fn on the pool inside a child span. Panics become StageErrors.
func (e *Executor) stage(ctx context.Context, name Stage, fn func(ctx context.Context) error) error {
	ctx, span := e.Tracer.Start(ctx, "stage."+string(name))
	defer span.End()

	start := time.Now()
	err := e.Pool.Do(ctx, func(ctx context.Context) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx)
	})
	e.Metrics.StageObserved(ctx, string(name), time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var se *StageError
		if errors.As(err, &se) {
			return err
		}
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

// scale maps transcription sub-progress 0-100 onto the transcription band.
func scale(p int) int {
	p = max(0, min(100, p))
	return transcribeStart + p*(transcribeEnd-transcribeStart)/100
}

func (e *Executor) fail(ctx context.Context, log *slog.Logger, jobID string, err error) {
	msg := err.Error()
	attrs := []any{"error", msg}
	var se *StageError
	if errors.As(err, &se) {
		attrs = append(attrs, "stage", string(se.Stage))
	}
	log.Error("job failed", attrs...)

	e.update(log, jobID, func(j *store.Job) error {
		return j.Fail(msg, "Error: "+msg)
	})
	e.Metrics.JobFinished(ctx, api.StatusError)
}

// update applies fn to the job. A job evicted mid-run is silently skipped by the registry.
func (e *Executor) update(log *slog.Logger, jobID string, fn store.Mutator) {
	err := e.Registry.Update(jobID, func(j *store.Job) error {
		if err := fn(j); err != nil {
			return err
		}
		log.Debug("job status", "state", string(j.State), "progress", j.Progress, "message", j.Message)
		return nil
	})
	if err != nil {
		log.Warn("job update rejected", "error", err)
	}
}

func (e *Executor) cleanup(log *slog.Logger, req Request) {
	paths := []string{req.WorkDir}
	if req.WorkDir == "" {
		paths = []string{req.InputPath}
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := e.remove(p); err != nil {
			log.Error("failed to clean up temp files", "path", p, "error", err)
		}
	}
}
