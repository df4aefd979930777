// Package observability provides OpenTelemetry instrumentation for tracing and metrics.
package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/metric"
)

// MeterName is the instrumentation scope of the service metrics.
const MeterName = "meetscribe"

// InitMetrics initializes the OpenTelemetry metrics provider with a Prometheus exporter.
// It returns the HTTP handler for the /metrics endpoint and a shutdown function.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// Instruments records job lifecycle metrics.
type Instruments struct {
	submitted     otelmetric.Int64Counter
	finished      otelmetric.Int64Counter
	evicted       otelmetric.Int64Counter
	stageDuration otelmetric.Float64Histogram
}

// NewInstruments creates the job instruments on meter.
func NewInstruments(meter otelmetric.Meter) (*Instruments, error) {
	var (
		in  Instruments
		err error
	)

	if in.submitted, err = meter.Int64Counter("meetscribe.jobs.submitted",
		otelmetric.WithDescription("Jobs accepted by the submission endpoint")); err != nil {
		return nil, err
	}
	if in.finished, err = meter.Int64Counter("meetscribe.jobs.finished",
		otelmetric.WithDescription("Jobs that reached a terminal state")); err != nil {
		return nil, err
	}
	if in.evicted, err = meter.Int64Counter("meetscribe.jobs.evicted",
		otelmetric.WithDescription("Jobs removed by the retention sweep")); err != nil {
		return nil, err
	}
	if in.stageDuration, err = meter.Float64Histogram("meetscribe.stage.duration",
		otelmetric.WithDescription("Duration of pipeline stages"),
		otelmetric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &in, nil
}

// NopInstruments returns instruments that record nothing.
func NopInstruments() *Instruments {
	in, _ := NewInstruments(noop.NewMeterProvider().Meter(MeterName))
	return in
}

// JobSubmitted counts an accepted submission.
func (in *Instruments) JobSubmitted(ctx context.Context) {
	in.submitted.Add(ctx, 1)
}

// JobFinished counts a terminal transition.
func (in *Instruments) JobFinished(ctx context.Context, state string) {
	in.finished.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("state", state)))
}

// JobsEvicted counts jobs removed by a sweep.
func (in *Instruments) JobsEvicted(ctx context.Context, n int) {
	if n > 0 {
		in.evicted.Add(ctx, int64(n))
	}
}

// StageObserved records how long a stage ran.
func (in *Instruments) StageObserved(ctx context.Context, stage string, d time.Duration) {
	in.stageDuration.Record(ctx, d.Seconds(), otelmetric.WithAttributes(attribute.String("stage", stage)))
}

// ObserveRegistrySize registers a gauge that reports size() whenever metrics are collected.
func ObserveRegistrySize(meter otelmetric.Meter, size func() int) error {
	_, err := meter.Int64ObservableGauge("meetscribe.registry.size",
		otelmetric.WithDescription("Jobs currently held in the registry"),
		otelmetric.WithInt64Callback(func(ctx context.Context, obs otelmetric.Int64Observer) error {
			obs.Observe(int64(size()))
			return nil
		}),
	)
	return err
}
