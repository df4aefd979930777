package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestInitMetrics(t *testing.T) {
	handler, shutdown, err := InitMetrics()
	if err != nil {
		t.Fatalf("InitMetrics failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}()

	in, err := NewInstruments(otel.Meter(MeterName))
	if err != nil {
		t.Fatalf("NewInstruments failed: %v", err)
	}
	in.JobSubmitted(context.Background())
	in.JobSubmitted(context.Background())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	if body := rr.Body.String(); !strings.Contains(body, "meetscribe_jobs_submitted") {
		t.Errorf("expected meetscribe_jobs_submitted in output, got:\n%s", body)
	}
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func TestInstruments_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter(MeterName)

	in, err := NewInstruments(meter)
	if err != nil {
		t.Fatalf("NewInstruments failed: %v", err)
	}
	size := 3
	if err := ObserveRegistrySize(meter, func() int { return size }); err != nil {
		t.Fatalf("ObserveRegistrySize failed: %v", err)
	}

	ctx := context.Background()
	in.JobFinished(ctx, "complete")
	in.JobFinished(ctx, "complete")
	in.JobFinished(ctx, "error")
	in.JobsEvicted(ctx, 0)
	in.JobsEvicted(ctx, 4)
	in.StageObserved(ctx, "transcribe", 1500*time.Millisecond)

	got := collect(t, reader)

	finished := got["meetscribe.jobs.finished"].Data.(metricdata.Sum[int64])
	byState := map[string]int64{}
	for _, dp := range finished.DataPoints {
		state, _ := dp.Attributes.Value(attribute.Key("state"))
		byState[state.AsString()] = dp.Value
	}
	if byState["complete"] != 2 || byState["error"] != 1 {
		t.Errorf("finished by state = %v", byState)
	}

	evicted := got["meetscribe.jobs.evicted"].Data.(metricdata.Sum[int64])
	if evicted.DataPoints[0].Value != 4 {
		t.Errorf("evicted = %d, want 4", evicted.DataPoints[0].Value)
	}

	hist := got["meetscribe.stage.duration"].Data.(metricdata.Histogram[float64])
	if hist.DataPoints[0].Count != 1 || hist.DataPoints[0].Sum != 1.5 {
		t.Errorf("stage histogram = %+v", hist.DataPoints[0])
	}

	gauge := got["meetscribe.registry.size"].Data.(metricdata.Gauge[int64])
	if gauge.DataPoints[0].Value != 3 {
		t.Errorf("registry size = %d, want 3", gauge.DataPoints[0].Value)
	}
}

func TestNopInstruments(t *testing.T) {
	in := NopInstruments()
	in.JobSubmitted(context.Background())
	in.StageObserved(context.Background(), "summarize", time.Second)
}
