package telemetry

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sum(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	data, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: unexpected data type %T", m.Name, m.Data)
	}
	var total int64
	for _, dp := range data.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}

	ctx := context.Background()
	m.RecordAttempt(ctx, "mock", "ok")
	m.RecordAttempt(ctx, "mock", "transient")
	m.RecordChapter(ctx, "ok")
	m.RecordRun(ctx, "complete", 12.5)
	m.RecordStage(ctx, "synthesizing", 250*time.Millisecond)

	got := collect(t, reader)
	if n := sum(t, got["audiobook.speech.attempts"]); n != 2 {
		t.Fatalf("expected 2 attempts, got %d", n)
	}
	if n := sum(t, got["audiobook.chapters"]); n != 1 {
		t.Fatalf("expected 1 chapter, got %d", n)
	}
	if n := sum(t, got["audiobook.runs"]); n != 1 {
		t.Fatalf("expected 1 run, got %d", n)
	}
	if _, ok := got["audiobook.stage.duration"]; !ok {
		t.Fatal("expected stage duration histogram")
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordAttempt(ctx, "mock", "ok")
	m.RecordChapter(ctx, "ok")
	m.RecordRun(ctx, "failed", 0)
	m.RecordStage(ctx, "done", time.Second)
}
