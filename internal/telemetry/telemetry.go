// Package telemetry wires OpenTelemetry metrics to a Prometheus scrape
// endpoint and exposes the instruments the generation pipeline records.
package telemetry

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.30.0"
)

const meterName = "github.com/nikhilbhutani/audiobookai"

// Setup installs a global meter provider backed by the Prometheus exporter.
// The returned handler serves /metrics; it is nil when the exporter could
// not be created, in which case metrics are still recorded but not exposed.
func Setup(ctx context.Context, serviceName string, logger *slog.Logger) (func(context.Context) error, http.Handler, *Metrics, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	var handler http.Handler
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	promExporter, err := prometheus.New()
	if err != nil {
		logger.Warn("failed to initialize prometheus exporter", slog.String("error", err.Error()))
	} else {
		opts = append(opts, sdkmetric.WithReader(promExporter))
		handler = promhttp.Handler()
	}

	provider := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(provider)

	m, err := NewMetrics(provider.Meter(meterName))
	if err != nil {
		return nil, nil, nil, err
	}

	logger.Info("telemetry initialized", slog.String("exporter", "prometheus"), slog.Bool("exposed", handler != nil))
	return provider.Shutdown, handler, m, nil
}

// Metrics holds the pipeline instruments. A nil *Metrics records nothing.
type Metrics struct {
	runs          metric.Int64Counter
	chapters      metric.Int64Counter
	attempts      metric.Int64Counter
	stageDuration metric.Float64Histogram
	audioSeconds  metric.Float64Histogram
}

// NewMetrics creates the pipeline instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	if m.runs, err = meter.Int64Counter("audiobook.runs",
		metric.WithDescription("Completed generation runs by artifact status")); err != nil {
		return nil, err
	}
	if m.chapters, err = meter.Int64Counter("audiobook.chapters",
		metric.WithDescription("Synthesized chapters by outcome")); err != nil {
		return nil, err
	}
	if m.attempts, err = meter.Int64Counter("audiobook.speech.attempts",
		metric.WithDescription("Speech synthesis calls by outcome")); err != nil {
		return nil, err
	}
	if m.stageDuration, err = meter.Float64Histogram("audiobook.stage.duration",
		metric.WithDescription("Time spent in each pipeline stage"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if m.audioSeconds, err = meter.Float64Histogram("audiobook.audio.estimated_duration",
		metric.WithDescription("Estimated narration length of produced artifacts"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordRun counts a finished run and its estimated narration length.
func (m *Metrics) RecordRun(ctx context.Context, status string, estimatedSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("status", status))
	m.runs.Add(ctx, 1, attrs)
	if estimatedSeconds > 0 {
		m.audioSeconds.Record(ctx, estimatedSeconds, attrs)
	}
}

// RecordChapter counts a chapter outcome ("ok" or a failure kind).
func (m *Metrics) RecordChapter(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.chapters.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordAttempt counts one speech call against a provider.
func (m *Metrics) RecordAttempt(ctx context.Context, provider, outcome string) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}

// RecordStage records how long a pipeline stage took.
func (m *Metrics) RecordStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}
