package observability

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics initializes the OpenTelemetry metrics provider with a Prometheus exporter.
// It returns the HTTP handler for the /metrics endpoint and a shutdown function.
// The shutdown function should be called on application exit for graceful cleanup.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.Handler(), provider.Shutdown, nil
}

// EngineMetrics bundles the counters the orchestration engine records.
// A nil *EngineMetrics is valid and records nothing, which keeps tests free
// of metric wiring.
type EngineMetrics struct {
	ticks            metric.Int64Counter
	taskFailures     metric.Int64Counter
	stageTransitions metric.Int64Counter
}

// NewEngineMetrics registers the engine's counters on the global meter.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter("releaseplane-engine")

	ticks, err := meter.Int64Counter("releaseplane.engine.ticks",
		metric.WithDescription("Number of orchestration ticks executed"))
	if err != nil {
		return nil, fmt.Errorf("failed to register tick counter: %w", err)
	}

	failures, err := meter.Int64Counter("releaseplane.engine.task_failures",
		metric.WithDescription("Number of release tasks that ended FAILED"))
	if err != nil {
		return nil, fmt.Errorf("failed to register task failure counter: %w", err)
	}

	transitions, err := meter.Int64Counter("releaseplane.engine.stage_transitions",
		metric.WithDescription("Number of stage transitions performed"))
	if err != nil {
		return nil, fmt.Errorf("failed to register stage transition counter: %w", err)
	}

	return &EngineMetrics{
		ticks:            ticks,
		taskFailures:     failures,
		stageTransitions: transitions,
	}, nil
}

// RecordTick increments the tick counter.
func (m *EngineMetrics) RecordTick(ctx context.Context) {
	if m == nil {
		return
	}
	m.ticks.Add(ctx, 1)
}

// RecordTaskFailure increments the task failure counter.
func (m *EngineMetrics) RecordTaskFailure(ctx context.Context, taskType string) {
	if m == nil {
		return
	}
	m.taskFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("task_type", taskType)))
}

// RecordStageTransition increments the stage transition counter.
func (m *EngineMetrics) RecordStageTransition(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	m.stageTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}
