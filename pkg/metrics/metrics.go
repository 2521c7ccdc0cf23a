// Package metrics exposes workflow engine counters through an OpenTelemetry meter
// backed by a Prometheus registry.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const meterName = "github.com/dukex/taskflow"

// Attribute keys shared by the instruments.
var (
	AttrOperation = attribute.Key("operation")
	AttrResult    = attribute.Key("result")
	AttrAction    = attribute.Key("action")
)

var (
	initOnce           sync.Once
	operationsCounter  metric.Int64Counter
	operationDuration  metric.Float64Histogram
	versionsCounter    metric.Int64Counter
	warningsCounter    metric.Int64Counter
	suggestionsCounter metric.Int64Counter
)

// InitMeterProvider installs a global MeterProvider exporting to a fresh Prometheus
// registry and returns the handler serving that registry.
func InitMeterProvider(ctx context.Context, serviceName string) (http.Handler, error) {
	if serviceName == "" {
		serviceName = "taskflow"
	}

	reg := prometheus.NewRegistry()

	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return nil, err
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true}), nil
}

// Meter returns the global meter for the engine.
//
//nolint:ireturn // metric.Meter is an interface by design of the otel API
func Meter() metric.Meter {
	return otel.Meter(meterName)
}

// Init creates the instruments. It runs once; call it after InitMeterProvider.
func Init() error {
	var err error

	initOnce.Do(func() {
		m := Meter()

		operationsCounter, err = m.Int64Counter("taskflow_workflow_operations_total",
			metric.WithDescription("Workflow engine operations by name and result"))
		if err != nil {
			return
		}

		operationDuration, err = m.Float64Histogram("taskflow_workflow_operation_duration_seconds",
			metric.WithDescription("Workflow engine operation latency"),
			metric.WithUnit("s"))
		if err != nil {
			return
		}

		versionsCounter, err = m.Int64Counter("taskflow_workflow_versions_total",
			metric.WithDescription("Workflow versions written, by audit action"))
		if err != nil {
			return
		}

		warningsCounter, err = m.Int64Counter("taskflow_graph_warnings_total",
			metric.WithDescription("Corrections applied by the graph normalizer"))
		if err != nil {
			return
		}

		suggestionsCounter, err = m.Int64Counter("taskflow_suggestions_total",
			metric.WithDescription("Generated workflow suggestions by result"))
	})

	return err
}

func result(err error) string {
	if err != nil {
		return "error"
	}

	return "ok"
}

// RecordOperation counts one engine operation and its latency.
func RecordOperation(ctx context.Context, operation string, err error, elapsed time.Duration) {
	attrs := metric.WithAttributes(AttrOperation.String(operation), AttrResult.String(result(err)))

	if operationsCounter != nil {
		operationsCounter.Add(ctx, 1, attrs)
	}

	if operationDuration != nil {
		operationDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// RecordVersion counts a written version. action is the audit action.
func RecordVersion(ctx context.Context, action string) {
	if versionsCounter == nil {
		return
	}

	versionsCounter.Add(ctx, 1, metric.WithAttributes(AttrAction.String(action)))
}

// RecordWarnings counts normalizer corrections reported for one operation.
func RecordWarnings(ctx context.Context, operation string, n int) {
	if warningsCounter == nil || n == 0 {
		return
	}

	warningsCounter.Add(ctx, int64(n), metric.WithAttributes(AttrOperation.String(operation)))
}

// RecordSuggestion counts a generated suggestion; rejected is true when the
// candidate carried blocking issues.
func RecordSuggestion(ctx context.Context, rejected bool) {
	if suggestionsCounter == nil {
		return
	}

	res := "accepted"
	if rejected {
		res = "rejected"
	}

	suggestionsCounter.Add(ctx, 1, metric.WithAttributes(AttrResult.String(res)))
}
