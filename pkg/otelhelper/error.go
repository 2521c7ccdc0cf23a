package otelhelper

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks span as failed and adds a workflow.error event carrying attrs and
// the concrete type of err.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("workflow.error", trace.WithAttributes(
		append(attrs, attribute.String(ErrorTypeKey, fmt.Sprintf("%T", err)))...,
	))
}
