package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/taskflow/pkg/metrics"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/suggest"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Suggestion generates candidate workflows from authoring hints.
type Suggestion struct {
	tracer trace.Tracer
	logger *slog.Logger
}

func NewSuggestion(tracer trace.Tracer, logger *slog.Logger) *Suggestion {
	if tracer == nil {
		tracer = otel.Tracer("taskflow/services")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Suggestion{
		tracer: tracer,
		logger: logger.With("module", "services.suggestion"),
	}
}

// Suggest returns a candidate graph for req. A candidate with blocking issues is
// still returned, together with a *GraphError wrapping ErrSuggestionRejected.
func (s *Suggestion) Suggest(
	ctx context.Context,
	req models.SuggestionRequest,
) (suggestion *models.Suggestion, err error) {
	start := time.Now()

	ctx, span := otelhelper.StartSpan(ctx, s.tracer, "workflow.suggest",
		attribute.Int("taskflow.suggestion.fields", len(req.Fields)),
		attribute.Bool("taskflow.suggestion.prompt", req.Prompt != nil && *req.Prompt != ""))

	defer func() {
		if err != nil {
			otelhelper.SetError(span, err)
		}

		span.End()
		metrics.RecordOperation(ctx, "suggest", err, time.Since(start))
	}()

	suggestion = suggest.Suggest(req)

	rejected := len(suggestion.Issues) > 0
	metrics.RecordSuggestion(ctx, rejected)
	metrics.RecordWarnings(ctx, "suggest", len(suggestion.Warnings))

	s.logger.DebugContext(ctx, "workflow suggested",
		"name", suggestion.Name, "statuses", len(suggestion.Statuses), "rejected", rejected)

	if rejected {
		return suggestion, newGraphError("suggest", suggestion.Issues, suggestion.Warnings, ErrSuggestionRejected)
	}

	return suggestion, nil
}
