package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/taskflow/pkg/cache"
	"github.com/dukex/taskflow/pkg/eventbus"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/graph"
	"github.com/dukex/taskflow/pkg/metrics"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/otelhelper"
	"github.com/dukex/taskflow/pkg/persistence"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultActor stamps changes made without a caller identity.
const DefaultActor = "system"

// Workflow is the version manager. Every mutating call runs in exactly one
// persistence transaction; cache writes and events follow a successful commit and
// never fail the call.
type Workflow struct {
	persistence persistence.Persistence
	cache       cache.Cache
	publisher   eventbus.EventPublisher
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Workflow service.
type Option func(*Workflow)

// WithCache enables the snapshot cache.
func WithCache(c cache.Cache) Option {
	return func(w *Workflow) {
		if c != nil {
			w.cache = c
		}
	}
}

// WithPublisher publishes lifecycle events after each commit.
func WithPublisher(p eventbus.EventPublisher) Option {
	return func(w *Workflow) {
		w.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(w *Workflow) {
		if t != nil {
			w.tracer = t
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(persistence persistence.Persistence, opts ...Option) *Workflow {
	w := &Workflow{
		persistence: persistence,
		cache:       cache.Noop{},
		tracer:      otel.Tracer("taskflow/services"),
		logger:      slog.Default(),
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Microsecond)
		},
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.With("module", "services.workflow")

	return w
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create stores a new workflow at version 1.
func (w *Workflow) Create(
	ctx context.Context,
	actor string,
	input *models.WorkflowInput,
) (detail *models.WorkflowDetail, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.create", w.spanAttrs(actor, "", "")...)
	defer w.finish(ctx, span, "create", time.Now(), &err)

	return w.create(ctx, "create", actor, input, nil)
}

func (w *Workflow) create(
	ctx context.Context,
	op string,
	actor string,
	input *models.WorkflowInput,
	duplicatedOf *string,
) (*models.WorkflowDetail, error) {
	if input == nil {
		return nil, NewValidationError(op, "MISSING_INPUT", "workflow input is required")
	}

	spaceID := strings.TrimSpace(input.SpaceID)
	if spaceID == "" {
		return nil, NewValidationError(op, "MISSING_SPACE", "space id is required")
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, NewValidationError(op, "MISSING_NAME", "workflow name is required")
	}

	if len(input.Statuses) == 0 {
		return nil, newGraphError(op, []models.Issue{{
			Code:    graph.CodeNoStatuses,
			Path:    "statuses",
			Message: "A workflow needs at least one status.",
		}}, nil, ErrStatusesRequired)
	}

	result := graph.Normalize(models.StatusInputs(input.Statuses), models.TransitionInputs(input.Transitions))
	metrics.RecordWarnings(ctx, op, len(result.Warnings))

	if !result.Valid() {
		return nil, newGraphError(op, result.Issues, result.Warnings, ErrInvalidGraph)
	}

	actor = actorOf(actor)
	now := w.now()

	workflow := &models.Workflow{
		ID:          newID(),
		SpaceID:     spaceID,
		Name:        name,
		Description: input.Description,
		IsDefault:   input.IsDefault,
		AIOptimized: input.AIOptimized,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		CreatedBy:   actor,
		UpdatedBy:   actor,
	}

	var (
		snapshot *cache.Snapshot
		links    []string
	)

	err := w.persistence.WithTx(ctx, func(tx persistence.Tx) error {
		if workflow.IsDefault {
			if err := tx.ClearDefault(ctx, spaceID, workflow.ID); err != nil {
				return fmt.Errorf("failed to clear default workflow: %w", err)
			}
		}

		if err := tx.InsertWorkflow(ctx, workflow); err != nil {
			return fmt.Errorf("failed to create workflow: %w", err)
		}

		var err error

		snapshot, err = writeSnapshot(ctx, tx, workflow.ID, workflow.Version, result.Statuses, result.Transitions)
		if err != nil {
			return err
		}

		links, _, err = reconcileTemplateLinks(ctx, tx, workflow.ID, input.LinkedTemplateIDs)
		if err != nil {
			return err
		}

		return tx.AppendAudit(ctx, &models.WorkflowAudit{
			ID:         newID(),
			WorkflowID: workflow.ID,
			Action:     models.AuditActionCreated,
			Actor:      actor,
			Version:    workflow.Version,
			CreatedAt:  now,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordVersion(ctx, string(models.AuditActionCreated))
	w.remember(ctx, workflow.ID, workflow.Version, snapshot)

	event := events.WorkflowCreated{
		BaseEvent:    events.NewBaseEvent(events.WorkflowCreatedEvent, spaceID, workflow.ID, actor),
		Name:         workflow.Name,
		Version:      workflow.Version,
		IsDefault:    workflow.IsDefault,
		DuplicatedOf: duplicatedOf,
	}
	w.publish(ctx, workflow.ID, event)

	w.logger.InfoContext(ctx, "workflow created",
		"workflow_id", workflow.ID, "space_id", spaceID, "warnings", len(result.Warnings))

	return newDetail(workflow, links, snapshot, result.Warnings), nil
}

// Update applies a partial change. Metadata changes keep the version; supplying
// statuses, transitions or removals writes the merged graph as a new version.
func (w *Workflow) Update(
	ctx context.Context,
	actor string,
	spaceID string,
	id string,
	input *models.WorkflowUpdateInput,
) (detail *models.WorkflowDetail, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.update", w.spanAttrs(actor, spaceID, id)...)
	defer w.finish(ctx, span, "update", time.Now(), &err)

	if input == nil {
		return nil, NewValidationError("update", "MISSING_INPUT", "update input is required")
	}

	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, NewValidationError("update", "MISSING_NAME", "workflow name cannot be blank")
	}

	if !validID(id) {
		return nil, persistence.NewWorkflowError("Update", id, persistence.ErrWorkflowNotFound)
	}

	actor = actorOf(actor)

	var (
		updated         *models.Workflow
		previousVersion int
		snapshot        *cache.Snapshot
		fresh           bool
		links           []string
		changed         []string
		warnings        []string
	)

	err = w.persistence.WithTx(ctx, func(tx persistence.Tx) error {
		current, err := tx.LockWorkflow(ctx, spaceID, id)
		if err != nil {
			return err
		}

		previousVersion = current.Version
		updated = current.Clone()
		changed = applyMetadata(updated, input)

		snapshot, fresh, err = w.readSnapshot(ctx, tx, id, current.Version)
		if err != nil {
			return err
		}

		if input.Structural() {
			statuses := mergeStatuses(snapshot.Statuses, input.Statuses, input.RemoveStatuses)
			if len(statuses) == 0 {
				return newGraphError("update", []models.Issue{{
					Code:    graph.CodeNoStatuses,
					Path:    "statuses",
					Message: "A workflow needs at least one status.",
				}}, nil, ErrStatusesRequired)
			}

			transitions := mergeTransitions(snapshot.Transitions, input.Transitions, input.RemoveTransitions)

			result := graph.Normalize(statuses, transitions)
			warnings = result.Warnings
			metrics.RecordWarnings(ctx, "update", len(warnings))

			if !result.Valid() {
				return newGraphError("update", result.Issues, result.Warnings, ErrInvalidGraph)
			}

			updated.Version = current.Version + 1

			snapshot, err = writeSnapshot(ctx, tx, id, updated.Version, result.Statuses, result.Transitions)
			if err != nil {
				return err
			}

			fresh = true
			changed = append(changed, structuralFields(input)...)
		}

		if input.LinkedTemplateIDs != nil {
			var linksChanged bool

			links, linksChanged, err = reconcileTemplateLinks(ctx, tx, id, *input.LinkedTemplateIDs)
			if err != nil {
				return err
			}

			if linksChanged {
				changed = append(changed, "linked_template_ids")
			}
		} else {
			links, err = tx.LinkedTemplateIDs(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to read template links: %w", err)
			}
		}

		if len(changed) == 0 {
			return nil
		}

		if updated.IsDefault && !current.IsDefault {
			if err := tx.ClearDefault(ctx, spaceID, id); err != nil {
				return fmt.Errorf("failed to clear default workflow: %w", err)
			}
		}

		updated.UpdatedAt = w.now()
		updated.UpdatedBy = actor

		if err := tx.UpdateWorkflow(ctx, updated); err != nil {
			return fmt.Errorf("failed to update workflow: %w", err)
		}

		if updated.Version == current.Version {
			return nil
		}

		return tx.AppendAudit(ctx, &models.WorkflowAudit{
			ID:            newID(),
			WorkflowID:    id,
			Action:        models.AuditActionUpdated,
			Actor:         actor,
			Version:       updated.Version,
			ChangedFields: changed,
			CreatedAt:     updated.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	if fresh {
		w.remember(ctx, id, updated.Version, snapshot)
	}

	switch {
	case updated.Version != previousVersion:
		metrics.RecordVersion(ctx, string(models.AuditActionUpdated))
		w.publish(ctx, id, events.WorkflowVersionCreated{
			BaseEvent:       events.NewBaseEvent(events.WorkflowVersionCreatedEvent, spaceID, id, actor),
			Version:         updated.Version,
			PreviousVersion: previousVersion,
			ChangedFields:   changed,
		})
	case len(changed) > 0:
		w.publish(ctx, id, events.WorkflowUpdated{
			BaseEvent:     events.NewBaseEvent(events.WorkflowUpdatedEvent, spaceID, id, actor),
			Version:       updated.Version,
			ChangedFields: changed,
		})
	}

	return newDetail(updated, links, snapshot, warnings), nil
}

// applyMetadata copies the supplied metadata onto workflow and returns the names of
// the fields that actually changed.
func applyMetadata(workflow *models.Workflow, input *models.WorkflowUpdateInput) []string {
	var changed []string

	if input.Name != nil {
		if name := strings.TrimSpace(*input.Name); name != workflow.Name {
			workflow.Name = name
			changed = append(changed, "name")
		}
	}

	if input.Description != nil && (workflow.Description == nil || *workflow.Description != *input.Description) {
		description := *input.Description
		workflow.Description = &description
		changed = append(changed, "description")
	}

	if input.IsDefault != nil && *input.IsDefault != workflow.IsDefault {
		workflow.IsDefault = *input.IsDefault
		changed = append(changed, "is_default")
	}

	if input.AIOptimized != nil && *input.AIOptimized != workflow.AIOptimized {
		workflow.AIOptimized = *input.AIOptimized
		changed = append(changed, "ai_optimized")
	}

	return changed
}

func structuralFields(input *models.WorkflowUpdateInput) []string {
	var fields []string

	if len(input.Statuses) > 0 || len(input.RemoveStatuses) > 0 {
		fields = append(fields, "statuses")
	}

	if len(input.Transitions) > 0 || len(input.RemoveTransitions) > 0 {
		fields = append(fields, "transitions")
	}

	return fields
}

// Delete removes a workflow and its whole history. It fails with ErrWorkflowInUse
// while any template or task references it.
func (w *Workflow) Delete(ctx context.Context, actor, spaceID, id string) (err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.delete", w.spanAttrs(actor, spaceID, id)...)
	defer w.finish(ctx, span, "delete", time.Now(), &err)

	if !validID(id) {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	var version int

	err = w.persistence.WithTx(ctx, func(tx persistence.Tx) error {
		workflow, err := tx.LockWorkflow(ctx, spaceID, id)
		if err != nil {
			return err
		}

		version = workflow.Version

		refs, err := tx.CountReferences(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to count workflow references: %w", err)
		}

		if refs.InUse() {
			return &ServiceError{
				Op:   "delete",
				Code: "WORKFLOW_IN_USE",
				Message: fmt.Sprintf("workflow %s is referenced by %d template(s) and %d task(s)",
					id, refs.Templates, refs.Tasks),
				Err: ErrWorkflowInUse,
			}
		}

		if err := tx.DeleteWorkflow(ctx, spaceID, id); err != nil {
			return fmt.Errorf("failed to delete workflow: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	if err := w.cache.Purge(ctx, id); err != nil {
		w.logger.WarnContext(ctx, "snapshot cache purge failed", "workflow_id", id, "error", err)
	}

	w.publish(ctx, id, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, spaceID, id, actorOf(actor)),
		Version:   version,
	})

	return nil
}

// Duplicate creates a new version-1 workflow from the current graph of id. The copy
// is never the default and takes no template links.
func (w *Workflow) Duplicate(
	ctx context.Context,
	actor string,
	spaceID string,
	id string,
) (detail *models.WorkflowDetail, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.duplicate", w.spanAttrs(actor, spaceID, id)...)
	defer w.finish(ctx, span, "duplicate", time.Now(), &err)

	source, snapshot, _, err := w.load(ctx, "Duplicate", spaceID, id, 0)
	if err != nil {
		return nil, err
	}

	input := &models.WorkflowInput{
		SpaceID:     source.SpaceID,
		Name:        source.Name + " Copy",
		Description: source.Description,
		AIOptimized: source.AIOptimized,
		Statuses:    statusInputs(snapshot.Statuses),
		Transitions: transitionInputs(snapshot.Transitions),
	}

	return w.create(ctx, "duplicate", actor, input, &source.ID)
}

// Get returns the current version of a workflow.
func (w *Workflow) Get(ctx context.Context, spaceID, id string) (detail *models.WorkflowDetail, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.get", w.spanAttrs("", spaceID, id)...)
	defer w.finish(ctx, span, "get", time.Now(), &err)

	workflow, snapshot, links, err := w.load(ctx, "Get", spaceID, id, 0)
	if err != nil {
		return nil, err
	}

	return newDetail(workflow, links, snapshot, nil), nil
}

// GetVersion returns the graph a workflow had at version. The workflow fields are
// those of the current record with Version set to the requested one.
func (w *Workflow) GetVersion(
	ctx context.Context,
	spaceID string,
	id string,
	version int,
) (detail *models.WorkflowDetail, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.get_version", w.spanAttrs("", spaceID, id)...)
	span.SetAttributes(attribute.Int(otelhelper.WorkflowVersionKey, version))
	defer w.finish(ctx, span, "get_version", time.Now(), &err)

	if version < 1 {
		return nil, persistence.NewVersionError("GetVersion", id, version, persistence.ErrVersionNotFound)
	}

	workflow, snapshot, links, err := w.load(ctx, "GetVersion", spaceID, id, version)
	if err != nil {
		return nil, err
	}

	workflow.Version = version

	return newDetail(workflow, links, snapshot, nil), nil
}

// load reads a workflow, its links and the snapshot of version, or of the current
// version when version is 0.
func (w *Workflow) load(
	ctx context.Context,
	op string,
	spaceID string,
	id string,
	version int,
) (*models.Workflow, *cache.Snapshot, []string, error) {
	if !validID(id) {
		return nil, nil, nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
	}

	var (
		workflow *models.Workflow
		snapshot *cache.Snapshot
		fresh    bool
		links    []string
	)

	err := w.persistence.WithTx(ctx, func(tx persistence.Tx) error {
		var err error

		workflow, err = tx.WorkflowByID(ctx, spaceID, id)
		if err != nil {
			return err
		}

		if version == 0 {
			version = workflow.Version
		}

		if version > workflow.Version {
			return persistence.NewVersionError(op, id, version, persistence.ErrVersionNotFound)
		}

		snapshot, fresh, err = w.readSnapshot(ctx, tx, id, version)
		if err != nil {
			return err
		}

		links, err = tx.LinkedTemplateIDs(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read template links: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}

	if fresh {
		w.remember(ctx, id, version, snapshot)
	}

	return workflow, snapshot, links, nil
}

// List returns the summaries of every workflow in a space, oldest first.
func (w *Workflow) List(ctx context.Context, spaceID string) (summaries []*models.WorkflowSummary, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.list", w.spanAttrs("", spaceID, "")...)
	defer w.finish(ctx, span, "list", time.Now(), &err)

	err = w.persistence.WithTx(ctx, func(tx persistence.Tx) error {
		workflows, err := tx.Workflows(ctx, spaceID)
		if err != nil {
			return fmt.Errorf("failed to list workflows: %w", err)
		}

		summaries = make([]*models.WorkflowSummary, 0, len(workflows))

		for _, workflow := range workflows {
			links, err := tx.LinkedTemplateIDs(ctx, workflow.ID)
			if err != nil {
				return fmt.Errorf("failed to read template links: %w", err)
			}

			summaries = append(summaries, newSummary(workflow, links))
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return summaries, nil
}

// History returns the audit trail of a workflow, oldest first.
func (w *Workflow) History(ctx context.Context, spaceID, id string) (audits []*models.WorkflowAudit, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.history", w.spanAttrs("", spaceID, id)...)
	defer w.finish(ctx, span, "history", time.Now(), &err)

	if !validID(id) {
		return nil, persistence.NewWorkflowError("History", id, persistence.ErrWorkflowNotFound)
	}

	err = w.persistence.WithTx(ctx, func(tx persistence.Tx) error {
		if _, err := tx.WorkflowByID(ctx, spaceID, id); err != nil {
			return err
		}

		audits, err = tx.Audits(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read audit trail: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return audits, nil
}

// Restore writes the graph of an older version as a new current version.
func (w *Workflow) Restore(
	ctx context.Context,
	actor string,
	spaceID string,
	id string,
	version int,
) (detail *models.WorkflowDetail, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.restore", w.spanAttrs(actor, spaceID, id)...)
	span.SetAttributes(attribute.Int(otelhelper.WorkflowVersionKey, version))
	defer w.finish(ctx, span, "restore", time.Now(), &err)

	if !validID(id) {
		return nil, persistence.NewWorkflowError("Restore", id, persistence.ErrWorkflowNotFound)
	}

	actor = actorOf(actor)

	var (
		updated         *models.Workflow
		previousVersion int
		snapshot        *cache.Snapshot
		links           []string
		warnings        []string
	)

	changed := []string{"statuses", "transitions"}

	err = w.persistence.WithTx(ctx, func(tx persistence.Tx) error {
		current, err := tx.LockWorkflow(ctx, spaceID, id)
		if err != nil {
			return err
		}

		if version < 1 || version > current.Version {
			return persistence.NewVersionError("Restore", id, version, persistence.ErrVersionNotFound)
		}

		if version == current.Version {
			return NewValidationError("restore", "ALREADY_CURRENT",
				fmt.Sprintf("version %d is already the current version", version))
		}

		source, _, err := w.readSnapshot(ctx, tx, id, version)
		if err != nil {
			return err
		}

		result := graph.Normalize(source.Statuses, source.Transitions)
		warnings = result.Warnings

		if !result.Valid() {
			return newGraphError("restore", result.Issues, result.Warnings, ErrInvalidGraph)
		}

		previousVersion = current.Version
		updated = current.Clone()
		updated.Version = current.Version + 1
		updated.UpdatedAt = w.now()
		updated.UpdatedBy = actor

		snapshot, err = writeSnapshot(ctx, tx, id, updated.Version, result.Statuses, result.Transitions)
		if err != nil {
			return err
		}

		if err := tx.UpdateWorkflow(ctx, updated); err != nil {
			return fmt.Errorf("failed to update workflow: %w", err)
		}

		links, err = tx.LinkedTemplateIDs(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to read template links: %w", err)
		}

		return tx.AppendAudit(ctx, &models.WorkflowAudit{
			ID:            newID(),
			WorkflowID:    id,
			Action:        models.AuditActionRestored,
			Actor:         actor,
			Version:       updated.Version,
			ChangedFields: changed,
			CreatedAt:     updated.UpdatedAt,
		})
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordVersion(ctx, string(models.AuditActionRestored))
	w.remember(ctx, id, updated.Version, snapshot)

	restoredFrom := version
	w.publish(ctx, id, events.WorkflowVersionCreated{
		BaseEvent:       events.NewBaseEvent(events.WorkflowVersionCreatedEvent, spaceID, id, actor),
		Version:         updated.Version,
		PreviousVersion: previousVersion,
		RestoredFrom:    &restoredFrom,
		ChangedFields:   changed,
	})

	return newDetail(updated, links, snapshot, warnings), nil
}

// AssignTask pins taskID to the current version of the workflow, replacing any
// earlier pin of the same task.
func (w *Workflow) AssignTask(
	ctx context.Context,
	actor string,
	spaceID string,
	id string,
	taskID string,
) (assignment *models.TaskAssignment, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.assign_task", w.spanAttrs(actor, spaceID, id)...)
	span.SetAttributes(attribute.String(otelhelper.TaskIDKey, taskID))
	defer w.finish(ctx, span, "assign_task", time.Now(), &err)

	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, NewValidationError("assign_task", "MISSING_TASK", "task id is required")
	}

	if !validID(id) {
		return nil, persistence.NewWorkflowError("AssignTask", id, persistence.ErrWorkflowNotFound)
	}

	err = w.persistence.WithTx(ctx, func(tx persistence.Tx) error {
		workflow, err := tx.WorkflowByID(ctx, spaceID, id)
		if err != nil {
			return err
		}

		assignment = &models.TaskAssignment{
			TaskID:     taskID,
			WorkflowID: workflow.ID,
			Version:    workflow.Version,
			AssignedAt: w.now(),
		}

		return tx.AssignTask(ctx, assignment)
	})
	if err != nil {
		return nil, err
	}

	w.publish(ctx, id, events.TaskAssigned{
		BaseEvent: events.NewBaseEvent(events.TaskAssignedEvent, spaceID, id, actorOf(actor)),
		TaskID:    taskID,
		Version:   assignment.Version,
	})

	return assignment, nil
}

// ReleaseTask removes the pin of taskID and returns it.
func (w *Workflow) ReleaseTask(ctx context.Context, actor, taskID string) (assignment *models.TaskAssignment, err error) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "workflow.release_task",
		attribute.String(otelhelper.ActorKey, actorOf(actor)),
		attribute.String(otelhelper.TaskIDKey, taskID))
	defer w.finish(ctx, span, "release_task", time.Now(), &err)

	err = w.persistence.WithTx(ctx, func(tx persistence.Tx) error {
		assignment, err = tx.ReleaseTask(ctx, taskID)

		return err
	})
	if err != nil {
		return nil, err
	}

	w.publish(ctx, assignment.WorkflowID, events.TaskReleased{
		BaseEvent: events.NewBaseEvent(events.TaskReleasedEvent, "", assignment.WorkflowID, actorOf(actor)),
		TaskID:    taskID,
		Version:   assignment.Version,
	})

	return assignment, nil
}

func (w *Workflow) publish(ctx context.Context, key string, event eventbus.Event) {
	if w.publisher == nil {
		return
	}

	if err := w.publisher.Publish(ctx, key, event); err != nil {
		w.logger.WarnContext(ctx, "failed to publish workflow event",
			"event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}

func (w *Workflow) spanAttrs(actor, spaceID, id string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)

	if actor != "" {
		attrs = append(attrs, attribute.String(otelhelper.ActorKey, actor))
	}

	if spaceID != "" {
		attrs = append(attrs, attribute.String(otelhelper.SpaceIDKey, spaceID))
	}

	if id != "" {
		attrs = append(attrs, attribute.String(otelhelper.WorkflowIDKey, id))
	}

	return attrs
}

func (w *Workflow) finish(ctx context.Context, span trace.Span, op string, start time.Time, errp *error) {
	if *errp != nil {
		otelhelper.SetError(span, *errp)
	}

	span.End()
	metrics.RecordOperation(ctx, op, *errp, time.Since(start))
}

func actorOf(actor string) string {
	if actor = strings.TrimSpace(actor); actor == "" {
		return DefaultActor
	}

	return actor
}
