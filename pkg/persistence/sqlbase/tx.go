package sqlbase

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
)

const workflowColumns = `
			id
		  , space_id
		  , name
		  , description
		  , is_default
		  , ai_optimized
		  , version
		  , created_at
		  , updated_at
		  , created_by
		  , updated_by`

// Tx implements persistence.Tx on top of a database transaction.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
	logger  *slog.Logger
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.dialect.Rebind(query), args...)
}

func (t *Tx) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		t.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func (t *Tx) WorkflowByID(ctx context.Context, spaceID, id string) (*models.Workflow, error) {
	return t.workflowByID(ctx, "Get", spaceID, id, "")
}

func (t *Tx) LockWorkflow(ctx context.Context, spaceID, id string) (*models.Workflow, error) {
	return t.workflowByID(ctx, "Lock", spaceID, id, t.dialect.LockClause)
}

func (t *Tx) workflowByID(ctx context.Context, op, spaceID, id, lock string) (*models.Workflow, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE id = ? AND space_id = ?` + lock

	workflow, err := scanWorkflow(t.queryRow(ctx, query, id, spaceID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError(op, id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (t *Tx) Workflows(ctx context.Context, spaceID string) ([]*models.Workflow, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE space_id = ?
		ORDER BY created_at ASC, id ASC`

	rows, err := t.query(ctx, query, spaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer t.closeRows(ctx, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (t *Tx) InsertWorkflow(ctx context.Context, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflows (` + workflowColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.exec(ctx, query,
		workflow.ID,
		workflow.SpaceID,
		workflow.Name,
		nullable(workflow.Description),
		workflow.IsDefault,
		workflow.AIOptimized,
		workflow.Version,
		t.dialect.time(workflow.CreatedAt),
		t.dialect.time(workflow.UpdatedAt),
		workflow.CreatedBy,
		workflow.UpdatedBy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

func (t *Tx) UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error {
	query := `
		UPDATE workflows SET
			name = ?
		  , description = ?
		  , is_default = ?
		  , ai_optimized = ?
		  , version = ?
		  , updated_at = ?
		  , updated_by = ?
		WHERE id = ? AND space_id = ?`

	result, err := t.exec(ctx, query,
		workflow.Name,
		nullable(workflow.Description),
		workflow.IsDefault,
		workflow.AIOptimized,
		workflow.Version,
		t.dialect.time(workflow.UpdatedAt),
		workflow.UpdatedBy,
		workflow.ID,
		workflow.SpaceID,
	)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	return requireOneRow(result, "Update", workflow.ID)
}

func (t *Tx) ClearDefault(ctx context.Context, spaceID, exceptID string) error {
	_, err := t.exec(ctx,
		`UPDATE workflows SET is_default = ? WHERE space_id = ? AND id <> ? AND is_default = ?`,
		false, spaceID, exceptID, true)
	if err != nil {
		return fmt.Errorf("failed to clear default workflow: %w", err)
	}

	return nil
}

// DeleteWorkflow relies on ON DELETE CASCADE for snapshots and audits.
func (t *Tx) DeleteWorkflow(ctx context.Context, spaceID, id string) error {
	result, err := t.exec(ctx, `DELETE FROM workflows WHERE id = ? AND space_id = ?`, id, spaceID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return requireOneRow(result, "Delete", id)
}

func (t *Tx) InsertStatus(ctx context.Context, workflowID string, version int, status *models.WorkflowStatus) error {
	query := `
		INSERT INTO workflow_statuses (
			id
		  , workflow_id
		  , version
		  , status_key
		  , name
		  , category
		  , color
		  , is_initial
		  , is_final
		  , sort_order
		  , visibility_rules
		  , field_lock_rules
		  , status_ref_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := t.exec(ctx, query,
		status.ID,
		workflowID,
		version,
		status.Key,
		status.Name,
		string(status.Category),
		nullable(status.Color),
		status.IsInitial,
		status.IsFinal,
		status.Order,
		payload(status.VisibilityRules),
		payload(status.FieldLockRules),
		nullable(status.StatusRefID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert status %s: %w", status.Key, err)
	}

	return nil
}

func (t *Tx) InsertTransition(ctx context.Context, workflowID string, version int, transition *models.WorkflowTransition) error {
	query := `
		INSERT INTO workflow_transitions (
			id
		  , workflow_id
		  , version
		  , transition_key
		  , name
		  , from_id
		  , to_id
		  , from_key
		  , to_key
		  , sort_order
		  , ui_trigger
		  , conditions
		  , validators
		  , post_functions
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var trigger any
	if transition.UITrigger != nil {
		trigger = string(*transition.UITrigger)
	}

	_, err := t.exec(ctx, query,
		transition.ID,
		workflowID,
		version,
		nullable(transition.Key),
		transition.Name,
		transition.FromID,
		transition.ToID,
		transition.FromKey,
		transition.ToKey,
		transition.Order,
		trigger,
		payload(transition.Conditions),
		payload(transition.Validators),
		payload(transition.PostFunctions),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition %s -> %s: %w", transition.FromKey, transition.ToKey, err)
	}

	return nil
}

func (t *Tx) Statuses(ctx context.Context, workflowID string, version int) ([]*models.WorkflowStatus, error) {
	query := `
		SELECT
			id
		  , status_key
		  , name
		  , category
		  , color
		  , is_initial
		  , is_final
		  , sort_order
		  , visibility_rules
		  , field_lock_rules
		  , status_ref_id
		FROM workflow_statuses
		WHERE workflow_id = ? AND version = ?
		ORDER BY sort_order ASC`

	rows, err := t.query(ctx, query, workflowID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query statuses: %w", err)
	}

	defer t.closeRows(ctx, rows)

	statuses := make([]*models.WorkflowStatus, 0)

	for rows.Next() {
		var (
			status                          models.WorkflowStatus
			category                        string
			color, visibility, locks, refID sql.NullString
		)

		err := rows.Scan(
			&status.ID,
			&status.Key,
			&status.Name,
			&category,
			&color,
			&status.IsInitial,
			&status.IsFinal,
			&status.Order,
			&visibility,
			&locks,
			&refID,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status: %w", err)
		}

		status.Category = models.Category(category)
		status.Color = stringOf(color)
		status.VisibilityRules = rawOf(visibility)
		status.FieldLockRules = rawOf(locks)
		status.StatusRefID = stringOf(refID)

		statuses = append(statuses, &status)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating statuses: %w", err)
	}

	return statuses, nil
}

func (t *Tx) Transitions(ctx context.Context, workflowID string, version int) ([]*models.WorkflowTransition, error) {
	query := `
		SELECT
			id
		  , transition_key
		  , name
		  , from_id
		  , to_id
		  , from_key
		  , to_key
		  , sort_order
		  , ui_trigger
		  , conditions
		  , validators
		  , post_functions
		FROM workflow_transitions
		WHERE workflow_id = ? AND version = ?
		ORDER BY sort_order ASC`

	rows, err := t.query(ctx, query, workflowID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}

	defer t.closeRows(ctx, rows)

	transitions := make([]*models.WorkflowTransition, 0)

	for rows.Next() {
		var (
			transition                                 models.WorkflowTransition
			key, trigger, conditions, validators, post sql.NullString
		)

		err := rows.Scan(
			&transition.ID,
			&key,
			&transition.Name,
			&transition.FromID,
			&transition.ToID,
			&transition.FromKey,
			&transition.ToKey,
			&transition.Order,
			&trigger,
			&conditions,
			&validators,
			&post,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}

		transition.Key = stringOf(key)

		if trigger.Valid {
			ui := models.UITrigger(trigger.String)
			transition.UITrigger = &ui
		}

		transition.Conditions = rawOf(conditions)
		transition.Validators = rawOf(validators)
		transition.PostFunctions = rawOf(post)

		transitions = append(transitions, &transition)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating transitions: %w", err)
	}

	return transitions, nil
}

func (t *Tx) AppendAudit(ctx context.Context, audit *models.WorkflowAudit) error {
	fields, err := json.Marshal(audit.ChangedFields)
	if err != nil {
		return fmt.Errorf("failed to marshal changed fields: %w", err)
	}

	query := `
		INSERT INTO workflow_audits (
			id
		  , workflow_id
		  , action
		  , actor
		  , version
		  , changed_fields
		  , created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = t.exec(ctx, query,
		audit.ID,
		audit.WorkflowID,
		string(audit.Action),
		audit.Actor,
		audit.Version,
		string(fields),
		t.dialect.time(audit.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}

	return nil
}

func (t *Tx) Audits(ctx context.Context, workflowID string) ([]*models.WorkflowAudit, error) {
	query := `
		SELECT
			id
		  , workflow_id
		  , action
		  , actor
		  , version
		  , changed_fields
		  , created_at
		FROM workflow_audits
		WHERE workflow_id = ?
		ORDER BY version ASC, created_at ASC`

	rows, err := t.query(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}

	defer t.closeRows(ctx, rows)

	audits := make([]*models.WorkflowAudit, 0)

	for rows.Next() {
		var (
			audit     models.WorkflowAudit
			action    string
			fields    sql.NullString
			createdAt timestamp
		)

		err := rows.Scan(&audit.ID, &audit.WorkflowID, &action, &audit.Actor, &audit.Version, &fields, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		audit.Action = models.AuditAction(action)
		audit.CreatedAt = createdAt.Time

		if fields.Valid && fields.String != "" {
			err = json.Unmarshal([]byte(fields.String), &audit.ChangedFields)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal changed fields: %w", err)
			}
		}

		audits = append(audits, &audit)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}

	return audits, nil
}

func (t *Tx) LinkedTemplateIDs(ctx context.Context, workflowID string) ([]string, error) {
	rows, err := t.query(ctx,
		`SELECT template_id FROM workflow_template_links WHERE workflow_id = ? ORDER BY template_id ASC`,
		workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query template links: %w", err)
	}

	defer t.closeRows(ctx, rows)

	ids := make([]string, 0)

	for rows.Next() {
		var id string

		err := rows.Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template link: %w", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating template links: %w", err)
	}

	return ids, nil
}

func (t *Tx) LinkTemplate(ctx context.Context, templateID, workflowID string) error {
	_, err := t.exec(ctx, `
		INSERT INTO workflow_template_links (template_id, workflow_id)
		VALUES (?, ?)
		ON CONFLICT (template_id) DO UPDATE SET workflow_id = excluded.workflow_id`,
		templateID, workflowID)
	if err != nil {
		return fmt.Errorf("failed to link template %s: %w", templateID, err)
	}

	return nil
}

func (t *Tx) UnlinkTemplate(ctx context.Context, templateID string) error {
	_, err := t.exec(ctx, `DELETE FROM workflow_template_links WHERE template_id = ?`, templateID)
	if err != nil {
		return fmt.Errorf("failed to unlink template %s: %w", templateID, err)
	}

	return nil
}

func (t *Tx) AssignTask(ctx context.Context, assignment *models.TaskAssignment) error {
	_, err := t.exec(ctx, `
		INSERT INTO workflow_task_assignments (task_id, workflow_id, version, assigned_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (task_id) DO UPDATE SET
			workflow_id = excluded.workflow_id
		  , version = excluded.version
		  , assigned_at = excluded.assigned_at`,
		assignment.TaskID, assignment.WorkflowID, assignment.Version, t.dialect.time(assignment.AssignedAt))
	if err != nil {
		return fmt.Errorf("failed to assign task %s: %w", assignment.TaskID, err)
	}

	return nil
}

func (t *Tx) ReleaseTask(ctx context.Context, taskID string) (*models.TaskAssignment, error) {
	var (
		assignment = models.TaskAssignment{TaskID: taskID}
		assignedAt timestamp
	)

	err := t.queryRow(ctx,
		`SELECT workflow_id, version, assigned_at FROM workflow_task_assignments WHERE task_id = ?`+t.dialect.LockClause,
		taskID).Scan(&assignment.WorkflowID, &assignment.Version, &assignedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &persistence.TaskError{Op: "Release", TaskID: taskID, Err: persistence.ErrTaskNotAssigned}
		}

		return nil, fmt.Errorf("failed to read task assignment: %w", err)
	}

	assignment.AssignedAt = assignedAt.Time

	_, err = t.exec(ctx, `DELETE FROM workflow_task_assignments WHERE task_id = ?`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to release task %s: %w", taskID, err)
	}

	return &assignment, nil
}

func (t *Tx) CountReferences(ctx context.Context, workflowID string) (models.ReferenceCount, error) {
	var count models.ReferenceCount

	err := t.queryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM workflow_template_links WHERE workflow_id = ?)
		  , (SELECT COUNT(*) FROM workflow_task_assignments WHERE workflow_id = ?)`,
		workflowID, workflowID).Scan(&count.Templates, &count.Tasks)
	if err != nil {
		return count, fmt.Errorf("failed to count references: %w", err)
	}

	return count, nil
}

func scanWorkflow(row scanner) (*models.Workflow, error) {
	var (
		workflow             models.Workflow
		description          sql.NullString
		createdAt, updatedAt timestamp
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.SpaceID,
		&workflow.Name,
		&description,
		&workflow.IsDefault,
		&workflow.AIOptimized,
		&workflow.Version,
		&createdAt,
		&updatedAt,
		&workflow.CreatedBy,
		&workflow.UpdatedBy,
	)
	if err != nil {
		return nil, err
	}

	workflow.Description = stringOf(description)
	workflow.CreatedAt = createdAt.Time
	workflow.UpdatedAt = updatedAt.Time

	return &workflow, nil
}

func requireOneRow(result sql.Result, op, workflowID string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError(op, workflowID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

var _ persistence.Tx = (*Tx)(nil)
