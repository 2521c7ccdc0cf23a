// Package persistence provides the transactional storage abstraction for workflows,
// their versioned snapshots, audit trail, template links and task assignments.
package persistence

import (
	"context"

	"github.com/dukex/taskflow/pkg/models"
)

// Persistence is a transactional store. Every mutating engine call runs inside
// exactly one WithTx; returning an error from fn rolls back everything fn did.
type Persistence interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// Tx is the set of operations available inside a transaction.
type Tx interface {
	WorkflowRepository
	SnapshotRepository
	AuditRepository
	ReferenceRepository
}

// WorkflowRepository stores workflow records. Lookups are scoped to a space: a
// workflow that exists in another space is reported as not found.
type WorkflowRepository interface {
	WorkflowByID(ctx context.Context, spaceID, id string) (*models.Workflow, error)
	// LockWorkflow reads the workflow and holds a write lock on it until the
	// transaction ends.
	LockWorkflow(ctx context.Context, spaceID, id string) (*models.Workflow, error)
	Workflows(ctx context.Context, spaceID string) ([]*models.Workflow, error)
	InsertWorkflow(ctx context.Context, workflow *models.Workflow) error
	UpdateWorkflow(ctx context.Context, workflow *models.Workflow) error
	// ClearDefault unsets the default flag on every workflow of the space except exceptID.
	ClearDefault(ctx context.Context, spaceID, exceptID string) error
	// DeleteWorkflow removes the workflow with every snapshot and audit entry.
	DeleteWorkflow(ctx context.Context, spaceID, id string) error
}

// SnapshotRepository stores the immutable statuses and transitions of each version.
type SnapshotRepository interface {
	InsertStatus(ctx context.Context, workflowID string, version int, status *models.WorkflowStatus) error
	InsertTransition(ctx context.Context, workflowID string, version int, transition *models.WorkflowTransition) error
	Statuses(ctx context.Context, workflowID string, version int) ([]*models.WorkflowStatus, error)
	Transitions(ctx context.Context, workflowID string, version int) ([]*models.WorkflowTransition, error)
}

// AuditRepository stores the append-only audit trail.
type AuditRepository interface {
	AppendAudit(ctx context.Context, audit *models.WorkflowAudit) error
	Audits(ctx context.Context, workflowID string) ([]*models.WorkflowAudit, error)
}

// ReferenceRepository stores the external consumers of a workflow: template links
// and pinned tasks.
type ReferenceRepository interface {
	LinkedTemplateIDs(ctx context.Context, workflowID string) ([]string, error)
	// LinkTemplate points templateID at workflowID, replacing any previous link of
	// that template.
	LinkTemplate(ctx context.Context, templateID, workflowID string) error
	UnlinkTemplate(ctx context.Context, templateID string) error

	// AssignTask pins a task, replacing any previous assignment of that task.
	AssignTask(ctx context.Context, assignment *models.TaskAssignment) error
	// ReleaseTask removes a pin. It fails with ErrTaskNotAssigned when none exists.
	ReleaseTask(ctx context.Context, taskID string) (*models.TaskAssignment, error)
	CountReferences(ctx context.Context, workflowID string) (models.ReferenceCount, error)
}
