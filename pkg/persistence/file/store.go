package file

import (
	"cmp"
	"context"
	"slices"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
)

// tx implements persistence.Tx over a private copy of the state.
type tx struct {
	state *state
}

func (t *tx) WorkflowByID(_ context.Context, spaceID, id string) (*models.Workflow, error) {
	w, ok := t.state.Workflows[id]
	if !ok || w.SpaceID != spaceID {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	return w.Clone(), nil
}

// LockWorkflow is WorkflowByID: the transaction already holds the store mutex.
func (t *tx) LockWorkflow(ctx context.Context, spaceID, id string) (*models.Workflow, error) {
	return t.WorkflowByID(ctx, spaceID, id)
}

func (t *tx) Workflows(_ context.Context, spaceID string) ([]*models.Workflow, error) {
	workflows := make([]*models.Workflow, 0)

	for _, w := range t.state.Workflows {
		if w.SpaceID == spaceID {
			workflows = append(workflows, w.Clone())
		}
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})

	return workflows, nil
}

func (t *tx) InsertWorkflow(_ context.Context, workflow *models.Workflow) error {
	t.state.Workflows[workflow.ID] = workflow.Clone()

	return nil
}

func (t *tx) UpdateWorkflow(_ context.Context, workflow *models.Workflow) error {
	current, ok := t.state.Workflows[workflow.ID]
	if !ok || current.SpaceID != workflow.SpaceID {
		return persistence.NewWorkflowError("Update", workflow.ID, persistence.ErrWorkflowNotFound)
	}

	t.state.Workflows[workflow.ID] = workflow.Clone()

	return nil
}

func (t *tx) ClearDefault(_ context.Context, spaceID, exceptID string) error {
	for id, w := range t.state.Workflows {
		if w.SpaceID == spaceID && id != exceptID {
			w.IsDefault = false
		}
	}

	return nil
}

func (t *tx) DeleteWorkflow(_ context.Context, spaceID, id string) error {
	w, ok := t.state.Workflows[id]
	if !ok || w.SpaceID != spaceID {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	for version := 1; version <= w.Version; version++ {
		delete(t.state.Snapshots, snapshotKey(id, version))
	}

	delete(t.state.Audits, id)
	delete(t.state.Workflows, id)

	return nil
}

func (t *tx) snapshot(workflowID string, version int) *snapshot {
	key := snapshotKey(workflowID, version)

	snap, ok := t.state.Snapshots[key]
	if !ok {
		snap = &snapshot{}
		t.state.Snapshots[key] = snap
	}

	return snap
}

func (t *tx) InsertStatus(_ context.Context, workflowID string, version int, status *models.WorkflowStatus) error {
	snap := t.snapshot(workflowID, version)
	snap.Statuses = append(snap.Statuses, status.Clone())

	return nil
}

func (t *tx) InsertTransition(_ context.Context, workflowID string, version int, transition *models.WorkflowTransition) error {
	snap := t.snapshot(workflowID, version)
	snap.Transitions = append(snap.Transitions, transition.Clone())

	return nil
}

func (t *tx) Statuses(_ context.Context, workflowID string, version int) ([]*models.WorkflowStatus, error) {
	statuses := make([]*models.WorkflowStatus, 0)

	snap, ok := t.state.Snapshots[snapshotKey(workflowID, version)]
	if !ok {
		return statuses, nil
	}

	for _, s := range snap.Statuses {
		statuses = append(statuses, s.Clone())
	}

	slices.SortStableFunc(statuses, func(a, b *models.WorkflowStatus) int {
		return cmp.Compare(a.Order, b.Order)
	})

	return statuses, nil
}

func (t *tx) Transitions(_ context.Context, workflowID string, version int) ([]*models.WorkflowTransition, error) {
	transitions := make([]*models.WorkflowTransition, 0)

	snap, ok := t.state.Snapshots[snapshotKey(workflowID, version)]
	if !ok {
		return transitions, nil
	}

	for _, tr := range snap.Transitions {
		transitions = append(transitions, tr.Clone())
	}

	slices.SortStableFunc(transitions, func(a, b *models.WorkflowTransition) int {
		return cmp.Compare(a.Order, b.Order)
	})

	return transitions, nil
}

func (t *tx) AppendAudit(_ context.Context, audit *models.WorkflowAudit) error {
	t.state.Audits[audit.WorkflowID] = append(t.state.Audits[audit.WorkflowID], audit.Clone())

	return nil
}

func (t *tx) Audits(_ context.Context, workflowID string) ([]*models.WorkflowAudit, error) {
	audits := make([]*models.WorkflowAudit, 0, len(t.state.Audits[workflowID]))
	for _, a := range t.state.Audits[workflowID] {
		audits = append(audits, a.Clone())
	}

	return audits, nil
}

func (t *tx) LinkedTemplateIDs(_ context.Context, workflowID string) ([]string, error) {
	ids := make([]string, 0)

	for templateID, linked := range t.state.TemplateLinks {
		if linked == workflowID {
			ids = append(ids, templateID)
		}
	}

	slices.Sort(ids)

	return ids, nil
}

func (t *tx) LinkTemplate(_ context.Context, templateID, workflowID string) error {
	t.state.TemplateLinks[templateID] = workflowID

	return nil
}

func (t *tx) UnlinkTemplate(_ context.Context, templateID string) error {
	delete(t.state.TemplateLinks, templateID)

	return nil
}

func (t *tx) AssignTask(_ context.Context, assignment *models.TaskAssignment) error {
	a := *assignment
	t.state.Tasks[assignment.TaskID] = &a

	return nil
}

func (t *tx) ReleaseTask(_ context.Context, taskID string) (*models.TaskAssignment, error) {
	assignment, ok := t.state.Tasks[taskID]
	if !ok {
		return nil, &persistence.TaskError{Op: "Release", TaskID: taskID, Err: persistence.ErrTaskNotAssigned}
	}

	delete(t.state.Tasks, taskID)

	return assignment, nil
}

func (t *tx) CountReferences(_ context.Context, workflowID string) (models.ReferenceCount, error) {
	var count models.ReferenceCount

	for _, linked := range t.state.TemplateLinks {
		if linked == workflowID {
			count.Templates++
		}
	}

	for _, assignment := range t.state.Tasks {
		if assignment.WorkflowID == workflowID {
			count.Tasks++
		}
	}

	return count, nil
}
