// Package testutil provides test data builders and shared test suites.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dukex/taskflow/pkg/models"
)

// Now returns the current time at the precision every backend can store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// CreateTestWorkflow creates a version 1 workflow with default values that can be overridden.
func CreateTestWorkflow(spaceID string, overrides ...func(*models.Workflow)) *models.Workflow {
	now := Now()

	workflow := &models.Workflow{
		ID:        uuid.NewString(),
		SpaceID:   spaceID,
		Name:      "Test Workflow",
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: "tester",
		UpdatedBy: "tester",
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// WithDefault marks the workflow as the space default.
func WithDefault() func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.IsDefault = true
	}
}

// CreateTestStatus creates a status with default values that can be overridden.
func CreateTestStatus(key, name string, category models.Category, order int) *models.WorkflowStatus {
	return &models.WorkflowStatus{
		ID:       uuid.NewString(),
		Key:      key,
		Name:     name,
		Category: category,
		Order:    order,
	}
}

// CreateTestTransition creates a transition between two statuses.
func CreateTestTransition(from, to *models.WorkflowStatus, order int) *models.WorkflowTransition {
	return &models.WorkflowTransition{
		ID:      uuid.NewString(),
		Name:    "Move to " + to.Name,
		FromID:  from.ID,
		ToID:    to.ID,
		FromKey: from.Key,
		ToKey:   to.Key,
		Order:   order,
	}
}

// ThreeStepGraph returns a To Do, In Progress, Done graph with linking transitions.
func ThreeStepGraph() ([]*models.WorkflowStatus, []*models.WorkflowTransition) {
	todo := CreateTestStatus("todo", "To Do", models.CategoryTodo, 0)
	todo.IsInitial = true
	todo.VisibilityRules = json.RawMessage(`{"roles":["member"]}`)

	doing := CreateTestStatus("in-progress", "In Progress", models.CategoryInProgress, 1)

	done := CreateTestStatus("done", "Done", models.CategoryDone, 2)
	done.IsFinal = true

	start := CreateTestTransition(todo, doing, 0)
	start.Conditions = json.RawMessage(`{"assigneeOnly":true}`)

	finish := CreateTestTransition(doing, done, 1)
	finish.Validators = json.RawMessage(`{"preventOpenSubtasks":true}`)

	return []*models.WorkflowStatus{todo, doing, done}, []*models.WorkflowTransition{start, finish}
}

// StatusInputs returns the authored form of a To Do, In Progress, Done workflow.
func StatusInputs() []models.StatusInput {
	return []models.StatusInput{
		{Key: "todo", Name: "To Do", Category: models.CategoryTodo, IsInitial: models.FlagOf(true)},
		{Key: "in-progress", Name: "In Progress", Category: models.CategoryInProgress},
		{Key: "done", Name: "Done", Category: models.CategoryDone, IsFinal: models.FlagOf(true)},
	}
}

// TransitionInputs returns transitions linking StatusInputs in order.
func TransitionInputs() []models.TransitionInput {
	return []models.TransitionInput{
		{Name: "Start", FromKey: "todo", ToKey: "in-progress"},
		{Name: "Finish", FromKey: "in-progress", ToKey: "done"},
	}
}

// WithWorkflowName overrides the workflow name.
func WithWorkflowName(name string) func(*models.Workflow) {
	return func(w *models.Workflow) {
		w.Name = name
	}
}
