package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/dukex/taskflow/pkg/cache"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/graph"
	"github.com/dukex/taskflow/pkg/mocks"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/file"
	"github.com/dukex/taskflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const space = "space-1"

func newPersistence(t *testing.T) *file.Persistence {
	t.Helper()

	p, err := file.NewPersistence(slog.Default(), t.TempDir())
	require.NoError(t, err)

	return p
}

func newService(t *testing.T, opts ...Option) *Workflow {
	t.Helper()

	return NewWorkflow(newPersistence(t), opts...)
}

func threeStepInput(name string) *models.WorkflowInput {
	return &models.WorkflowInput{
		SpaceID:     space,
		Name:        name,
		Statuses:    testutil.StatusInputs(),
		Transitions: testutil.TransitionInputs(),
	}
}

func keys(statuses []*models.WorkflowStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, status.Key)
	}

	return out
}

func issueCodes(err error) []string {
	var graphErr *GraphError
	if !errors.As(err, &graphErr) {
		return nil
	}

	out := make([]string, 0, len(graphErr.Issues))
	for _, issue := range graphErr.Issues {
		out = append(out, issue.Code)
	}

	return out
}

func TestNewWorkflow(t *testing.T) {
	p := newPersistence(t)
	service := NewWorkflow(p)

	assert.NotNil(t, service)
	assert.Equal(t, p, service.persistence)
	assert.Equal(t, cache.Noop{}, service.cache)
	assert.Nil(t, service.publisher)

	message, healthy := service.HealthCheck(t.Context())
	assert.True(t, healthy)
	assert.Equal(t, "Persistence layer is healthy", message)
}

func TestWorkflow_HealthCheck_NotInitialized(t *testing.T) {
	service := NewWorkflow(nil)

	message, healthy := service.HealthCheck(t.Context())
	assert.False(t, healthy)
	assert.Equal(t, "Persistence layer not initialized", message)
}

func TestWorkflow_Create_SingleStatus(t *testing.T) {
	service := newService(t)

	detail, err := service.Create(t.Context(), "alice", &models.WorkflowInput{
		SpaceID:  space,
		Name:     "Solo",
		Statuses: []models.StatusInput{{Key: "a", Name: "A", Category: models.CategoryTodo}},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, detail.Version)
	require.Len(t, detail.Statuses, 1)
	assert.True(t, detail.Statuses[0].IsInitial)
	assert.True(t, detail.Statuses[0].IsFinal)
	assert.Empty(t, detail.Transitions)
	assert.Equal(t, "alice", detail.CreatedBy)
	assert.Equal(t, []string{}, detail.LinkedTemplateIDs)

	history, err := service.History(t.Context(), space, detail.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.AuditActionCreated, history[0].Action)
	assert.Equal(t, "alice", history[0].Actor)
	assert.Equal(t, 1, history[0].Version)
}

func TestWorkflow_Create_DemotesSecondInitial(t *testing.T) {
	service := newService(t)

	detail, err := service.Create(t.Context(), "", &models.WorkflowInput{
		SpaceID: space,
		Name:    "Two starts",
		Statuses: []models.StatusInput{
			{Key: "first", Name: "First", Category: models.CategoryTodo, IsInitial: models.FlagOf(true)},
			{Key: "second", Name: "Second", Category: models.CategoryTodo, IsInitial: models.FlagOf(true)},
			{Key: "done", Name: "Done", Category: models.CategoryDone},
		},
	})
	require.NoError(t, err)

	assert.True(t, detail.Statuses[0].IsInitial)
	assert.False(t, detail.Statuses[1].IsInitial)
	assert.Equal(t, DefaultActor, detail.CreatedBy)

	found := false

	for _, warning := range detail.Warnings {
		if strings.Contains(warning, `"Second"`) && strings.Contains(warning, "initial") {
			found = true
		}
	}

	assert.True(t, found, "expected a warning naming the demoted status, got %v", detail.Warnings)
}

func TestWorkflow_Create_Rejections(t *testing.T) {
	service := newService(t)

	t.Run("no statuses", func(t *testing.T) {
		_, err := service.Create(t.Context(), "alice", &models.WorkflowInput{SpaceID: space, Name: "Empty"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrStatusesRequired)
		assert.True(t, IsGraphError(err))
		assert.Equal(t, []string{graph.CodeNoStatuses}, issueCodes(err))
	})

	t.Run("blank name", func(t *testing.T) {
		input := threeStepInput("   ")
		_, err := service.Create(t.Context(), "alice", input)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("blank space", func(t *testing.T) {
		input := threeStepInput("No space")
		input.SpaceID = ""
		_, err := service.Create(t.Context(), "alice", input)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("self loop", func(t *testing.T) {
		input := threeStepInput("Loop")
		input.Transitions = append(input.Transitions, models.TransitionInput{Name: "Loop", FromKey: "todo", ToKey: "todo"})

		_, err := service.Create(t.Context(), "alice", input)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidGraph)
		assert.Contains(t, issueCodes(err), graph.CodeSelfLoop)
	})

	summaries, err := service.List(t.Context(), space)
	require.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestWorkflow_Create_LinksTemplates(t *testing.T) {
	service := newService(t)

	input := threeStepInput("Linked")
	input.LinkedTemplateIDs = []string{"tpl-b", "tpl-a", " tpl-a ", ""}

	detail, err := service.Create(t.Context(), "alice", input)
	require.NoError(t, err)
	assert.Equal(t, []string{"tpl-a", "tpl-b"}, detail.LinkedTemplateIDs)

	got, err := service.Get(t.Context(), space, detail.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"tpl-a", "tpl-b"}, got.LinkedTemplateIDs)
}

func TestWorkflow_Update_WritesNewVersionAndKeepsOld(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	before, err := service.Get(t.Context(), space, created.ID)
	require.NoError(t, err)

	beforeJSON, err := json.Marshal([]any{before.Statuses, before.Transitions})
	require.NoError(t, err)

	updated, err := service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Statuses: []models.StatusInput{{Key: "review", Name: "Review", Category: models.CategoryInProgress}},
	})
	require.NoError(t, err)

	assert.Equal(t, before.Version+1, updated.Version)
	assert.Equal(t, []string{"todo", "in-progress", "done", "review"}, keys(updated.Statuses))
	assert.Len(t, updated.Transitions, 2)
	assert.Equal(t, "bob", updated.UpdatedBy)

	old, err := service.GetVersion(t.Context(), space, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, old.Version)

	oldJSON, err := json.Marshal([]any{old.Statuses, old.Transitions})
	require.NoError(t, err)
	assert.Equal(t, string(beforeJSON), string(oldJSON))

	history, err := service.History(t.Context(), space, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.AuditActionUpdated, history[1].Action)
	assert.Equal(t, 2, history[1].Version)
	assert.Equal(t, []string{"statuses"}, history[1].ChangedFields)
}

func TestWorkflow_Update_MetadataKeepsVersion(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	name := "Renamed"
	description := "New description"
	aiOptimized := true

	updated, err := service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Name:        &name,
		Description: &description,
		AIOptimized: &aiOptimized,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, "Renamed", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "New description", *updated.Description)
	assert.True(t, updated.AIOptimized)
	assert.Len(t, updated.Statuses, 3)

	history, err := service.History(t.Context(), space, created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestWorkflow_Update_RejectsSelfLoopAndKeepsVersion(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	_, err = service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Transitions: []models.TransitionInput{{Name: "Loop", FromKey: "todo", ToKey: "todo"}},
	})
	require.Error(t, err)
	assert.True(t, IsGraphError(err))
	assert.Contains(t, issueCodes(err), graph.CodeSelfLoop)

	current, err := service.Get(t.Context(), space, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	assert.Len(t, current.Transitions, 2)
}

func TestWorkflow_Update_MergesTransitionsOnly(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	validators := json.RawMessage(`{"requirePriority":true}`)

	updated, err := service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Transitions: []models.TransitionInput{
			{Name: "Finish now", FromKey: "in-progress", ToKey: "done", Validators: validators},
			{Name: "Reopen", FromKey: "done", ToKey: "todo"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, []string{"todo", "in-progress", "done"}, keys(updated.Statuses))
	require.Len(t, updated.Transitions, 3)
	assert.Equal(t, "Start", updated.Transitions[0].Name)
	assert.Equal(t, "Finish now", updated.Transitions[1].Name)
	assert.JSONEq(t, `{"requirePriority":true}`, string(updated.Transitions[1].Validators))
	assert.Equal(t, "Reopen", updated.Transitions[2].Name)

	ids := make(map[string]string, len(updated.Statuses))
	for _, status := range updated.Statuses {
		ids[status.Key] = status.ID
	}

	for _, transition := range updated.Transitions {
		assert.Equal(t, ids[transition.FromKey], transition.FromID)
		assert.Equal(t, ids[transition.ToKey], transition.ToID)
	}
}

func TestWorkflow_Update_RemovesStatusAndDanglingTransitions(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	updated, err := service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		RemoveStatuses: []string{"In Progress"},
		Transitions:    []models.TransitionInput{{Name: "Finish", FromKey: "todo", ToKey: "done"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"todo", "done"}, keys(updated.Statuses))
	require.Len(t, updated.Transitions, 1)
	assert.Equal(t, "todo", updated.Transitions[0].FromKey)
	assert.NotEmpty(t, updated.Warnings)
}

func TestWorkflow_Update_RemovesTransition(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	updated, err := service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		RemoveTransitions: []models.TransitionRef{{FromKey: "todo", ToKey: "in-progress"}},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Version)
	require.Len(t, updated.Transitions, 1)
	assert.Equal(t, "Finish", updated.Transitions[0].Name)
}

func TestWorkflow_Update_SuppliedInitialWins(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	updated, err := service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Statuses: []models.StatusInput{{Key: "triage", Name: "Triage", Category: models.CategoryTodo, IsInitial: models.FlagOf(true)}},
	})
	require.NoError(t, err)

	for _, status := range updated.Statuses {
		assert.Equal(t, status.Key == "triage", status.IsInitial, status.Key)
	}
}

func TestWorkflow_Update_ReplacementKeepsUnsetFlags(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	updated, err := service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Statuses: []models.StatusInput{
			{Key: "todo", Name: "Ready", Category: models.CategoryTodo},
			{Key: "done", Name: "Shipped", Category: models.CategoryDone},
			{Key: "backlog", Name: "Backlog", Category: models.CategoryTodo},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"todo", "in-progress", "done", "backlog"}, keys(updated.Statuses))
	assert.Empty(t, updated.Warnings)

	for _, status := range updated.Statuses {
		assert.Equal(t, status.Key == "todo", status.IsInitial, status.Key)
		assert.Equal(t, status.Key == "done", status.IsFinal, status.Key)
	}

	assert.Equal(t, "Ready", updated.Statuses[0].Name)
}

func TestWorkflow_Update_RejectsRemovingEveryStatus(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	_, err = service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		RemoveStatuses: []string{"todo", "in-progress", "done"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatusesRequired)
	assert.Equal(t, []string{graph.CodeNoStatuses}, issueCodes(err))

	current, err := service.Get(t.Context(), space, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	assert.Equal(t, []string{"todo", "in-progress", "done"}, keys(current.Statuses))
}

func TestWorkflow_Update_ReconcilesTemplateLinks(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	service := newService(t, WithPublisher(bus))

	input := threeStepInput("Linked")
	input.LinkedTemplateIDs = []string{"tpl-a", "tpl-b"}

	created, err := service.Create(t.Context(), "alice", input)
	require.NoError(t, err)

	target := []string{"tpl-c", "tpl-b"}

	updated, err := service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		LinkedTemplateIDs: &target,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Version)
	assert.Equal(t, []string{"tpl-b", "tpl-c"}, updated.LinkedTemplateIDs)

	bus.AssertCalled(t, "Publish", mock.Anything, created.ID, mock.MatchedBy(func(e events.WorkflowUpdated) bool {
		return assert.ObjectsAreEqual([]string{"linked_template_ids"}, e.ChangedFields)
	}))

	// Same set again is a no-op.
	bus.Calls = nil
	_, err = service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		LinkedTemplateIDs: &target,
	})
	require.NoError(t, err)
	bus.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflow_SingleDefaultPerSpace(t *testing.T) {
	service := newService(t)

	first := threeStepInput("First")
	first.IsDefault = true

	a, err := service.Create(t.Context(), "alice", first)
	require.NoError(t, err)

	second := threeStepInput("Second")
	second.IsDefault = true

	b, err := service.Create(t.Context(), "alice", second)
	require.NoError(t, err)

	other := threeStepInput("Elsewhere")
	other.SpaceID = "space-2"
	other.IsDefault = true

	_, err = service.Create(t.Context(), "alice", other)
	require.NoError(t, err)

	defaults := func() []string {
		summaries, err := service.List(t.Context(), space)
		require.NoError(t, err)

		var ids []string

		for _, summary := range summaries {
			if summary.IsDefault {
				ids = append(ids, summary.ID)
			}
		}

		return ids
	}

	assert.Equal(t, []string{b.ID}, defaults())

	isDefault := true
	_, err = service.Update(t.Context(), "bob", space, a.ID, &models.WorkflowUpdateInput{IsDefault: &isDefault})
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, defaults())

	elsewhere, err := service.List(t.Context(), "space-2")
	require.NoError(t, err)
	require.Len(t, elsewhere, 1)
	assert.True(t, elsewhere[0].IsDefault)
}

func TestWorkflow_Delete_GuardsReferences(t *testing.T) {
	service := newService(t)

	input := threeStepInput("Referenced")
	input.LinkedTemplateIDs = []string{"tpl-a"}

	created, err := service.Create(t.Context(), "alice", input)
	require.NoError(t, err)

	_, err = service.AssignTask(t.Context(), "alice", space, created.ID, "task-1")
	require.NoError(t, err)

	err = service.Delete(t.Context(), "alice", space, created.ID)
	require.Error(t, err)
	assert.True(t, IsConflictError(err))
	assert.Contains(t, err.Error(), "1 template(s) and 1 task(s)")

	_, err = service.Get(t.Context(), space, created.ID)
	require.NoError(t, err)

	empty := []string{}
	_, err = service.Update(t.Context(), "alice", space, created.ID, &models.WorkflowUpdateInput{LinkedTemplateIDs: &empty})
	require.NoError(t, err)

	err = service.Delete(t.Context(), "alice", space, created.ID)
	assert.True(t, IsConflictError(err))

	released, err := service.ReleaseTask(t.Context(), "alice", "task-1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, released.WorkflowID)

	require.NoError(t, service.Delete(t.Context(), "alice", space, created.ID))

	_, err = service.Get(t.Context(), space, created.ID)
	assert.True(t, IsWorkflowNotFound(err))

	_, err = service.History(t.Context(), space, created.ID)
	assert.True(t, IsWorkflowNotFound(err))
}

func TestWorkflow_Duplicate(t *testing.T) {
	service := newService(t)

	input := threeStepInput("Delivery")
	input.IsDefault = true
	input.LinkedTemplateIDs = []string{"tpl-a"}
	input.Transitions[1].Validators = json.RawMessage(`{"preventOpenSubtasks":true}`)

	source, err := service.Create(t.Context(), "alice", input)
	require.NoError(t, err)

	_, err = service.Update(t.Context(), "alice", space, source.ID, &models.WorkflowUpdateInput{
		Statuses: []models.StatusInput{{Key: "review", Name: "Review", Category: models.CategoryInProgress}},
	})
	require.NoError(t, err)

	copied, err := service.Duplicate(t.Context(), "bob", space, source.ID)
	require.NoError(t, err)

	assert.NotEqual(t, source.ID, copied.ID)
	assert.Equal(t, "Delivery Copy", copied.Name)
	assert.Equal(t, 1, copied.Version)
	assert.False(t, copied.IsDefault)
	assert.Empty(t, copied.LinkedTemplateIDs)
	assert.Equal(t, []string{"todo", "in-progress", "done", "review"}, keys(copied.Statuses))
	assert.Len(t, copied.Transitions, 2)
	assert.JSONEq(t, `{"preventOpenSubtasks":true}`, string(mustTransition(t, copied, "in-progress", "done").Validators))

	original, err := service.Get(t.Context(), space, source.ID)
	require.NoError(t, err)
	assert.True(t, original.IsDefault)
	assert.Equal(t, 2, original.Version)

	for i := range copied.Statuses {
		assert.NotEqual(t, original.Statuses[i].ID, copied.Statuses[i].ID)
	}
}

func mustTransition(t *testing.T, detail *models.WorkflowDetail, from, to string) *models.WorkflowTransition {
	t.Helper()

	for _, transition := range detail.Transitions {
		if transition.FromKey == from && transition.ToKey == to {
			return transition
		}
	}

	t.Fatalf("no transition from %s to %s", from, to)

	return nil
}

func TestWorkflow_Restore(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	_, err = service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Statuses: []models.StatusInput{{Key: "review", Name: "Review", Category: models.CategoryInProgress}},
	})
	require.NoError(t, err)

	restored, err := service.Restore(t.Context(), "carol", space, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, restored.Version)
	assert.Equal(t, []string{"todo", "in-progress", "done"}, keys(restored.Statuses))

	history, err := service.History(t.Context(), space, created.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, models.AuditActionRestored, history[2].Action)
	assert.Equal(t, "carol", history[2].Actor)

	_, err = service.Restore(t.Context(), "carol", space, created.ID, 3)
	assert.True(t, IsValidationError(err))

	_, err = service.Restore(t.Context(), "carol", space, created.ID, 9)
	assert.True(t, persistence.IsVersionNotFound(err))
}

func TestWorkflow_Reads_NotFound(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	_, err = service.Get(t.Context(), "space-2", created.ID)
	assert.True(t, IsWorkflowNotFound(err))

	_, err = service.Get(t.Context(), space, "not-a-uuid")
	assert.True(t, IsWorkflowNotFound(err))

	_, err = service.GetVersion(t.Context(), space, created.ID, 0)
	assert.True(t, persistence.IsVersionNotFound(err))

	_, err = service.GetVersion(t.Context(), space, created.ID, 2)
	assert.True(t, persistence.IsVersionNotFound(err))

	_, err = service.Update(t.Context(), "alice", "space-2", created.ID, &models.WorkflowUpdateInput{})
	assert.True(t, IsWorkflowNotFound(err))

	err = service.Delete(t.Context(), "alice", "space-2", created.ID)
	assert.True(t, IsWorkflowNotFound(err))

	_, err = service.ReleaseTask(t.Context(), "alice", "unknown-task")
	assert.True(t, IsNotFoundError(err))

	_, err = service.AssignTask(t.Context(), "alice", space, created.ID, " ")
	assert.True(t, IsValidationError(err))
}

func TestWorkflow_AssignTask_PinsCurrentVersion(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	first, err := service.AssignTask(t.Context(), "alice", space, created.ID, "task-1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)

	_, err = service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Statuses: []models.StatusInput{{Key: "review", Name: "Review", Category: models.CategoryInProgress}},
	})
	require.NoError(t, err)

	second, err := service.AssignTask(t.Context(), "alice", space, created.ID, "task-2")
	require.NoError(t, err)
	assert.Equal(t, 2, second.Version)

	released, err := service.ReleaseTask(t.Context(), "alice", "task-1")
	require.NoError(t, err)
	assert.Equal(t, 1, released.Version)
}

func TestWorkflow_ConcurrentStructuralUpdates(t *testing.T) {
	service := newService(t)

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	var wg sync.WaitGroup

	for _, key := range []string{"review", "qa"} {
		wg.Add(1)

		go func(key string) {
			defer wg.Done()

			_, err := service.Update(context.Background(), "bob", space, created.ID, &models.WorkflowUpdateInput{
				Statuses: []models.StatusInput{{Key: key, Name: key, Category: models.CategoryInProgress}},
			})
			assert.NoError(t, err)
		}(key)
	}

	wg.Wait()

	current, err := service.Get(t.Context(), space, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, current.Version)
	assert.Len(t, current.Statuses, 5)

	history, err := service.History(t.Context(), space, created.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)
}

// failingPersistence runs transactions against a real store but fails AppendAudit,
// the last write of every structural change.
type failingPersistence struct {
	persistence.Persistence
}

type failingTx struct {
	persistence.Tx
}

var errAuditUnavailable = errors.New("audit unavailable")

func (f failingPersistence) WithTx(ctx context.Context, fn func(tx persistence.Tx) error) error {
	return f.Persistence.WithTx(ctx, func(tx persistence.Tx) error {
		return fn(failingTx{Tx: tx})
	})
}

func (failingTx) AppendAudit(context.Context, *models.WorkflowAudit) error {
	return errAuditUnavailable
}

func TestWorkflow_FailedWriteLeavesNoTrace(t *testing.T) {
	store := newPersistence(t)
	healthy := NewWorkflow(store)
	broken := NewWorkflow(failingPersistence{Persistence: store})

	input := threeStepInput("Atomic")
	input.LinkedTemplateIDs = []string{"tpl-a"}

	_, err := broken.Create(t.Context(), "alice", input)
	require.ErrorIs(t, err, errAuditUnavailable)

	summaries, err := healthy.List(t.Context(), space)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	created, err := healthy.Create(t.Context(), "alice", threeStepInput("Atomic"))
	require.NoError(t, err)

	target := []string{"tpl-z"}
	_, err = broken.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Statuses:          []models.StatusInput{{Key: "review", Name: "Review", Category: models.CategoryInProgress}},
		LinkedTemplateIDs: &target,
	})
	require.ErrorIs(t, err, errAuditUnavailable)

	current, err := healthy.Get(t.Context(), space, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	assert.Len(t, current.Statuses, 3)
	assert.Empty(t, current.LinkedTemplateIDs)

	_, err = healthy.GetVersion(t.Context(), space, created.ID, 2)
	assert.True(t, persistence.IsVersionNotFound(err))
}

func TestWorkflow_PublishesLifecycleEvents(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	service := newService(t, WithPublisher(bus))

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	_, err = service.Update(t.Context(), "bob", space, created.ID, &models.WorkflowUpdateInput{
		Statuses: []models.StatusInput{{Key: "review", Name: "Review", Category: models.CategoryInProgress}},
	})
	require.NoError(t, err)

	copied, err := service.Duplicate(t.Context(), "bob", space, created.ID)
	require.NoError(t, err)

	require.NoError(t, service.Delete(t.Context(), "bob", space, copied.ID))

	bus.AssertCalled(t, "Publish", mock.Anything, created.ID, mock.MatchedBy(func(e events.WorkflowCreated) bool {
		return e.Version == 1 && e.Actor == "alice" && e.SpaceID == space && e.DuplicatedOf == nil
	}))
	bus.AssertCalled(t, "Publish", mock.Anything, created.ID, mock.MatchedBy(func(e events.WorkflowVersionCreated) bool {
		return e.Version == 2 && e.PreviousVersion == 1 && e.RestoredFrom == nil
	}))
	bus.AssertCalled(t, "Publish", mock.Anything, copied.ID, mock.MatchedBy(func(e events.WorkflowCreated) bool {
		return e.DuplicatedOf != nil && *e.DuplicatedOf == created.ID
	}))
	bus.AssertCalled(t, "Publish", mock.Anything, copied.ID, mock.MatchedBy(func(e events.WorkflowDeleted) bool {
		return e.Type == events.WorkflowDeletedEvent
	}))
	bus.AssertNumberOfCalls(t, "Publish", 4)
}

func TestWorkflow_PublishFailureDoesNotFailCall(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	service := newService(t, WithPublisher(bus))

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)
	assert.Equal(t, 1, created.Version)
}

func TestWorkflow_ReadsThroughCache(t *testing.T) {
	snapshots := &mocks.MockCache{}
	snapshots.On("Set", mock.Anything, mock.Anything, 1, mock.Anything).Return(nil).Once()

	service := newService(t, WithCache(snapshots))

	created, err := service.Create(t.Context(), "alice", threeStepInput("Delivery"))
	require.NoError(t, err)

	cached := &cache.Snapshot{
		Statuses: []*models.WorkflowStatus{testutil.CreateTestStatus("cached", "Cached", models.CategoryTodo, 0)},
	}
	snapshots.On("Get", mock.Anything, created.ID, 1).Return(cached, true, nil).Once()

	detail, err := service.Get(t.Context(), space, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"cached"}, keys(detail.Statuses))

	snapshots.On("Get", mock.Anything, created.ID, 1).Return(nil, false, errors.New("redis down")).Once()
	snapshots.On("Set", mock.Anything, created.ID, 1, mock.Anything).Return(nil).Once()

	detail, err = service.Get(t.Context(), space, created.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"todo", "in-progress", "done"}, keys(detail.Statuses))

	snapshots.On("Purge", mock.Anything, created.ID).Return(nil).Once()
	require.NoError(t, service.Delete(t.Context(), "alice", space, created.ID))

	snapshots.AssertExpectations(t)
}
