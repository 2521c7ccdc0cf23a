package graph

import (
	"testing"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transition(name, from, to string) *models.WorkflowTransition {
	return &models.WorkflowTransition{Name: name, FromKey: from, ToKey: to}
}

func normalizedABC(t *testing.T) []*models.WorkflowStatus {
	t.Helper()

	statuses, _ := NormalizeStatuses([]*models.WorkflowStatus{
		status("a", "A", models.CategoryTodo),
		status("b", "B", models.CategoryInProgress),
		status("c", "C", models.CategoryDone),
	})

	return statuses
}

func TestSanitizeTransitions_DropsUnknownEndpoints(t *testing.T) {
	transitions, warnings := SanitizeTransitions(normalizedABC(t), []*models.WorkflowTransition{
		transition("Start", "a", "b"),
		transition("Jump", "a", "z"),
		transition("Back", "y", "a"),
		transition("Finish", "b", "c"),
	})

	require.Len(t, transitions, 2)
	assert.Equal(t, "Start", transitions[0].Name)
	assert.Equal(t, 0, transitions[0].Order)
	assert.Equal(t, "Finish", transitions[1].Name)
	assert.Equal(t, 1, transitions[1].Order)

	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], `"Jump"`)
	assert.Contains(t, warnings[0], `"z"`)
	assert.Contains(t, warnings[1], `"Back"`)
}

func TestSanitizeTransitions_DropsDuplicatePairs(t *testing.T) {
	transitions, warnings := SanitizeTransitions(normalizedABC(t), []*models.WorkflowTransition{
		transition("Start", "a", "b"),
		transition("Begin", "A", " b "),
	})

	require.Len(t, transitions, 1)
	assert.Equal(t, "Start", transitions[0].Name)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `"Begin"`)
}

func TestSanitizeTransitions_KeepsSelfLoops(t *testing.T) {
	transitions, warnings := SanitizeTransitions(normalizedABC(t), []*models.WorkflowTransition{
		transition("Loop", "a", "a"),
	})

	require.Len(t, transitions, 1)
	assert.Empty(t, warnings)
}

func TestSanitizeTransitions_ReportsEmptyResult(t *testing.T) {
	transitions, warnings := SanitizeTransitions(normalizedABC(t), nil)

	assert.Empty(t, transitions)
	assert.Equal(t, []string{"No valid transitions were produced."}, warnings)
}

func TestSanitizeTransitions_ReferentialClosure(t *testing.T) {
	statuses := normalizedABC(t)
	keys := []string{"a", "b", "c", "x", ""}

	var candidates []*models.WorkflowTransition
	for _, from := range keys {
		for _, to := range keys {
			candidates = append(candidates, transition(from+to, from, to))
		}
	}

	transitions, _ := SanitizeTransitions(statuses, candidates)

	valid := map[string]bool{"a": true, "b": true, "c": true}
	for i, tr := range transitions {
		assert.True(t, valid[tr.FromKey], tr.Name)
		assert.True(t, valid[tr.ToKey], tr.Name)
		assert.Equal(t, i, tr.Order)
	}

	assert.Len(t, transitions, 9)
}
