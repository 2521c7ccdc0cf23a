package services

import (
	"testing"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/suggest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuggestion_Suggest(t *testing.T) {
	service := NewSuggestion(nil, nil)

	prompt := "We need design, review, and deploy stages"

	suggestion, err := service.Suggest(t.Context(), models.SuggestionRequest{Prompt: &prompt})
	require.NoError(t, err)

	assert.Equal(t,
		[]string{"todo", "design", "in-progress", "review", "deploy", "done"},
		keys(suggestion.Statuses))
	assert.NotContains(t, suggestion.Warnings, suggest.StandardFlowWarning)
	assert.Empty(t, suggestion.Issues)
}

func TestSuggestion_SuggestFallback(t *testing.T) {
	service := NewSuggestion(nil, nil)

	prompt := "quick fix"

	suggestion, err := service.Suggest(t.Context(), models.SuggestionRequest{Prompt: &prompt})
	require.NoError(t, err)

	assert.Equal(t, []string{"todo", "in-progress", "done"}, keys(suggestion.Statuses))
	assert.Contains(t, suggestion.Warnings, suggest.StandardFlowWarning)
}

func TestSuggestion_AcceptedByCreate(t *testing.T) {
	suggestions := NewSuggestion(nil, nil)
	workflows := newService(t)

	templateName := "Bug"

	suggestion, err := suggestions.Suggest(t.Context(), models.SuggestionRequest{
		TemplateName: &templateName,
		Fields:       []models.SuggestionField{{ID: "f1", Type: "text", Label: "QA notes", Required: true}},
	})
	require.NoError(t, err)

	detail, err := workflows.Create(t.Context(), "alice", &models.WorkflowInput{
		SpaceID:     space,
		Name:        suggestion.Name,
		Description: &suggestion.Description,
		AIOptimized: true,
		Statuses:    statusInputs(suggestion.Statuses),
		Transitions: transitionInputs(suggestion.Transitions),
	})
	require.NoError(t, err)

	assert.Equal(t, "Bug Flow", detail.Name)
	assert.Equal(t, keys(suggestion.Statuses), keys(detail.Statuses))
	assert.Len(t, detail.Transitions, len(suggestion.Transitions))
	assert.Empty(t, detail.Warnings)
}

func TestGraphError(t *testing.T) {
	err := newGraphError("update", []models.Issue{
		{Code: "SELF_LOOP", Path: "transitions[0]", Message: "loops"},
		{Code: "EMPTY_NAME", Path: "statuses[1]", Message: "no name"},
	}, []string{"fixed something"}, ErrInvalidGraph)

	assert.ErrorIs(t, err, ErrInvalidGraph)
	assert.True(t, IsGraphError(err))
	assert.False(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "SELF_LOOP at transitions[0]: loops")
	assert.Contains(t, err.Error(), "EMPTY_NAME at statuses[1]: no name")

	bare := newGraphError("create", nil, nil, ErrStatusesRequired)
	assert.Equal(t, "create: workflow must have at least one status", bare.Error())
}

func TestServiceError(t *testing.T) {
	err := NewValidationError("restore", "ALREADY_CURRENT", "version 2 is already the current version")

	assert.Equal(t, "restore: version 2 is already the current version", err.Error())
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.True(t, IsValidationError(err))
	assert.False(t, IsConflictError(err))

	conflict := &ServiceError{Op: "delete", Err: ErrWorkflowInUse}
	assert.Equal(t, "delete: workflow is in use", conflict.Error())
	assert.True(t, IsConflictError(conflict))
}
