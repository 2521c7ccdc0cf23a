// Package web provides HTTP request and response types for the workflow API.
package web

import "github.com/dukex/taskflow/pkg/models"

// ActorHeader carries the identity stamped on audit entries.
const ActorHeader = "X-Actor-ID"

// CreateWorkflowRequest represents the request body for creating a new workflow.
// The space comes from the route.
type CreateWorkflowRequest struct {
	Name              string                   `json:"name"                          validate:"required"`
	Description       *string                  `json:"description,omitempty"`
	IsDefault         bool                     `json:"is_default,omitempty"`
	AIOptimized       bool                     `json:"ai_optimized,omitempty"`
	Statuses          []models.StatusInput     `json:"statuses"                      validate:"dive"`
	Transitions       []models.TransitionInput `json:"transitions"                   validate:"dive"`
	LinkedTemplateIDs []string                 `json:"linked_template_ids,omitempty" validate:"dive,required"`
}

// Input converts the request into the write model for spaceID.
func (r *CreateWorkflowRequest) Input(spaceID string) *models.WorkflowInput {
	return &models.WorkflowInput{
		SpaceID:           spaceID,
		Name:              r.Name,
		Description:       r.Description,
		IsDefault:         r.IsDefault,
		AIOptimized:       r.AIOptimized,
		Statuses:          r.Statuses,
		Transitions:       r.Transitions,
		LinkedTemplateIDs: r.LinkedTemplateIDs,
	}
}

// UpdateWorkflowRequest represents the request body for updating an existing workflow.
// All fields are optional to support partial updates.
type UpdateWorkflowRequest = models.WorkflowUpdateInput

// SuggestWorkflowRequest represents the request body for generating a suggestion.
type SuggestWorkflowRequest = models.SuggestionRequest

// WorkflowListResponse lists the workflows of a space.
type WorkflowListResponse struct {
	Workflows []*models.WorkflowSummary `json:"workflows"`
}

// HistoryResponse lists the audit trail of a workflow.
type HistoryResponse struct {
	History []*models.WorkflowAudit `json:"history"`
}
