package models

import (
	"encoding/json"
	"fmt"
)

// WorkflowSummary is the read model returned by listings.
type WorkflowSummary struct {
	Workflow

	LinkedTemplateIDs []string `json:"linked_template_ids"`
}

// WorkflowDetail is a summary plus the full graph of one version. Warnings lists the
// corrections the normalizer applied while producing the graph, if any.
type WorkflowDetail struct {
	WorkflowSummary

	Statuses    []*WorkflowStatus     `json:"statuses"`
	Transitions []*WorkflowTransition `json:"transitions"`
	Warnings    []string              `json:"warnings,omitempty"`
}

// StatusInput is an authored status. Key falls back to Name when blank. A nil
// IsInitial or IsFinal leaves the flag to the merge and normalization rules.
type StatusInput struct {
	Key             string          `json:"key"`
	Name            string          `json:"name"                       validate:"required"`
	Category        Category        `json:"category"                   validate:"required,oneof=TODO IN_PROGRESS DONE"`
	Color           *string         `json:"color,omitempty"`
	IsInitial       *bool           `json:"is_initial,omitempty"`
	IsFinal         *bool           `json:"is_final,omitempty"`
	Order           *int            `json:"order,omitempty"`
	VisibilityRules json.RawMessage `json:"visibility_rules,omitempty"`
	FieldLockRules  json.RawMessage `json:"field_lock_rules,omitempty"`
	StatusRefID     *string         `json:"status_ref_id,omitempty"`
}

// TransitionInput is an authored transition, addressed by status keys.
type TransitionInput struct {
	Key           *string         `json:"key,omitempty"`
	Name          string          `json:"name"                     validate:"required"`
	FromKey       string          `json:"from_key"                 validate:"required"`
	ToKey         string          `json:"to_key"                   validate:"required"`
	Conditions    json.RawMessage `json:"conditions,omitempty"`
	Validators    json.RawMessage `json:"validators,omitempty"`
	PostFunctions json.RawMessage `json:"post_functions,omitempty"`
	UITrigger     *UITrigger      `json:"ui_trigger,omitempty"     validate:"omitempty,oneof=button menu automatic"`
	Order         *int            `json:"order,omitempty"`
}

// TransitionRef addresses a transition by its endpoints.
type TransitionRef struct {
	FromKey string `json:"from_key" validate:"required"`
	ToKey   string `json:"to_key"   validate:"required"`
}

// WorkflowInput is the write model for creating a workflow.
type WorkflowInput struct {
	SpaceID           string            `json:"space_id"                      validate:"required"`
	Name              string            `json:"name"                          validate:"required"`
	Description       *string           `json:"description,omitempty"`
	IsDefault         bool              `json:"is_default,omitempty"`
	AIOptimized       bool              `json:"ai_optimized,omitempty"`
	Statuses          []StatusInput     `json:"statuses"                      validate:"dive"`
	Transitions       []TransitionInput `json:"transitions"                   validate:"dive"`
	LinkedTemplateIDs []string          `json:"linked_template_ids,omitempty"`
}

// WorkflowUpdateInput is the write model for partial updates. Nil fields are left
// unchanged. Supplying statuses, transitions or removals produces a new version;
// anything else is a metadata change.
type WorkflowUpdateInput struct {
	Name              *string           `json:"name,omitempty"                validate:"omitempty,min=1"`
	Description       *string           `json:"description,omitempty"`
	IsDefault         *bool             `json:"is_default,omitempty"`
	AIOptimized       *bool             `json:"ai_optimized,omitempty"`
	Statuses          []StatusInput     `json:"statuses,omitempty"            validate:"dive"`
	Transitions       []TransitionInput `json:"transitions,omitempty"         validate:"dive"`
	RemoveStatuses    []string          `json:"remove_statuses,omitempty"`
	RemoveTransitions []TransitionRef   `json:"remove_transitions,omitempty"  validate:"dive"`
	LinkedTemplateIDs *[]string         `json:"linked_template_ids,omitempty"`
}

// Structural reports whether the update touches the graph.
func (u *WorkflowUpdateInput) Structural() bool {
	return len(u.Statuses) > 0 ||
		len(u.Transitions) > 0 ||
		len(u.RemoveStatuses) > 0 ||
		len(u.RemoveTransitions) > 0
}

// SuggestionField summarizes one field of the template a suggestion is made for.
type SuggestionField struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Label    string `json:"label"`
	Required bool   `json:"required,omitempty"`
}

// SuggestionRequest carries the hints a suggestion is generated from.
type SuggestionRequest struct {
	TemplateID   *string           `json:"template_id,omitempty"`
	TemplateName *string           `json:"template_name,omitempty"`
	Fields       []SuggestionField `json:"fields"`
	SpaceID      *string           `json:"space_id,omitempty"`
	Prompt       *string           `json:"prompt,omitempty"`
}

// ToStatus converts the input into a candidate status for normalization.
func (in StatusInput) ToStatus(position int) *WorkflowStatus {
	order := position
	if in.Order != nil {
		order = *in.Order
	}

	return &WorkflowStatus{
		Key:             in.Key,
		Name:            in.Name,
		Category:        in.Category,
		Color:           cloneString(in.Color),
		IsInitial:       in.IsInitial != nil && *in.IsInitial,
		IsFinal:         in.IsFinal != nil && *in.IsFinal,
		Order:           order,
		VisibilityRules: cloneRaw(in.VisibilityRules),
		FieldLockRules:  cloneRaw(in.FieldLockRules),
		StatusRefID:     cloneString(in.StatusRefID),
	}
}

// ToTransition converts the input into a candidate transition for sanitization.
func (in TransitionInput) ToTransition(position int) *WorkflowTransition {
	order := position
	if in.Order != nil {
		order = *in.Order
	}

	t := &WorkflowTransition{
		Key:           cloneString(in.Key),
		Name:          in.Name,
		FromKey:       in.FromKey,
		ToKey:         in.ToKey,
		Order:         order,
		Conditions:    cloneRaw(in.Conditions),
		Validators:    cloneRaw(in.Validators),
		PostFunctions: cloneRaw(in.PostFunctions),
	}

	if in.UITrigger != nil {
		trigger := *in.UITrigger
		t.UITrigger = &trigger
	}

	return t
}

// StatusInputs converts authored statuses, keeping their relative order.
func StatusInputs(inputs []StatusInput) []*WorkflowStatus {
	statuses := make([]*WorkflowStatus, 0, len(inputs))
	for i, in := range inputs {
		statuses = append(statuses, in.ToStatus(i))
	}

	return statuses
}

// TransitionInputs converts authored transitions, keeping their relative order.
func TransitionInputs(inputs []TransitionInput) []*WorkflowTransition {
	transitions := make([]*WorkflowTransition, 0, len(inputs))
	for i, in := range inputs {
		transitions = append(transitions, in.ToTransition(i))
	}

	return transitions
}

// Issue is a blocking problem in a workflow graph.
type Issue struct {
	Code    string `json:"code"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s at %s: %s", i.Code, i.Path, i.Message)
}

// Suggestion is a generated candidate graph. Issues is non-empty only when the
// candidate failed validation and must not be accepted as is.
type Suggestion struct {
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	Statuses        []*WorkflowStatus     `json:"statuses"`
	Transitions     []*WorkflowTransition `json:"transitions"`
	Recommendations []string              `json:"recommendations"`
	Warnings        []string              `json:"warnings"`
	Issues          []Issue               `json:"issues,omitempty"`
}

// FlagOf returns a set flag as a pointer and nil for false.
func FlagOf(v bool) *bool {
	if !v {
		return nil
	}

	return &v
}
