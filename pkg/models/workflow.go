// Package models defines the core domain models for versioned task workflows.
package models

import (
	"encoding/json"
	"slices"
	"time"
)

// Category groups statuses by how far along a work item is.
type Category string

const (
	CategoryTodo       Category = "TODO"
	CategoryInProgress Category = "IN_PROGRESS"
	CategoryDone       Category = "DONE"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTodo, CategoryInProgress, CategoryDone:
		return true
	}

	return false
}

// UITrigger is how a transition is offered to a human operator.
type UITrigger string

const (
	UITriggerButton    UITrigger = "button"
	UITriggerMenu      UITrigger = "menu"
	UITriggerAutomatic UITrigger = "automatic"
)

// Workflow is the durable identity of a lifecycle definition. Its statuses and
// transitions live in immutable snapshots addressed by (ID, Version).
type Workflow struct {
	ID          string    `json:"id"`
	SpaceID     string    `json:"space_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	IsDefault   bool      `json:"is_default"`
	AIOptimized bool      `json:"ai_optimized"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	CreatedBy   string    `json:"created_by"`
	UpdatedBy   string    `json:"updated_by"`
}

// WorkflowStatus is a node of one workflow version.
type WorkflowStatus struct {
	ID              string          `json:"id"`
	Key             string          `json:"key"`
	Name            string          `json:"name"`
	Category        Category        `json:"category"`
	Color           *string         `json:"color,omitempty"`
	IsInitial       bool            `json:"is_initial"`
	IsFinal         bool            `json:"is_final"`
	Order           int             `json:"order"`
	VisibilityRules json.RawMessage `json:"visibility_rules,omitempty"`
	FieldLockRules  json.RawMessage `json:"field_lock_rules,omitempty"`
	StatusRefID     *string         `json:"status_ref_id,omitempty"`
}

// WorkflowTransition is a directed edge between two statuses of the same version.
// Conditions, Validators and PostFunctions are opaque to the engine.
type WorkflowTransition struct {
	ID            string          `json:"id"`
	Key           *string         `json:"key,omitempty"`
	Name          string          `json:"name"`
	FromID        string          `json:"from_id"`
	ToID          string          `json:"to_id"`
	FromKey       string          `json:"from_key"`
	ToKey         string          `json:"to_key"`
	Order         int             `json:"order"`
	UITrigger     *UITrigger      `json:"ui_trigger,omitempty"`
	Conditions    json.RawMessage `json:"conditions,omitempty"`
	Validators    json.RawMessage `json:"validators,omitempty"`
	PostFunctions json.RawMessage `json:"post_functions,omitempty"`
}

// AuditAction names a structural change recorded in the audit trail.
type AuditAction string

const (
	AuditActionCreated  AuditAction = "CREATED"
	AuditActionUpdated  AuditAction = "UPDATED"
	AuditActionRestored AuditAction = "RESTORED"
)

// WorkflowAudit is one entry of a workflow's audit trail.
type WorkflowAudit struct {
	ID            string      `json:"id"`
	WorkflowID    string      `json:"workflow_id"`
	Action        AuditAction `json:"action"`
	Actor         string      `json:"actor"`
	Version       int         `json:"version"`
	ChangedFields []string    `json:"changed_fields,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// TaskAssignment pins a task to the workflow version it was created under.
type TaskAssignment struct {
	TaskID     string    `json:"task_id"`
	WorkflowID string    `json:"workflow_id"`
	Version    int       `json:"version"`
	AssignedAt time.Time `json:"assigned_at"`
}

// ReferenceCount is how many external consumers point at a workflow.
type ReferenceCount struct {
	Templates int `json:"templates"`
	Tasks     int `json:"tasks"`
}

// InUse reports whether anything still references the workflow.
func (r ReferenceCount) InUse() bool {
	return r.Templates > 0 || r.Tasks > 0
}

// Clone returns a deep copy of the status.
func (s *WorkflowStatus) Clone() *WorkflowStatus {
	if s == nil {
		return nil
	}

	c := *s
	c.Color = cloneString(s.Color)
	c.StatusRefID = cloneString(s.StatusRefID)
	c.VisibilityRules = cloneRaw(s.VisibilityRules)
	c.FieldLockRules = cloneRaw(s.FieldLockRules)

	return &c
}

// Clone returns a deep copy of the transition.
func (t *WorkflowTransition) Clone() *WorkflowTransition {
	if t == nil {
		return nil
	}

	c := *t
	c.Key = cloneString(t.Key)

	if t.UITrigger != nil {
		trigger := *t.UITrigger
		c.UITrigger = &trigger
	}

	c.Conditions = cloneRaw(t.Conditions)
	c.Validators = cloneRaw(t.Validators)
	c.PostFunctions = cloneRaw(t.PostFunctions)

	return &c
}

// Clone returns a copy of the workflow record.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}

	c := *w
	c.Description = cloneString(w.Description)

	return &c
}

// Clone returns a deep copy of the audit entry.
func (a *WorkflowAudit) Clone() *WorkflowAudit {
	if a == nil {
		return nil
	}

	c := *a
	c.ChangedFields = slices.Clone(a.ChangedFields)

	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}

	v := *s

	return &v
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}

	return slices.Clone(raw)
}
