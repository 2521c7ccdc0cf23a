// Package events defines the lifecycle events published after a workflow change commits.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Topic carries every workflow lifecycle event.
const Topic = "taskflow.workflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"
const SpaceIDMetadataKey = "space_id"

const (
	WorkflowCreatedEvent        EventType = "workflow.created"
	WorkflowVersionCreatedEvent EventType = "workflow.version.created"
	WorkflowUpdatedEvent        EventType = "workflow.updated"
	WorkflowDeletedEvent        EventType = "workflow.deleted"
	TaskAssignedEvent           EventType = "workflow.task.assigned"
	TaskReleasedEvent           EventType = "workflow.task.released"
)

type BaseEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	SpaceID    string    `json:"space_id"`
	WorkflowID string    `json:"workflow_id"`
	Actor      string    `json:"actor,omitempty"`
}

// NewBaseEvent stamps a new event with an id and the current time.
func NewBaseEvent(eventType EventType, spaceID, workflowID, actor string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		SpaceID:    spaceID,
		WorkflowID: workflowID,
		Actor:      actor,
	}
}

func (e BaseEvent) GetSpaceID() string {
	return e.SpaceID
}

// WorkflowCreated is published when a workflow is created at version 1, including
// through duplication.
type WorkflowCreated struct {
	BaseEvent

	Name         string  `json:"name"`
	Version      int     `json:"version"`
	IsDefault    bool    `json:"is_default"`
	DuplicatedOf *string `json:"duplicated_of,omitempty"`
}

func (e WorkflowCreated) GetType() EventType {
	return WorkflowCreatedEvent
}

// WorkflowVersionCreated is published when a structural update or a restore writes
// a new version.
type WorkflowVersionCreated struct {
	BaseEvent

	Version         int      `json:"version"`
	PreviousVersion int      `json:"previous_version"`
	RestoredFrom    *int     `json:"restored_from,omitempty"`
	ChangedFields   []string `json:"changed_fields"`
}

func (e WorkflowVersionCreated) GetType() EventType {
	return WorkflowVersionCreatedEvent
}

// WorkflowUpdated is published when only metadata changed.
type WorkflowUpdated struct {
	BaseEvent

	Version       int      `json:"version"`
	ChangedFields []string `json:"changed_fields"`
}

func (e WorkflowUpdated) GetType() EventType {
	return WorkflowUpdatedEvent
}

type WorkflowDeleted struct {
	BaseEvent

	Version int `json:"version"`
}

func (e WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

type TaskAssigned struct {
	BaseEvent

	TaskID  string `json:"task_id"`
	Version int    `json:"version"`
}

func (e TaskAssigned) GetType() EventType {
	return TaskAssignedEvent
}

type TaskReleased struct {
	BaseEvent

	TaskID  string `json:"task_id"`
	Version int    `json:"version"`
}

func (e TaskReleased) GetType() EventType {
	return TaskReleasedEvent
}
