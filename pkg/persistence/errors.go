package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found in the requested space.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrVersionNotFound indicates the workflow exists but has no such version.
	ErrVersionNotFound = errors.New("workflow version not found")

	// ErrTaskNotAssigned indicates a task is not pinned to any workflow.
	ErrTaskNotAssigned = errors.New("task not assigned")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "Get", "Update", "Delete")
	WorkflowID string // Workflow ID if applicable
	Version    int    // Version if applicable
	Err        error  // Underlying error
}

func (e *WorkflowError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("%s operation failed for workflow %s version %d: %v", e.Op, e.WorkflowID, e.Version, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// NewVersionError creates a new workflow error for a specific version.
func NewVersionError(op, workflowID string, version int, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Version:    version,
		Err:        err,
	}
}

// TaskError wraps task assignment errors with additional context.
type TaskError struct {
	Op     string // Operation being performed
	TaskID string // Task ID
	Err    error  // Underlying error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s operation failed for task %s: %v", e.Op, e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

func (e *TaskError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsVersionNotFound checks if an error indicates a workflow version was not found.
func IsVersionNotFound(err error) bool {
	return errors.Is(err, ErrVersionNotFound)
}

// IsTaskNotAssigned checks if an error indicates a task has no assignment.
func IsTaskNotAssigned(err error) bool {
	return errors.Is(err, ErrTaskNotAssigned)
}
