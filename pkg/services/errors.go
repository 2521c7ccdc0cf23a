// Package services implements the workflow version manager and the suggestion
// pipeline on top of a transactional persistence layer.
package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest = errors.New("invalid request")

	// Authoring Errors (422 Unprocessable Entity).
	ErrInvalidGraph       = errors.New("invalid workflow graph")
	ErrStatusesRequired   = errors.New("workflow must have at least one status")
	ErrSuggestionRejected = errors.New("suggested workflow failed validation")

	// Referential Integrity Conflicts (409 Conflict).
	ErrWorkflowInUse = errors.New("workflow is in use")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// GraphError reports every blocking issue found in a candidate graph, together with
// the corrections applied before validation ran.
type GraphError struct {
	Op       string
	Issues   []models.Issue
	Warnings []string
	Err      error
}

func (e *GraphError) Error() string {
	if len(e.Issues) == 0 {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	messages := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		messages = append(messages, issue.String())
	}

	return fmt.Sprintf("%s: %v: %s", e.Op, e.Err, strings.Join(messages, "; "))
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

func (e *GraphError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a request validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsGraphError checks if an error carries graph issues that should return HTTP 422.
func IsGraphError(err error) bool {
	return errors.Is(err, ErrInvalidGraph) ||
		errors.Is(err, ErrStatusesRequired) ||
		errors.Is(err, ErrSuggestionRejected)
}

// IsConflictError checks if an error is a referential conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowInUse)
}

// IsWorkflowNotFound checks if an error names an unknown workflow or version.
func IsWorkflowNotFound(err error) bool {
	return persistence.IsWorkflowNotFound(err) || persistence.IsVersionNotFound(err)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return IsWorkflowNotFound(err) || persistence.IsTaskNotAssigned(err)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     ErrInvalidRequest,
	}
}

func newGraphError(op string, issues []models.Issue, warnings []string, err error) *GraphError {
	return &GraphError{
		Op:       op,
		Issues:   issues,
		Warnings: warnings,
		Err:      err,
	}
}
