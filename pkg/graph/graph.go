// Package graph normalizes, sanitizes and validates workflow status graphs.
//
// Normalization and sanitization repair what they can and report every correction
// as a warning. Validation repairs nothing: it classifies whatever is still wrong
// as blocking issues. All functions are pure and never modify their inputs.
package graph

import "github.com/dukex/taskflow/pkg/models"

// Issue codes reported by Validate.
const (
	CodeNoStatuses              = "NO_STATUSES"
	CodeEmptyEntry              = "EMPTY_ENTRY"
	CodeEmptyKey                = "EMPTY_KEY"
	CodeEmptyName               = "EMPTY_NAME"
	CodeDuplicateKey            = "DUPLICATE_KEY"
	CodeDuplicateName           = "DUPLICATE_NAME"
	CodeInitialCount            = "INITIAL_COUNT"
	CodeFinalCount              = "FINAL_COUNT"
	CodeUnknownFrom             = "UNKNOWN_FROM"
	CodeUnknownTo               = "UNKNOWN_TO"
	CodeDuplicateTransitionName = "DUPLICATE_TRANSITION_NAME"
	CodeSelfLoop                = "SELF_LOOP"
)

// Issue is a blocking problem found by Validate.
type Issue = models.Issue

// Graph is one version's statuses and transitions.
type Graph struct {
	Statuses    []*models.WorkflowStatus
	Transitions []*models.WorkflowTransition
}

// Result is the outcome of running the full pipeline over a candidate graph.
type Result struct {
	Statuses    []*models.WorkflowStatus
	Transitions []*models.WorkflowTransition
	Warnings    []string
	Issues      []Issue
}

// Valid reports whether the pipeline found no blocking issues.
func (r *Result) Valid() bool {
	return len(r.Issues) == 0
}

// Normalize runs NormalizeStatuses, SanitizeTransitions and Validate in order.
func Normalize(statuses []*models.WorkflowStatus, transitions []*models.WorkflowTransition) *Result {
	finalStatuses, warnings := NormalizeStatuses(statuses)
	finalTransitions, transitionWarnings := SanitizeTransitions(finalStatuses, transitions)

	_, issues := Validate(Graph{Statuses: finalStatuses, Transitions: finalTransitions})

	return &Result{
		Statuses:    finalStatuses,
		Transitions: finalTransitions,
		Warnings:    append(warnings, transitionWarnings...),
		Issues:      issues,
	}
}

func transitionLabel(t *models.WorkflowTransition) string {
	if t.Name != "" {
		return t.Name
	}

	return t.FromKey + " -> " + t.ToKey
}
