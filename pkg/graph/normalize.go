package graph

import (
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
)

// NormalizeStatuses repairs a candidate status list so that keys are normalized and
// unique, order is contiguous, and exactly one status is initial and one is final.
// It returns the repaired list and a warning for every correction, in the order
// they were applied.
func NormalizeStatuses(candidates []*models.WorkflowStatus) ([]*models.WorkflowStatus, []string) {
	warnings := make([]string, 0)
	statuses := make([]*models.WorkflowStatus, 0, len(candidates))
	seen := make(map[string]string, len(candidates))

	for i, candidate := range candidates {
		if candidate == nil {
			warnings = append(warnings, fmt.Sprintf("Dropped status at position %d: it is empty.", i+1))

			continue
		}

		key := models.KeyOf(candidate.Key, candidate.Name)
		if key == "" {
			warnings = append(warnings, fmt.Sprintf("Dropped status at position %d: it has no key or name.", i+1))

			continue
		}

		if first, ok := seen[key]; ok {
			warnings = append(warnings, fmt.Sprintf(
				"Dropped duplicate status %q (key %q); %q was kept.", candidate.Name, key, first))

			continue
		}

		status := candidate.Clone()
		status.Key = key
		seen[key] = status.Name
		statuses = append(statuses, status)
	}

	if len(statuses) == 0 {
		warnings = append(warnings, "No valid statuses were provided; a default To Do and Done flow was generated.")
		statuses = fallbackStatuses()
	}

	for i, status := range statuses {
		status.Order = i
	}

	warnings = append(warnings, enforceInitial(statuses)...)
	warnings = append(warnings, enforceFinal(statuses)...)

	return statuses, warnings
}

// enforceInitial keeps the first status marked initial, or promotes the first status.
func enforceInitial(statuses []*models.WorkflowStatus) []string {
	var (
		warnings []string
		keeper   *models.WorkflowStatus
	)

	for _, status := range statuses {
		if !status.IsInitial {
			continue
		}

		if keeper == nil {
			keeper = status

			continue
		}

		status.IsInitial = false
		warnings = append(warnings, fmt.Sprintf(
			"Status %q was also marked initial and has been demoted; %q stays the initial status.",
			status.Name, keeper.Name))
	}

	if keeper == nil {
		statuses[0].IsInitial = true
		warnings = append(warnings, fmt.Sprintf(
			"No status was marked initial; %q is now the initial status.", statuses[0].Name))
	}

	return warnings
}

// enforceFinal keeps the last status marked final, or promotes the last status.
func enforceFinal(statuses []*models.WorkflowStatus) []string {
	var (
		warnings []string
		keeper   *models.WorkflowStatus
	)

	for i := len(statuses) - 1; i >= 0; i-- {
		if statuses[i].IsFinal {
			keeper = statuses[i]

			break
		}
	}

	if keeper == nil {
		last := statuses[len(statuses)-1]
		last.IsFinal = true

		return []string{fmt.Sprintf("No status was marked final; %q is now the final status.", last.Name)}
	}

	for _, status := range statuses {
		if status == keeper || !status.IsFinal {
			continue
		}

		status.IsFinal = false
		warnings = append(warnings, fmt.Sprintf(
			"Status %q was also marked final and has been demoted; %q stays the final status.",
			status.Name, keeper.Name))
	}

	return warnings
}

func fallbackStatuses() []*models.WorkflowStatus {
	return []*models.WorkflowStatus{
		{Key: "todo", Name: "To Do", Category: models.CategoryTodo, IsInitial: true},
		{Key: "done", Name: "Done", Category: models.CategoryDone, IsFinal: true},
	}
}
