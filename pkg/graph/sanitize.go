package graph

import (
	"fmt"

	"github.com/dukex/taskflow/pkg/models"
)

// SanitizeTransitions drops transitions whose endpoints are not among statuses and
// later duplicates of an endpoint pair, then renumbers the survivors. Self-loops are
// left in place for Validate to reject.
func SanitizeTransitions(
	statuses []*models.WorkflowStatus,
	candidates []*models.WorkflowTransition,
) ([]*models.WorkflowTransition, []string) {
	warnings := make([]string, 0)

	keys := make(map[string]struct{}, len(statuses))
	for _, status := range statuses {
		keys[models.NormalizeKey(status.Key)] = struct{}{}
	}

	transitions := make([]*models.WorkflowTransition, 0, len(candidates))
	pairs := make(map[[2]string]struct{}, len(candidates))

	for _, candidate := range candidates {
		if candidate == nil {
			continue
		}

		transition := candidate.Clone()
		transition.FromKey = models.NormalizeKey(transition.FromKey)
		transition.ToKey = models.NormalizeKey(transition.ToKey)
		label := transitionLabel(transition)

		if _, ok := keys[transition.FromKey]; !ok {
			warnings = append(warnings, fmt.Sprintf(
				"Dropped transition %q: source status %q does not exist.", label, transition.FromKey))

			continue
		}

		if _, ok := keys[transition.ToKey]; !ok {
			warnings = append(warnings, fmt.Sprintf(
				"Dropped transition %q: target status %q does not exist.", label, transition.ToKey))

			continue
		}

		pair := [2]string{transition.FromKey, transition.ToKey}
		if _, ok := pairs[pair]; ok {
			warnings = append(warnings, fmt.Sprintf(
				"Dropped duplicate transition %q from %q to %q; the first one was kept.",
				label, transition.FromKey, transition.ToKey))

			continue
		}

		pairs[pair] = struct{}{}
		transitions = append(transitions, transition)
	}

	for i, transition := range transitions {
		transition.Order = i
	}

	if len(transitions) == 0 {
		warnings = append(warnings, "No valid transitions were produced.")
	}

	return transitions, warnings
}
