package services

import (
	"github.com/dukex/taskflow/pkg/models"
)

// mergeStatuses lays the authored statuses over the current version. A supplied
// status replaces the current one with the same key in place; unknown keys are
// appended. Statuses named in remove are left out. When the supplied statuses mark
// an initial or final status, carried-forward statuses lose that flag; otherwise a
// replacement that leaves a flag unset keeps the flag of the status it replaces.
func mergeStatuses(
	current []*models.WorkflowStatus,
	supplied []models.StatusInput,
	remove []string,
) []*models.WorkflowStatus {
	removed := make(map[string]struct{}, len(remove))
	for _, key := range remove {
		removed[models.NormalizeKey(key)] = struct{}{}
	}

	replacements := make(map[string]*models.WorkflowStatus, len(supplied))
	inputs := make(map[string]models.StatusInput, len(supplied))
	appended := make([]*models.WorkflowStatus, 0, len(supplied))

	var suppliedInitial, suppliedFinal bool

	for i, in := range supplied {
		status := in.ToStatus(len(current) + i)
		status.Key = models.KeyOf(in.Key, in.Name)

		suppliedInitial = suppliedInitial || status.IsInitial
		suppliedFinal = suppliedFinal || status.IsFinal

		if _, ok := replacements[status.Key]; ok || status.Key == "" {
			// Later duplicates and blank keys go through normalization, which drops
			// them with a warning.
			appended = append(appended, status)

			continue
		}

		replacements[status.Key] = status
		inputs[status.Key] = in
	}

	merged := make([]*models.WorkflowStatus, 0, len(current)+len(supplied))
	used := make(map[string]struct{}, len(replacements))

	for _, existing := range current {
		key := models.NormalizeKey(existing.Key)
		if _, ok := removed[key]; ok {
			continue
		}

		if replacement, ok := replacements[key]; ok {
			replacement.Order = existing.Order

			if inputs[key].IsInitial == nil && !suppliedInitial {
				replacement.IsInitial = existing.IsInitial
			}

			if inputs[key].IsFinal == nil && !suppliedFinal {
				replacement.IsFinal = existing.IsFinal
			}

			merged = append(merged, replacement)
			used[key] = struct{}{}

			continue
		}

		carried := existing.Clone()
		carried.ID = ""

		if suppliedInitial {
			carried.IsInitial = false
		}

		if suppliedFinal {
			carried.IsFinal = false
		}

		merged = append(merged, carried)
	}

	for _, in := range supplied {
		key := models.KeyOf(in.Key, in.Name)
		if _, ok := used[key]; ok {
			continue
		}

		if replacement, ok := replacements[key]; ok {
			if _, gone := removed[key]; gone {
				continue
			}

			merged = append(merged, replacement)
			used[key] = struct{}{}
		}
	}

	return append(merged, appended...)
}

// mergeTransitions lays the authored transitions over the current version, keyed
// by their (from, to) pair. Transitions named in remove are left out. Transitions
// whose endpoints no longer exist are kept here and dropped by sanitization.
func mergeTransitions(
	current []*models.WorkflowTransition,
	supplied []models.TransitionInput,
	remove []models.TransitionRef,
) []*models.WorkflowTransition {
	removed := make(map[[2]string]struct{}, len(remove))
	for _, ref := range remove {
		removed[pairOf(ref.FromKey, ref.ToKey)] = struct{}{}
	}

	replacements := make(map[[2]string]*models.WorkflowTransition, len(supplied))
	order := make([][2]string, 0, len(supplied))
	extra := make([]*models.WorkflowTransition, 0)

	for i, in := range supplied {
		transition := in.ToTransition(len(current) + i)
		pair := pairOf(transition.FromKey, transition.ToKey)

		if _, ok := replacements[pair]; ok {
			extra = append(extra, transition)

			continue
		}

		replacements[pair] = transition
		order = append(order, pair)
	}

	merged := make([]*models.WorkflowTransition, 0, len(current)+len(supplied))
	used := make(map[[2]string]struct{}, len(replacements))

	for _, existing := range current {
		pair := pairOf(existing.FromKey, existing.ToKey)
		if _, ok := removed[pair]; ok {
			continue
		}

		if replacement, ok := replacements[pair]; ok {
			merged = append(merged, replacement)
			used[pair] = struct{}{}

			continue
		}

		carried := existing.Clone()
		carried.ID = ""
		carried.FromID = ""
		carried.ToID = ""
		merged = append(merged, carried)
	}

	for _, pair := range order {
		if _, ok := used[pair]; ok {
			continue
		}

		if _, ok := removed[pair]; ok {
			continue
		}

		merged = append(merged, replacements[pair])
	}

	return append(merged, extra...)
}

func pairOf(from, to string) [2]string {
	return [2]string{models.NormalizeKey(from), models.NormalizeKey(to)}
}

// statusInputs converts a stored graph back into authoring input.
func statusInputs(statuses []*models.WorkflowStatus) []models.StatusInput {
	inputs := make([]models.StatusInput, 0, len(statuses))

	for _, status := range statuses {
		c := status.Clone()
		order := c.Order

		inputs = append(inputs, models.StatusInput{
			Key:             c.Key,
			Name:            c.Name,
			Category:        c.Category,
			Color:           c.Color,
			IsInitial:       models.FlagOf(c.IsInitial),
			IsFinal:         models.FlagOf(c.IsFinal),
			Order:           &order,
			VisibilityRules: c.VisibilityRules,
			FieldLockRules:  c.FieldLockRules,
			StatusRefID:     c.StatusRefID,
		})
	}

	return inputs
}

// transitionInputs converts stored transitions back into authoring input.
func transitionInputs(transitions []*models.WorkflowTransition) []models.TransitionInput {
	inputs := make([]models.TransitionInput, 0, len(transitions))

	for _, transition := range transitions {
		c := transition.Clone()
		order := c.Order

		inputs = append(inputs, models.TransitionInput{
			Key:           c.Key,
			Name:          c.Name,
			FromKey:       c.FromKey,
			ToKey:         c.ToKey,
			Conditions:    c.Conditions,
			Validators:    c.Validators,
			PostFunctions: c.PostFunctions,
			UITrigger:     c.UITrigger,
			Order:         &order,
		})
	}

	return inputs
}
