package graph

import (
	"fmt"
	"strings"

	"github.com/dukex/taskflow/pkg/models"
)

// Validate reports every structural problem left in g. It is stricter than the
// repair passes and changes nothing: a graph is acceptable only when no issue
// is returned.
func Validate(g Graph) (bool, []Issue) {
	issues := make([]Issue, 0)

	if len(g.Statuses) == 0 {
		issues = append(issues, Issue{
			Code:    CodeNoStatuses,
			Path:    "statuses",
			Message: "a workflow needs at least one status",
		})
	}

	keys := make(map[string]struct{}, len(g.Statuses))
	names := make(map[string]struct{}, len(g.Statuses))
	initials, finals := 0, 0

	for i, status := range g.Statuses {
		path := fmt.Sprintf("statuses[%d]", i)
		if status == nil {
			issues = append(issues, Issue{Code: CodeEmptyEntry, Path: path, Message: "status is empty"})

			continue
		}

		key := models.NormalizeKey(status.Key)
		name := strings.ToLower(strings.TrimSpace(status.Name))

		if key == "" {
			issues = append(issues, Issue{Code: CodeEmptyKey, Path: path + ".key", Message: "status key is required"})
		} else if _, ok := keys[key]; ok {
			issues = append(issues, Issue{
				Code:    CodeDuplicateKey,
				Path:    path + ".key",
				Message: fmt.Sprintf("status key %q is used more than once", key),
			})
		} else {
			keys[key] = struct{}{}
		}

		if name == "" {
			issues = append(issues, Issue{Code: CodeEmptyName, Path: path + ".name", Message: "status name is required"})
		} else if _, ok := names[name]; ok {
			issues = append(issues, Issue{
				Code:    CodeDuplicateName,
				Path:    path + ".name",
				Message: fmt.Sprintf("status name %q is used more than once", status.Name),
			})
		} else {
			names[name] = struct{}{}
		}

		if status.IsInitial {
			initials++
		}

		if status.IsFinal {
			finals++
		}
	}

	if len(g.Statuses) > 0 && initials != 1 {
		issues = append(issues, Issue{
			Code:    CodeInitialCount,
			Path:    "statuses",
			Message: fmt.Sprintf("exactly one status must be initial, found %d", initials),
		})
	}

	if len(g.Statuses) > 0 && finals != 1 {
		issues = append(issues, Issue{
			Code:    CodeFinalCount,
			Path:    "statuses",
			Message: fmt.Sprintf("exactly one status must be final, found %d", finals),
		})
	}

	transitionNames := make(map[[2]string]struct{}, len(g.Transitions))

	for i, transition := range g.Transitions {
		path := fmt.Sprintf("transitions[%d]", i)
		if transition == nil {
			issues = append(issues, Issue{Code: CodeEmptyEntry, Path: path, Message: "transition is empty"})

			continue
		}

		from := models.NormalizeKey(transition.FromKey)
		to := models.NormalizeKey(transition.ToKey)
		label := transitionLabel(transition)

		if _, ok := keys[from]; !ok {
			issues = append(issues, Issue{
				Code:    CodeUnknownFrom,
				Path:    path + ".from_key",
				Message: fmt.Sprintf("transition %q starts at unknown status %q", label, transition.FromKey),
			})
		}

		if _, ok := keys[to]; !ok {
			issues = append(issues, Issue{
				Code:    CodeUnknownTo,
				Path:    path + ".to_key",
				Message: fmt.Sprintf("transition %q ends at unknown status %q", label, transition.ToKey),
			})
		}

		if from == to {
			issues = append(issues, Issue{
				Code:    CodeSelfLoop,
				Path:    path,
				Message: fmt.Sprintf("transition %q loops from %q back to itself", label, transition.FromKey),
			})
		}

		name := [2]string{from, strings.ToLower(strings.TrimSpace(transition.Name))}
		if name[1] == "" {
			continue
		}

		if _, ok := transitionNames[name]; ok {
			issues = append(issues, Issue{
				Code:    CodeDuplicateTransitionName,
				Path:    path + ".name",
				Message: fmt.Sprintf("more than one transition leaving %q is named %q", from, transition.Name),
			})
		} else {
			transitionNames[name] = struct{}{}
		}
	}

	return len(issues) == 0, issues
}
