package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/dukex/taskflow/pkg/persistence"
)

// reconcileTemplateLinks makes targetIDs the exact set of templates linked to the
// workflow. Templates no longer listed are detached, new ones are attached, and
// templates already linked are left alone. It returns the resulting sorted set and
// whether anything changed.
func reconcileTemplateLinks(
	ctx context.Context,
	tx persistence.ReferenceRepository,
	workflowID string,
	targetIDs []string,
) ([]string, bool, error) {
	current, err := tx.LinkedTemplateIDs(ctx, workflowID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read template links: %w", err)
	}

	target := normalizeIDs(targetIDs)
	changed := false

	for _, templateID := range current {
		if slices.Contains(target, templateID) {
			continue
		}

		if err := tx.UnlinkTemplate(ctx, templateID); err != nil {
			return nil, false, fmt.Errorf("failed to unlink template %s: %w", templateID, err)
		}

		changed = true
	}

	for _, templateID := range target {
		if slices.Contains(current, templateID) {
			continue
		}

		if err := tx.LinkTemplate(ctx, templateID, workflowID); err != nil {
			return nil, false, fmt.Errorf("failed to link template %s: %w", templateID, err)
		}

		changed = true
	}

	return target, changed, nil
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))

	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}

		out = append(out, id)
	}

	slices.Sort(out)

	return out
}
