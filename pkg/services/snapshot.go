package services

import (
	"context"
	"fmt"

	"github.com/dukex/taskflow/pkg/cache"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/google/uuid"
)

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// validID reports whether id could have been issued by newID. Anything else can
// never name a stored record.
func validID(id string) bool {
	_, err := uuid.Parse(id)

	return err == nil
}

// writeSnapshot stores a normalized graph as the given version. Statuses get fresh
// ids and transitions are resolved to them by key; a transition whose keys do not
// resolve aborts the write.
func writeSnapshot(
	ctx context.Context,
	tx persistence.SnapshotRepository,
	workflowID string,
	version int,
	statuses []*models.WorkflowStatus,
	transitions []*models.WorkflowTransition,
) (*cache.Snapshot, error) {
	snapshot := &cache.Snapshot{
		Statuses:    make([]*models.WorkflowStatus, 0, len(statuses)),
		Transitions: make([]*models.WorkflowTransition, 0, len(transitions)),
	}

	ids := make(map[string]string, len(statuses))

	for _, candidate := range statuses {
		status := candidate.Clone()
		status.ID = newID()

		if err := tx.InsertStatus(ctx, workflowID, version, status); err != nil {
			return nil, fmt.Errorf("failed to insert status %q: %w", status.Key, err)
		}

		ids[status.Key] = status.ID
		snapshot.Statuses = append(snapshot.Statuses, status)
	}

	for _, candidate := range transitions {
		transition := candidate.Clone()

		fromID, fromOK := ids[transition.FromKey]
		toID, toOK := ids[transition.ToKey]

		if !fromOK || !toOK {
			return nil, fmt.Errorf("%w: transition %q from %q to %q does not resolve",
				ErrInvalidGraph, transition.Name, transition.FromKey, transition.ToKey)
		}

		transition.ID = newID()
		transition.FromID = fromID
		transition.ToID = toID

		if err := tx.InsertTransition(ctx, workflowID, version, transition); err != nil {
			return nil, fmt.Errorf("failed to insert transition %q: %w", transition.Name, err)
		}

		snapshot.Transitions = append(snapshot.Transitions, transition)
	}

	return snapshot, nil
}

// readSnapshot loads one version, preferring the cache. The returned flag is true
// when the snapshot came from the store and should be cached once the transaction
// commits.
func (w *Workflow) readSnapshot(
	ctx context.Context,
	tx persistence.SnapshotRepository,
	workflowID string,
	version int,
) (*cache.Snapshot, bool, error) {
	cached, found, err := w.cache.Get(ctx, workflowID, version)
	if err != nil {
		w.logger.WarnContext(ctx, "snapshot cache read failed", "workflow_id", workflowID, "version", version, "error", err)
	}

	if found && err == nil {
		return cached, false, nil
	}

	statuses, err := tx.Statuses(ctx, workflowID, version)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read statuses: %w", err)
	}

	transitions, err := tx.Transitions(ctx, workflowID, version)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read transitions: %w", err)
	}

	return &cache.Snapshot{Statuses: statuses, Transitions: transitions}, true, nil
}

// remember primes the cache after commit. Failures only cost a later cache miss.
func (w *Workflow) remember(ctx context.Context, workflowID string, version int, snapshot *cache.Snapshot) {
	if snapshot == nil {
		return
	}

	if err := w.cache.Set(ctx, workflowID, version, snapshot); err != nil {
		w.logger.WarnContext(ctx, "snapshot cache write failed", "workflow_id", workflowID, "version", version, "error", err)
	}
}

func newSummary(workflow *models.Workflow, links []string) *models.WorkflowSummary {
	if links == nil {
		links = []string{}
	}

	return &models.WorkflowSummary{
		Workflow:          *workflow.Clone(),
		LinkedTemplateIDs: links,
	}
}

func newDetail(
	workflow *models.Workflow,
	links []string,
	snapshot *cache.Snapshot,
	warnings []string,
) *models.WorkflowDetail {
	detail := &models.WorkflowDetail{
		WorkflowSummary: *newSummary(workflow, links),
		Statuses:        []*models.WorkflowStatus{},
		Transitions:     []*models.WorkflowTransition{},
		Warnings:        warnings,
	}

	if snapshot != nil {
		for _, status := range snapshot.Statuses {
			detail.Statuses = append(detail.Statuses, status.Clone())
		}

		for _, transition := range snapshot.Transitions {
			detail.Transitions = append(detail.Transitions, transition.Clone())
		}
	}

	return detail
}
