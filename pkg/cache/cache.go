// Package cache holds read-through copies of immutable workflow snapshots. A
// (workflowID, version) pair never changes once written, so entries need no
// invalidation other than removal when the workflow is deleted.
package cache

import (
	"context"

	"github.com/dukex/taskflow/pkg/models"
)

// Snapshot is the graph of one workflow version.
type Snapshot struct {
	Statuses    []*models.WorkflowStatus
	Transitions []*models.WorkflowTransition
}

// Cache stores snapshots by (workflowID, version).
type Cache interface {
	// Get returns the snapshot and whether it was found.
	Get(ctx context.Context, workflowID string, version int) (*Snapshot, bool, error)
	Set(ctx context.Context, workflowID string, version int, snapshot *Snapshot) error
	// Purge drops every version of the workflow.
	Purge(ctx context.Context, workflowID string) error

	Close() error
}

// Noop is a Cache that stores nothing.
type Noop struct{}

func (Noop) Get(context.Context, string, int) (*Snapshot, bool, error) {
	return nil, false, nil
}

func (Noop) Set(context.Context, string, int, *Snapshot) error {
	return nil
}

func (Noop) Purge(context.Context, string) error {
	return nil
}

func (Noop) Close() error {
	return nil
}
