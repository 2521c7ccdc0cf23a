package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
)

// RunPersistenceSuite exercises the persistence.Persistence contract. newStore must
// return an empty store; the suite never closes it.
func RunPersistenceSuite(t *testing.T, newStore func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("workflow records are scoped to their space", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		workflow := CreateTestWorkflow("space-1")

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			return tx.InsertWorkflow(ctx, workflow)
		}))

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			found, err := tx.WorkflowByID(ctx, "space-1", workflow.ID)
			require.NoError(t, err)
			assert.Equal(t, workflow.Name, found.Name)
			assert.Equal(t, 1, found.Version)
			assert.True(t, workflow.CreatedAt.Equal(found.CreatedAt))

			_, err = tx.WorkflowByID(ctx, "space-2", workflow.ID)
			assert.True(t, persistence.IsWorkflowNotFound(err))

			_, err = tx.LockWorkflow(ctx, "space-1", "missing")
			assert.True(t, persistence.IsWorkflowNotFound(err))

			listed, err := tx.Workflows(ctx, "space-2")
			require.NoError(t, err)
			assert.Empty(t, listed)

			return nil
		}))
	})

	t.Run("update and list", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		first := CreateTestWorkflow("space-1", WithWorkflowName("First"))
		second := CreateTestWorkflow("space-1", WithWorkflowName("Second"))
		second.CreatedAt = first.CreatedAt.Add(time.Second)

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			require.NoError(t, tx.InsertWorkflow(ctx, first))

			return tx.InsertWorkflow(ctx, second)
		}))

		description := "renamed"
		first.Name = "First Renamed"
		first.Description = &description
		first.Version = 2
		first.AIOptimized = true

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			return tx.UpdateWorkflow(ctx, first)
		}))

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			listed, err := tx.Workflows(ctx, "space-1")
			require.NoError(t, err)
			require.Len(t, listed, 2)
			assert.Equal(t, "First Renamed", listed[0].Name)
			require.NotNil(t, listed[0].Description)
			assert.Equal(t, "renamed", *listed[0].Description)
			assert.Equal(t, 2, listed[0].Version)
			assert.True(t, listed[0].AIOptimized)
			assert.Equal(t, "Second", listed[1].Name)

			return nil
		}))
	})

	t.Run("clear default keeps the excepted workflow", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		a := CreateTestWorkflow("space-1", WithDefault())
		b := CreateTestWorkflow("space-1")
		other := CreateTestWorkflow("space-2", WithDefault())

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			for _, w := range []*models.Workflow{a, b, other} {
				require.NoError(t, tx.InsertWorkflow(ctx, w))
			}

			return nil
		}))

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			require.NoError(t, tx.ClearDefault(ctx, "space-1", b.ID))

			b.IsDefault = true

			return tx.UpdateWorkflow(ctx, b)
		}))

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			got, err := tx.WorkflowByID(ctx, "space-1", a.ID)
			require.NoError(t, err)
			assert.False(t, got.IsDefault)

			got, err = tx.WorkflowByID(ctx, "space-1", b.ID)
			require.NoError(t, err)
			assert.True(t, got.IsDefault)

			got, err = tx.WorkflowByID(ctx, "space-2", other.ID)
			require.NoError(t, err)
			assert.True(t, got.IsDefault)

			return nil
		}))
	})

	t.Run("snapshots are addressed by version", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		workflow := CreateTestWorkflow("space-1")
		statuses, transitions := ThreeStepGraph()

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			require.NoError(t, tx.InsertWorkflow(ctx, workflow))

			// Inserted out of order to check reads sort by order.
			for i := len(statuses) - 1; i >= 0; i-- {
				require.NoError(t, tx.InsertStatus(ctx, workflow.ID, 1, statuses[i]))
			}

			for _, tr := range transitions {
				require.NoError(t, tx.InsertTransition(ctx, workflow.ID, 1, tr))
			}

			only := CreateTestStatus("todo", "To Do", models.CategoryTodo, 0)
			only.IsInitial, only.IsFinal = true, true

			return tx.InsertStatus(ctx, workflow.ID, 2, only)
		}))

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			v1, err := tx.Statuses(ctx, workflow.ID, 1)
			require.NoError(t, err)
			require.Len(t, v1, 3)
			assert.Equal(t, []string{"todo", "in-progress", "done"}, []string{v1[0].Key, v1[1].Key, v1[2].Key})
			assert.True(t, v1[0].IsInitial)
			assert.True(t, v1[2].IsFinal)
			assert.JSONEq(t, `{"roles":["member"]}`, string(v1[0].VisibilityRules))
			assert.Nil(t, v1[1].VisibilityRules)
			assert.Nil(t, v1[1].Color)

			trs, err := tx.Transitions(ctx, workflow.ID, 1)
			require.NoError(t, err)
			require.Len(t, trs, 2)
			assert.Equal(t, statuses[0].ID, trs[0].FromID)
			assert.Equal(t, "in-progress", trs[0].ToKey)
			assert.JSONEq(t, `{"assigneeOnly":true}`, string(trs[0].Conditions))
			assert.JSONEq(t, `{"preventOpenSubtasks":true}`, string(trs[1].Validators))
			assert.Nil(t, trs[1].Conditions)

			v2, err := tx.Statuses(ctx, workflow.ID, 2)
			require.NoError(t, err)
			assert.Len(t, v2, 1)

			v2t, err := tx.Transitions(ctx, workflow.ID, 2)
			require.NoError(t, err)
			assert.Empty(t, v2t)

			missing, err := tx.Statuses(ctx, workflow.ID, 9)
			require.NoError(t, err)
			assert.Empty(t, missing)

			return nil
		}))
	})

	t.Run("failed transaction leaves no trace", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		workflow := CreateTestWorkflow("space-1")
		statuses, _ := ThreeStepGraph()
		boom := errors.New("boom")

		err := store.WithTx(ctx, func(tx persistence.Tx) error {
			require.NoError(t, tx.InsertWorkflow(ctx, workflow))
			require.NoError(t, tx.InsertStatus(ctx, workflow.ID, 1, statuses[0]))
			require.NoError(t, tx.LinkTemplate(ctx, "template-1", workflow.ID))

			return boom
		})
		require.ErrorIs(t, err, boom)

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			_, err := tx.WorkflowByID(ctx, "space-1", workflow.ID)
			assert.True(t, persistence.IsWorkflowNotFound(err))

			left, err := tx.Statuses(ctx, workflow.ID, 1)
			require.NoError(t, err)
			assert.Empty(t, left)

			linked, err := tx.LinkedTemplateIDs(ctx, workflow.ID)
			require.NoError(t, err)
			assert.Empty(t, linked)

			return nil
		}))
	})

	t.Run("audit trail is ordered by version", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		workflow := CreateTestWorkflow("space-1")

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			require.NoError(t, tx.InsertWorkflow(ctx, workflow))

			for version, action := range []models.AuditAction{models.AuditActionCreated, models.AuditActionUpdated, models.AuditActionRestored} {
				require.NoError(t, tx.AppendAudit(ctx, &models.WorkflowAudit{
					ID:            uuid.NewString(),
					WorkflowID:    workflow.ID,
					Action:        action,
					Actor:         "alice",
					Version:       version + 1,
					ChangedFields: []string{"statuses"},
					CreatedAt:     Now(),
				}))
			}

			return nil
		}))

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			audits, err := tx.Audits(ctx, workflow.ID)
			require.NoError(t, err)
			require.Len(t, audits, 3)
			assert.Equal(t, models.AuditActionCreated, audits[0].Action)
			assert.Equal(t, models.AuditActionRestored, audits[2].Action)
			assert.Equal(t, 3, audits[2].Version)
			assert.Equal(t, []string{"statuses"}, audits[1].ChangedFields)
			assert.Equal(t, "alice", audits[1].Actor)

			return nil
		}))
	})

	t.Run("references", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		a := CreateTestWorkflow("space-1")
		b := CreateTestWorkflow("space-1")

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			require.NoError(t, tx.InsertWorkflow(ctx, a))
			require.NoError(t, tx.InsertWorkflow(ctx, b))
			require.NoError(t, tx.LinkTemplate(ctx, "template-b", a.ID))
			require.NoError(t, tx.LinkTemplate(ctx, "template-a", a.ID))
			require.NoError(t, tx.LinkTemplate(ctx, "template-a", a.ID))
			require.NoError(t, tx.LinkTemplate(ctx, "template-c", a.ID))
			require.NoError(t, tx.LinkTemplate(ctx, "template-c", b.ID))

			return tx.AssignTask(ctx, &models.TaskAssignment{
				TaskID: "task-1", WorkflowID: a.ID, Version: 1, AssignedAt: Now(),
			})
		}))

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			linked, err := tx.LinkedTemplateIDs(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, []string{"template-a", "template-b"}, linked)

			count, err := tx.CountReferences(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ReferenceCount{Templates: 2, Tasks: 1}, count)

			count, err = tx.CountReferences(ctx, b.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ReferenceCount{Templates: 1}, count)

			require.NoError(t, tx.UnlinkTemplate(ctx, "template-b"))
			require.NoError(t, tx.UnlinkTemplate(ctx, "template-unknown"))

			released, err := tx.ReleaseTask(ctx, "task-1")
			require.NoError(t, err)
			assert.Equal(t, a.ID, released.WorkflowID)
			assert.Equal(t, 1, released.Version)

			_, err = tx.ReleaseTask(ctx, "task-1")
			assert.True(t, persistence.IsTaskNotAssigned(err))

			count, err = tx.CountReferences(ctx, a.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ReferenceCount{Templates: 1}, count)

			return nil
		}))
	})

	t.Run("delete removes every version", func(t *testing.T) {
		store := newStore(t)
		ctx := t.Context()
		workflow := CreateTestWorkflow("space-1")
		workflow.Version = 2
		statuses, transitions := ThreeStepGraph()

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			require.NoError(t, tx.InsertWorkflow(ctx, workflow))

			for version := 1; version <= 2; version++ {
				for _, s := range statuses {
					c := s.Clone()
					c.ID = uuid.NewString()
					require.NoError(t, tx.InsertStatus(ctx, workflow.ID, version, c))
				}
			}

			require.NoError(t, tx.InsertTransition(ctx, workflow.ID, 1, transitions[0]))

			return tx.AppendAudit(ctx, &models.WorkflowAudit{
				ID: uuid.NewString(), WorkflowID: workflow.ID, Action: models.AuditActionCreated,
				Actor: "system", Version: 1, CreatedAt: Now(),
			})
		}))

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			err := tx.DeleteWorkflow(ctx, "space-2", workflow.ID)
			assert.True(t, persistence.IsWorkflowNotFound(err))

			return tx.DeleteWorkflow(ctx, "space-1", workflow.ID)
		}))

		require.NoError(t, store.WithTx(ctx, func(tx persistence.Tx) error {
			_, err := tx.WorkflowByID(ctx, "space-1", workflow.ID)
			assert.True(t, persistence.IsWorkflowNotFound(err))

			for version := 1; version <= 2; version++ {
				left, err := tx.Statuses(ctx, workflow.ID, version)
				require.NoError(t, err)
				assert.Empty(t, left)
			}

			trs, err := tx.Transitions(ctx, workflow.ID, 1)
			require.NoError(t, err)
			assert.Empty(t, trs)

			audits, err := tx.Audits(ctx, workflow.ID)
			require.NoError(t, err)
			assert.Empty(t, audits)

			return nil
		}))
	})

	t.Run("health check", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.HealthCheck(context.Background()))
	})
}
