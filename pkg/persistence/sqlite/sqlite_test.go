package sqlite_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence"
	"github.com/dukex/taskflow/pkg/persistence/sqlite"
	"github.com/dukex/taskflow/pkg/testutil"
)

func newTestPersistence(t *testing.T, databaseURL string) *sqlite.Persistence {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := sqlite.NewPersistence(t.Context(), logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, p.Close(t.Context()))
	})

	return p
}

func TestPersistenceContract(t *testing.T) {
	testutil.RunPersistenceSuite(t, func(t *testing.T) persistence.Persistence {
		return newTestPersistence(t, ":memory:")
	})
}

func TestNewPersistence_ReopenKeepsDataAndSchema(t *testing.T) {
	ctx := t.Context()
	databaseURL := "sqlite://" + filepath.Join(t.TempDir(), "data", "taskflow.db")
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	first, err := sqlite.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	workflow := testutil.CreateTestWorkflow("space-1")

	require.NoError(t, first.WithTx(ctx, func(tx persistence.Tx) error {
		return tx.InsertWorkflow(ctx, workflow)
	}))
	require.NoError(t, first.Close(ctx))

	second := newTestPersistence(t, databaseURL)

	require.NoError(t, second.WithTx(ctx, func(tx persistence.Tx) error {
		found, err := tx.WorkflowByID(ctx, "space-1", workflow.ID)
		require.NoError(t, err)
		assert.True(t, workflow.CreatedAt.Equal(found.CreatedAt))

		return nil
	}))
}

func TestPersistence_PayloadsAreStoredVerbatim(t *testing.T) {
	ctx := t.Context()
	p := newTestPersistence(t, ":memory:")

	workflow := testutil.CreateTestWorkflow("space-1")
	status := testutil.CreateTestStatus("todo", "To Do", models.CategoryTodo, 0)
	status.FieldLockRules = []byte(`{ "locked" : [ "title",  "due" ] }`)

	require.NoError(t, p.WithTx(ctx, func(tx persistence.Tx) error {
		require.NoError(t, tx.InsertWorkflow(ctx, workflow))

		return tx.InsertStatus(ctx, workflow.ID, 1, status)
	}))

	require.NoError(t, p.WithTx(ctx, func(tx persistence.Tx) error {
		got, err := tx.Statuses(ctx, workflow.ID, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, string(status.FieldLockRules), string(got[0].FieldLockRules))

		return nil
	}))
}

func TestPersistence_ForeignKeysAreEnforced(t *testing.T) {
	ctx := t.Context()
	p := newTestPersistence(t, ":memory:")

	err := p.WithTx(ctx, func(tx persistence.Tx) error {
		return tx.LinkTemplate(ctx, "template-1", "no-such-workflow")
	})
	require.Error(t, err)
}
