package cmd

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/taskflow/pkg/cache"
	"github.com/dukex/taskflow/pkg/events"
	"github.com/dukex/taskflow/pkg/persistence/file"
	"github.com/dukex/taskflow/pkg/persistence/sqlite"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"file:///tmp/data":           "file",
		"./data":                     "file",
		"postgres://localhost/db":    "postgres",
		"postgresql://localhost/db":  "postgresql",
		"sqlite:///tmp/taskflow.db":  "sqlite",
		"mysql://localhost/taskflow": "file",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence_File(t *testing.T) {
	p, err := NewPersistence(t.Context(), slog.Default(), "file://"+t.TempDir())
	require.NoError(t, err)

	defer func() { _ = p.Close(context.Background()) }()

	assert.IsType(t, &file.Persistence{}, p)
	require.NoError(t, p.HealthCheck(t.Context()))
}

func TestNewPersistence_SQLite(t *testing.T) {
	url := "sqlite://" + filepath.Join(t.TempDir(), "taskflow.db")

	p, err := NewPersistence(t.Context(), slog.Default(), url)
	require.NoError(t, err)

	defer func() { _ = p.Close(context.Background()) }()

	assert.IsType(t, &sqlite.Persistence{}, p)
	require.NoError(t, p.HealthCheck(t.Context()))
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("gochannel", "taskflow-test", nil, slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", "taskflow-test", nil, slog.Default())
	require.Error(t, err)

	_, err = NewEventBus("rabbitmq", "taskflow-test", nil, slog.Default())
	require.ErrorIs(t, err, ErrUnsupportedProvider)
}

func TestNewEventBus_Delivers(t *testing.T) {
	bus, err := NewEventBus("gochannel", "taskflow-test", nil, slog.Default())
	require.NoError(t, err)

	defer func() { _ = bus.Close() }()

	received := make(chan *events.WorkflowDeleted, 1)

	require.NoError(t, bus.Handle(events.WorkflowDeletedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.WorkflowDeleted)

		return nil
	}))
	require.NoError(t, bus.Subscribe(t.Context()))

	require.NoError(t, bus.Publish(t.Context(), "wf-1", events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, "space-1", "wf-1", "alice"),
	}))

	got := <-received
	assert.Equal(t, "wf-1", got.WorkflowID)
}

func TestNewCache_Disabled(t *testing.T) {
	c, err := NewCache(t.Context(), "", slog.Default())
	require.NoError(t, err)
	assert.Equal(t, cache.Noop{}, c)

	_, err = NewCache(t.Context(), "://bad", slog.Default())
	require.Error(t, err)
}
