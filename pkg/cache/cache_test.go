package cache_test

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukex/taskflow/pkg/cache"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/testutil"
)

func TestNoop(t *testing.T) {
	var c cache.Cache = cache.Noop{}

	require.NoError(t, c.Set(t.Context(), "wf", 1, &cache.Snapshot{}))

	got, found, err := c.Get(t.Context(), "wf", 1)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
	assert.NoError(t, c.Purge(t.Context(), "wf"))
	assert.NoError(t, c.Close())
}

func newRedisCache(t *testing.T) *cache.Redis {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: testutil.GetRedisAddress(t)})
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	c := cache.NewRedis(client, logger, cache.WithPrefix("taskflow:test:"+uuid.NewString()+":"), cache.WithTTL(time.Minute))

	t.Cleanup(func() {
		_ = c.Close()
	})

	return c
}

func TestRedis_RoundTrip(t *testing.T) {
	c := newRedisCache(t)
	ctx := t.Context()
	statuses, transitions := testutil.ThreeStepGraph()

	trigger := models.UITriggerButton
	transitions[0].UITrigger = &trigger

	_, found, err := c.Get(ctx, "wf-1", 1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "wf-1", 1, &cache.Snapshot{Statuses: statuses, Transitions: transitions}))

	got, found, err := c.Get(ctx, "wf-1", 1)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, got.Statuses, 3)
	require.Len(t, got.Transitions, 2)
	assert.Equal(t, statuses[0].Key, got.Statuses[0].Key)
	assert.True(t, got.Statuses[0].IsInitial)
	assert.Equal(t, string(statuses[0].VisibilityRules), string(got.Statuses[0].VisibilityRules))
	assert.Equal(t, string(transitions[0].Conditions), string(got.Transitions[0].Conditions))
	require.NotNil(t, got.Transitions[0].UITrigger)
	assert.Equal(t, models.UITriggerButton, *got.Transitions[0].UITrigger)
}

func TestRedis_PurgeDropsEveryVersion(t *testing.T) {
	c := newRedisCache(t)
	ctx := t.Context()
	statuses, transitions := testutil.ThreeStepGraph()
	snapshot := &cache.Snapshot{Statuses: statuses, Transitions: transitions}

	require.NoError(t, c.Set(ctx, "wf-1", 1, snapshot))
	require.NoError(t, c.Set(ctx, "wf-1", 2, snapshot))
	require.NoError(t, c.Set(ctx, "wf-2", 1, snapshot))

	require.NoError(t, c.Purge(ctx, "wf-1"))

	for _, version := range []int{1, 2} {
		_, found, err := c.Get(ctx, "wf-1", version)
		require.NoError(t, err)
		assert.False(t, found)
	}

	_, found, err := c.Get(ctx, "wf-2", 1)
	require.NoError(t, err)
	assert.True(t, found)

	require.NoError(t, c.Purge(ctx, "never-cached"))
}
