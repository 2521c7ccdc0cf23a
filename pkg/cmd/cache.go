package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/taskflow/pkg/cache"
)

// NewCache connects the snapshot cache. An empty redisURL disables caching.
func NewCache(ctx context.Context, redisURL string, logger *slog.Logger) (cache.Cache, error) {
	if redisURL == "" {
		return cache.Noop{}, nil
	}

	return cache.NewRedisFromURL(ctx, redisURL, logger)
}
