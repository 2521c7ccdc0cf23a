package cache

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPrefix = "taskflow:"
	defaultTTL    = 24 * time.Hour
)

// Redis is a Cache backed by Redis. Keys:
//
//	<prefix>snapshot:<workflowID>:<version>  => gob-encoded Snapshot
//	<prefix>versions:<workflowID>            => SET of cached snapshot keys
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RedisOption configures a Redis cache.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// WithTTL sets how long a snapshot stays cached.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// NewRedis creates a Redis cache on an existing client.
func NewRedis(client redis.UniversalClient, logger *slog.Logger, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		prefix: defaultPrefix,
		ttl:    defaultTTL,
		logger: logger.With("module", "snapshot_cache"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// NewRedisFromURL parses a redis:// URL, connects and pings the server.
func NewRedisFromURL(ctx context.Context, redisURL string, logger *slog.Logger, opts ...RedisOption) (*Redis, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewRedis(client, logger, opts...), nil
}

func (r *Redis) keySnapshot(workflowID string, version int) string {
	return r.prefix + "snapshot:" + workflowID + ":" + strconv.Itoa(version)
}

func (r *Redis) keyVersions(workflowID string) string {
	return r.prefix + "versions:" + workflowID
}

func (r *Redis) Get(ctx context.Context, workflowID string, version int) (*Snapshot, bool, error) {
	data, err := r.client.Get(ctx, r.keySnapshot(workflowID, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot Snapshot

	err = gob.NewDecoder(bytes.NewReader(data)).Decode(&snapshot)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &snapshot, true, nil
}

func (r *Redis) Set(ctx context.Context, workflowID string, version int, snapshot *Snapshot) error {
	var buf bytes.Buffer

	err := gob.NewEncoder(&buf).Encode(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := r.keySnapshot(workflowID, version)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, buf.Bytes(), r.ttl)
		pipe.SAdd(ctx, r.keyVersions(workflowID), key)
		pipe.Expire(ctx, r.keyVersions(workflowID), r.ttl)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	r.logger.DebugContext(ctx, "snapshot cached", "workflow_id", workflowID, "version", version)

	return nil
}

func (r *Redis) Purge(ctx context.Context, workflowID string) error {
	index := r.keyVersions(workflowID)

	keys, err := r.client.SMembers(ctx, index).Result()
	if err != nil {
		return fmt.Errorf("failed to list cached snapshots: %w", err)
	}

	err = r.client.Del(ctx, append(keys, index)...).Err()
	if err != nil {
		return fmt.Errorf("failed to purge cached snapshots: %w", err)
	}

	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
