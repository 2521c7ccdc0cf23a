package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	redisOnce    sync.Once
	redisAddress string
	redisErr     error
)

// GetRedisAddress returns the host:port of a shared Redis test container. Tests are
// skipped when the container cannot be started.
func GetRedisAddress(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}

	redisOnce.Do(func() {
		redisAddress, redisErr = startRedisContainer()
	})

	if redisErr != nil {
		t.Skipf("skipping Redis tests: %v", redisErr)
	}

	return redisAddress
}

func startRedisContainer() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.Run(
		ctx, "redis:7-alpine",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start Redis testcontainer: %w", err)
	}

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to resolve Redis endpoint: %w", err)
	}

	return endpoint, nil
}
