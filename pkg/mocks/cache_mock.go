package mocks

import (
	"context"

	"github.com/dukex/taskflow/pkg/cache"
	"github.com/stretchr/testify/mock"
)

// MockCache is a mock implementation of cache.Cache interface.
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, workflowID string, version int) (*cache.Snapshot, bool, error) {
	args := m.Called(ctx, workflowID, version)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}

	return args.Get(0).(*cache.Snapshot), args.Bool(1), args.Error(2)
}

func (m *MockCache) Set(ctx context.Context, workflowID string, version int, snapshot *cache.Snapshot) error {
	args := m.Called(ctx, workflowID, version, snapshot)

	return args.Error(0)
}

func (m *MockCache) Purge(ctx context.Context, workflowID string) error {
	args := m.Called(ctx, workflowID)

	return args.Error(0)
}

func (m *MockCache) Close() error {
	args := m.Called()

	return args.Error(0)
}

var _ cache.Cache = (*MockCache)(nil)
