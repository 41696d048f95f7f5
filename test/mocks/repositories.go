package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"provflow/domain/contracts"
	"provflow/domain/run"
)

// MockRunRepository implements RunRepository for testing
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) SaveRun(ctx context.Context, r *run.Run) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRunRepository) SaveStep(ctx context.Context, runID string, step run.Step) error {
	args := m.Called(ctx, runID, step)
	return args.Error(0)
}

func (m *MockRunRepository) SaveAttachment(ctx context.Context, a contracts.StoredAttachment) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRunRepository) GetRun(ctx context.Context, runID string) (*run.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*run.Run), args.Error(1)
}

func (m *MockRunRepository) ListRuns(ctx context.Context, limit int) ([]*run.Run, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*run.Run), args.Error(1)
}

func (m *MockRunRepository) ListAttachments(ctx context.Context, runID string) ([]contracts.StoredAttachment, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]contracts.StoredAttachment), args.Error(1)
}

func (m *MockRunRepository) GetAttachment(ctx context.Context, runID, name string) (*contracts.StoredAttachment, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contracts.StoredAttachment), args.Error(1)
}
