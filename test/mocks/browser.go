package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"provflow/domain/contracts"
	"provflow/domain/toast"
)

// MockUIDriver implements UIDriver for testing
type MockUIDriver struct {
	mock.Mock
}

func (m *MockUIDriver) Navigate(ctx context.Context, url string) error {
	args := m.Called(ctx, url)
	return args.Error(0)
}

func (m *MockUIDriver) Click(ctx context.Context, t contracts.Target, timeout time.Duration) error {
	args := m.Called(ctx, t, timeout)
	return args.Error(0)
}

func (m *MockUIDriver) DoubleClick(ctx context.Context, t contracts.Target, timeout time.Duration) error {
	args := m.Called(ctx, t, timeout)
	return args.Error(0)
}

func (m *MockUIDriver) Fill(ctx context.Context, t contracts.Target, value string, timeout time.Duration) error {
	args := m.Called(ctx, t, value, timeout)
	return args.Error(0)
}

func (m *MockUIDriver) Press(ctx context.Context, t contracts.Target, key string) error {
	args := m.Called(ctx, t, key)
	return args.Error(0)
}

func (m *MockUIDriver) Check(ctx context.Context, t contracts.Target, timeout time.Duration) error {
	args := m.Called(ctx, t, timeout)
	return args.Error(0)
}

func (m *MockUIDriver) WaitVisible(ctx context.Context, t contracts.Target, timeout time.Duration) error {
	args := m.Called(ctx, t, timeout)
	return args.Error(0)
}

func (m *MockUIDriver) IsVisible(ctx context.Context, t contracts.Target, timeout time.Duration) bool {
	args := m.Called(ctx, t, timeout)
	return args.Bool(0)
}

func (m *MockUIDriver) Text(ctx context.Context, t contracts.Target, timeout time.Duration) (string, error) {
	args := m.Called(ctx, t, timeout)
	return args.String(0), args.Error(1)
}

// MockToastCapturer implements ToastCapturer for testing
type MockToastCapturer struct {
	mock.Mock
}

func (m *MockToastCapturer) Capture(ctx context.Context, req toast.CaptureRequest) (*toast.CaptureResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*toast.CaptureResult), args.Error(1)
}
