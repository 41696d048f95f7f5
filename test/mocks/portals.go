package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"provflow/domain/provisioning"
)

// MockAdminPortal implements AdminPortal for testing
type MockAdminPortal struct {
	mock.Mock
}

func (m *MockAdminPortal) Login(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockAdminPortal) RegisterDevice(ctx context.Context, device provisioning.Device) (provisioning.StepOutcome, error) {
	args := m.Called(ctx, device)
	return args.Get(0).(provisioning.StepOutcome), args.Error(1)
}

// MockTMSPortal implements TMSPortal for testing
type MockTMSPortal struct {
	mock.Mock
}

func (m *MockTMSPortal) Login(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockTMSPortal) AddMerchant(ctx context.Context, merchant provisioning.Merchant) (provisioning.StepOutcome, error) {
	args := m.Called(ctx, merchant)
	return args.Get(0).(provisioning.StepOutcome), args.Error(1)
}

func (m *MockTMSPortal) SyncIPN(ctx context.Context) (provisioning.StepOutcome, error) {
	args := m.Called(ctx)
	return args.Get(0).(provisioning.StepOutcome), args.Error(1)
}

func (m *MockTMSPortal) AssignDevice(ctx context.Context, serial string, terminal provisioning.Terminal) (provisioning.StepOutcome, error) {
	args := m.Called(ctx, serial, terminal)
	return args.Get(0).(provisioning.StepOutcome), args.Error(1)
}

// MockDeviceProvisioner implements DeviceProvisioner for testing
type MockDeviceProvisioner struct {
	mock.Mock
}

func (m *MockDeviceProvisioner) Provision(ctx context.Context, serial string) (*provisioning.Credentials, error) {
	args := m.Called(ctx, serial)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provisioning.Credentials), args.Error(1)
}

// MockNotificationSender implements NotificationSender for testing
type MockNotificationSender struct {
	mock.Mock
}

func (m *MockNotificationSender) Notify(ctx context.Context, n provisioning.Notification) (*provisioning.NotifyResult, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provisioning.NotifyResult), args.Error(1)
}

// MockDeviceRegistry implements DeviceRegistry for testing
type MockDeviceRegistry struct {
	mock.Mock
}

func (m *MockDeviceRegistry) FindDevice(ctx context.Context, serial string) (*provisioning.DeviceRecord, error) {
	args := m.Called(ctx, serial)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provisioning.DeviceRecord), args.Error(1)
}

func (m *MockDeviceRegistry) TransactionExists(ctx context.Context, serial string, amount int, scheme provisioning.Scheme) (bool, error) {
	args := m.Called(ctx, serial, amount, scheme)
	return args.Bool(0), args.Error(1)
}

func (m *MockDeviceRegistry) VerifyTransactions(ctx context.Context, serial string, expected []provisioning.ExpectedTransaction) (bool, []string, error) {
	args := m.Called(ctx, serial, expected)
	var problems []string
	if p := args.Get(1); p != nil {
		problems = p.([]string)
	}
	return args.Bool(0), problems, args.Error(2)
}
