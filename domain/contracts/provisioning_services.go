package contracts

import (
	"context"

	"provflow/domain/provisioning"
	"provflow/domain/toast"
)

// ToastCapturer is the capture operation consumed by page objects and workflows.
type ToastCapturer interface {
	Capture(ctx context.Context, req toast.CaptureRequest) (*toast.CaptureResult, error)
}

// AdminPortal is the device administration UI.
type AdminPortal interface {
	Login(ctx context.Context) error
	RegisterDevice(ctx context.Context, device provisioning.Device) (provisioning.StepOutcome, error)
}

// TMSPortal is the terminal management UI where merchants are created and devices assigned.
type TMSPortal interface {
	Login(ctx context.Context) error
	AddMerchant(ctx context.Context, merchant provisioning.Merchant) (provisioning.StepOutcome, error)
	SyncIPN(ctx context.Context) (provisioning.StepOutcome, error)
	AssignDevice(ctx context.Context, serial string, terminal provisioning.Terminal) (provisioning.StepOutcome, error)
}

// DeviceProvisioner requests device credentials from the provisioning service.
type DeviceProvisioner interface {
	Provision(ctx context.Context, serial string) (*provisioning.Credentials, error)
}

// NotificationSender pushes payment notifications to the IPN service.
type NotificationSender interface {
	Notify(ctx context.Context, n provisioning.Notification) (*provisioning.NotifyResult, error)
}

// DeviceRegistry is read-only access to the device registry and its transaction audit.
// FindDevice returns ErrNotFound for an unknown serial. VerifyTransactions reports whether the
// device's recent window holds exactly the expected transactions, listing any mismatches.
type DeviceRegistry interface {
	FindDevice(ctx context.Context, serial string) (*provisioning.DeviceRecord, error)
	TransactionExists(ctx context.Context, serial string, amount int, scheme provisioning.Scheme) (bool, error)
	VerifyTransactions(ctx context.Context, serial string, expected []provisioning.ExpectedTransaction) (bool, []string, error)
}
