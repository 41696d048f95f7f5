package portals

import (
	"context"
	"fmt"
	"time"

	"provflow/domain/contracts"
	"provflow/domain/provisioning"
	"provflow/infrastructure/config"
)

var registrationRules = []toastRule{
	{fragment: toastDeviceAdded, outcome: meaningSuccess},
}

// AdminPortal registers devices through the admin web portal.
type AdminPortal struct {
	basePage
}

var _ contracts.AdminPortal = (*AdminPortal)(nil)

// NewAdminPortal creates the admin page object.
func NewAdminPortal(ui contracts.UIDriver, toasts contracts.ToastCapturer, account config.PortalConfig, toastTimeout time.Duration) *AdminPortal {
	return &AdminPortal{basePage: newBasePage(ui, toasts, account, toastTimeout, "admin_portal")}
}

// Login signs in and waits for the landing page.
func (a *AdminPortal) Login(ctx context.Context) error {
	a.logger.Browser("Logging in to admin portal", "url", a.account.URL, "user", a.account.Username)
	err := steps(
		func() error { return a.ui.Navigate(ctx, a.account.URL) },
		func() error { return a.fill(ctx, adminEmail, a.account.Username) },
		func() error { return a.fill(ctx, adminPassword, a.account.Password) },
		func() error { return a.click(ctx, adminSignIn) },
	)
	if err != nil {
		return fmt.Errorf("admin login: %w", err)
	}
	if err := a.ui.WaitVisible(ctx, adminLanding, a.loginTimeout); err != nil {
		return fmt.Errorf("admin login: %w: %w", provisioning.ErrLoginNotConfirmed, err)
	}
	return nil
}

// OpenDevices navigates to the device list and opens the add-device form.
func (a *AdminPortal) OpenDevices(ctx context.Context) error {
	return steps(
		func() error { return a.click(ctx, adminNavDevice) },
		func() error { return a.click(ctx, adminAddDevice) },
	)
}

// RegisterDevice fills and submits the registration form, then reads the confirmation toast.
func (a *AdminPortal) RegisterDevice(ctx context.Context, device provisioning.Device) (provisioning.StepOutcome, error) {
	if err := device.Validate(); err != nil {
		return provisioning.StepOutcome{}, err
	}
	a.logger.Browser("Registering device", "serial", device.Serial, "model", device.Model)

	err := steps(
		func() error { return a.OpenDevices(ctx) },
		func() error { return a.fill(ctx, adminSIM, device.SIM) },
		func() error { return a.choose(ctx, adminModel, device.Model) },
		func() error { return a.choose(ctx, adminCustomer, device.Customer) },
		func() error { return a.choose(ctx, adminLanguage, device.Language) },
		func() error { return a.fill(ctx, adminSerial, device.Serial) },
		func() error { return a.fill(ctx, adminIMEI, device.IMEI) },
		func() error { return a.fill(ctx, adminBatch, device.Batch) },
		func() error { return a.click(ctx, adminSubmit) },
	)
	if err != nil {
		return provisioning.StepOutcome{}, fmt.Errorf("register device %s: %w", device.Serial, err)
	}

	if a.ui.IsVisible(ctx, adminConfirmation, confirmTimeout) {
		if err := a.click(ctx, adminConfirmation); err != nil {
			return provisioning.StepOutcome{}, fmt.Errorf("register device %s: %w", device.Serial, err)
		}
	}

	res, err := a.captureToast(ctx, toastDeviceAdded)
	if err != nil {
		return provisioning.StepOutcome{}, fmt.Errorf("register device %s: %w", device.Serial, err)
	}
	outcome, _, err := judge("device registration", res, registrationRules)
	return outcome, err
}
