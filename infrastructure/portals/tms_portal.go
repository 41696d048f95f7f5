package portals

import (
	"context"
	"fmt"
	"time"

	"provflow/domain/contracts"
	"provflow/domain/provisioning"
	"provflow/infrastructure/config"
	"provflow/platform/retry"
)

var (
	merchantRules = []toastRule{
		{fragment: toastMerchantCreated, outcome: meaningSuccess},
		{fragment: toastMerchantExists, outcome: meaningDuplicate},
		{fragment: toastDifferentPAN, outcome: meaningRejected},
	}
	syncRules = []toastRule{
		{fragment: toastSyncUpToDate, outcome: meaningSuccess},
		{fragment: toastSyncAlreadyUpTo, outcome: meaningSuccess},
		{fragment: toastDeviceAdded, outcome: meaningSuccess},
	}
	assignRules = []toastRule{
		{fragment: toastIdentifiersAdded, outcome: meaningSuccess},
		{fragment: toastDeviceAssigned, outcome: meaningSuccess},
	}
)

// TMSOptions tune the TMS page object.
type TMSOptions struct {
	ToastTimeout   time.Duration
	MerchantPolicy provisioning.ExistingMerchantPolicy
	// SyncWait is how long to let the portal ingest devices after an IPN sync.
	SyncWait time.Duration
}

// TMSPortal creates merchants and assigns devices through the terminal management portal.
type TMSPortal struct {
	basePage
	policy   provisioning.ExistingMerchantPolicy
	syncWait time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
}

var _ contracts.TMSPortal = (*TMSPortal)(nil)

// NewTMSPortal creates the TMS page object.
func NewTMSPortal(ui contracts.UIDriver, toasts contracts.ToastCapturer, account config.PortalConfig, opts TMSOptions) *TMSPortal {
	return &TMSPortal{
		basePage: newBasePage(ui, toasts, account, opts.ToastTimeout, "tms_portal"),
		policy:   opts.MerchantPolicy,
		syncWait: opts.SyncWait,
		sleep:    retry.Sleep,
	}
}

// Login signs in and waits for the IPN navigation button.
func (t *TMSPortal) Login(ctx context.Context) error {
	t.logger.Browser("Logging in to TMS portal", "url", t.account.URL, "user", t.account.Username)
	err := steps(
		func() error { return t.ui.Navigate(ctx, t.account.URL) },
		func() error { return t.fill(ctx, tmsUsername, t.account.Username) },
		func() error { return t.fill(ctx, tmsPassword, t.account.Password) },
		func() error { return t.click(ctx, tmsSignIn) },
	)
	if err != nil {
		return fmt.Errorf("tms login: %w", err)
	}
	if err := t.ui.WaitVisible(ctx, tmsNavIPN, t.loginTimeout); err != nil {
		return fmt.Errorf("tms login: %w: %w", provisioning.ErrLoginNotConfirmed, err)
	}
	return nil
}

// SyncIPN pulls newly registered devices into the TMS.
func (t *TMSPortal) SyncIPN(ctx context.Context) (provisioning.StepOutcome, error) {
	err := steps(
		func() error { return t.click(ctx, tmsNavIPN) },
		func() error { return t.click(ctx, tmsSyncIPN) },
	)
	if err != nil {
		return provisioning.StepOutcome{}, fmt.Errorf("sync ipn: %w", err)
	}

	res, err := t.captureToast(ctx, "")
	if err != nil {
		return provisioning.StepOutcome{}, fmt.Errorf("sync ipn: %w", err)
	}
	outcome, _, err := judge("ipn sync", res, syncRules)
	if err != nil {
		return outcome, err
	}
	if err := t.sleep(ctx, t.syncWait); err != nil {
		return outcome, fmt.Errorf("sync ipn: %w", err)
	}
	return outcome, nil
}

// AddMerchant creates merchant. A duplicate is resolved by the configured ExistingMerchantPolicy.
func (t *TMSPortal) AddMerchant(ctx context.Context, merchant provisioning.Merchant) (provisioning.StepOutcome, error) {
	if err := merchant.Validate(); err != nil {
		return provisioning.StepOutcome{}, err
	}
	t.logger.Browser("Adding merchant", "name", merchant.Name, "branch", merchant.Branch)

	err := steps(
		func() error { return t.click(ctx, tmsNavMerchant) },
		func() error { return t.click(ctx, tmsAddMerchant) },
		func() error { return t.fill(ctx, tmsAccountNumber, merchant.AccountNumber) },
		func() error { return t.fill(ctx, tmsMerchantPAN, merchant.PAN) },
		func() error { return t.choose(ctx, tmsBranch, merchant.Branch) },
		func() error { return t.selectSchemes(ctx, merchant.Schemes) },
		func() error { return t.fill(ctx, tmsMerchantCode, merchant.MerchantCode) },
		func() error { return t.fillMerchantID(ctx, merchant.MerchantID) },
		func() error { return t.fill(ctx, tmsMerchantName, merchant.Name) },
		func() error { return t.fill(ctx, tmsMerchantEmail, merchant.Email) },
		func() error { return t.fill(ctx, tmsMerchantAddress, merchant.Address) },
		func() error { return t.fill(ctx, tmsMerchantPhone, merchant.Phone) },
		func() error { return t.click(ctx, tmsMerchantSubmit) },
	)
	if err != nil {
		return provisioning.StepOutcome{}, fmt.Errorf("add merchant %s: %w", merchant.Name, err)
	}

	res, err := t.captureToast(ctx, toastMerchantCreated)
	if err != nil {
		return provisioning.StepOutcome{}, fmt.Errorf("add merchant %s: %w", merchant.Name, err)
	}
	outcome, meaning, err := judge("merchant creation", res, merchantRules)
	if err != nil || meaning != meaningDuplicate {
		return outcome, err
	}
	if t.policy == provisioning.ReuseExisting {
		outcome.MerchantReused = true
		outcome.Warning = "merchant already exists, reusing it"
		return outcome, nil
	}
	return outcome, fmt.Errorf("add merchant %s: %w", merchant.Name, provisioning.ErrMerchantExists)
}

// selectSchemes picks every scheme from the multi-select and closes it.
func (t *TMSPortal) selectSchemes(ctx context.Context, schemes []provisioning.Scheme) error {
	if err := t.click(ctx, tmsScheme); err != nil {
		return err
	}
	for _, s := range schemes {
		if err := t.click(ctx, contracts.ByRoleExact("option", s.DisplayName())); err != nil {
			return err
		}
	}
	return t.ui.Press(ctx, tmsBody, "Escape")
}

func (t *TMSPortal) fillMerchantID(ctx context.Context, merchantID string) error {
	if err := t.ui.Fill(ctx, tmsMerchantID, merchantID, fallbackTimeout); err == nil {
		return nil
	}
	return t.fill(ctx, tmsMerchantIDLabel, merchantID)
}

// AssignDevice attaches serial to the first merchant with the terminal identifiers.
func (t *TMSPortal) AssignDevice(ctx context.Context, serial string, terminal provisioning.Terminal) (provisioning.StepOutcome, error) {
	t.logger.Browser("Assigning device", "serial", serial, "terminal_id", terminal.TerminalID)
	row := tmsDeviceRow(serial)

	err := steps(
		func() error { return t.click(ctx, tmsNavMerchant) },
		func() error { return t.click(ctx, tmsExpandMerchant) },
		func() error { return t.click(ctx, tmsAssignedIPNs) },
		func() error { return t.click(ctx, tmsAssignIPN) },
		func() error { return t.fill(ctx, tmsSearchIPN, serial) },
		func() error { return t.ui.WaitVisible(ctx, row, t.actionTimeout) },
		func() error { return t.ui.Check(ctx, tmsRowCheckbox(row), t.actionTimeout) },
		func() error { return t.click(ctx, tmsRowSchemaIcon(row)) },
		func() error { return t.fill(ctx, tmsTerminalID, terminal.TerminalID) },
		func() error { return t.fill(ctx, tmsStoreID, terminal.StoreID) },
		func() error { return t.fill(ctx, tmsFonepayPAN, terminal.FonepayPAN) },
		func() error { return t.click(ctx, tmsUpdate) },
		func() error { return t.click(ctx, tmsAssign) },
	)
	if err != nil {
		return provisioning.StepOutcome{}, fmt.Errorf("assign device %s: %w", serial, err)
	}

	res, err := t.captureToast(ctx, "assigned")
	if err != nil {
		return provisioning.StepOutcome{}, fmt.Errorf("assign device %s: %w", serial, err)
	}
	outcome, _, err := judge("device assignment", res, assignRules)
	return outcome, err
}
