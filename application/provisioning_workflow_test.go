package application

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"provflow/domain/contracts"
	"provflow/domain/events"
	"provflow/domain/provisioning"
	"provflow/domain/run"
	"provflow/domain/toast"
	"provflow/logging"
	"provflow/platform/retry"
	"provflow/test/mocks"
)

const testSerial = "12345678901234"

type workflowFixture struct {
	admin     *mocks.MockAdminPortal
	tms       *mocks.MockTMSPortal
	dps       *mocks.MockDeviceProvisioner
	ipn       *mocks.MockNotificationSender
	registry  *mocks.MockDeviceRegistry
	publisher *mocks.MockRunEventPublisher
	sink      *recordingSink
	slept     []time.Duration
	workflow  *ProvisioningWorkflow
}

func newWorkflowFixture(t *testing.T, withRegistry bool) *workflowFixture {
	t.Helper()
	f := &workflowFixture{
		admin:     &mocks.MockAdminPortal{},
		tms:       &mocks.MockTMSPortal{},
		dps:       &mocks.MockDeviceProvisioner{},
		ipn:       &mocks.MockNotificationSender{},
		registry:  &mocks.MockDeviceRegistry{},
		publisher: &mocks.MockRunEventPublisher{},
		sink:      &recordingSink{},
	}
	f.publisher.On("PublishRunStarted", mock.Anything).Return()
	f.publisher.On("PublishStepRecorded", mock.Anything).Return()
	f.publisher.On("PublishRunFinished", mock.Anything).Return()

	deps := WorkflowDependencies{
		Admin:     f.admin,
		TMS:       f.tms,
		DPS:       f.dps,
		IPN:       f.ipn,
		Publisher: f.publisher,
		Sink:      f.sink,
		Generator: provisioning.NewGenerator(42),
	}
	if withRegistry {
		deps.Registry = f.registry
	}
	f.workflow = NewProvisioningWorkflow(deps, FlowSettings{
		Serial:       testSerial,
		Device:       provisioning.DeviceDefaults{Model: "ET389 static", Customer: "Koili", Language: "English", Batch: "testautomation"},
		Branch:       "ACHHAM",
		Address:      "Kathmandu",
		SettleDelay:  15 * time.Second,
		VerifyPolicy: retry.Policy{MaxAttempts: 3, Backoff: retry.Constant(0)},
	})
	f.workflow.logger = logging.NewLoggerWithWriter(&logging.Config{Level: "error", Format: "text"}, io.Discard)
	f.workflow.sleep = func(_ context.Context, d time.Duration) error {
		f.slept = append(f.slept, d)
		return nil
	}
	return f
}

func outcomeWithToast(text string) provisioning.StepOutcome {
	return provisioning.StepOutcome{Toast: toast.Matched(toast.CaptureRequest{}, text, toast.Selector(toast.SelectorToastifyBody), time.Millisecond)}
}

func (f *workflowFixture) expectPortalsSucceed() {
	f.admin.On("Login", mock.Anything).Return(nil)
	f.admin.On("RegisterDevice", mock.Anything, mock.MatchedBy(func(d provisioning.Device) bool {
		return d.Serial == testSerial
	})).Return(outcomeWithToast("Device added successfully"), nil)
	f.dps.On("Provision", mock.Anything, testSerial).
		Return(&provisioning.Credentials{Serial: testSerial, Key: "c2VjcmV0LWtleS12YWx1ZQ==", Host: "hub.example.net"}, nil)
	f.tms.On("Login", mock.Anything).Return(nil)
	f.tms.On("AddMerchant", mock.Anything, mock.AnythingOfType("provisioning.Merchant")).
		Return(outcomeWithToast("Merchant created successfully"), nil)
	f.tms.On("SyncIPN", mock.Anything).Return(outcomeWithToast("Everything up to date"), nil)
	f.tms.On("AssignDevice", mock.Anything, testSerial, mock.AnythingOfType("provisioning.Terminal")).
		Return(outcomeWithToast("Device assigned successfully"), nil)
}

func delivered(scheme provisioning.Scheme) *provisioning.NotifyResult {
	return &provisioning.NotifyResult{Scheme: scheme, Message: "notification delivered successfully", Delivered: true}
}

func isScheme(scheme provisioning.Scheme) any {
	return mock.MatchedBy(func(n provisioning.Notification) bool { return n.Scheme == scheme })
}

func stepByName(t *testing.T, rn *run.Run, name string) run.Step {
	t.Helper()
	for _, s := range rn.Steps {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("step %q not recorded", name)
	return run.Step{}
}

func TestProvisioningWorkflow_AllStepsPass(t *testing.T) {
	// Arrange
	f := newWorkflowFixture(t, true)
	f.expectPortalsSucceed()
	f.ipn.On("Notify", mock.Anything, isScheme(provisioning.SchemeNCHL)).Return(delivered(provisioning.SchemeNCHL), nil)
	f.ipn.On("Notify", mock.Anything, isScheme(provisioning.SchemeFonepay)).Return(delivered(provisioning.SchemeFonepay), nil)
	f.registry.On("FindDevice", mock.Anything, testSerial).Return(&provisioning.DeviceRecord{Serial: testSerial}, nil)
	f.registry.On("TransactionExists", mock.Anything, testSerial, mock.Anything, mock.Anything).Return(true, nil)
	f.registry.On("VerifyTransactions", mock.Anything, testSerial, mock.Anything).Return(true, nil, nil)

	// Act
	rn, err := f.workflow.Run(context.Background(), "full flow")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, run.StatusPassed, rn.Status)
	require.Len(t, rn.Steps, 9)
	for i, s := range rn.Steps {
		assert.Equal(t, i+1, s.Number)
		assert.Equal(t, run.StepPassed, s.Status, s.Name)
	}
	assert.Equal(t, testSerial, rn.Get(run.KeyDeviceSerial))
	assert.Equal(t, "hub.example.net", rn.Get(run.KeyDPSHost))
	assert.Regexp(t, `^M\d{10}$`, rn.Get(run.KeyMerchantCode))
	assert.Regexp(t, `^F\d{10}$`, rn.Get(run.KeyMerchantID))
	assert.Regexp(t, `^TERM_\d{8}$`, rn.Get(run.KeyTerminalID))
	assert.NotEmpty(t, rn.Get(run.KeyNCHLAmount))
	assert.NotEmpty(t, rn.Get(run.KeyFonepayAmount))
	assert.Equal(t, "c2VjcmV0LW...", stepByName(t, rn, StepDPSRequest).Data["key"])
	assert.Equal(t, []time.Duration{15 * time.Second}, f.slept)

	require.Len(t, f.sink.attachments, 1)
	assert.Equal(t, SummaryAttachmentName, f.sink.attachments[0].Name)
	assert.Contains(t, string(f.sink.attachments[0].Data), "Passed Steps: 9")

	f.publisher.AssertNumberOfCalls(t, "PublishStepRecorded", 9)
	f.publisher.AssertCalled(t, "PublishRunFinished", mock.MatchedBy(func(e events.RunFinishedEvent) bool {
		return e.Run.ID == rn.ID && e.Summary.Passed == 9
	}))
	f.registry.AssertNumberOfCalls(t, "TransactionExists", 2)
	f.registry.AssertCalled(t, "VerifyTransactions", mock.Anything, testSerial, mock.MatchedBy(func(txs []provisioning.ExpectedTransaction) bool {
		return len(txs) == 2
	}))
	assert.Equal(t, "true", stepByName(t, rn, StepRegistryVerification).Data["transactions_exact"])
}

func TestProvisioningWorkflow_AdminLoginFailureSkipsEverything(t *testing.T) {
	// Arrange
	f := newWorkflowFixture(t, true)
	f.admin.On("Login", mock.Anything).Return(errors.New("invalid credentials"))

	// Act
	rn, err := f.workflow.Run(context.Background(), "admin down")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, run.StatusFailed, rn.Status)
	assert.Equal(t, run.StepFailed, rn.Steps[0].Status)
	for _, s := range rn.Steps[1:] {
		assert.Equal(t, run.StepSkipped, s.Status, s.Name)
		assert.Contains(t, s.Warning, StepAdminLogin)
	}
	summary := rn.Summary()
	assert.Equal(t, []string{StepAdminLogin}, summary.FailedStepNames)
	assert.Equal(t, 8, summary.Skipped)
	f.admin.AssertNotCalled(t, "RegisterDevice", mock.Anything, mock.Anything)
	f.tms.AssertNotCalled(t, "Login", mock.Anything)
}

func TestProvisioningWorkflow_TMSLoginFailure(t *testing.T) {
	// Arrange
	f := newWorkflowFixture(t, true)
	f.admin.On("Login", mock.Anything).Return(nil)
	f.admin.On("RegisterDevice", mock.Anything, mock.Anything).
		Return(provisioning.StepOutcome{Warning: "registration toast not captured"}, nil)
	f.dps.On("Provision", mock.Anything, testSerial).Return(nil, errors.New("503 service unavailable"))
	f.tms.On("Login", mock.Anything).Return(errors.New("sign in button missing"))
	f.registry.On("FindDevice", mock.Anything, testSerial).Return(&provisioning.DeviceRecord{Serial: testSerial}, nil)

	// Act
	rn, err := f.workflow.Run(context.Background(), "tms down")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, run.StatusPassed, rn.Status, "only admin login and registration are critical")

	registration := stepByName(t, rn, StepDeviceRegistration)
	assert.Equal(t, run.StepPassed, registration.Status)
	assert.Equal(t, "registration toast not captured", registration.Warning)

	assert.Equal(t, run.StepFailed, stepByName(t, rn, StepDPSRequest).Status)
	assert.Equal(t, run.StepFailed, stepByName(t, rn, StepTMSLogin).Status)
	for _, name := range []string{StepMerchantCreation, StepIPNSync, StepDeviceAssignment} {
		step := stepByName(t, rn, name)
		assert.Equal(t, run.StepSkipped, step.Status, name)
		assert.Equal(t, "TMS login failed", step.Warning)
	}

	notifications := stepByName(t, rn, StepTransactionNotifications)
	assert.Equal(t, run.StepFailed, notifications.Status)
	assert.Contains(t, notifications.Error, "merchant_code")
	assert.Contains(t, notifications.Error, "fonepay_terminal_id")

	verification := stepByName(t, rn, StepRegistryVerification)
	assert.Equal(t, run.StepPassed, verification.Status)
	assert.Equal(t, "true", verification.Data["device_found"])
	f.ipn.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	assert.Empty(t, f.slept)
}

func TestProvisioningWorkflow_MerchantExistsSkipsAssignment(t *testing.T) {
	f := newWorkflowFixture(t, false)
	f.admin.On("Login", mock.Anything).Return(nil)
	f.admin.On("RegisterDevice", mock.Anything, mock.Anything).Return(outcomeWithToast("Device added"), nil)
	f.dps.On("Provision", mock.Anything, testSerial).
		Return(&provisioning.Credentials{Key: "a2V5", Host: "h"}, nil)
	f.tms.On("Login", mock.Anything).Return(nil)
	f.tms.On("AddMerchant", mock.Anything, mock.Anything).
		Return(outcomeWithToast("Merchant already exists"), provisioning.ErrMerchantExists)
	f.tms.On("SyncIPN", mock.Anything).Return(provisioning.StepOutcome{}, nil)

	rn, err := f.workflow.Run(context.Background(), "duplicate merchant")

	require.NoError(t, err)
	merchant := stepByName(t, rn, StepMerchantCreation)
	assert.Equal(t, run.StepFailed, merchant.Status)
	assert.Equal(t, "Merchant already exists", merchant.Data["toast"])
	assert.Empty(t, rn.Get(run.KeyMerchantCode))

	assignment := stepByName(t, rn, StepDeviceAssignment)
	assert.Equal(t, run.StepSkipped, assignment.Status)
	assert.Equal(t, "merchant was not created", assignment.Warning)
	assert.Equal(t, run.StepSkipped, stepByName(t, rn, StepRegistryVerification).Status)
	f.tms.AssertNotCalled(t, "AssignDevice", mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisioningWorkflow_PartialNotificationsAndPolling(t *testing.T) {
	// Arrange
	f := newWorkflowFixture(t, true)
	f.expectPortalsSucceed()
	f.ipn.On("Notify", mock.Anything, isScheme(provisioning.SchemeNCHL)).
		Return(&provisioning.NotifyResult{Scheme: provisioning.SchemeNCHL, Message: "invalid merchant"}, nil)
	f.ipn.On("Notify", mock.Anything, isScheme(provisioning.SchemeFonepay)).Return(delivered(provisioning.SchemeFonepay), nil)
	f.registry.On("FindDevice", mock.Anything, testSerial).Return(nil, contracts.ErrNotFound)
	f.registry.On("TransactionExists", mock.Anything, testSerial, mock.Anything, provisioning.SchemeFonepay).Return(false, nil).Twice()
	f.registry.On("TransactionExists", mock.Anything, testSerial, mock.Anything, provisioning.SchemeFonepay).Return(true, nil).Once()
	f.registry.On("VerifyTransactions", mock.Anything, testSerial, mock.Anything).Return(true, nil, nil)

	// Act
	rn, err := f.workflow.Run(context.Background(), "partial")

	// Assert
	require.NoError(t, err)
	notifications := stepByName(t, rn, StepTransactionNotifications)
	assert.Equal(t, run.StepPassed, notifications.Status)
	assert.Equal(t, "failed", notifications.Data["nchl"])
	assert.Equal(t, "delivered", notifications.Data["fonepay"])
	assert.Contains(t, notifications.Warning, "NCHL")
	assert.Empty(t, rn.Get(run.KeyNCHLAmount))

	verification := stepByName(t, rn, StepRegistryVerification)
	assert.Equal(t, run.StepPassed, verification.Status)
	assert.Equal(t, "false", verification.Data["device_found"])
	assert.Equal(t, "true", verification.Data["fonepay_verified"])
	_, checkedNCHL := verification.Data["nchl_verified"]
	assert.False(t, checkedNCHL)
	f.registry.AssertNumberOfCalls(t, "TransactionExists", 3)
}

func TestProvisioningWorkflow_RegistryTransactionMismatchFails(t *testing.T) {
	// Arrange
	f := newWorkflowFixture(t, true)
	f.expectPortalsSucceed()
	f.ipn.On("Notify", mock.Anything, isScheme(provisioning.SchemeNCHL)).Return(delivered(provisioning.SchemeNCHL), nil)
	f.ipn.On("Notify", mock.Anything, isScheme(provisioning.SchemeFonepay)).Return(delivered(provisioning.SchemeFonepay), nil)
	f.registry.On("FindDevice", mock.Anything, testSerial).Return(&provisioning.DeviceRecord{Serial: testSerial}, nil)
	f.registry.On("TransactionExists", mock.Anything, testSerial, mock.Anything, mock.Anything).Return(true, nil)
	f.registry.On("VerifyTransactions", mock.Anything, testSerial, mock.Anything).
		Return(false, []string{"unexpected fonepay:100 x1"}, nil)

	// Act
	rn, err := f.workflow.Run(context.Background(), "duplicate transaction")

	// Assert
	require.NoError(t, err)
	verification := stepByName(t, rn, StepRegistryVerification)
	assert.Equal(t, run.StepFailed, verification.Status)
	assert.Contains(t, verification.Error, "unexpected fonepay:100 x1")
	assert.Equal(t, "true", verification.Data["nchl_verified"])
	assert.Equal(t, "true", verification.Data["fonepay_verified"])
	assert.Equal(t, "false", verification.Data["transactions_exact"])
}

func TestProvisioningWorkflow_UnconfirmedRegistrationMissingFromRegistry(t *testing.T) {
	// Arrange
	f := newWorkflowFixture(t, true)
	f.admin.On("Login", mock.Anything).Return(nil)
	f.admin.On("RegisterDevice", mock.Anything, mock.Anything).
		Return(provisioning.StepOutcome{Warning: "registration toast not captured: no toast appeared within 5000ms"}, nil)
	f.dps.On("Provision", mock.Anything, testSerial).Return(nil, errors.New("503 service unavailable"))
	f.tms.On("Login", mock.Anything).Return(errors.New("sign in button missing"))
	f.registry.On("FindDevice", mock.Anything, testSerial).Return(nil, contracts.ErrNotFound)

	// Act
	rn, err := f.workflow.Run(context.Background(), "unconfirmed registration")

	// Assert
	require.NoError(t, err)
	registration := stepByName(t, rn, StepDeviceRegistration)
	assert.Equal(t, run.StepPassed, registration.Status)
	assert.NotEmpty(t, registration.Warning)

	verification := stepByName(t, rn, StepRegistryVerification)
	assert.Equal(t, run.StepFailed, verification.Status)
	assert.Contains(t, verification.Error, "never confirmed")
	assert.Equal(t, "false", verification.Data["device_found"])
	f.registry.AssertNotCalled(t, "TransactionExists", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProvisioningWorkflow_RegistryHasNothing(t *testing.T) {
	f := newWorkflowFixture(t, true)
	f.expectPortalsSucceed()
	f.ipn.On("Notify", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	f.registry.On("FindDevice", mock.Anything, testSerial).Return(nil, contracts.ErrNotFound)

	rn, err := f.workflow.Run(context.Background(), "nothing")

	require.NoError(t, err)
	assert.Equal(t, run.StepFailed, stepByName(t, rn, StepTransactionNotifications).Status)
	verification := stepByName(t, rn, StepRegistryVerification)
	assert.Equal(t, run.StepFailed, verification.Status)
	assert.Equal(t, "no data found in registry", verification.Error)
	assert.Equal(t, run.StatusPassed, rn.Status)
}

func TestProvisioningWorkflow_CancelledContext(t *testing.T) {
	f := newWorkflowFixture(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	f.admin.On("Login", mock.Anything).Run(func(mock.Arguments) { cancel() }).Return(nil)

	rn, err := f.workflow.Run(ctx, "cancelled")

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, run.StepPassed, rn.Steps[0].Status)
	for _, s := range rn.Steps[1:] {
		assert.Equal(t, run.StepSkipped, s.Status)
		assert.Contains(t, s.Warning, "cancelled")
	}
	f.publisher.AssertCalled(t, "PublishRunFinished", mock.Anything)
}
