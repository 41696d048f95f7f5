package application

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"provflow/domain/contracts"
	"provflow/domain/events"
	"provflow/domain/provisioning"
	"provflow/domain/run"
	"provflow/logging"
	"provflow/platform/retry"
)

// Step names as they appear in run reports.
const (
	StepAdminLogin               = "Admin Portal Login"
	StepDeviceRegistration       = "Device Registration"
	StepDPSRequest               = "DPS Request"
	StepTMSLogin                 = "TMS Portal Login"
	StepMerchantCreation         = "Merchant Creation"
	StepIPNSync                  = "IPN Sync"
	StepDeviceAssignment         = "Device Assignment"
	StepTransactionNotifications = "Transaction Notifications"
	StepRegistryVerification     = "Registry Verification"
)

// SummaryAttachmentName is the report attachment holding the plain-text run summary.
const SummaryAttachmentName = "run_summary.txt"

var errNotVerified = errors.New("transaction not found in registry")

// FlowSettings are the inputs and pacing of one provisioning run.
type FlowSettings struct {
	// Serial is the device to provision. Empty generates one.
	Serial       string
	Device       provisioning.DeviceDefaults
	Branch       string
	Address      string
	SettleDelay  time.Duration
	VerifyPolicy retry.Policy
}

// WorkflowDependencies are the collaborators a ProvisioningWorkflow drives.
type WorkflowDependencies struct {
	Admin contracts.AdminPortal
	TMS   contracts.TMSPortal
	DPS   contracts.DeviceProvisioner
	IPN   contracts.NotificationSender
	// Registry is optional; without it registry verification is skipped.
	Registry  contracts.DeviceRegistry
	Publisher events.RunEventPublisher
	Sink      contracts.ReportSink
	Generator *provisioning.Generator
}

// ProvisioningWorkflow runs the end-to-end device provisioning flow and records every step in a run.
type ProvisioningWorkflow struct {
	deps     WorkflowDependencies
	settings FlowSettings
	logger   *logging.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewProvisioningWorkflow creates a workflow.
func NewProvisioningWorkflow(deps WorkflowDependencies, settings FlowSettings) *ProvisioningWorkflow {
	if deps.Sink == nil {
		deps.Sink = contracts.DiscardSink
	}
	if deps.Generator == nil {
		deps.Generator = provisioning.NewGenerator(0)
	}
	if settings.VerifyPolicy.MaxAttempts == 0 {
		settings.VerifyPolicy = retry.Policy{MaxAttempts: 3, Backoff: retry.Constant(5 * time.Second)}
	}
	return &ProvisioningWorkflow{
		deps:     deps,
		settings: settings,
		logger:   logging.Default().WithComponent("provisioning_workflow"),
		now:      time.Now,
		sleep:    retry.Sleep,
	}
}

// flowState carries typed values between the steps of one run.
type flowState struct {
	run     *run.Run
	device  provisioning.Device
	sent    []provisioning.ExpectedTransaction
	aborted string

	// registrationUnconfirmed is set when the admin portal showed no toast for the registration.
	registrationUnconfirmed bool
}

type stepResult struct {
	data    map[string]string
	warning string
}

type flowStep struct {
	name     string
	critical bool
	// skipIf returns a reason to skip the step, or "".
	skipIf func(st *flowState) string
	exec   func(ctx context.Context, st *flowState) (stepResult, error)
}

// Run starts a new run named name and executes it.
func (w *ProvisioningWorkflow) Run(ctx context.Context, name string) (*run.Run, error) {
	rn := run.New(name, w.now())
	return rn, w.Execute(ctx, rn)
}

// Execute runs every step against rn. Step failures are recorded in rn; the returned error is
// non-nil only when ctx was cancelled before the flow completed.
func (w *ProvisioningWorkflow) Execute(ctx context.Context, rn *run.Run) error {
	ctx = logging.ContextWithRunID(ctx, rn.ID)
	logger := w.logger.WithContext(ctx)
	logger.Info("Starting provisioning flow", "name", rn.Name)
	if w.deps.Publisher != nil {
		w.deps.Publisher.PublishRunStarted(events.RunStartedEvent{RunID: rn.ID, Name: rn.Name, Timestamp: w.now()})
	}

	st := &flowState{run: rn}
	for i, step := range w.steps() {
		number := i + 1
		if err := ctx.Err(); err != nil && st.aborted == "" {
			st.aborted = "run cancelled: " + err.Error()
		}
		reason := st.aborted
		if reason == "" && step.skipIf != nil {
			reason = step.skipIf(st)
		}
		if reason != "" {
			w.record(ctx, rn, run.Step{
				Number: number, Name: step.name, Status: run.StepSkipped,
				Warning: reason, Critical: step.critical,
				StartedAt: w.now(), FinishedAt: w.now(),
			})
			continue
		}

		logger.Info("Starting step", "step", number, "name", step.name)
		started := w.now()
		res, err := step.exec(ctx, st)
		recorded := run.Step{
			Number: number, Name: step.name, Status: run.StepPassed,
			Warning: res.warning, Data: res.data, Critical: step.critical,
			StartedAt: started, FinishedAt: w.now(),
		}
		if err != nil {
			recorded.Status = run.StepFailed
			recorded.Error = err.Error()
			if step.critical {
				st.aborted = fmt.Sprintf("critical step %q failed", step.name)
			}
		}
		w.record(ctx, rn, recorded)
	}

	rn.Finish(w.now())
	summary := rn.Summary()
	if err := w.deps.Sink.Attach(ctx, contracts.Attachment{
		Name: SummaryAttachmentName, ContentType: contracts.ContentTypeText, Data: []byte(summary.Text()),
	}); err != nil {
		logger.Warn("Could not attach run summary", "error", err)
	}
	if w.deps.Publisher != nil {
		w.deps.Publisher.PublishRunFinished(events.RunFinishedEvent{Run: *rn, Summary: summary, Timestamp: w.now()})
	}
	logger.Info("Provisioning flow finished",
		"status", rn.Status,
		"passed", summary.Passed,
		"failed", summary.Failed,
		"skipped", summary.Skipped)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("provisioning run %s: %w", rn.ID, err)
	}
	return nil
}

func (w *ProvisioningWorkflow) record(ctx context.Context, rn *run.Run, step run.Step) {
	step = rn.RecordStep(step)
	if step.Status == run.StepFailed {
		w.logger.WithContext(ctx).Error("Step failed", "step", step.Number, "name", step.Name, "error", step.Error)
	}
	if w.deps.Publisher != nil {
		w.deps.Publisher.PublishStepRecorded(events.StepRecordedEvent{RunID: rn.ID, Step: step, Timestamp: w.now()})
	}
}

func (w *ProvisioningWorkflow) steps() []flowStep {
	tmsReady := func(st *flowState) string {
		if !st.run.Passed(StepTMSLogin) {
			return "TMS login failed"
		}
		return ""
	}
	return []flowStep{
		{name: StepAdminLogin, critical: true, exec: w.adminLogin},
		{name: StepDeviceRegistration, critical: true, exec: w.registerDevice},
		{name: StepDPSRequest, exec: w.requestCredentials},
		{name: StepTMSLogin, exec: w.tmsLogin},
		{name: StepMerchantCreation, skipIf: tmsReady, exec: w.createMerchant},
		{name: StepIPNSync, skipIf: tmsReady, exec: w.syncIPN},
		{name: StepDeviceAssignment, skipIf: func(st *flowState) string {
			if reason := tmsReady(st); reason != "" {
				return reason
			}
			if !st.run.Passed(StepMerchantCreation) {
				return "merchant was not created"
			}
			return ""
		}, exec: w.assignDevice},
		{name: StepTransactionNotifications, exec: w.sendNotifications},
		{name: StepRegistryVerification, skipIf: func(*flowState) string {
			if w.deps.Registry == nil {
				return "registry not configured"
			}
			return ""
		}, exec: w.verifyRegistry},
	}
}

func (w *ProvisioningWorkflow) adminLogin(ctx context.Context, _ *flowState) (stepResult, error) {
	return stepResult{}, w.deps.Admin.Login(ctx)
}

func (w *ProvisioningWorkflow) registerDevice(ctx context.Context, st *flowState) (stepResult, error) {
	st.device = w.deps.Generator.Device(w.settings.Serial, w.settings.Device)
	if err := st.device.Validate(); err != nil {
		return stepResult{}, err
	}
	st.run.Set(run.KeyDeviceSerial, st.device.Serial)

	outcome, err := w.deps.Admin.RegisterDevice(ctx, st.device)
	res := stepResult{
		data: map[string]string{
			"serial": st.device.Serial,
			"imei":   st.device.IMEI,
			"sim":    st.device.SIM,
			"toast":  outcome.ToastText(),
		},
		warning: outcome.Warning,
	}
	st.registrationUnconfirmed = err == nil && outcome.Warning != ""
	return res, err
}

func (w *ProvisioningWorkflow) requestCredentials(ctx context.Context, st *flowState) (stepResult, error) {
	creds, err := w.deps.DPS.Provision(ctx, st.device.Serial)
	if err != nil {
		return stepResult{}, err
	}
	st.run.Set(run.KeyDPSHost, creds.Host)
	masked := creds.Masked()
	return stepResult{data: map[string]string{
		"host": creds.Host,
		"key":  fmt.Sprint(masked["key"]),
	}}, nil
}

func (w *ProvisioningWorkflow) tmsLogin(ctx context.Context, _ *flowState) (stepResult, error) {
	return stepResult{}, w.deps.TMS.Login(ctx)
}

func (w *ProvisioningWorkflow) createMerchant(ctx context.Context, st *flowState) (stepResult, error) {
	merchant := w.deps.Generator.Merchant(w.settings.Branch, w.settings.Address)
	outcome, err := w.deps.TMS.AddMerchant(ctx, merchant)
	res := stepResult{
		data: map[string]string{
			"merchant_name": merchant.Name,
			"merchant_code": merchant.MerchantCode,
			"merchant_id":   merchant.MerchantID,
			"reused":        strconv.FormatBool(outcome.MerchantReused),
			"toast":         outcome.ToastText(),
		},
		warning: outcome.Warning,
	}
	if err != nil {
		return res, err
	}
	st.run.Set(run.KeyMerchantCode, merchant.MerchantCode)
	st.run.Set(run.KeyMerchantID, merchant.MerchantID)
	return res, nil
}

func (w *ProvisioningWorkflow) syncIPN(ctx context.Context, _ *flowState) (stepResult, error) {
	outcome, err := w.deps.TMS.SyncIPN(ctx)
	return stepResult{data: map[string]string{"toast": outcome.ToastText()}, warning: outcome.Warning}, err
}

func (w *ProvisioningWorkflow) assignDevice(ctx context.Context, st *flowState) (stepResult, error) {
	terminal := w.deps.Generator.Terminal()
	outcome, err := w.deps.TMS.AssignDevice(ctx, st.device.Serial, terminal)
	res := stepResult{
		data: map[string]string{
			"terminal_id":         terminal.TerminalID,
			"store_id":            terminal.StoreID,
			"fonepay_terminal_id": terminal.FonepayTerminalID,
			"toast":               outcome.ToastText(),
		},
		warning: outcome.Warning,
	}
	if err != nil {
		return res, err
	}
	st.run.Set(run.KeyTerminalID, terminal.TerminalID)
	st.run.Set(run.KeyStoreID, terminal.StoreID)
	st.run.Set(run.KeyFonepayTerminalID, terminal.FonepayTerminalID)
	return res, nil
}

func (w *ProvisioningWorkflow) sendNotifications(ctx context.Context, st *flowState) (stepResult, error) {
	rn := st.run
	var missing []string
	for _, key := range []string{run.KeyMerchantCode, run.KeyMerchantID, run.KeyTerminalID, run.KeyStoreID, run.KeyFonepayTerminalID} {
		if rn.Get(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return stepResult{}, fmt.Errorf("missing data from earlier steps: %s", strings.Join(missing, ", "))
	}

	notifications := []struct {
		n   provisioning.Notification
		key string
	}{
		{provisioning.NewNCHLNotification(w.deps.Generator.Amount(), rn.Get(run.KeyMerchantCode), rn.Get(run.KeyStoreID), rn.Get(run.KeyTerminalID)), run.KeyNCHLAmount},
		{provisioning.NewFonepayNotification(w.deps.Generator.Amount(), rn.Get(run.KeyMerchantID), rn.Get(run.KeyFonepayTerminalID)), run.KeyFonepayAmount},
	}

	res := stepResult{data: map[string]string{}}
	var errs []error
	for _, item := range notifications {
		scheme := item.n.Scheme
		res.data[scheme.String()+"_amount"] = item.n.Amount
		result, err := w.deps.IPN.Notify(ctx, item.n)
		if err == nil && !result.Delivered {
			err = fmt.Errorf("%w: %q", provisioning.ErrUnexpectedResponse, result.Message)
		}
		if err != nil {
			res.data[scheme.String()] = "failed"
			errs = append(errs, fmt.Errorf("%s: %w", scheme.DisplayName(), err))
			continue
		}
		res.data[scheme.String()] = "delivered"
		rn.Set(item.key, item.n.Amount)
		st.sent = append(st.sent, provisioning.ExpectedTransaction{Amount: item.n.AmountValue(), Scheme: scheme})
	}

	if len(st.sent) == 0 {
		return res, errors.Join(errs...)
	}
	if len(errs) > 0 {
		res.warning = errors.Join(errs...).Error()
	}

	w.logger.WithContext(ctx).Info("Waiting for notifications to settle", "delay", w.settings.SettleDelay)
	if err := w.sleep(ctx, w.settings.SettleDelay); err != nil {
		return res, err
	}
	return res, nil
}

func (w *ProvisioningWorkflow) verifyRegistry(ctx context.Context, st *flowState) (stepResult, error) {
	serial := st.run.Get(run.KeyDeviceSerial)
	res := stepResult{data: map[string]string{}}

	_, err := w.deps.Registry.FindDevice(ctx, serial)
	switch {
	case err == nil:
		res.data["device_found"] = "true"
	case errors.Is(err, contracts.ErrNotFound):
		res.data["device_found"] = "false"
		if st.registrationUnconfirmed {
			return res, fmt.Errorf("device %s not in registry and its registration was never confirmed", serial)
		}
	default:
		return res, fmt.Errorf("find device %s: %w", serial, err)
	}

	verified := 0
	for _, tx := range st.sent {
		ok, err := w.verifyTransaction(ctx, serial, tx)
		if err != nil {
			return res, err
		}
		res.data[tx.Scheme.String()+"_verified"] = strconv.FormatBool(ok)
		if ok {
			verified++
		}
	}

	if res.data["device_found"] == "false" && verified == 0 {
		return res, errors.New("no data found in registry")
	}
	if verified < len(st.sent) {
		res.warning = fmt.Sprintf("%d of %d transactions verified", verified, len(st.sent))
		return res, nil
	}
	if len(st.sent) == 0 {
		return res, nil
	}

	exact, problems, err := w.deps.Registry.VerifyTransactions(ctx, serial, st.sent)
	if err != nil {
		return res, fmt.Errorf("verify transactions for %s: %w", serial, err)
	}
	res.data["transactions_exact"] = strconv.FormatBool(exact)
	if !exact {
		return res, fmt.Errorf("registry transactions for %s do not match: %s", serial, strings.Join(problems, "; "))
	}
	return res, nil
}

// verifyTransaction polls the registry under the verify policy. A false result with a nil error
// means the transaction never appeared.
func (w *ProvisioningWorkflow) verifyTransaction(ctx context.Context, serial string, tx provisioning.ExpectedTransaction) (bool, error) {
	policy := w.settings.VerifyPolicy
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		w.logger.WithContext(ctx).Debug("Transaction not yet verified",
			"scheme", tx.Scheme, "amount", tx.Amount, "attempt", attempt, "wait", wait, "error", err)
	}
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		ok, err := w.deps.Registry.TransactionExists(ctx, serial, tx.Amount, tx.Scheme)
		if err != nil {
			return err
		}
		if !ok {
			return errNotVerified
		}
		return nil
	})
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, err
	default:
		w.logger.WithContext(ctx).Warn("Transaction not verified", "scheme", tx.Scheme, "amount", tx.Amount, "error", err)
		return false, nil
	}
}
