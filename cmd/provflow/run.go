package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"provflow/application"
	"provflow/domain/contracts"
	"provflow/domain/provisioning"
	"provflow/domain/run"
	"provflow/infrastructure/browser"
	"provflow/infrastructure/portals"
	"provflow/infrastructure/registry"
	"provflow/infrastructure/reporting"
	"provflow/infrastructure/repositories"
	"provflow/platform/events"
	"provflow/platform/retry"
)

var errRunFailed = errors.New("provisioning run failed")

func newRunCmd(a *app) *cobra.Command {
	var (
		name   string
		serial string
		seed   int64
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full provisioning flow against staging",
		Long: `Register a device, fetch its credentials, create a merchant, assign the device,
send one notification per scheme and verify them in the device registry.

Every step is recorded in the run ledger and attachments are written below REPORT_DIR.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if serial != "" {
				a.cfg.Flow.Serial = serial
			}
			if cmd.Flags().Changed("seed") {
				a.cfg.Flow.Seed = seed
			}
			return a.runFlow(cmd.Context(), name, asJSON)
		},
	}
	cmd.Flags().StringVar(&name, "name", "full provisioning flow", "run name shown in the report")
	cmd.Flags().StringVar(&serial, "serial", "", "device serial, generated when empty")
	cmd.Flags().Int64Var(&seed, "seed", 0, "test data seed, 0 for random")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the run summary as JSON")
	return cmd
}

func (a *app) runFlow(parent context.Context, name string, asJSON bool) error {
	cfg := a.cfg
	if missing := cfg.MissingForFlow(); len(missing) > 0 {
		return fmt.Errorf("missing configuration: %s", strings.Join(missing, ", "))
	}
	policy, err := provisioning.ParseExistingMerchantPolicy(cfg.Flow.MerchantPolicy)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	start := time.Now()

	db, err := initializeDatabase(cfg, a.logger)
	if err != nil {
		return err
	}
	defer db.Close()
	runRepo := repositories.NewSQLiteRunRepository(db)

	eventBus := events.NewRunEventBus()
	events.NewRunLedgerHandlers(runRepo).RegisterHandlers(eventBus)

	rn := run.New(name, start)
	sink := reporting.NewFileSink(cfg.ReportDir, rn.ID, runRepo)

	session, err := browser.Launch(cfg.Browser)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			a.logger.Warn("Browser shutdown failed", "error", err)
		}
	}()

	page := session.Page()
	engine := application.NewToastCaptureEngine(page.ToastView(),
		application.WithSliceTimeout(cfg.Toast.SliceTimeout),
		application.WithProbeTimeout(cfg.Toast.ProbeTimeout),
		application.WithTextTimeout(cfg.Toast.TextTimeout),
		application.WithReportSink(sink),
	)

	var deviceRegistry contracts.DeviceRegistry
	if cfg.Mongo.Enabled() {
		mongoRegistry, err := registry.Connect(ctx, cfg.Mongo)
		if err != nil {
			// The workflow skips registry verification without a registry.
			a.logger.Warn("Device registry unavailable", "error", err)
		} else {
			defer mongoRegistry.Close(context.Background())
			deviceRegistry = mongoRegistry
		}
	}

	workflow := application.NewProvisioningWorkflow(application.WorkflowDependencies{
		Admin: portals.NewAdminPortal(page, engine, cfg.Portals.Admin, cfg.Toast.Timeout),
		TMS: portals.NewTMSPortal(page, engine, cfg.Portals.TMS, portals.TMSOptions{
			ToastTimeout:   cfg.Toast.Timeout,
			MerchantPolicy: policy,
			SyncWait:       cfg.Flow.SyncWait,
		}),
		DPS:       a.dpsClient(),
		IPN:       a.ipnClient(),
		Registry:  deviceRegistry,
		Publisher: eventBus,
		Sink:      sink,
		Generator: provisioning.NewGenerator(cfg.Flow.Seed),
	}, application.FlowSettings{
		Serial:      cfg.Flow.Serial,
		Device:      cfg.Flow.DeviceDefaults(),
		Branch:      cfg.Flow.Branch,
		Address:     cfg.Flow.Address,
		SettleDelay: cfg.Flow.SettleDelay,
		VerifyPolicy: retry.Policy{
			MaxAttempts: cfg.Flow.VerifyAttempts,
			Backoff:     retry.Constant(cfg.Flow.VerifyDelay),
		},
	})

	runErr := workflow.Execute(ctx, rn)
	eventBus.Wait()
	a.logger.Performance("provisioning_run", elapsedSince(start))

	summary := rn.Summary()
	if asJSON {
		if err := printJSON(os.Stdout, summary); err != nil {
			return err
		}
	} else {
		fmt.Print(summary.Text())
		fmt.Printf("Report: %s\n", sink.RunDir())
	}

	if runErr != nil {
		return runErr
	}
	if rn.Status != run.StatusPassed {
		return fmt.Errorf("%w: %s", errRunFailed, strings.Join(summary.FailedStepNames, ", "))
	}
	return nil
}
