package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"provflow/domain/contracts"
	"provflow/domain/provisioning"
	"provflow/infrastructure/registry"
)

type registryReport struct {
	Device       *provisioning.DeviceRecord `json:"device"`
	Latest       *provisioning.Transaction  `json:"latest_transaction,omitempty"`
	Transactions []provisioning.Transaction `json:"recent_transactions"`
}

func newRegistryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "registry <serial>",
		Short: "Show a device and its recent transactions from the device registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.Mongo.Enabled() {
				return errors.New("MONGO_URI is not set")
			}
			ctx := cmd.Context()
			reg, err := registry.Connect(ctx, a.cfg.Mongo)
			if err != nil {
				return err
			}
			defer reg.Close(context.Background())

			serial := args[0]
			var report registryReport
			if report.Device, err = reg.FindDevice(ctx, serial); err != nil {
				return err
			}
			if report.Transactions, err = reg.TransactionsForDevice(ctx, serial); err != nil {
				return err
			}
			report.Latest, err = reg.LatestTransaction(ctx, serial)
			if err != nil && !errors.Is(err, contracts.ErrNotFound) {
				return err
			}
			return printJSON(os.Stdout, report)
		},
	}
}
