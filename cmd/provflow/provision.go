package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
)

func newProvisionCmd(a *app) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "provision <serial>",
		Short: "Request IoT hub credentials for one device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.API.DPSBaseURL == "" {
				return errors.New("DPS_API_URL is not set")
			}
			dps := a.dpsClient()
			serial := args[0]

			if status {
				out, err := dps.Status(cmd.Context(), serial)
				if err != nil {
					return err
				}
				return printJSON(os.Stdout, out)
			}

			creds, err := dps.Provision(cmd.Context(), serial)
			if err != nil {
				return err
			}
			a.logger.Info("Credentials issued", "serial", serial, "host", creds.Host)
			return printJSON(os.Stdout, creds.Masked())
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "query the provisioning status instead of provisioning")
	return cmd
}
