package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"provflow/domain/provisioning"
)

type notifyFlags struct {
	scheme       string
	amount       int
	terminalID   string
	storeID      string
	merchantCode string
	merchantID   string
}

func (f notifyFlags) notification() (provisioning.Notification, error) {
	scheme, err := provisioning.ParseScheme(f.scheme)
	if err != nil {
		return provisioning.Notification{}, err
	}
	var n provisioning.Notification
	switch scheme {
	case provisioning.SchemeFonepay:
		n = provisioning.NewFonepayNotification(f.amount, f.merchantID, f.terminalID)
	default:
		n = provisioning.NewNCHLNotification(f.amount, f.merchantCode, f.storeID, f.terminalID)
	}
	return n, n.Validate()
}

func newNotifyCmd(a *app) *cobra.Command {
	var f notifyFlags
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Send one payment notification to the IPN service",
		Example: `  provflow notify --scheme nchl --amount 250 --merchant-code M123 --store-id S1 --terminal-id T9
  provflow notify --scheme fonepay --amount 100 --merchant-id 9876 --terminal-id T9`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.API.IPNURL == "" {
				return errors.New("IPN_API_URL is not set")
			}
			n, err := f.notification()
			if err != nil {
				return fmt.Errorf("invalid notification: %w", err)
			}

			res, err := a.ipnClient().Notify(cmd.Context(), n)
			if res != nil {
				if perr := printJSON(os.Stdout, res); perr != nil {
					return perr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&f.scheme, "scheme", "nchl", "payment scheme: nchl or fonepay")
	cmd.Flags().IntVar(&f.amount, "amount", 100, "amount in whole rupees")
	cmd.Flags().StringVar(&f.terminalID, "terminal-id", "", "terminal ID")
	cmd.Flags().StringVar(&f.storeID, "store-id", "", "NCHL store ID")
	cmd.Flags().StringVar(&f.merchantCode, "merchant-code", "", "NCHL merchant code")
	cmd.Flags().StringVar(&f.merchantID, "merchant-id", "", "Fonepay merchant ID")
	return cmd
}
