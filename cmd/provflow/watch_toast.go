package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"provflow/application"
	"provflow/domain/toast"
	"provflow/infrastructure/browser"
)

func newWatchToastCmd(a *app) *cobra.Command {
	var (
		devtoolsURL string
		urlHint     string
		expected    string
		timeout     time.Duration
		repeat      int
	)
	cmd := &cobra.Command{
		Use:   "watch-toast",
		Short: "Attach to a running Chrome and print the next toast",
		Long: `Attach to an already open Chrome tab over the DevTools protocol and capture the
next toast it shows. Start Chrome with --remote-debugging-port=9222 and pass the
websocket URL printed on startup, or set CHROME_DEVTOOLS_URL.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if devtoolsURL == "" {
				devtoolsURL = a.cfg.Browser.DevToolsURL
			}
			if devtoolsURL == "" {
				return errors.New("no DevTools URL: pass --devtools-url or set CHROME_DEVTOOLS_URL")
			}
			if timeout <= 0 {
				timeout = a.cfg.Toast.Timeout
			}
			return a.watchToast(cmd.Context(), devtoolsURL, urlHint, toast.Expect(expected, timeout), repeat)
		},
	}
	cmd.Flags().StringVar(&devtoolsURL, "devtools-url", "", "DevTools websocket URL of the running Chrome")
	cmd.Flags().StringVar(&urlHint, "tab", "", "substring of the URL of the tab to attach to")
	cmd.Flags().StringVar(&expected, "expect", "", "text the toast should contain")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "capture timeout, defaults to toast.timeout")
	cmd.Flags().IntVar(&repeat, "repeat", 1, "number of captures, 0 to watch until interrupted")
	return cmd
}

func (a *app) watchToast(parent context.Context, devtoolsURL, urlHint string, req toast.CaptureRequest, repeat int) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	page, err := browser.Attach(ctx, devtoolsURL, urlHint)
	if err != nil {
		return err
	}
	defer page.Close()

	engine := application.NewToastCaptureEngine(page,
		application.WithSliceTimeout(a.cfg.Toast.SliceTimeout),
		application.WithProbeTimeout(a.cfg.Toast.ProbeTimeout),
		application.WithTextTimeout(a.cfg.Toast.TextTimeout),
	)

	for i := 0; repeat == 0 || i < repeat; i++ {
		res, err := engine.Capture(ctx, req)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := printJSON(os.Stdout, res); err != nil {
			return err
		}
	}
	return nil
}
