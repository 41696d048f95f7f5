// Package portals drives the admin and TMS web portals through a contracts.UIDriver.
package portals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"provflow/domain/contracts"
	"provflow/domain/provisioning"
	"provflow/domain/toast"
	"provflow/infrastructure/config"
	"provflow/logging"
)

const (
	defaultActionTimeout = 10 * time.Second
	confirmTimeout       = 3 * time.Second
	fallbackTimeout      = 3 * time.Second
	defaultLoginTimeout  = 15 * time.Second
)

// basePage holds what every portal page object shares.
type basePage struct {
	ui            contracts.UIDriver
	toasts        contracts.ToastCapturer
	account       config.PortalConfig
	actionTimeout time.Duration
	loginTimeout  time.Duration
	toastTimeout  time.Duration
	logger        *logging.Logger
}

func newBasePage(ui contracts.UIDriver, toasts contracts.ToastCapturer, account config.PortalConfig, toastTimeout time.Duration, component string) basePage {
	actionTimeout := account.Timeout
	if actionTimeout <= 0 || actionTimeout > defaultActionTimeout {
		actionTimeout = defaultActionTimeout
	}
	loginTimeout := account.Timeout
	if loginTimeout <= 0 {
		loginTimeout = defaultLoginTimeout
	}
	return basePage{
		ui:            ui,
		toasts:        toasts,
		account:       account,
		actionTimeout: actionTimeout,
		loginTimeout:  loginTimeout,
		toastTimeout:  toastTimeout,
		logger:        logging.Default().WithComponent(component),
	}
}

func (p basePage) click(ctx context.Context, t contracts.Target) error {
	if err := p.ui.Click(ctx, t, p.actionTimeout); err != nil {
		return fmt.Errorf("click %s: %w", t, err)
	}
	return nil
}

func (p basePage) fill(ctx context.Context, t contracts.Target, value string) error {
	if err := p.ui.Fill(ctx, t, value, p.actionTimeout); err != nil {
		return fmt.Errorf("fill %s: %w", t, err)
	}
	return nil
}

// choose opens dropdown and picks the option named name.
func (p basePage) choose(ctx context.Context, dropdown contracts.Target, name string) error {
	if err := p.click(ctx, dropdown); err != nil {
		return err
	}
	return p.click(ctx, option(name))
}

// steps runs actions in order and stops at the first error.
func steps(actions ...func() error) error {
	for _, action := range actions {
		if err := action(); err != nil {
			return err
		}
	}
	return nil
}

func (p basePage) captureToast(ctx context.Context, expected string) (*toast.CaptureResult, error) {
	res, err := p.toasts.Capture(ctx, toast.Expect(expected, p.toastTimeout))
	if err != nil {
		return nil, fmt.Errorf("capture toast: %w", err)
	}
	return res, nil
}

// toastRule maps a toast fragment to what it means for the action.
type toastRule struct {
	fragment string
	outcome  toastMeaning
}

type toastMeaning int

const (
	meaningSuccess toastMeaning = iota
	meaningDuplicate
	meaningRejected
)

// classify returns the meaning of text under rules, and false when no rule matches.
func classify(text string, rules []toastRule) (toastMeaning, bool) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		if strings.Contains(lower, r.fragment) {
			return r.outcome, true
		}
	}
	return 0, false
}

// judge turns a capture into an outcome under rules. A missing toast is a warning; an
// unrecognised or rejecting toast fails.
func judge(action string, res *toast.CaptureResult, rules []toastRule) (provisioning.StepOutcome, toastMeaning, error) {
	outcome := provisioning.StepOutcome{Toast: res}
	if !res.Success {
		outcome.Warning = fmt.Sprintf("%s toast not captured: %s", action, res.Error)
		return outcome, meaningSuccess, nil
	}
	meaning, ok := classify(res.Text, rules)
	if !ok || meaning == meaningRejected {
		return outcome, meaningRejected, fmt.Errorf("%s: %w: %q", action, provisioning.ErrUnexpectedToast, res.Text)
	}
	return outcome, meaning, nil
}
