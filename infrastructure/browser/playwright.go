// Package browser provides the page drivers the portals and the toast capture engine run against.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"

	"provflow/domain/contracts"
	"provflow/infrastructure/config"
	"provflow/logging"
)

const defaultPageTimeout = 30 * time.Second

// PlaywrightSession owns a Chromium instance and the single page a run drives.
type PlaywrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    *PlaywrightPage
	logger  *logging.Logger
}

// Launch starts Chromium with cfg and opens one page.
func Launch(cfg config.BrowserConfig) (*PlaywrightSession, error) {
	logger := logging.Default().WithComponent("browser")

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
		SlowMo:   playwright.Float(float64(cfg.SlowMo.Milliseconds())),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}

	width, height := cfg.ViewportWidth, cfg.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:          &playwright.Size{Width: width, Height: height},
		IgnoreHttpsErrors: playwright.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPageTimeout
	}
	page.SetDefaultTimeout(float64(timeout.Milliseconds()))

	logger.Browser("Browser launched", "headless", cfg.Headless, "viewport", fmt.Sprintf("%dx%d", width, height))
	return &PlaywrightSession{
		pw:      pw,
		browser: browser,
		context: bctx,
		page:    NewPlaywrightPage(page),
		logger:  logger,
	}, nil
}

// Page returns the session's page.
func (s *PlaywrightSession) Page() *PlaywrightPage {
	return s.page
}

// Close shuts down the page, the browser and the driver, returning the first error.
func (s *PlaywrightSession) Close() error {
	var errs []error
	if err := s.context.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser context: %w", err))
	}
	if err := s.browser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close browser: %w", err))
	}
	if err := s.pw.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop playwright: %w", err))
	}
	s.logger.Browser("Browser closed")
	return errors.Join(errs...)
}

// PlaywrightPage adapts a playwright.Page to the portal and toast driver contracts.
type PlaywrightPage struct {
	page playwright.Page
}

var (
	_ contracts.UIDriver  = (*PlaywrightPage)(nil)
	_ contracts.ToastPage = toastView{}
)

// NewPlaywrightPage wraps page.
func NewPlaywrightPage(page playwright.Page) *PlaywrightPage {
	return &PlaywrightPage{page: page}
}

type locatorElement struct {
	loc  playwright.Locator
	desc string
}

func (e locatorElement) Describe() string { return e.desc }

// locate resolves t into a playwright locator, scoped inside t.Within when set.
func (p *PlaywrightPage) locate(t contracts.Target) playwright.Locator {
	root := p.page.Locator(":root")
	if t.Within != nil {
		root = p.locate(*t.Within)
	}

	var loc playwright.Locator
	switch {
	case t.Role != "":
		opts := playwright.LocatorGetByRoleOptions{}
		if t.Name != "" {
			opts.Name = t.Name
		}
		if t.Exact {
			opts.Exact = playwright.Bool(true)
		}
		loc = root.GetByRole(playwright.AriaRole(t.Role), opts)
	case t.CSS != "":
		loc = root.Locator(t.CSS)
	case t.Label != "":
		loc = root.GetByLabel(t.Label, playwright.LocatorGetByLabelOptions{Exact: playwright.Bool(t.Exact)})
	case t.TestID != "":
		loc = root.GetByTestId(t.TestID)
	default:
		loc = root.GetByText(t.Text, playwright.LocatorGetByTextOptions{Exact: playwright.Bool(t.Exact)})
	}

	if t.HasText != "" {
		loc = loc.Filter(playwright.LocatorFilterOptions{HasText: t.HasText})
	}
	return loc.Nth(t.Nth)
}

// Navigate opens url and waits for the DOM to load.
func (p *PlaywrightPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateDomcontentloaded}); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, mapError(err))
	}
	return nil
}

func (p *PlaywrightPage) Click(ctx context.Context, t contracts.Target, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	return mapError(p.locate(t).Click(playwright.LocatorClickOptions{Timeout: ms}))
}

func (p *PlaywrightPage) DoubleClick(ctx context.Context, t contracts.Target, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	return mapError(p.locate(t).Dblclick(playwright.LocatorDblclickOptions{Timeout: ms}))
}

func (p *PlaywrightPage) Fill(ctx context.Context, t contracts.Target, value string, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	return mapError(p.locate(t).Fill(value, playwright.LocatorFillOptions{Timeout: ms}))
}

func (p *PlaywrightPage) Press(ctx context.Context, t contracts.Target, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(p.locate(t).Press(key))
}

func (p *PlaywrightPage) Check(ctx context.Context, t contracts.Target, timeout time.Duration) error {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return err
	}
	return mapError(p.locate(t).Check(playwright.LocatorCheckOptions{Timeout: ms}))
}

// WaitVisible blocks until the target is visible or timeout passes.
func (p *PlaywrightPage) WaitVisible(ctx context.Context, t contracts.Target, timeout time.Duration) error {
	_, err := p.waitFor(ctx, p.locate(t), timeout)
	return err
}

// IsVisible reports whether the target becomes visible within timeout.
func (p *PlaywrightPage) IsVisible(ctx context.Context, t contracts.Target, timeout time.Duration) bool {
	return p.WaitVisible(ctx, t, timeout) == nil
}

func (p *PlaywrightPage) Text(ctx context.Context, t contracts.Target, timeout time.Duration) (string, error) {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return "", err
	}
	text, err := p.locate(t).TextContent(playwright.LocatorTextContentOptions{Timeout: ms})
	return text, mapError(err)
}

func (p *PlaywrightPage) waitFor(ctx context.Context, loc playwright.Locator, timeout time.Duration) (playwright.Locator, error) {
	ms, err := budget(ctx, timeout)
	if err != nil {
		return nil, err
	}
	err = loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms,
	})
	if err != nil {
		return nil, mapError(err)
	}
	return loc, nil
}

// ToastView returns the page as a contracts.ToastPage. UIDriver and ToastPage both declare
// WaitVisible, so the selector-based variant lives on a separate view.
func (p *PlaywrightPage) ToastView() contracts.ToastPage {
	return toastView{p}
}

// Screenshot captures the viewport as PNG.
func (p *PlaywrightPage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shot, err := p.page.Screenshot()
	return shot, mapError(err)
}

// TextContent reads el's text. el must come from this page.
func (p *PlaywrightPage) TextContent(ctx context.Context, el contracts.Element, timeout time.Duration) (string, error) {
	le, ok := el.(locatorElement)
	if !ok {
		return "", fmt.Errorf("%w: foreign element %s", contracts.ErrElementDetached, el.Describe())
	}
	ms, err := budget(ctx, timeout)
	if err != nil {
		return "", err
	}
	text, err := le.loc.TextContent(playwright.LocatorTextContentOptions{Timeout: ms})
	return text, mapError(err)
}

// FindVisibleByText returns visible elements whose text contains keyword, ignoring case.
// Hidden matches are skipped while polling.
func (p *PlaywrightPage) FindVisibleByText(ctx context.Context, keyword string, timeout time.Duration) ([]contracts.Element, error) {
	loc := p.page.GetByText(keyword)
	return pollVisible(ctx, keyword, timeout, func(context.Context, time.Duration) ([]contracts.Element, error) {
		all, err := loc.All()
		if err != nil {
			return nil, mapError(err)
		}
		var found []contracts.Element
		for i, l := range all {
			if visible, err := l.IsVisible(); err == nil && visible {
				found = append(found, locatorElement{loc: l, desc: fmt.Sprintf("text=%q >> nth=%d", keyword, i)})
			}
		}
		return found, nil
	})
}

// toastView narrows a PlaywrightPage to contracts.ToastPage, whose WaitVisible takes a CSS selector.
type toastView struct {
	*PlaywrightPage
}

func (v toastView) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (contracts.Element, error) {
	loc, err := v.waitFor(ctx, v.page.Locator(selector).First(), timeout)
	if err != nil {
		return nil, err
	}
	return locatorElement{loc: loc, desc: selector}, nil
}

// budget converts timeout to playwright milliseconds, capped by the context deadline.
func budget(ctx context.Context, timeout time.Duration) (*float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, contracts.ErrElementTimeout
	}
	return playwright.Float(float64(timeout.Milliseconds())), nil
}

// mapError translates playwright failures into the driver sentinel errors.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, playwright.ErrTimeout):
		return fmt.Errorf("%w: %w", contracts.ErrElementTimeout, err)
	case errors.Is(err, playwright.ErrTargetClosed):
		return fmt.Errorf("%w: %w", contracts.ErrPageClosed, err)
	case strings.Contains(strings.ToLower(err.Error()), "detached"):
		return fmt.Errorf("%w: %w", contracts.ErrElementDetached, err)
	}
	return err
}
