package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"provflow/domain/contracts"
	"provflow/logging"
)

// ChromedpPage reads toasts from a tab of an already running Chrome, reached over DevTools.
type ChromedpPage struct {
	tabCtx context.Context
	cancel func()
	logger *logging.Logger
}

var _ contracts.ToastPage = (*ChromedpPage)(nil)

// Attach connects to the Chrome at devtoolsURL and binds to its first open page tab,
// or the first tab whose URL contains urlHint when one is given.
func Attach(ctx context.Context, devtoolsURL, urlHint string) (*ChromedpPage, error) {
	logger := logging.Default().WithComponent("chromedp")

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(), devtoolsURL)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("connect to %s: %w", devtoolsURL, err)
	}

	var targets []*target.Info
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		targets, err = target.GetTargets().Do(ctx)
		return err
	}))
	if err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("list targets: %w", err)
	}

	var chosen *target.Info
	for _, t := range targets {
		if t.Type != "page" {
			continue
		}
		if urlHint == "" || strings.Contains(t.URL, urlHint) {
			chosen = t
			break
		}
	}
	if chosen == nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: no page tab matching %q", contracts.ErrPageClosed, urlHint)
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(chosen.TargetID))
	if err := chromedp.Run(tabCtx); err != nil {
		tabCancel()
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("attach to tab %s: %w", chosen.URL, err)
	}

	logger.Browser("Attached to Chrome tab", "url", chosen.URL, "title", chosen.Title)
	return &ChromedpPage{
		tabCtx: tabCtx,
		cancel: func() {
			tabCancel()
			browserCancel()
			allocCancel()
		},
		logger: logger,
	}, nil
}

// Close detaches from the tab. The remote browser keeps running.
func (p *ChromedpPage) Close() {
	p.cancel()
}

type selectorElement struct {
	selector string
}

func (e selectorElement) Describe() string { return e.selector }

// textElement is a keyword match; its text is read at match time.
type textElement struct {
	keyword string
	text    string
}

func (e textElement) Describe() string { return fmt.Sprintf("text=%q", e.keyword) }

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *ChromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	opCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(opCtx, actions...)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", contracts.ErrElementTimeout, err)
	case p.tabCtx.Err() != nil:
		return fmt.Errorf("%w: %w", contracts.ErrPageClosed, err)
	}
	return err
}

func (p *ChromedpPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) (contracts.Element, error) {
	if err := p.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return nil, err
	}
	return selectorElement{selector: selector}, nil
}

func (p *ChromedpPage) TextContent(ctx context.Context, el contracts.Element, timeout time.Duration) (string, error) {
	switch e := el.(type) {
	case textElement:
		return e.text, nil
	case selectorElement:
		var text *string
		js := fmt.Sprintf(`(() => { const el = document.querySelector(%q); return el ? el.textContent : null; })()`, e.selector)
		if err := p.run(ctx, timeout, chromedp.Evaluate(js, &text)); err != nil {
			return "", err
		}
		if text == nil {
			return "", fmt.Errorf("%w: %s", contracts.ErrElementDetached, e.selector)
		}
		return *text, nil
	}
	return "", fmt.Errorf("%w: foreign element %s", contracts.ErrElementDetached, el.Describe())
}

// visibleTextJS collects the innermost visible elements whose text contains a keyword.
const visibleTextJS = `(() => {
  const kw = %q.toLowerCase();
  const out = [];
  for (const el of document.body.querySelectorAll('*')) {
    const text = (el.innerText || '').trim();
    if (!text || !text.toLowerCase().includes(kw)) continue;
    const rect = el.getBoundingClientRect();
    if (rect.width === 0 || rect.height === 0) continue;
    const childHit = Array.from(el.children).some(c => (c.innerText || '').toLowerCase().includes(kw));
    if (!childHit) out.push(text);
  }
  return out;
})()`

// FindVisibleByText polls the page until a visible element contains keyword or timeout passes.
func (p *ChromedpPage) FindVisibleByText(ctx context.Context, keyword string, timeout time.Duration) ([]contracts.Element, error) {
	js := fmt.Sprintf(visibleTextJS, keyword)
	return pollVisible(ctx, keyword, timeout, func(ctx context.Context, left time.Duration) ([]contracts.Element, error) {
		var texts []string
		if err := p.run(ctx, left, chromedp.Evaluate(js, &texts)); err != nil {
			return nil, err
		}
		found := make([]contracts.Element, len(texts))
		for i, t := range texts {
			found[i] = textElement{keyword: keyword, text: t}
		}
		return found, nil
	})
}

// Screenshot captures the visible viewport as PNG.
func (p *ChromedpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, 10*time.Second, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}
