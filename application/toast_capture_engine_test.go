package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provflow/domain/contracts"
	"provflow/domain/toast"
	"provflow/logging"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeElement struct {
	selector string
	text     string
	detached bool
}

func (e *fakeElement) Describe() string { return e.selector }

// fakePage models a DOM snapshot; every failed wait consumes its full timeout on the fake clock.
type fakePage struct {
	clock         *fakeClock
	toasts        map[string]*fakeElement
	bodyText      []string
	closed        bool
	screenshotErr error
	waited        []string
}

func newFakePage(clock *fakeClock) *fakePage {
	return &fakePage{clock: clock, toasts: map[string]*fakeElement{}}
}

func (p *fakePage) WaitVisible(_ context.Context, selector string, timeout time.Duration) (contracts.Element, error) {
	p.waited = append(p.waited, selector)
	if p.closed {
		return nil, contracts.ErrPageClosed
	}
	if el, ok := p.toasts[selector]; ok {
		p.clock.Advance(10 * time.Millisecond)
		return el, nil
	}
	p.clock.Advance(timeout)
	return nil, contracts.ErrElementTimeout
}

func (p *fakePage) TextContent(_ context.Context, el contracts.Element, _ time.Duration) (string, error) {
	if p.closed {
		return "", contracts.ErrPageClosed
	}
	fe := el.(*fakeElement)
	p.clock.Advance(5 * time.Millisecond)
	if fe.detached {
		return "", contracts.ErrElementDetached
	}
	return fe.text, nil
}

func (p *fakePage) FindVisibleByText(_ context.Context, keyword string, timeout time.Duration) ([]contracts.Element, error) {
	if p.closed {
		return nil, contracts.ErrPageClosed
	}
	var found []contracts.Element
	for _, text := range p.bodyText {
		if strings.Contains(strings.ToLower(text), strings.ToLower(keyword)) {
			found = append(found, &fakeElement{selector: "text=" + keyword, text: text})
		}
	}
	if len(found) == 0 {
		p.clock.Advance(timeout)
	}
	return found, nil
}

func (p *fakePage) Screenshot(context.Context) ([]byte, error) {
	if p.closed {
		return nil, contracts.ErrPageClosed
	}
	if p.screenshotErr != nil {
		return nil, p.screenshotErr
	}
	return []byte("\x89PNG"), nil
}

type recordingSink struct {
	attachments []contracts.Attachment
}

func (s *recordingSink) Attach(_ context.Context, a contracts.Attachment) error {
	s.attachments = append(s.attachments, a)
	return nil
}

func (s *recordingSink) names() []string {
	names := make([]string, 0, len(s.attachments))
	for _, a := range s.attachments {
		names = append(names, a.Name)
	}
	return names
}

func newTestEngine(page *fakePage, sink contracts.ReportSink) *ToastCaptureEngine {
	quiet := logging.NewLoggerWithWriter(&logging.Config{Level: "error"}, io.Discard)
	return NewToastCaptureEngine(page,
		WithClock(page.clock.Now),
		WithReportSink(sink),
		WithEngineLogger(quiet))
}

func TestToastCaptureEngine_ToastifySuccessToast(t *testing.T) {
	// Arrange
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	page := newFakePage(clock)
	page.toasts[toast.SelectorToastifySuccess] = &fakeElement{selector: toast.SelectorToastifySuccess, text: "Device Added Successfully"}
	sink := &recordingSink{}
	engine := newTestEngine(page, sink)

	// Act
	res, err := engine.Capture(context.Background(), toast.Expect("device added", 5*time.Second))

	// Assert
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Device Added Successfully", res.Text)
	assert.True(t, res.ContainsExpected)
	assert.Equal(t, toast.SelectorToastifySuccess, res.MatchedSelector)
	assert.Equal(t, toast.StateMatched, res.State)
	assert.Empty(t, res.Error)
	assert.Equal(t, []string{toast.SelectorToastifySuccess}, page.waited)
}

func TestToastCaptureEngine_FrameworkSelectorWinsOverGeneric(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	page.toasts[toast.SelectorRoleAlert] = &fakeElement{selector: toast.SelectorRoleAlert, text: "Generic alert"}
	page.toasts[toast.SelectorMUIAlertMessage] = &fakeElement{selector: toast.SelectorMUIAlertMessage, text: "Merchant created successfully"}
	page.bodyText = []string{"success everywhere"}

	res, err := newTestEngine(page, contracts.DiscardSink).Capture(context.Background(), toast.CaptureRequest{})

	require.NoError(t, err)
	assert.Equal(t, toast.SelectorMUIAlertMessage, res.MatchedSelector)
	assert.Equal(t, "Merchant created successfully", res.Text)
	assert.True(t, res.ContainsExpected, "absent expectation accepts any captured text")
}

func TestToastCaptureEngine_RoleAlertMismatchIsStillCaptured(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	page.toasts[toast.SelectorRoleAlert] = &fakeElement{selector: toast.SelectorRoleAlert, text: "Merchant already exists"}

	res, err := newTestEngine(page, contracts.DiscardSink).Capture(context.Background(), toast.Expect("created successfully", 0))

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.ContainsExpected)
	assert.Equal(t, toast.SelectorRoleAlert, res.MatchedSelector)
	assert.Equal(t, toast.VerdictFail, res.Verdict(true))
	assert.Less(t, res.Elapsed, toast.DefaultTimeout)
}

func TestToastCaptureEngine_NoToastTimesOut(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	sink := &recordingSink{}

	res, err := newTestEngine(page, sink).Capture(context.Background(), toast.CaptureRequest{Timeout: 3 * time.Second})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.Text)
	assert.False(t, res.ContainsExpected)
	assert.NotEmpty(t, res.Error)
	assert.Equal(t, toast.StateTimedOut, res.State)
	assert.Equal(t, toast.FailureTimeout, res.Failure)
	assert.Equal(t, int64(3000), res.ElapsedMs())
	assert.Equal(t, []string{"toast_001_missing.png", "toast_001_missing.json"}, sink.names())
}

func TestToastCaptureEngine_AllCandidatesExhaustedIsNotFound(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)

	req := toast.CaptureRequest{
		Timeout:    10 * time.Second,
		Candidates: []toast.Strategy{toast.Selector(".toast"), toast.Keyword("assigned")},
	}
	res, err := newTestEngine(page, contracts.DiscardSink).Capture(context.Background(), req)

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, toast.StateUnmatched, res.State)
	assert.Equal(t, toast.FailureNotFound, res.Failure)
	assert.Contains(t, res.Error, "2 candidates")
}

func TestToastCaptureEngine_DetachedElementFallsThrough(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	page.toasts[toast.SelectorToastifySuccess] = &fakeElement{selector: toast.SelectorToastifySuccess, detached: true}
	page.toasts[toast.SelectorToastifyBody] = &fakeElement{selector: toast.SelectorToastifyBody, text: "   "}
	page.toasts[toast.SelectorRoleAlert] = &fakeElement{selector: toast.SelectorRoleAlert, text: "Device assigned successfully"}

	res, err := newTestEngine(page, contracts.DiscardSink).Capture(context.Background(), toast.Expect("assigned", 0))

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, toast.SelectorRoleAlert, res.MatchedSelector)
	assert.True(t, res.ContainsExpected)
}

func TestToastCaptureEngine_KeywordFallback(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	page.bodyText = []string{"  Merchant created successfully  "}

	req := toast.CaptureRequest{
		ExpectedText: "created",
		Candidates:   []toast.Strategy{toast.Selector(".toast"), toast.Keyword("created")},
	}
	res, err := newTestEngine(page, contracts.DiscardSink).Capture(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Merchant created successfully", res.Text)
	assert.Equal(t, "text=created", res.MatchedSelector)
}

func TestToastCaptureEngine_DefaultChainReachesKeywordSearch(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	page.bodyText = []string{"Merchant created successfully"}

	res, err := newTestEngine(page, contracts.DiscardSink).Capture(context.Background(), toast.Expect("created", 0))

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, strings.HasPrefix(res.MatchedSelector, "text="), "matched %q", res.MatchedSelector)
	assert.Equal(t, "Merchant created successfully", res.Text)
	assert.True(t, res.ContainsExpected)
	assert.LessOrEqual(t, res.ElapsedMs(), toast.DefaultTimeout.Milliseconds())
}

func TestToastCaptureEngine_SelectorTierLeavesBudgetForKeywords(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)

	res, err := newTestEngine(page, contracts.DiscardSink).Capture(context.Background(), toast.Expect("created", 0))

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, toast.StateTimedOut, res.State)
	assert.Equal(t, toast.DefaultTimeout.Milliseconds(), res.ElapsedMs())
	// 1.5s for the first selector, then 300ms waits until the 3s selector cutoff.
	assert.Len(t, page.waited, 6)
}

func TestToastCaptureEngine_NoStaleCacheAcrossRequests(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	page.toasts[toast.SelectorRoleAlert] = &fakeElement{selector: toast.SelectorRoleAlert, text: "Device added"}
	engine := newTestEngine(page, contracts.DiscardSink)

	first, err := engine.Capture(context.Background(), toast.Expect("device added", 0))
	require.NoError(t, err)
	require.True(t, first.Success)

	delete(page.toasts, toast.SelectorRoleAlert)

	second, err := engine.Capture(context.Background(), toast.Expect("device added", 0))
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Empty(t, second.Text)

	cachedReq := toast.Expect("identifiers added", 0)
	cachedReq.UseCache = true
	cached, err := engine.Capture(context.Background(), cachedReq)
	require.NoError(t, err)
	assert.True(t, cached.Success)
	assert.True(t, cached.Cached)
	assert.Equal(t, "Device added", cached.Text)
	assert.False(t, cached.ContainsExpected, "expectation is re-evaluated against the cached text")

	engine.ClearCache()
	assert.Nil(t, engine.LastCaptured())
}

func TestToastCaptureEngine_CachedCaptureAttachesDiagnostics(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	page.toasts[toast.SelectorToastifySuccess] = &fakeElement{selector: toast.SelectorToastifySuccess, text: "Device added"}
	sink := &recordingSink{}
	engine := newTestEngine(page, sink)

	_, err := engine.Capture(context.Background(), toast.Expect("device added", 0))
	require.NoError(t, err)

	req := toast.Expect("identifiers added", 0)
	req.UseCache = true
	cached, err := engine.Capture(context.Background(), req)

	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, []string{
		"toast_001_captured.png", "toast_001_captured.json",
		"toast_002_captured.png", "toast_002_captured.json",
	}, sink.names())

	var dump map[string]any
	require.NoError(t, json.Unmarshal(sink.attachments[3].Data, &dump))
	assert.Equal(t, "Device added", dump["text"])
	assert.Equal(t, true, dump["cached"])
}

func TestToastCaptureEngine_PageClosedPropagates(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	page.closed = true

	res, err := newTestEngine(page, contracts.DiscardSink).Capture(context.Background(), toast.CaptureRequest{})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, contracts.ErrPageClosed)
}

func TestToastCaptureEngine_CancelledContextPropagates(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestEngine(page, contracts.DiscardSink).Capture(ctx, toast.CaptureRequest{})

	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToastCaptureEngine_AttachesDiagnosticsWhenScreenshotFails(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	page := newFakePage(clock)
	page.toasts[toast.SelectorToastifySuccess] = &fakeElement{selector: toast.SelectorToastifySuccess, text: "Saved"}
	page.screenshotErr = errors.New("renderer busy")
	sink := &recordingSink{}

	res, err := newTestEngine(page, sink).Capture(context.Background(), toast.CaptureRequest{})

	require.NoError(t, err)
	assert.True(t, res.Success)
	require.Len(t, sink.attachments, 1)
	assert.Equal(t, "toast_001_captured.json", sink.attachments[0].Name)
	assert.Equal(t, contracts.ContentTypeJSON, sink.attachments[0].ContentType)

	var dump map[string]any
	require.NoError(t, json.Unmarshal(sink.attachments[0].Data, &dump))
	assert.Equal(t, "Saved", dump["text"])
}
