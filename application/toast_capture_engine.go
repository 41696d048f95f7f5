package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"provflow/domain/contracts"
	"provflow/domain/toast"
	"provflow/logging"
)

const (
	defaultSliceTimeout = 1500 * time.Millisecond
	defaultProbeTimeout = 300 * time.Millisecond
	defaultTextTimeout  = 2 * time.Second

	// Selector candidates stop at this share of the budget when keyword candidates follow them.
	selectorBudgetPercent = 60
)

// ToastCaptureEngine extracts the text of transient notification elements from a live page.
// One engine serves one page; calls are expected on a single control flow.
type ToastCaptureEngine struct {
	page         contracts.ToastPage
	sink         contracts.ReportSink
	logger       *logging.Logger
	sliceTimeout time.Duration
	probeTimeout time.Duration
	textTimeout  time.Duration
	now          func() time.Time

	mu   sync.Mutex
	last *toast.CaptureResult
	seq  int
}

// ToastEngineOption configures a ToastCaptureEngine.
type ToastEngineOption func(*ToastCaptureEngine)

// WithSliceTimeout bounds the first candidate's visibility wait.
func WithSliceTimeout(d time.Duration) ToastEngineOption {
	return func(e *ToastCaptureEngine) {
		if d > 0 {
			e.sliceTimeout = d
		}
	}
}

// WithProbeTimeout bounds the visibility wait of every candidate after the first.
func WithProbeTimeout(d time.Duration) ToastEngineOption {
	return func(e *ToastCaptureEngine) {
		if d > 0 {
			e.probeTimeout = d
		}
	}
}

// WithTextTimeout bounds each text read.
func WithTextTimeout(d time.Duration) ToastEngineOption {
	return func(e *ToastCaptureEngine) {
		if d > 0 {
			e.textTimeout = d
		}
	}
}

// WithReportSink routes screenshots and result dumps to sink.
func WithReportSink(sink contracts.ReportSink) ToastEngineOption {
	return func(e *ToastCaptureEngine) {
		if sink != nil {
			e.sink = sink
		}
	}
}

// WithEngineLogger overrides the engine's logger.
func WithEngineLogger(logger *logging.Logger) ToastEngineOption {
	return func(e *ToastCaptureEngine) {
		if logger != nil {
			e.logger = logger.WithComponent("toast_engine")
		}
	}
}

// WithClock replaces the wall clock used for budgeting.
func WithClock(now func() time.Time) ToastEngineOption {
	return func(e *ToastCaptureEngine) {
		if now != nil {
			e.now = now
		}
	}
}

var _ contracts.ToastCapturer = (*ToastCaptureEngine)(nil)

// NewToastCaptureEngine creates an engine reading from page.
func NewToastCaptureEngine(page contracts.ToastPage, opts ...ToastEngineOption) *ToastCaptureEngine {
	e := &ToastCaptureEngine{
		page:         page,
		sink:         contracts.DiscardSink,
		logger:       logging.Default().WithComponent("toast_engine"),
		sliceTimeout: defaultSliceTimeout,
		probeTimeout: defaultProbeTimeout,
		textTimeout:  defaultTextTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Capture walks the request's candidate chain until a non-empty toast text is read or the
// budget runs out. When the chain ends in keyword candidates, selectors get the first 60% of
// the budget and the keywords split the rest. Absence of a toast is reported in the result;
// only an unusable page or a cancelled context is returned as an error.
func (e *ToastCaptureEngine) Capture(ctx context.Context, req toast.CaptureRequest) (*toast.CaptureResult, error) {
	req = req.Normalize()
	logger := e.logger.WithContext(ctx)

	if req.UseCache {
		if cached := e.LastCaptured(); cached != nil {
			res := *cached
			res.Cached = true
			res.ContainsExpected = req.Contains(res.Text)
			logger.Toast("Using cached toast", "text", res.Text)
			e.finish(ctx, &res)
			return &res, nil
		}
	}

	start := e.now()
	deadline := start.Add(req.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	logger.Toast("Waiting for toast",
		"timeout_ms", req.Timeout.Milliseconds(),
		"expected", req.ExpectedText,
		"candidates", len(req.Candidates))

	keywordsLeft := countKeywords(req.Candidates)
	selectorDeadline := deadline
	if keywordsLeft > 0 {
		selectorDeadline = start.Add(deadline.Sub(start) * selectorBudgetPercent / 100)
	}

	state := toast.StateWaiting
	for i, candidate := range req.Candidates {
		remaining := deadline.Sub(e.now())
		if remaining <= 0 {
			break
		}
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				break
			}
			return nil, fmt.Errorf("capture toast: %w", err)
		}

		var slice time.Duration
		if candidate.Kind == toast.KindKeyword {
			slice = minDuration(e.probeTimeout, remaining/time.Duration(keywordsLeft))
			keywordsLeft--
		} else {
			tier := selectorDeadline.Sub(e.now())
			if tier <= 0 {
				continue
			}
			slice = e.probeTimeout
			if i == 0 {
				slice = e.sliceTimeout
			}
			slice = minDuration(slice, minDuration(tier, remaining))
		}
		text, err := e.tryCandidate(ctx, candidate, slice, deadline, &state)
		if err != nil {
			return nil, fmt.Errorf("capture toast via %s: %w", candidate.Name(), err)
		}
		if text != "" {
			res := toast.Matched(req, text, candidate, e.now().Sub(start))
			e.remember(res)
			e.finish(ctx, res)
			return res, nil
		}
	}

	elapsed := e.now().Sub(start)
	var res *toast.CaptureResult
	if !e.now().Before(deadline) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res = toast.Failed(toast.FailureTimeout,
			fmt.Sprintf("no toast appeared within %dms", req.Timeout.Milliseconds()), elapsed)
	} else {
		res = toast.Failed(toast.FailureNotFound,
			fmt.Sprintf("no toast matched any of %d candidates", len(req.Candidates)), elapsed)
	}
	e.finish(ctx, res)
	return res, nil
}

// tryCandidate returns the captured text, or "" when this candidate produced nothing.
// A non-nil error means the page itself is unusable.
func (e *ToastCaptureEngine) tryCandidate(ctx context.Context, candidate toast.Strategy, slice time.Duration, deadline time.Time, state *toast.State) (string, error) {
	var elements []contracts.Element
	switch candidate.Kind {
	case toast.KindKeyword:
		found, err := e.page.FindVisibleByText(ctx, candidate.Pattern, slice)
		if fatal := e.fatal(ctx, err); fatal != nil {
			return "", fatal
		}
		elements = found
	default:
		el, err := e.page.WaitVisible(ctx, candidate.Pattern, slice)
		if fatal := e.fatal(ctx, err); fatal != nil {
			return "", fatal
		}
		if err == nil && el != nil {
			elements = []contracts.Element{el}
		}
	}

	for _, el := range elements {
		budget := minDuration(e.textTimeout, deadline.Sub(e.now()))
		if budget <= 0 {
			return "", nil
		}
		e.transition(state, toast.StateExtracting, candidate)

		text, err := e.page.TextContent(ctx, el, budget)
		if fatal := e.fatal(ctx, err); fatal != nil {
			return "", fatal
		}
		if err == nil && strings.TrimSpace(text) != "" {
			return text, nil
		}
		e.logger.Debug("Toast candidate yielded no text",
			"candidate", candidate.Name(),
			"element", el.Describe(),
			"detached", errors.Is(err, contracts.ErrElementDetached))
		e.transition(state, toast.StateWaiting, candidate)
	}
	return "", nil
}

// fatal filters err down to the conditions that abort a capture.
func (e *ToastCaptureEngine) fatal(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, contracts.ErrPageClosed) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
		return ctxErr
	}
	return nil
}

func (e *ToastCaptureEngine) transition(state *toast.State, next toast.State, candidate toast.Strategy) {
	e.logger.Debug("Toast capture transition", "from", *state, "to", next, "candidate", candidate.Name())
	*state = next
}

// finish attaches diagnostics for both success and failure paths.
func (e *ToastCaptureEngine) finish(ctx context.Context, res *toast.CaptureResult) {
	e.mu.Lock()
	e.seq++
	seq := e.seq
	e.mu.Unlock()

	name := fmt.Sprintf("toast_%03d_%s", seq, map[bool]string{true: "captured", false: "missing"}[res.Success])

	if shot, err := e.page.Screenshot(ctx); err != nil {
		e.logger.Warn("Could not take toast screenshot", "error", err)
	} else if err := e.sink.Attach(ctx, contracts.Attachment{Name: name + ".png", ContentType: contracts.ContentTypePNG, Data: shot}); err != nil {
		e.logger.Warn("Could not attach toast screenshot", "error", err)
	}

	if dump, err := json.Marshal(res); err == nil {
		if err := e.sink.Attach(ctx, contracts.Attachment{Name: name + ".json", ContentType: contracts.ContentTypeJSON, Data: dump}); err != nil {
			e.logger.Warn("Could not attach toast result", "error", err)
		}
	}

	if res.Success {
		e.logger.WithContext(ctx).Toast("Captured toast",
			"text", res.Text,
			"selector", res.MatchedSelector,
			"contains_expected", res.ContainsExpected,
			"elapsed_ms", res.ElapsedMs())
		return
	}
	e.logger.WithContext(ctx).Warn("Toast not captured",
		"state", res.State,
		"reason", res.Error,
		"elapsed_ms", res.ElapsedMs())
}

func (e *ToastCaptureEngine) remember(res *toast.CaptureResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cp := *res
	e.last = &cp
}

// LastCaptured returns a copy of the most recent successful capture, or nil.
func (e *ToastCaptureEngine) LastCaptured() *toast.CaptureResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return nil
	}
	cp := *e.last
	return &cp
}

// ClearCache forgets the last captured toast.
func (e *ToastCaptureEngine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.last = nil
}

func countKeywords(candidates []toast.Strategy) int {
	n := 0
	for _, c := range candidates {
		if c.Kind == toast.KindKeyword {
			n++
		}
	}
	return n
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
