package toast

import (
	"encoding/json"
	"strings"
	"time"
)

// CaptureResult is the structured outcome of a capture call. It is returned for every
// expected outcome, including absence of a toast.
type CaptureResult struct {
	Success          bool
	Text             string
	MatchedSelector  string
	ContainsExpected bool
	Elapsed          time.Duration
	Error            string
	State            State
	Failure          FailureKind
	Cached           bool
}

// Matched builds a successful result for text captured by strategy.
func Matched(req CaptureRequest, text string, strategy Strategy, elapsed time.Duration) *CaptureResult {
	text = strings.TrimSpace(text)
	return &CaptureResult{
		Success:          true,
		Text:             text,
		MatchedSelector:  strategy.Name(),
		ContainsExpected: req.Contains(text),
		Elapsed:          elapsed,
		State:            StateMatched,
	}
}

// Failed builds an unsuccessful result. Text stays empty and ContainsExpected false.
func Failed(kind FailureKind, reason string, elapsed time.Duration) *CaptureResult {
	state := StateUnmatched
	if kind == FailureTimeout {
		state = StateTimedOut
	}
	return &CaptureResult{
		Success: false,
		Elapsed: elapsed,
		Error:   reason,
		State:   state,
		Failure: kind,
	}
}

// ElapsedMs returns the elapsed wall-clock time in milliseconds.
func (r *CaptureResult) ElapsedMs() int64 {
	return r.Elapsed.Milliseconds()
}

// Verdict is a caller-level judgment of a capture.
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictWarn Verdict = "warn"
	VerdictFail Verdict = "fail"
)

// Verdict interprets the result for a caller. With soft set, a missing toast is a warning
// rather than a failure; a captured toast lacking the expected text always fails.
func (r *CaptureResult) Verdict(soft bool) Verdict {
	switch {
	case r.Success && r.ContainsExpected:
		return VerdictPass
	case r.Success:
		return VerdictFail
	case soft:
		return VerdictWarn
	default:
		return VerdictFail
	}
}

type captureResultJSON struct {
	Success          bool        `json:"success"`
	Text             string      `json:"text"`
	MatchedSelector  string      `json:"matched_selector,omitempty"`
	ContainsExpected bool        `json:"contains_expected"`
	ElapsedMs        int64       `json:"elapsed_ms"`
	Error            string      `json:"error,omitempty"`
	State            State       `json:"state"`
	Failure          FailureKind `json:"failure,omitempty"`
	Cached           bool        `json:"cached,omitempty"`
}

// MarshalJSON renders the result with elapsed time in milliseconds.
func (r CaptureResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(captureResultJSON{
		Success:          r.Success,
		Text:             r.Text,
		MatchedSelector:  r.MatchedSelector,
		ContainsExpected: r.ContainsExpected,
		ElapsedMs:        r.Elapsed.Milliseconds(),
		Error:            r.Error,
		State:            r.State,
		Failure:          r.Failure,
		Cached:           r.Cached,
	})
}
