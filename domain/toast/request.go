package toast

import (
	"strings"
	"time"
)

// DefaultTimeout bounds a capture when the request leaves Timeout unset.
const DefaultTimeout = 5 * time.Second

// CaptureRequest describes one attempt to read a toast after a UI action.
type CaptureRequest struct {
	// ExpectedText is matched as a case-insensitive substring. Empty accepts any toast.
	ExpectedText string
	Timeout      time.Duration
	Candidates   []Strategy
	// UseCache returns the engine's last captured toast instead of querying the page.
	UseCache bool
}

// Expect builds a request with the default candidate chain.
func Expect(text string, timeout time.Duration) CaptureRequest {
	return CaptureRequest{ExpectedText: text, Timeout: timeout}
}

// Normalize fills defaults for zero-valued fields.
func (r CaptureRequest) Normalize() CaptureRequest {
	if r.Timeout <= 0 {
		r.Timeout = DefaultTimeout
	}
	if len(r.Candidates) == 0 {
		r.Candidates = DefaultStrategies()
	}
	return r
}

// HasExpectation reports whether the request names an expected text.
func (r CaptureRequest) HasExpectation() bool {
	return strings.TrimSpace(r.ExpectedText) != ""
}

// Contains reports whether text satisfies the expectation.
func (r CaptureRequest) Contains(text string) bool {
	if !r.HasExpectation() {
		return true
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(strings.TrimSpace(r.ExpectedText)))
}
