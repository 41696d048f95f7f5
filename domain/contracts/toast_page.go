package contracts

import (
	"context"
	"time"
)

// Element is an opaque handle to a DOM node resolved by a driver.
type Element interface {
	// Describe returns a short human-readable description for logs.
	Describe() string
}

// ToastPage is the read-only view of a live page the toast capture engine works against.
// Implementations return ErrElementTimeout, ErrElementDetached or ErrPageClosed (wrapped or bare).
type ToastPage interface {
	// WaitVisible blocks until the first element matching selector is visible.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) (Element, error)

	// TextContent reads the element's text content.
	TextContent(ctx context.Context, el Element, timeout time.Duration) (string, error)

	// FindVisibleByText returns visible elements whose text contains keyword, case-insensitively.
	FindVisibleByText(ctx context.Context, keyword string, timeout time.Duration) ([]Element, error)

	// Screenshot captures the current viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}
