package contracts

import "errors"

// Common errors for domain contracts
var (
	// ErrPageClosed occurs when the browser page backing a driver is no longer usable
	ErrPageClosed = errors.New("browser page closed")

	// ErrElementTimeout occurs when an element did not reach the requested state in time
	ErrElementTimeout = errors.New("element wait timed out")

	// ErrElementDetached occurs when an element disappeared between lookup and use
	ErrElementDetached = errors.New("element detached from DOM")

	// ErrNotFound occurs when a repository or registry has no record for the requested key
	ErrNotFound = errors.New("not found")
)
