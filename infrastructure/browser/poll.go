package browser

import (
	"context"
	"fmt"
	"time"

	"provflow/domain/contracts"
)

const keywordPollInterval = 100 * time.Millisecond

// visibleLookup returns the keyword matches that are visible right now. left is the time
// remaining before the caller's deadline.
type visibleLookup func(ctx context.Context, left time.Duration) ([]contracts.Element, error)

// pollVisible calls lookup until it returns at least one element or timeout passes.
func pollVisible(ctx context.Context, keyword string, timeout time.Duration, lookup visibleLookup) ([]contracts.Element, error) {
	deadline := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		left := time.Until(deadline)
		if left <= 0 {
			return nil, fmt.Errorf("%w: no visible element containing %q", contracts.ErrElementTimeout, keyword)
		}
		found, err := lookup(ctx, left)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(min(keywordPollInterval, time.Until(deadline))):
		}
	}
}
