package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provflow/domain/contracts"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{name: "timeout", in: fmt.Errorf("locator.click: %w", playwright.ErrTimeout), want: contracts.ErrElementTimeout},
		{name: "closed", in: fmt.Errorf("page.goto: %w", playwright.ErrTargetClosed), want: contracts.ErrPageClosed},
		{name: "detached", in: errors.New("Element is not attached to the DOM: detached"), want: contracts.ErrElementDetached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mapError(tt.in)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, tt.in)
		})
	}

	assert.NoError(t, mapError(nil))
	other := errors.New("strict mode violation")
	assert.Same(t, other, mapError(other))
}

func TestBudget(t *testing.T) {
	ms, err := budget(context.Background(), 1500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1500.0, *ms)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	ms, err = budget(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.LessOrEqual(t, *ms, 200.0)

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	_, err = budget(cancelled, time.Second)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = budget(context.Background(), 0)
	assert.ErrorIs(t, err, contracts.ErrElementTimeout)
}

func TestElementsDescribeThemselves(t *testing.T) {
	assert.Equal(t, ".MuiAlert-message", selectorElement{selector: ".MuiAlert-message"}.Describe())
	assert.Equal(t, `text="success"`, textElement{keyword: "success", text: "Saved successfully"}.Describe())
}

func TestChromedpTextContent_KeywordElementUsesCapturedText(t *testing.T) {
	page := &ChromedpPage{tabCtx: context.Background(), cancel: func() {}}

	text, err := page.TextContent(context.Background(), textElement{keyword: "added", text: "Device added"}, time.Second)

	require.NoError(t, err)
	assert.Equal(t, "Device added", text)
}

func TestPollVisible(t *testing.T) {
	live := textElement{keyword: "created", text: "Merchant created"}

	tests := []struct {
		name      string
		rounds    [][]contracts.Element
		lookupErr  error
		timeout   time.Duration
		wantErr   error
		wantCalls int
	}{
		{
			name:      "visible_on_first_lookup",
			rounds:    [][]contracts.Element{{live}},
			timeout:   time.Second,
			wantCalls: 1,
		},
		{
			name:      "hidden_matches_keep_polling",
			rounds:    [][]contracts.Element{nil, nil, {live}},
			timeout:   2 * time.Second,
			wantCalls: 3,
		},
		{
			name:    "nothing_visible_times_out",
			timeout: 250 * time.Millisecond,
			wantErr: contracts.ErrElementTimeout,
		},
		{
			name:      "page_closed_aborts",
			lookupErr:  contracts.ErrPageClosed,
			timeout:   time.Second,
			wantErr:   contracts.ErrPageClosed,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			lookup := func(context.Context, time.Duration) ([]contracts.Element, error) {
				calls++
				if tt.lookupErr != nil {
					return nil, tt.lookupErr
				}
				if calls <= len(tt.rounds) {
					return tt.rounds[calls-1], nil
				}
				return nil, nil
			}

			found, err := pollVisible(context.Background(), "created", tt.timeout, lookup)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, found)
			} else {
				require.NoError(t, err)
				assert.Equal(t, []contracts.Element{live}, found)
			}
			if tt.wantCalls > 0 {
				assert.Equal(t, tt.wantCalls, calls)
			}
		})
	}
}

func TestPollVisible_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pollVisible(ctx, "created", time.Second, func(context.Context, time.Duration) ([]contracts.Element, error) {
		t.Fatal("lookup must not run after cancellation")
		return nil, nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}
