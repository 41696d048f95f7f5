package contracts

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Target describes how to locate an element on a portal page.
// Exactly one of Role, CSS, Label, TestID or Text is expected to be set.
type Target struct {
	Role    string // ARIA role, combined with Name
	Name    string
	Exact   bool
	CSS     string
	Label   string
	TestID  string
	Text    string
	HasText string  // keep only matches containing this text
	Nth     int     // zero means first
	Within  *Target // scope the lookup inside another target
}

// ByRole targets an element by ARIA role and accessible name.
func ByRole(role, name string) Target {
	return Target{Role: role, Name: name}
}

// ByRoleExact targets an element by ARIA role and exact accessible name.
func ByRoleExact(role, name string) Target {
	return Target{Role: role, Name: name, Exact: true}
}

// ByCSS targets an element by CSS selector.
func ByCSS(selector string) Target {
	return Target{CSS: selector}
}

// In returns a copy of t scoped inside parent.
func (t Target) In(parent Target) Target {
	t.Within = &parent
	return t
}

// Filter returns a copy of t keeping only matches containing text.
func (t Target) Filter(text string) Target {
	t.HasText = text
	return t
}

// String renders the target for logs.
func (t Target) String() string {
	var b strings.Builder
	switch {
	case t.Role != "":
		fmt.Fprintf(&b, "role=%s[name=%q]", t.Role, t.Name)
	case t.CSS != "":
		b.WriteString(t.CSS)
	case t.Label != "":
		fmt.Fprintf(&b, "label=%q", t.Label)
	case t.TestID != "":
		fmt.Fprintf(&b, "testid=%q", t.TestID)
	case t.Text != "":
		fmt.Fprintf(&b, "text=%q", t.Text)
	}
	if t.HasText != "" {
		fmt.Fprintf(&b, ":has-text(%q)", t.HasText)
	}
	if t.Nth > 0 {
		fmt.Fprintf(&b, ">>nth=%d", t.Nth)
	}
	if t.Within != nil {
		return t.Within.String() + " >> " + b.String()
	}
	return b.String()
}

// UIDriver is the set of interactions portal page objects need from a browser page.
type UIDriver interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, t Target, timeout time.Duration) error
	DoubleClick(ctx context.Context, t Target, timeout time.Duration) error
	Fill(ctx context.Context, t Target, value string, timeout time.Duration) error
	Press(ctx context.Context, t Target, key string) error
	Check(ctx context.Context, t Target, timeout time.Duration) error
	WaitVisible(ctx context.Context, t Target, timeout time.Duration) error
	IsVisible(ctx context.Context, t Target, timeout time.Duration) bool
	Text(ctx context.Context, t Target, timeout time.Duration) (string, error)
}
