package run

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StepStatus represents the outcome of a workflow step.
type StepStatus string

const (
	StepPassed  StepStatus = "passed"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// Status represents the state of a whole run.
type Status string

const (
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
)

// Step is one recorded workflow step.
type Step struct {
	Number     int               `json:"number"`
	Name       string            `json:"name"`
	Status     StepStatus        `json:"status"`
	Error      string            `json:"error,omitempty"`
	Warning    string            `json:"warning,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Critical   bool              `json:"critical"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Duration is the wall time the step took.
func (s Step) Duration() time.Duration {
	if s.FinishedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Run is the ledger of one provisioning flow execution. It is owned by a single workflow goroutine.
type Run struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Status     Status            `json:"status"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at,omitempty"`
	Steps      []Step            `json:"steps"`
	Context    map[string]string `json:"context"`
	Errors     []string          `json:"errors,omitempty"`
}

// New starts a run with a fresh ID.
func New(name string, now time.Time) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Name:      name,
		Status:    StatusRunning,
		StartedAt: now,
		Context:   make(map[string]string),
	}
}

// RecordStep stores step, replacing an earlier record with the same name.
func (r *Run) RecordStep(step Step) Step {
	if step.Status == StepFailed && step.Error != "" {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", step.Name, step.Error))
	}
	for i := range r.Steps {
		if r.Steps[i].Name == step.Name {
			if step.Number == 0 {
				step.Number = r.Steps[i].Number
			}
			r.Steps[i] = step
			return step
		}
	}
	if step.Number == 0 {
		step.Number = len(r.Steps) + 1
	}
	r.Steps = append(r.Steps, step)
	return step
}

// StepStatus returns the recorded status for name.
func (r *Run) StepStatus(name string) (StepStatus, bool) {
	for _, s := range r.Steps {
		if s.Name == name {
			return s.Status, true
		}
	}
	return "", false
}

// Passed reports whether name was recorded as passed.
func (r *Run) Passed(name string) bool {
	status, ok := r.StepStatus(name)
	return ok && status == StepPassed
}

// FailedSteps returns the failed steps in record order.
func (r *Run) FailedSteps() []Step {
	var out []Step
	for _, s := range r.Steps {
		if s.Status == StepFailed {
			out = append(out, s)
		}
	}
	return out
}

// Set stores a value produced by a step for later steps and the summary.
func (r *Run) Set(key, value string) {
	if r.Context == nil {
		r.Context = make(map[string]string)
	}
	r.Context[key] = value
}

// Get returns a context value, "" when unset.
func (r *Run) Get(key string) string {
	return r.Context[key]
}

// Finish closes the run. It fails when any critical step failed.
func (r *Run) Finish(now time.Time) {
	r.FinishedAt = now
	r.Status = StatusPassed
	for _, s := range r.Steps {
		if s.Critical && s.Status == StepFailed {
			r.Status = StatusFailed
			return
		}
	}
}

// Summary aggregates step counts.
type Summary struct {
	RunID           string            `json:"run_id"`
	Status          Status            `json:"status"`
	Total           int               `json:"total_steps"`
	Passed          int               `json:"passed_steps"`
	Failed          int               `json:"failed_steps"`
	Skipped         int               `json:"skipped_steps"`
	FailedStepNames []string          `json:"failed_step_names"`
	Errors          []string          `json:"errors"`
	Context         map[string]string `json:"context_data"`
}

// Summary computes the run's summary.
func (r *Run) Summary() Summary {
	s := Summary{
		RunID:           r.ID,
		Status:          r.Status,
		Total:           len(r.Steps),
		FailedStepNames: []string{},
		Errors:          append([]string{}, r.Errors...),
		Context:         make(map[string]string, len(r.Context)),
	}
	for k, v := range r.Context {
		s.Context[k] = v
	}
	for _, step := range r.Steps {
		switch step.Status {
		case StepPassed:
			s.Passed++
		case StepFailed:
			s.Failed++
			s.FailedStepNames = append(s.FailedStepNames, step.Name)
		case StepSkipped:
			s.Skipped++
		}
	}
	return s
}

// Text renders the summary as the plain-text report attached at the end of a run.
func (s Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s: %s\n", s.RunID, s.Status)
	fmt.Fprintf(&b, "Total Steps: %d\nPassed Steps: %d\nFailed Steps: %d\nSkipped Steps: %d\n",
		s.Total, s.Passed, s.Failed, s.Skipped)
	if len(s.FailedStepNames) > 0 {
		b.WriteString("\nFailed Steps:\n")
		for _, name := range s.FailedStepNames {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
	}
	if len(s.Errors) > 0 {
		b.WriteString("\nErrors:\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}
	if len(s.Context) > 0 {
		b.WriteString("\nData Created During Run:\n")
		for _, k := range sortedKeys(s.Context) {
			fmt.Fprintf(&b, "  %s: %s\n", k, s.Context[k])
		}
	}
	return b.String()
}
