package presenters

import (
	"fmt"
	"sort"
	"time"

	"provflow/domain/contracts"
	"provflow/domain/run"
)

const timeLayout = "2006-01-02 15:04:05"

// RunRowVM is one line of the run list.
type RunRowVM struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	StartedAt  string `json:"started_at"`
	Duration   string `json:"duration"`
	IsRunning  bool   `json:"is_running"`
	DetailPath string `json:"detail_path"`
}

// RunListVM is the run list page.
type RunListVM struct {
	Runs  []RunRowVM `json:"runs"`
	Total int        `json:"total"`
}

// StepVM is a recorded step as shown on the detail page.
type StepVM struct {
	Number   int          `json:"number"`
	Name     string       `json:"name"`
	Status   string       `json:"status"`
	Critical bool         `json:"critical"`
	Duration string       `json:"duration"`
	Error    string       `json:"error,omitempty"`
	Warning  string       `json:"warning,omitempty"`
	Data     []KeyValueVM `json:"data,omitempty"`
}

// KeyValueVM is a sorted map entry.
type KeyValueVM struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// AttachmentVM links to a stored attachment.
type AttachmentVM struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        string `json:"size"`
	Path        string `json:"path"`
	IsImage     bool   `json:"is_image"`
}

// RunDetailVM is the run detail page.
type RunDetailVM struct {
	RunRowVM
	FinishedAt  string         `json:"finished_at,omitempty"`
	Passed      int            `json:"passed_steps"`
	Failed      int            `json:"failed_steps"`
	Skipped     int            `json:"skipped_steps"`
	Steps       []StepVM       `json:"steps"`
	Context     []KeyValueVM   `json:"context"`
	Errors      []string       `json:"errors"`
	Attachments []AttachmentVM `json:"attachments"`
}

// RunPresenter turns run ledger records into view models.
type RunPresenter struct {
	now func() time.Time
}

// NewRunPresenter creates a run presenter.
func NewRunPresenter() *RunPresenter {
	return &RunPresenter{now: time.Now}
}

// ToRunListVM builds the run list in the order given.
func (p *RunPresenter) ToRunListVM(runs []*run.Run) *RunListVM {
	vm := &RunListVM{Runs: make([]RunRowVM, 0, len(runs)), Total: len(runs)}
	for _, r := range runs {
		vm.Runs = append(vm.Runs, p.row(r))
	}
	return vm
}

// ToRunDetailVM builds the detail page for r and its attachments.
func (p *RunPresenter) ToRunDetailVM(r *run.Run, attachments []contracts.StoredAttachment) *RunDetailVM {
	summary := r.Summary()
	vm := &RunDetailVM{
		RunRowVM:    p.row(r),
		Passed:      summary.Passed,
		Failed:      summary.Failed,
		Skipped:     summary.Skipped,
		Steps:       make([]StepVM, 0, len(r.Steps)),
		Context:     sortedPairs(r.Context),
		Errors:      summary.Errors,
		Attachments: make([]AttachmentVM, 0, len(attachments)),
	}
	if !r.FinishedAt.IsZero() {
		vm.FinishedAt = r.FinishedAt.Format(timeLayout)
	}

	steps := append([]run.Step(nil), r.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Number < steps[j].Number })
	for _, s := range steps {
		vm.Steps = append(vm.Steps, StepVM{
			Number:   s.Number,
			Name:     s.Name,
			Status:   string(s.Status),
			Critical: s.Critical,
			Duration: FormatDuration(s.Duration()),
			Error:    s.Error,
			Warning:  s.Warning,
			Data:     sortedPairs(s.Data),
		})
	}

	for _, a := range attachments {
		vm.Attachments = append(vm.Attachments, AttachmentVM{
			Name:        a.Name,
			ContentType: a.ContentType,
			Size:        FormatBytes(a.SizeBytes),
			Path:        fmt.Sprintf("/runs/%s/attachments/%s", r.ID, a.Name),
			IsImage:     a.ContentType == contracts.ContentTypePNG,
		})
	}
	return vm
}

func (p *RunPresenter) row(r *run.Run) RunRowVM {
	end := r.FinishedAt
	if end.IsZero() {
		end = p.now()
	}
	return RunRowVM{
		ID:         r.ID,
		Name:       r.Name,
		Status:     string(r.Status),
		StartedAt:  r.StartedAt.Format(timeLayout),
		Duration:   FormatDuration(end.Sub(r.StartedAt)),
		IsRunning:  r.Status == run.StatusRunning,
		DetailPath: "/runs/" + r.ID,
	}
}

func sortedPairs(m map[string]string) []KeyValueVM {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]KeyValueVM, 0, len(keys))
	for _, k := range keys {
		out = append(out, KeyValueVM{Key: k, Value: m[k]})
	}
	return out
}

// FormatDuration renders d as "850ms", "12.4s" or "3m05s".
func FormatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	d = d.Round(time.Second)
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}

// FormatBytes renders n in B, KB or MB.
func FormatBytes(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	}
	return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
}
