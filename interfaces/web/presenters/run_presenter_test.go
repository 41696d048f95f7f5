package presenters

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provflow/domain/contracts"
	"provflow/domain/run"
)

var start = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

// Helper to create a finished run with one step of each status
func createTestRun() *run.Run {
	r := run.New("full flow", start)
	r.RecordStep(run.Step{Number: 2, Name: "Device Registration", Status: run.StepFailed, Error: "toast mismatch", Critical: true,
		StartedAt: start.Add(time.Second), FinishedAt: start.Add(3500 * time.Millisecond)})
	r.RecordStep(run.Step{Number: 1, Name: "Admin Portal Login", Status: run.StepPassed, Critical: true,
		StartedAt: start, FinishedAt: start.Add(800 * time.Millisecond), Data: map[string]string{"user": "qa", "portal": "admin"}})
	r.RecordStep(run.Step{Number: 3, Name: "DPS Request", Status: run.StepSkipped, Warning: "aborted"})
	r.Set("device_serial", "12345678901234")
	r.Finish(start.Add(2*time.Minute + 5*time.Second))
	return r
}

func TestRunPresenter_ToRunListVM(t *testing.T) {
	// Arrange
	presenter := NewRunPresenter()
	presenter.now = func() time.Time { return start.Add(30 * time.Second) }
	running := run.New("in flight", start)

	// Act
	vm := presenter.ToRunListVM([]*run.Run{createTestRun(), running})

	// Assert
	require.Len(t, vm.Runs, 2)
	assert.Equal(t, 2, vm.Total)
	assert.Equal(t, "failed", vm.Runs[0].Status)
	assert.Equal(t, "2m05s", vm.Runs[0].Duration)
	assert.False(t, vm.Runs[0].IsRunning)
	assert.True(t, vm.Runs[1].IsRunning)
	assert.Equal(t, "30.0s", vm.Runs[1].Duration)
	assert.Equal(t, "/runs/"+running.ID, vm.Runs[1].DetailPath)
}

func TestRunPresenter_ToRunDetailVM(t *testing.T) {
	// Arrange
	presenter := NewRunPresenter()
	r := createTestRun()
	attachments := []contracts.StoredAttachment{
		{Name: "toast_failure.png", ContentType: contracts.ContentTypePNG, SizeBytes: 2048},
		{Name: "run_summary.txt", ContentType: contracts.ContentTypeText, SizeBytes: 300},
	}

	// Act
	vm := presenter.ToRunDetailVM(r, attachments)

	// Assert
	assert.Equal(t, 1, vm.Passed)
	assert.Equal(t, 1, vm.Failed)
	assert.Equal(t, 1, vm.Skipped)
	require.Len(t, vm.Steps, 3)
	assert.Equal(t, "Admin Portal Login", vm.Steps[0].Name)
	assert.Equal(t, "800ms", vm.Steps[0].Duration)
	assert.Equal(t, []KeyValueVM{{Key: "portal", Value: "admin"}, {Key: "user", Value: "qa"}}, vm.Steps[0].Data)
	assert.Equal(t, "2.5s", vm.Steps[1].Duration)
	assert.Equal(t, "-", vm.Steps[2].Duration)
	assert.Equal(t, []string{"Device Registration: toast mismatch"}, vm.Errors)
	assert.Equal(t, []KeyValueVM{{Key: "device_serial", Value: "12345678901234"}}, vm.Context)
	assert.Equal(t, "2026-10-18 09:02:05", vm.FinishedAt)

	require.Len(t, vm.Attachments, 2)
	assert.True(t, vm.Attachments[0].IsImage)
	assert.Equal(t, "2.0 KB", vm.Attachments[0].Size)
	assert.Equal(t, "/runs/"+r.ID+"/attachments/run_summary.txt", vm.Attachments[1].Path)
	assert.False(t, vm.Attachments[1].IsImage)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "3.0 MB", FormatBytes(3*1024*1024))
}
