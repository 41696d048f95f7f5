package run

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_RecordStepAndSummary(t *testing.T) {
	// Arrange
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	r := New("full-flow", start)

	// Act
	r.RecordStep(Step{Name: "Admin Portal Login", Status: StepPassed, Critical: true})
	r.RecordStep(Step{Name: "DPS Request", Status: StepFailed, Error: "503 from dps"})
	r.RecordStep(Step{Name: "Merchant Creation", Status: StepSkipped, Error: "TMS login failed"})
	r.Set(KeyDeviceSerial, "38250820332270")
	r.Finish(start.Add(time.Minute))

	// Assert
	require.NotEmpty(t, r.ID)
	summary := r.Summary()
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, []string{"DPS Request"}, summary.FailedStepNames)
	assert.Equal(t, []string{"DPS Request: 503 from dps"}, summary.Errors)
	assert.Equal(t, StatusPassed, r.Status, "non-critical failures do not fail the run")
	assert.Equal(t, 3, r.Steps[2].Number)

	text := summary.Text()
	assert.Contains(t, text, "Failed Steps: 1")
	assert.Contains(t, text, "device_serial: 38250820332270")
}

func TestRun_CriticalFailureFailsRun(t *testing.T) {
	r := New("full-flow", time.Now())
	r.RecordStep(Step{Name: "Device Registration", Status: StepFailed, Critical: true, Error: "form not found"})
	r.Finish(time.Now())

	assert.Equal(t, StatusFailed, r.Status)
	assert.Len(t, r.FailedSteps(), 1)
}

func TestRun_RecordStepReplacesByName(t *testing.T) {
	r := New("full-flow", time.Now())
	r.RecordStep(Step{Name: "IPN Sync", Status: StepFailed})
	replaced := r.RecordStep(Step{Name: "IPN Sync", Status: StepPassed})

	require.Len(t, r.Steps, 1)
	assert.Equal(t, 1, replaced.Number)
	assert.True(t, r.Passed("IPN Sync"))

	_, ok := r.StepStatus("missing")
	assert.False(t, ok)
}

func TestStep_Duration(t *testing.T) {
	start := time.Now()
	assert.Equal(t, 2*time.Second, Step{StartedAt: start, FinishedAt: start.Add(2 * time.Second)}.Duration())
	assert.Zero(t, Step{StartedAt: start}.Duration())
}
