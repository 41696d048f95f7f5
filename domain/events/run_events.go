package events

import (
	"time"

	"provflow/domain/run"
)

// RunStartedEvent represents a run that has begun executing
type RunStartedEvent struct {
	RunID     string
	Name      string
	Timestamp time.Time
}

// StepRecordedEvent represents a workflow step whose outcome was recorded
type StepRecordedEvent struct {
	RunID     string
	Step      run.Step
	Timestamp time.Time
}

// RunFinishedEvent represents a run that has completed, successfully or not
type RunFinishedEvent struct {
	Run       run.Run
	Summary   run.Summary
	Timestamp time.Time
}
