package events

// RunEventPublisher defines the interface for publishing run-related events.
type RunEventPublisher interface {
	PublishRunStarted(event RunStartedEvent)
	PublishStepRecorded(event StepRecordedEvent)
	PublishRunFinished(event RunFinishedEvent)
}
