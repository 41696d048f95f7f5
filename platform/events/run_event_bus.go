package events

import (
	"sync"

	"provflow/domain/events"
	"provflow/logging"
)

// RunEventBus provides type-safe event publishing and subscription for run events.
type RunEventBus struct {
	mu       sync.RWMutex
	inflight sync.WaitGroup
	logger   *logging.Logger

	// Event handler slices for each event type
	runStartedHandlers   []func(events.RunStartedEvent)
	stepRecordedHandlers []func(events.StepRecordedEvent)
	runFinishedHandlers  []func(events.RunFinishedEvent)
}

var _ events.RunEventPublisher = (*RunEventBus)(nil)

// NewRunEventBus creates a new typed run event bus
func NewRunEventBus() *RunEventBus {
	return &RunEventBus{
		logger:               logging.Default().WithComponent("run_event_bus"),
		runStartedHandlers:   make([]func(events.RunStartedEvent), 0),
		stepRecordedHandlers: make([]func(events.StepRecordedEvent), 0),
		runFinishedHandlers:  make([]func(events.RunFinishedEvent), 0),
	}
}

// Subscribe methods for each event type

func (bus *RunEventBus) OnRunStarted(handler func(events.RunStartedEvent)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.runStartedHandlers = append(bus.runStartedHandlers, handler)
}

func (bus *RunEventBus) OnStepRecorded(handler func(events.StepRecordedEvent)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.stepRecordedHandlers = append(bus.stepRecordedHandlers, handler)
}

func (bus *RunEventBus) OnRunFinished(handler func(events.RunFinishedEvent)) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.runFinishedHandlers = append(bus.runFinishedHandlers, handler)
}

// Publish methods for each event type

func (bus *RunEventBus) PublishRunStarted(event events.RunStartedEvent) {
	bus.mu.RLock()
	handlers := make([]func(events.RunStartedEvent), len(bus.runStartedHandlers))
	copy(handlers, bus.runStartedHandlers)
	bus.mu.RUnlock()

	for _, handler := range handlers {
		dispatch(bus, "RunStarted", event.RunID, handler, event)
	}
}

func (bus *RunEventBus) PublishStepRecorded(event events.StepRecordedEvent) {
	bus.mu.RLock()
	handlers := make([]func(events.StepRecordedEvent), len(bus.stepRecordedHandlers))
	copy(handlers, bus.stepRecordedHandlers)
	bus.mu.RUnlock()

	for _, handler := range handlers {
		dispatch(bus, "StepRecorded", event.RunID, handler, event)
	}
}

func (bus *RunEventBus) PublishRunFinished(event events.RunFinishedEvent) {
	bus.mu.RLock()
	handlers := make([]func(events.RunFinishedEvent), len(bus.runFinishedHandlers))
	copy(handlers, bus.runFinishedHandlers)
	bus.mu.RUnlock()

	for _, handler := range handlers {
		dispatch(bus, "RunFinished", event.Run.ID, handler, event)
	}
}

// Wait blocks until every handler started so far has returned.
func (bus *RunEventBus) Wait() {
	bus.inflight.Wait()
}

// dispatch runs h asynchronously so publishers never block on subscribers.
func dispatch[E any](bus *RunEventBus, name, runID string, h func(E), event E) {
	bus.inflight.Add(1)
	go func() {
		defer bus.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				bus.logger.Error("Event handler panicked in "+name,
					"run_id", runID,
					"panic", r)
			}
		}()
		h(event)
	}()
}
