package events

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"provflow/domain/events"
	"provflow/domain/run"
)

func TestRunEventBus_PublishStepRecorded_Success(t *testing.T) {
	// Arrange
	eventBus := NewRunEventBus()
	done := make(chan events.StepRecordedEvent, 1)

	eventBus.OnStepRecorded(func(event events.StepRecordedEvent) {
		done <- event
	})

	// Act
	testEvent := events.StepRecordedEvent{
		RunID:     "run-1",
		Step:      run.Step{Number: 1, Name: "Admin Portal Login", Status: run.StepPassed},
		Timestamp: time.Now(),
	}
	eventBus.PublishStepRecorded(testEvent)

	// Assert
	select {
	case received := <-done:
		assert.Equal(t, "run-1", received.RunID)
		assert.Equal(t, run.StepPassed, received.Step.Status)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Handler was not called within timeout")
	}
}

func TestRunEventBus_MultipleHandlers_AllCalled(t *testing.T) {
	// Arrange
	eventBus := NewRunEventBus()
	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		eventBus.OnRunStarted(func(events.RunStartedEvent) {
			calls.Add(1)
		})
	}

	// Act
	eventBus.PublishRunStarted(events.RunStartedEvent{RunID: "run-2", Timestamp: time.Now()})
	eventBus.Wait()

	// Assert
	assert.Equal(t, int32(3), calls.Load())
}

func TestRunEventBus_HandlerPanic_DoesNotAffectOthers(t *testing.T) {
	// Arrange
	eventBus := NewRunEventBus()
	var called atomic.Bool

	eventBus.OnRunFinished(func(events.RunFinishedEvent) {
		panic("boom")
	})
	eventBus.OnRunFinished(func(events.RunFinishedEvent) {
		called.Store(true)
	})

	// Act
	rn := run.New("flow", time.Now())
	require.NotPanics(t, func() {
		eventBus.PublishRunFinished(events.RunFinishedEvent{Run: *rn, Timestamp: time.Now()})
		eventBus.Wait()
	})

	// Assert
	assert.True(t, called.Load())
}

func TestRunEventBus_NoHandlers_NoOp(t *testing.T) {
	eventBus := NewRunEventBus()

	assert.NotPanics(t, func() {
		eventBus.PublishRunStarted(events.RunStartedEvent{RunID: "x"})
		eventBus.PublishStepRecorded(events.StepRecordedEvent{RunID: "x"})
		eventBus.PublishRunFinished(events.RunFinishedEvent{})
		eventBus.Wait()
	})
}

func TestRunEventBus_ConcurrentSubscribeAndPublish(t *testing.T) {
	// Arrange
	eventBus := NewRunEventBus()
	var received atomic.Int32
	var wg sync.WaitGroup

	// Act
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			eventBus.OnStepRecorded(func(events.StepRecordedEvent) { received.Add(1) })
		}()
		go func() {
			defer wg.Done()
			eventBus.PublishStepRecorded(events.StepRecordedEvent{RunID: "concurrent"})
		}()
	}
	wg.Wait()
	eventBus.Wait()

	// Assert
	eventBus.PublishStepRecorded(events.StepRecordedEvent{RunID: "after"})
	eventBus.Wait()
	assert.GreaterOrEqual(t, received.Load(), int32(10))
}
