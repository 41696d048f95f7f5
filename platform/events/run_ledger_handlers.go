package events

import (
	"context"
	"log/slog"
	"time"

	"provflow/domain/contracts"
	"provflow/domain/events"
	"provflow/logging"
)

const persistTimeout = 10 * time.Second

// RunLedgerHandlers persists run events into the run ledger and logs them.
type RunLedgerHandlers struct {
	repo   contracts.RunRepository
	logger *logging.Logger
}

// NewRunLedgerHandlers creates event handlers backed by repo.
func NewRunLedgerHandlers(repo contracts.RunRepository) *RunLedgerHandlers {
	return &RunLedgerHandlers{
		repo:   repo,
		logger: logging.Default().WithComponent("run_ledger_events"),
	}
}

// RegisterHandlers registers all ledger handlers with the event bus
func (h *RunLedgerHandlers) RegisterHandlers(eventBus *RunEventBus) {
	eventBus.OnRunStarted(h.handleRunStarted)
	eventBus.OnStepRecorded(h.handleStepRecorded)
	eventBus.OnRunFinished(h.handleRunFinished)
}

func (h *RunLedgerHandlers) handleRunStarted(event events.RunStartedEvent) {
	h.logger.Info("Run started", "run_id", event.RunID, "name", event.Name)
}

func (h *RunLedgerHandlers) handleStepRecorded(event events.StepRecordedEvent) {
	h.logger.Step(event.Step.Name, string(event.Step.Status),
		slog.String("run_id", event.RunID),
		slog.Int("step", event.Step.Number),
		slog.Int64("duration_ms", event.Step.Duration().Milliseconds()))

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := h.repo.SaveStep(ctx, event.RunID, event.Step); err != nil {
		h.logger.Error("Failed to persist step", "run_id", event.RunID, "step", event.Step.Name, "error", err)
	}
}

func (h *RunLedgerHandlers) handleRunFinished(event events.RunFinishedEvent) {
	h.logger.Info("Run finished",
		"run_id", event.Run.ID,
		"status", event.Run.Status,
		"passed", event.Summary.Passed,
		"failed", event.Summary.Failed,
		"skipped", event.Summary.Skipped)

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	rn := event.Run
	if err := h.repo.SaveRun(ctx, &rn); err != nil {
		h.logger.Error("Failed to persist run", "run_id", event.Run.ID, "error", err)
	}
}
