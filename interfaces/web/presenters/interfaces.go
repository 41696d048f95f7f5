package presenters

import (
	"provflow/domain/contracts"
	"provflow/domain/run"
)

// RunPresenterInterface defines the contract for run presentation logic.
type RunPresenterInterface interface {
	ToRunListVM(runs []*run.Run) *RunListVM
	ToRunDetailVM(r *run.Run, attachments []contracts.StoredAttachment) *RunDetailVM
}

// Ensure RunPresenter implements the interface.
var _ RunPresenterInterface = (*RunPresenter)(nil)
