package handlers

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"provflow/domain/contracts"
	"provflow/interfaces/web/presenters"
	"provflow/interfaces/web/templates"
	"provflow/logging"
)

const (
	defaultRunLimit = 50
	maxRunLimit     = 500
)

// HealthChecker reports storage health.
type HealthChecker interface {
	Health(ctx context.Context) (map[string]any, error)
}

// RunHandlers serves the run ledger.
type RunHandlers struct {
	repo      contracts.RunRepository
	presenter presenters.RunPresenterInterface
	health    HealthChecker
	reportDir string
	logger    *logging.Logger
}

// NewRunHandlers creates the run report handlers. Attachments are only served from below reportDir.
func NewRunHandlers(repo contracts.RunRepository, presenter presenters.RunPresenterInterface, health HealthChecker, reportDir string) *RunHandlers {
	return &RunHandlers{
		repo:      repo,
		presenter: presenter,
		health:    health,
		reportDir: reportDir,
		logger:    logging.Default().WithComponent("run_handler"),
	}
}

// Health reports database connectivity.
func (h *RunHandlers) Health(w http.ResponseWriter, r *http.Request) {
	response := map[string]any{"status": "ok"}
	if h.health != nil {
		stats, err := h.health.Health(r.Context())
		if err != nil {
			WriteJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "error", "error": err.Error()})
			return
		}
		response["database"] = stats
	}
	WriteJSON(w, http.StatusOK, response)
}

// ListRuns shows the most recent runs. ?limit bounds the count.
func (h *RunHandlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list runs", "error", err)
		http.Error(w, "failed to list runs", http.StatusInternalServerError)
		return
	}

	vm := h.presenter.ToRunListVM(runs)
	if WantsJSON(r) {
		WriteJSON(w, http.StatusOK, vm)
		return
	}
	RenderResponse(r.Context(), w, r, templates.RunList(vm))
}

// GetRun shows one run with its steps and attachments.
func (h *RunHandlers) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	rn, err := h.repo.GetRun(r.Context(), runID)
	if errors.Is(err, contracts.ErrNotFound) {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load run", "run_id", runID, "error", err)
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}

	attachments, err := h.repo.ListAttachments(r.Context(), runID)
	if err != nil {
		h.logger.Error("Failed to list attachments", "run_id", runID, "error", err)
		http.Error(w, "failed to load run", http.StatusInternalServerError)
		return
	}

	vm := h.presenter.ToRunDetailVM(rn, attachments)
	if WantsJSON(r) {
		WriteJSON(w, http.StatusOK, vm)
		return
	}
	RenderResponse(r.Context(), w, r, templates.RunDetail(vm))
}

// GetAttachment streams a stored attachment file.
func (h *RunHandlers) GetAttachment(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	name := chi.URLParam(r, "name")

	a, err := h.repo.GetAttachment(r.Context(), runID, name)
	if errors.Is(err, contracts.ErrNotFound) {
		http.Error(w, "attachment not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load attachment", "run_id", runID, "name", name, "error", err)
		http.Error(w, "failed to load attachment", http.StatusInternalServerError)
		return
	}
	if !h.withinReportDir(a.Path) {
		h.logger.Warn("Attachment path outside report directory", "run_id", runID, "path", a.Path)
		http.Error(w, "attachment not found", http.StatusNotFound)
		return
	}

	if a.ContentType != "" {
		w.Header().Set("Content-Type", a.ContentType)
	}
	http.ServeFile(w, r, a.Path)
}

func (h *RunHandlers) withinReportDir(path string) bool {
	if h.reportDir == "" {
		return true
	}
	base, err := filepath.Abs(h.reportDir)
	if err != nil {
		return false
	}
	target, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(base, target)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
