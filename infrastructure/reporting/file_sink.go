package reporting

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"provflow/domain/contracts"
	"provflow/logging"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileSink writes attachments under <dir>/<runID>/ and indexes them in the run ledger.
type FileSink struct {
	dir    string
	runID  string
	repo   contracts.RunRepository
	logger *logging.Logger
	now    func() time.Time

	mu sync.Mutex
}

// NewFileSink creates a sink for one run. repo may be nil to skip indexing.
func NewFileSink(dir, runID string, repo contracts.RunRepository) *FileSink {
	return &FileSink{
		dir:    dir,
		runID:  runID,
		repo:   repo,
		logger: logging.Default().WithComponent("report_sink"),
		now:    time.Now,
	}
}

// RunDir is the directory holding this run's attachments.
func (s *FileSink) RunDir() string {
	return filepath.Join(s.dir, SanitizeName(s.runID))
}

// Attach implements contracts.ReportSink.
func (s *FileSink) Attach(ctx context.Context, a contracts.Attachment) error {
	name := SanitizeName(a.Name)
	if name == "" {
		return fmt.Errorf("attachment name %q is empty after sanitising", a.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.RunDir(), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(s.RunDir(), name)
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return fmt.Errorf("write attachment %s: %w", name, err)
	}

	s.logger.Debug("Attachment written", "run_id", s.runID, "name", name, "bytes", len(a.Data))

	if s.repo == nil {
		return nil
	}
	return s.repo.SaveAttachment(ctx, contracts.StoredAttachment{
		RunID:       s.runID,
		Name:        name,
		ContentType: a.ContentType,
		Path:        path,
		SizeBytes:   int64(len(a.Data)),
		CreatedAt:   s.now(),
	})
}

// SanitizeName keeps attachment names to a safe file-name alphabet.
func SanitizeName(name string) string {
	clean := unsafeName.ReplaceAllString(filepath.Base(name), "_")
	if clean == "." || clean == ".." {
		return ""
	}
	return clean
}
