package helpers

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"provflow/database"
	"provflow/logging"
)

// QuietLogger returns a logger that discards everything below error level.
func QuietLogger() *logging.Logger {
	return logging.NewLoggerWithWriter(&logging.Config{Level: "error", Format: "json"}, io.Discard)
}

// NewTestDatabase opens a migrated in-memory database closed when the test ends.
func NewTestDatabase(t *testing.T) *database.Database {
	t.Helper()

	cfg := database.DefaultConfig()
	cfg.Path = database.MemoryPath

	db, err := database.New(cfg, QuietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
