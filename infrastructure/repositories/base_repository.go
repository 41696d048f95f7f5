package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"provflow/database"
)

// BaseRepository provides common SQL conversion methods and database access that can be embedded in all repositories.
type BaseRepository struct {
	db *database.Database
}

// NewBaseRepository creates a new BaseRepository with database access
func NewBaseRepository(database *database.Database) *BaseRepository {
	return &BaseRepository{
		db: database,
	}
}

// ReadDB returns the connection pool for SELECT operations
func (b *BaseRepository) ReadDB() *sql.DB {
	return b.db.ReadDB()
}

// WriteDB returns the serialized connection for INSERT/UPDATE/DELETE operations
func (b *BaseRepository) WriteDB() *sql.DB {
	return b.db.WriteDB()
}

// WithTx executes a function within a write transaction
func (b *BaseRepository) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	return b.db.WithTx(ctx, fn)
}

// timeLayout is fixed-width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ToNullTime converts a time to its stored form. The zero time becomes NULL.
func (b *BaseRepository) ToNullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

// FromNullTime parses a stored time. NULL or unparsable values become the zero time.
func (b *BaseRepository) FromNullTime(ns sql.NullString) time.Time {
	if !ns.Valid || ns.String == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, ns.String); err == nil {
			return t
		}
	}
	return time.Time{}
}

// ToJSON encodes v for a TEXT column.
func (b *BaseRepository) ToJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode json column: %w", err)
	}
	return string(data), nil
}

// FromJSON decodes a TEXT column into v. Empty columns leave v untouched.
func (b *BaseRepository) FromJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return fmt.Errorf("decode json column: %w", err)
	}
	return nil
}
