package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one embedded schema step, named "<version>_<name>.sql".
type Migration struct {
	Version int64
	Name    string
	SQL     string
}

// parseMigrationName splits "3_add_index.sql" into version 3 and name "3_add_index".
func parseMigrationName(filename string) (int64, string, error) {
	if !strings.HasSuffix(filename, ".sql") {
		return 0, "", fmt.Errorf("non-migration file found in migrations path: %s", filename)
	}
	name := strings.TrimSuffix(filename, ".sql")
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, "", fmt.Errorf("malformed migration filename: %s", filename)
	}
	version, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("failed to parse version from %s: %w", filename, err)
	}
	return version, name, nil
}

// loadMigrations returns the embedded migrations sorted by version
func loadMigrations() ([]Migration, error) {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	migrations := make([]Migration, 0, len(entries))
	seen := make(map[int64]string, len(entries))
	for _, entry := range entries {
		version, name, err := parseMigrationName(entry.Name())
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("duplicate migration version %d: %s and %s", version, prev, name)
		}
		seen[version] = name

		content, err := migrationFiles.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", entry.Name(), err)
		}
		migrations = append(migrations, Migration{Version: version, Name: name, SQL: string(content)})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// runMigrations applies pending migrations, each in its own transaction
func (d *Database) runMigrations() error {
	ctx := context.Background()

	if _, err := d.writeDB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := loadMigrations()
	if err != nil {
		return err
	}

	current, err := d.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	applied := 0
	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		d.logger.Database("Applying migration", "version", m.Version, "name", m.Name)

		err := d.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", m.Name, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.Name, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		applied++
	}

	d.logger.Database("Database migrations checked", "applied", applied, "total", len(migrations))
	return nil
}

// SchemaVersion returns the highest applied migration version, 0 for a fresh database
func (d *Database) SchemaVersion(ctx context.Context) (int64, error) {
	var version sql.NullInt64
	if err := d.writeDB.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to query schema version: %w", err)
	}
	return version.Int64, nil
}
