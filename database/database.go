package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"provflow/logging"

	_ "modernc.org/sqlite"
)

// MemoryPath selects a private in-memory database.
const MemoryPath = ":memory:"

// Config holds database configuration
type Config struct {
	Path              string        `env:"DB_PATH" yaml:"path" default:"./provflow.db"`
	MaxOpenConns      int           `env:"DB_MAX_OPEN_CONNS" yaml:"max_open_conns" default:"10"`
	MaxIdleConns      int           `env:"DB_MAX_IDLE_CONNS" yaml:"max_idle_conns" default:"5"`
	ConnMaxLifetime   time.Duration `env:"DB_CONN_MAX_LIFETIME" yaml:"conn_max_lifetime" default:"1h"`
	ConnMaxIdleTime   time.Duration `env:"DB_CONN_MAX_IDLE_TIME" yaml:"conn_max_idle_time" default:"15m"`
	BusyTimeoutMs     int           `env:"DB_BUSY_TIMEOUT_MS" yaml:"busy_timeout_ms" default:"5000"`
	EnableForeignKeys bool          `env:"DB_ENABLE_FOREIGN_KEYS" yaml:"enable_foreign_keys" default:"true"`
	EnableWAL         bool          `env:"DB_ENABLE_WAL" yaml:"enable_wal" default:"true"`
}

// DefaultConfig returns the default database configuration
func DefaultConfig() Config {
	return Config{
		Path:              "./provflow.db",
		MaxOpenConns:      10,
		MaxIdleConns:      5,
		ConnMaxLifetime:   time.Hour,
		ConnMaxIdleTime:   15 * time.Minute,
		BusyTimeoutMs:     5000,
		EnableForeignKeys: true,
		EnableWAL:         true,
	}
}

// Database wraps the SQL database connections and provides managed access
type Database struct {
	readDB  *sql.DB // Connection pool for reads
	writeDB *sql.DB // Serialized connection for writes
	config  Config
	logger  *logging.Logger
}

// New creates a new Database instance with separate read/write connections.
// An in-memory database shares one connection for reads and writes.
func New(config Config, logger *logging.Logger) (*Database, error) {
	if logger == nil {
		logger = logging.Default().WithComponent("database")
	}
	memory := config.Path == MemoryPath
	if memory {
		config.EnableWAL = false
	}
	dsn := buildDSN(config)

	logger.Database("Opening database connections",
		"path", config.Path,
		"memory", memory,
		"read_max_open_conns", config.MaxOpenConns,
		"write_max_open_conns", 1)

	writeDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open write database: %w", err)
	}

	// Single connection forces serialization
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)
	writeDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	writeDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	readDB := writeDB
	if memory {
		// the database lives and dies with this one connection
		writeDB.SetConnMaxLifetime(0)
		writeDB.SetConnMaxIdleTime(0)
	} else {
		readDB, err = sql.Open("sqlite", dsn)
		if err != nil {
			writeDB.Close()
			return nil, fmt.Errorf("failed to open read database: %w", err)
		}
		readDB.SetMaxOpenConns(config.MaxOpenConns)
		readDB.SetMaxIdleConns(config.MaxIdleConns)
		readDB.SetConnMaxLifetime(config.ConnMaxLifetime)
		readDB.SetConnMaxIdleTime(config.ConnMaxIdleTime)
	}

	database := &Database{
		readDB:  readDB,
		writeDB: writeDB,
		config:  config,
		logger:  logger,
	}

	if err := database.initialize(); err != nil {
		database.closeConnections()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := database.runMigrations(); err != nil {
		database.closeConnections()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	logger.Database("Database initialized successfully",
		"path", config.Path,
		"wal_mode", config.EnableWAL)

	return database, nil
}

// buildDSN constructs the SQLite Data Source Name using modernc's _pragma parameters
func buildDSN(config Config) string {
	if config.Path == MemoryPath {
		return fmt.Sprintf("file::memory:?_pragma=foreign_keys(%d)", boolToInt(config.EnableForeignKeys))
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", config.Path, config.BusyTimeoutMs)
	dsn += fmt.Sprintf("&_pragma=foreign_keys(%d)", boolToInt(config.EnableForeignKeys))
	if config.EnableWAL {
		dsn += "&_pragma=journal_mode(WAL)"
	}
	dsn += "&_pragma=synchronous(NORMAL)"
	dsn += "&_pragma=temp_store(MEMORY)"
	return dsn
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// initialize verifies both connections after creation
func (d *Database) initialize() error {
	if err := d.readDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping read database: %w", err)
	}
	if err := d.writeDB.Ping(); err != nil {
		return fmt.Errorf("failed to ping write database: %w", err)
	}

	if d.config.EnableWAL {
		var journalMode string
		if err := d.writeDB.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
			return fmt.Errorf("failed to read journal mode: %w", err)
		}
		if journalMode != "wal" {
			d.logger.Warn("WAL mode not enabled", "journal_mode", journalMode)
		}
	}

	d.logPoolStats()
	return nil
}

// ReadDB returns the read database connection
func (d *Database) ReadDB() *sql.DB {
	return d.readDB
}

// WriteDB returns the write database connection
func (d *Database) WriteDB() *sql.DB {
	return d.writeDB
}

// Close closes both database connections
func (d *Database) Close() error {
	d.logger.Database("Closing database connections")

	if d.config.EnableWAL {
		if _, err := d.writeDB.Exec("PRAGMA wal_checkpoint(TRUNCATE);"); err != nil {
			d.logger.Warn("failed to checkpoint WAL", "error", err)
		}
	}
	return d.closeConnections()
}

func (d *Database) closeConnections() error {
	var errs []error
	if d.readDB != d.writeDB {
		if err := d.readDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("read connection: %w", err))
		}
	}
	if err := d.writeDB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("write connection: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close connections: %v", errs)
	}
	return nil
}

// Health checks database connectivity and returns pool statistics
func (d *Database) Health(ctx context.Context) (map[string]any, error) {
	if err := d.readDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("read database ping failed: %w", err)
	}
	if err := d.writeDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("write database ping failed: %w", err)
	}

	readStats := d.readDB.Stats()
	writeStats := d.writeDB.Stats()

	return map[string]any{
		"read_pool": map[string]any{
			"open_connections": readStats.OpenConnections,
			"in_use":           readStats.InUse,
			"idle":             readStats.Idle,
			"wait_count":       readStats.WaitCount,
		},
		"write_pool": map[string]any{
			"open_connections": writeStats.OpenConnections,
			"in_use":           writeStats.InUse,
			"idle":             writeStats.Idle,
			"wait_count":       writeStats.WaitCount,
		},
	}, nil
}

func (d *Database) logPoolStats() {
	readStats := d.readDB.Stats()
	writeStats := d.writeDB.Stats()

	d.logger.Database("Connection pool stats",
		"read_open", readStats.OpenConnections,
		"read_idle", readStats.Idle,
		"write_open", writeStats.OpenConnections,
		"write_idle", writeStats.Idle)
}

// WithTx executes a function within a write transaction
func (d *Database) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := d.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			d.logger.Error("Failed to rollback transaction", "error", rollbackErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
