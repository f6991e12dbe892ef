package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"media-converter/internal/filesystem"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database stores conversion job history.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New creates a new Database instance.
// dbPath is the full path to the database FILE (e.g., "/database/jobs.db");
// the parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		input_path TEXT NOT NULL,
		target_bytes INTEGER NOT NULL,
		request TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT 'queued',
		progress REAL NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT '',
		output_path TEXT NOT NULL DEFAULT '',
		output_size INTEGER NOT NULL DEFAULT 0,
		strategy TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		started_at INTEGER,
		finished_at INTEGER
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_created_at ON jobs(created_at);
	CREATE INDEX IF NOT EXISTS idx_jobs_state ON jobs(state);
	`

	_, err = d.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping verifies the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// dbFiles are the SQLite files next to the database path, keyed by their
// metric label.
var dbFiles = []struct {
	label  string
	suffix string
}{
	{"main", ""},
	{"wal", "-wal"},
	{"shm", "-shm"},
}

// UpdateDBMetrics updates database connection and file size metrics.
func (d *Database) UpdateDBMetrics() {
	stats := d.db.Stats()
	metrics.DBConnectionsOpen.Set(float64(stats.OpenConnections))

	for _, f := range dbFiles {
		var size int64
		if info, err := filesystem.StatWithRetry(d.dbPath+f.suffix, filesystem.DefaultRetryConfig()); err == nil {
			size = info.Size()
		}
		metrics.DBSizeBytes.WithLabelValues(f.label).Set(float64(size))
	}
}

// diagnoseDatabasePermissions checks that the database directory is writable
// and makes read-only WAL or SHM files left by another user writable again.
// A read-only main file is only reported.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := filesystem.StatWithRetry(dir, filesystem.DefaultRetryConfig())
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	if err := filesystem.RemoveWithRetry(testFile, filesystem.DefaultRetryConfig()); err != nil {
		logging.Debug("Failed to remove %s: %v", testFile, err)
	}

	for _, f := range dbFiles {
		path := dbPath + f.suffix
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database %s file: %s (mode: %v, size: %d bytes)", f.label, path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 != 0 {
			continue
		}

		if f.suffix == "" {
			logging.Warn("Database file is read-only! Mode: %v", info.Mode())
			continue
		}
		logging.Warn("Database %s file is read-only (mode %v); job updates would fail", f.label, info.Mode())
		if err := os.Chmod(path, 0o600); err != nil {
			logging.Error("Failed to fix %s permissions: %v", path, err)
		} else {
			logging.Info("Fixed %s permissions", path)
		}
	}

	return nil
}
