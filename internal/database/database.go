package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"

	"clipstream/internal/logging"
	"clipstream/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database is the SQLite catalog.
type Database struct {
	db     *sql.DB
	dbPath string
}

// New opens (creating if needed) the SQLite catalog at dbPath.
// IMPORTANT: dbPath is the database FILE, and its parent directory must
// already exist and be writable. startup.LoadConfig validates this.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// Diagnose potential permission issues
	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=FULL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

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

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	start := time.Now()
	err = d.initialize(ctx)
	recordQuery(DriverSQLite, "initialize_schema", start, err)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		uploader_id TEXT NOT NULL,
		duration_sec INTEGER NOT NULL DEFAULT 0,
		hls_path TEXT NOT NULL,
		thumbnail_path TEXT NOT NULL,
		is_public INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_videos_uploader ON videos(uploader_id);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT
	);
	`

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	_, err := d.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1')")
	return err
}

const selectColumns = `id, title, description, uploader_id, duration_sec, hls_path, thumbnail_path, is_public, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		e       Entry
		public  int
		created int64
	)
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.UploaderID, &e.DurationSec,
		&e.HLSPath, &e.ThumbnailPath, &public, &created); err != nil {
		return nil, err
	}
	e.IsPublic = public != 0
	e.CreatedAt = time.UnixMilli(created).UTC()
	return &e, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Publish inserts e. It never overwrites an existing entry.
func (d *Database) Publish(ctx context.Context, e *Entry) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverSQLite, "publish", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	e.stamp()
	_, err = d.db.ExecContext(ctx, `
		INSERT INTO videos (id, title, description, uploader_id, duration_sec, hls_path, thumbnail_path, is_public, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Description, e.UploaderID, e.DurationSec,
		e.HLSPath, e.ThumbnailPath, boolToInt(e.IsPublic), e.CreatedAt.UnixMilli(),
	)

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) &&
		(sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique) {
		err = fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	return err
}

// GetByID returns the entry with id, hidden or not.
func (d *Database) GetByID(ctx context.Context, id string) (*Entry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverSQLite, "get", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var e *Entry
	e, err = scanEntry(d.db.QueryRowContext(ctx, "SELECT "+selectColumns+" FROM videos WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// List returns entries newest first.
func (d *Database) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverSQLite, "list", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "SELECT " + selectColumns + " FROM videos WHERE 1=1"
	var args []any
	if !opts.IncludeHidden {
		query += " AND is_public = 1"
	}
	if opts.UploaderID != "" {
		query += " AND uploader_id = ?"
		args = append(args, opts.UploaderID)
	}
	query += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, opts.limit())

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e *Entry
		e, err = scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	err = rows.Err()
	return entries, err
}

// SetVisibility hides or shows an entry.
func (d *Database) SetVisibility(ctx context.Context, id string, public bool) error {
	return d.update(ctx, "set_visibility", "UPDATE videos SET is_public = ? WHERE id = ?", boolToInt(public), id)
}

// UpdateDescription replaces the description of an entry.
func (d *Database) UpdateDescription(ctx context.Context, id, description string) error {
	return d.update(ctx, "update_description", "UPDATE videos SET description = ? WHERE id = ?", description, id)
}

// Delete removes an entry. Its assets are the caller's to remove.
func (d *Database) Delete(ctx context.Context, id string) error {
	return d.update(ctx, "delete", "DELETE FROM videos WHERE id = ?", id)
}

func (d *Database) update(ctx context.Context, operation, query string, args ...any) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverSQLite, operation, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var res sql.Result
	res, err = d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Counts returns the number of public and hidden entries.
func (d *Database) Counts(ctx context.Context) (Counts, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverSQLite, "counts", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c Counts
	err = d.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(is_public), 0), COALESCE(SUM(1 - is_public), 0) FROM videos
	`).Scan(&c.Public, &c.Hidden)
	return c, err
}

// GetStats implements metrics.StatsProvider.
func (d *Database) GetStats(ctx context.Context) (metrics.Stats, error) {
	c, err := d.Counts(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		PublicVideos: c.Public,
		HiddenVideos: c.Hidden,
		OpenConns:    d.db.Stats().OpenConnections,
	}, nil
}

// Ping checks the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Vacuum rebuilds the database file, reclaiming space left by deletes.
func (d *Database) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverSQLite, "vacuum", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = d.db.ExecContext(ctx, "VACUUM")
	return err
}

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	// Check directory permissions
	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}

	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	// Check if directory is writable by testing
	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile) // Explicitly ignore cleanup error
	logging.Debug("Database directory is writable")

	// Check main database file
	if dbInfo, err := os.Stat(dbPath); err == nil {
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", dbPath, dbInfo.Mode(), dbInfo.Size())
		if dbInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file is read-only! Mode: %v", dbInfo.Mode())
		}
	}

	// Check WAL file
	walPath := dbPath + "-wal"
	if walInfo, err := os.Stat(walPath); err == nil {
		logging.Debug("WAL file exists: %s (mode: %v, size: %d bytes)", walPath, walInfo.Mode(), walInfo.Size())
		if walInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("WAL file is read-only! Mode: %v - this will cause write failures", walInfo.Mode())
			// Try to fix it
			if chmodErr := os.Chmod(walPath, 0o600); chmodErr != nil {
				logging.Error("Failed to fix WAL file permissions: %v", chmodErr)
			} else {
				logging.Info("Fixed WAL file permissions")
			}
		}
	}

	// Check SHM file
	shmPath := dbPath + "-shm"
	if shmInfo, err := os.Stat(shmPath); err == nil {
		logging.Debug("SHM file exists: %s (mode: %v, size: %d bytes)", shmPath, shmInfo.Mode(), shmInfo.Size())
		if shmInfo.Mode().Perm()&0o200 == 0 {
			logging.Warn("SHM file is read-only! Mode: %v - this will cause write failures", shmInfo.Mode())
			// Try to fix it
			if chmodErr := os.Chmod(shmPath, 0o600); chmodErr != nil {
				logging.Error("Failed to fix SHM file permissions: %v", chmodErr)
			} else {
				logging.Info("Fixed SHM file permissions")
			}
		}
	}

	return nil
}
