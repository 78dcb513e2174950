package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"clipstream/internal/logging"
	"clipstream/internal/metrics"
)

// uniqueViolation is the SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

// PostgresStore is the PostgreSQL catalog.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the PostgreSQL catalog described by connString
// and creates its schema if missing.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres connection string: %w", err)
	}
	cfg.MaxConns = 25
	cfg.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &PostgresStore{pool: pool}

	start := time.Now()
	err = s.initialize(ctx)
	recordQuery(DriverPostgres, "initialize_schema", start, err)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s:%d/%s", cfg.ConnConfig.Host, cfg.ConnConfig.Port, cfg.ConnConfig.Database)
	return s, nil
}

func (s *PostgresStore) initialize(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		uploader_id TEXT NOT NULL,
		duration_sec BIGINT NOT NULL DEFAULT 0,
		hls_path TEXT NOT NULL,
		thumbnail_path TEXT NOT NULL,
		is_public BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_videos_created_at ON videos(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_videos_uploader ON videos(uploader_id);
	`)
	return err
}

func scanPgEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.UploaderID, &e.DurationSec,
		&e.HLSPath, &e.ThumbnailPath, &e.IsPublic, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return &e, nil
}

// Publish inserts e. It never overwrites an existing entry.
func (s *PostgresStore) Publish(ctx context.Context, e *Entry) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverPostgres, "publish", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	e.stamp()
	_, err = s.pool.Exec(ctx, `
		INSERT INTO videos (id, title, description, uploader_id, duration_sec, hls_path, thumbnail_path, is_public, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.Title, e.Description, e.UploaderID, e.DurationSec,
		e.HLSPath, e.ThumbnailPath, e.IsPublic, e.CreatedAt,
	)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		err = fmt.Errorf("%w: %s", ErrDuplicateID, e.ID)
	}
	return err
}

// GetByID returns the entry with id, hidden or not.
func (s *PostgresStore) GetByID(ctx context.Context, id string) (*Entry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverPostgres, "get", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var e *Entry
	e, err = scanPgEntry(s.pool.QueryRow(ctx, "SELECT "+selectColumns+" FROM videos WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return e, err
}

// List returns entries newest first.
func (s *PostgresStore) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverPostgres, "list", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "SELECT " + selectColumns + " FROM videos WHERE TRUE"
	var args []any
	if !opts.IncludeHidden {
		query += " AND is_public"
	}
	if opts.UploaderID != "" {
		args = append(args, opts.UploaderID)
		query += fmt.Sprintf(" AND uploader_id = $%d", len(args))
	}
	args = append(args, opts.limit())
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e *Entry
		e, err = scanPgEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	err = rows.Err()
	return entries, err
}

// SetVisibility hides or shows an entry.
func (s *PostgresStore) SetVisibility(ctx context.Context, id string, public bool) error {
	return s.update(ctx, "set_visibility", "UPDATE videos SET is_public = $1 WHERE id = $2", public, id)
}

// UpdateDescription replaces the description of an entry.
func (s *PostgresStore) UpdateDescription(ctx context.Context, id, description string) error {
	return s.update(ctx, "update_description", "UPDATE videos SET description = $1 WHERE id = $2", description, id)
}

// Delete removes an entry.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	return s.update(ctx, "delete", "DELETE FROM videos WHERE id = $1", id)
}

func (s *PostgresStore) update(ctx context.Context, operation, query string, args ...any) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverPostgres, operation, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var tag pgconn.CommandTag
	tag, err = s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Counts returns the number of public and hidden entries.
func (s *PostgresStore) Counts(ctx context.Context) (Counts, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverPostgres, "counts", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var c Counts
	err = s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FILTER (WHERE is_public), COUNT(*) FILTER (WHERE NOT is_public) FROM videos
	`).Scan(&c.Public, &c.Hidden)
	return c, err
}

// GetStats implements metrics.StatsProvider.
func (s *PostgresStore) GetStats(ctx context.Context) (metrics.Stats, error) {
	c, err := s.Counts(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}
	return metrics.Stats{
		PublicVideos: c.Public,
		HiddenVideos: c.Hidden,
		OpenConns:    int(s.pool.Stat().TotalConns()),
	}, nil
}

// Ping checks the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

// Vacuum reclaims dead rows of the videos table and refreshes its
// planner statistics.
func (s *PostgresStore) Vacuum(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery(DriverPostgres, "vacuum", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	_, err = s.pool.Exec(ctx, "VACUUM ANALYZE videos")
	return err
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
