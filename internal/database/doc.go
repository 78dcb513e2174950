// Package database stores published catalog entries.
//
// Two implementations of Catalog are provided:
//   - Database: SQLite via github.com/mattn/go-sqlite3, in WAL mode (default)
//   - PostgresStore: PostgreSQL via github.com/jackc/pgx/v5 (CATALOG_DRIVER=postgres)
//
// Publish is a single INSERT, so an entry is either fully visible or absent,
// and it fails with ErrDuplicateID rather than overwriting an existing id.
// After publication only visibility and description may change.
package database
