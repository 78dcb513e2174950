package database

import (
	"context"
	"fmt"
	"time"

	"clipstream/internal/metrics"
)

// Catalog is the durable store of published entries.
type Catalog interface {
	Publish(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, opts ListOptions) ([]Entry, error)
	SetVisibility(ctx context.Context, id string, public bool) error
	UpdateDescription(ctx context.Context, id, description string) error
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (Counts, error)
	GetStats(ctx context.Context) (metrics.Stats, error)
	Ping(ctx context.Context) error
	Vacuum(ctx context.Context) error
	Close() error
}

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open returns the Catalog for driver. For sqlite, target is the database
// file path; for postgres it is the connection string.
func Open(ctx context.Context, driver, target string) (Catalog, error) {
	switch driver {
	case DriverSQLite, "":
		return New(ctx, target)
	case DriverPostgres:
		return NewPostgres(ctx, target)
	default:
		return nil, fmt.Errorf("unknown catalog driver %q", driver)
	}
}

// recordQuery records database query metrics
func recordQuery(driver, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(driver, operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(driver, operation).Observe(time.Since(start).Seconds())
}
