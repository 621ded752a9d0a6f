// Package store implements the history storage port on SQLite, Postgres,
// Redis and process memory.
package store

import (
	"context"
	"fmt"

	"github.com/jbt95/trenes/internal/config"
	"github.com/jbt95/trenes/internal/history"
)

// Open returns the store selected by cfg.StorageDriver
func Open(ctx context.Context, cfg *config.Config) (history.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case config.DriverPostgres:
		return OpenPostgres(ctx, cfg.DatabaseURL)
	case config.DriverRedis:
		return OpenRedis(ctx, RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
	case config.DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

const indexColumns = "entry_id, timestamp, filename, vehicle_count, alert_count"

// rowScanner is satisfied by *sql.Rows and pgx.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanIndexEntry(row rowScanner) (history.IndexEntry, error) {
	var e history.IndexEntry
	err := row.Scan(&e.ID, &e.Timestamp, &e.Filename, &e.VehicleCount, &e.AlertCount)
	return e, err
}
