package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jbt95/trenes/internal/history"
)

//go:embed schema_postgres.sql
var postgresSchema string

// Postgres stores the history in two Postgres tables
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to databaseURL and ensures the history schema
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	log.Printf("Store: connected to Postgres at %s", cfg.ConnConfig.Host)
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) ListIndex(ctx context.Context) ([]history.IndexEntry, error) {
	rows, err := p.pool.Query(ctx, "SELECT "+indexColumns+" FROM history_index ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}
	defer rows.Close()

	var entries []history.IndexEntry
	for rows.Next() {
		e, err := scanIndexEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan index entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}
	return entries, nil
}

const postgresInsertIndex = "INSERT INTO history_index (" + indexColumns + ") VALUES ($1, $2, $3, $4, $5)"

func (p *Postgres) AppendIndexEntry(ctx context.Context, e history.IndexEntry) error {
	_, err := p.pool.Exec(ctx, postgresInsertIndex, e.ID, e.Timestamp, e.Filename, e.VehicleCount, e.AlertCount)
	if err != nil {
		return fmt.Errorf("failed to append index entry: %w", err)
	}
	return nil
}

func (p *Postgres) RewriteIndex(ctx context.Context, entries []history.IndexEntry) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM history_index"); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(postgresInsertIndex, e.ID, e.Timestamp, e.Filename, e.VehicleCount, e.AlertCount)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert index entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit index rewrite: %w", err)
	}
	return nil
}

func (p *Postgres) ReadEntry(ctx context.Context, id string) ([]byte, error) {
	var payload []byte
	err := p.pool.QueryRow(ctx, "SELECT payload FROM history_entries WHERE entry_id = $1", id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}
	return payload, nil
}

func (p *Postgres) WriteEntry(ctx context.Context, id string, payload []byte) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO history_entries (entry_id, payload) VALUES ($1, $2)
		ON CONFLICT (entry_id) DO UPDATE SET payload = EXCLUDED.payload`,
		id, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteEntry(ctx context.Context, id string) error {
	if _, err := p.pool.Exec(ctx, "DELETE FROM history_entries WHERE entry_id = $1", id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
