package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jbt95/trenes/internal/history"
)

//go:embed schema_sqlite.sql
var sqliteSchema string

// SQLite stores the history in a single SQLite file
type SQLite struct {
	conn    *sql.DB
	writeMu sync.Mutex // SQLite allows one writer at a time
}

// OpenSQLite opens (creating if needed) a WAL-mode database at path and
// ensures the history schema
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "PRAGMA synchronous = NORMAL"); err != nil {
		log.Printf("Store: Warning: failed to set synchronous mode: %v", err)
	}

	s := newSQLite(conn)
	if err := s.ensureSchema(ctx); err != nil {
		conn.Close()
		return nil, err
	}

	log.Printf("Store: connected to SQLite database: %s", path)
	return s, nil
}

func newSQLite(conn *sql.DB) *SQLite {
	return &SQLite{conn: conn}
}

func (s *SQLite) ensureSchema(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SQLite) ListIndex(ctx context.Context) ([]history.IndexEntry, error) {
	rows, err := s.conn.QueryContext(ctx, "SELECT "+indexColumns+" FROM history_index ORDER BY seq")
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

const sqliteInsertIndex = "INSERT INTO history_index (" + indexColumns + ") VALUES (?, ?, ?, ?, ?)"

func (s *SQLite) AppendIndexEntry(ctx context.Context, e history.IndexEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx, sqliteInsertIndex, e.ID, e.Timestamp, e.Filename, e.VehicleCount, e.AlertCount)
	if err != nil {
		return fmt.Errorf("failed to append index entry: %w", err)
	}
	return nil
}

func (s *SQLite) RewriteIndex(ctx context.Context, entries []history.IndexEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM history_index"); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, sqliteInsertIndex)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.Timestamp, e.Filename, e.VehicleCount, e.AlertCount); err != nil {
			return fmt.Errorf("failed to insert index entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit index rewrite: %w", err)
	}
	return nil
}

func (s *SQLite) ReadEntry(ctx context.Context, id string) ([]byte, error) {
	var payload []byte
	err := s.conn.QueryRowContext(ctx, "SELECT payload FROM history_entries WHERE entry_id = ?", id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, history.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read entry: %w", err)
	}
	return payload, nil
}

func (s *SQLite) WriteEntry(ctx context.Context, id string, payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO history_entries (entry_id, payload) VALUES (?, ?)
		ON CONFLICT (entry_id) DO UPDATE SET payload = excluded.payload`,
		id, payload,
	)
	if err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	return nil
}

func (s *SQLite) DeleteEntry(ctx context.Context, id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.conn.ExecContext(ctx, "DELETE FROM history_entries WHERE entry_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete entry: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.conn.Close()
}
