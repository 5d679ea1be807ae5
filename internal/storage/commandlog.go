// Package storage persists the access credential and the command log.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const commandLogSchema = `CREATE TABLE IF NOT EXISTS command_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	line       TEXT    NOT NULL,
	created_at INTEGER NOT NULL
)`

// CommandLog is an append-only list of submitted command lines.
type CommandLog struct {
	db *sql.DB
}

// OpenCommandLog opens or creates the log at path. Use ":memory:" for a throwaway log.
func OpenCommandLog(path string) (*CommandLog, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create command log dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set WAL mode on %s: %w", path, err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, commandLogSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create command_log: %w", err)
	}
	return &CommandLog{db: db}, nil
}

// Append stores one line.
func (l *CommandLog) Append(ctx context.Context, line string) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO command_log (line, created_at) VALUES (?, ?)",
		line, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("append command: %w", err)
	}
	return nil
}

// All returns every line, oldest first.
func (l *CommandLog) All(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx, "SELECT line FROM command_log ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("query command log: %w", err)
	}
	defer rows.Close()

	var lines []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan command log: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Close closes the database.
func (l *CommandLog) Close() error {
	return l.db.Close()
}
