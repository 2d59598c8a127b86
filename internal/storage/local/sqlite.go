package local

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS local_values (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLite stores values in a single-file database on the device.
type SQLite struct {
	db       *sqlx.DB
	maxBytes int64
}

func OpenSQLite(ctx context.Context, path string, maxBytes int64) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("local storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create local storage dir: %w", err)
		}
	}

	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sqlx.ConnectContext(ctx, "sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// A single writer connection keeps quota checks and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create local schema: %w", err)
	}

	return &SQLite{db: db, maxBytes: maxBytes}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM local_values WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", notFound(key)
	}
	if err != nil {
		return "", fmt.Errorf("select local value: %w", err)
	}
	return value, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin local tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if s.maxBytes > 0 {
		var used int64
		err := tx.GetContext(ctx, &used, `
			SELECT COALESCE(SUM(length(CAST(key AS BLOB)) + length(CAST(value AS BLOB))), 0)
			FROM local_values
			WHERE key <> ?`, key)
		if err != nil {
			return fmt.Errorf("measure local usage: %w", err)
		}
		if used+entrySize(key, value) > s.maxBytes {
			return ErrQuotaExceeded
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO local_values (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write local value: %w", err)
	}

	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
