package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pmr-b5/powerwatch/pkg/model"

	_ "modernc.org/sqlite"
)

// currentStatusID is the key of the single status row.
const currentStatusID = "current_status"

// SQLite implements the Storage interface using an SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens or creates an SQLite database at the given path.
func NewSQLite(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) GetStatus(ctx context.Context) (*model.StatusRecord, error) {
	var status, lastUpdated string
	err := s.db.QueryRowContext(ctx,
		`SELECT status, last_updated FROM electricity_status WHERE id = ?`, currentStatusID,
	).Scan(&status, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}

	at, err := model.ParseTimestamp(lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("get status: %w", err)
	}
	rec := model.NewStatusRecord(status, at)
	return &rec, nil
}

func (s *SQLite) SetStatus(ctx context.Context, status string, at time.Time) (*model.StatusRecord, error) {
	rec := model.NewStatusRecord(status, at.Truncate(time.Millisecond))

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO electricity_status (id, status, last_updated, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   status = excluded.status,
		   last_updated = excluded.last_updated,
		   updated_at = excluded.updated_at`,
		currentStatusID, rec.Status, model.FormatTimestamp(rec.LastUpdated), time.Now().UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	return &rec, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
