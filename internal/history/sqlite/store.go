// Package sqlite stores run history in a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/entropy/internal/history"
	"github.com/louisbranch/entropy/internal/history/sqlite/migrations"
	"github.com/louisbranch/entropy/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/entropy/seed"
	_ "modernc.org/sqlite"
)

// timeFormat is fixed width so started_at sorts as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store is a history.Store backed by SQLite.
type Store struct {
	sqlDB *sql.DB
}

// Open opens or creates the database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Put inserts r. Records with an existing ID are rejected.
func (s *Store) Put(ctx context.Context, r history.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return errors.New("storage is not configured")
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	if r.FinishedAt.IsZero() {
		r.FinishedAt = r.StartedAt
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO runs (id, seed, source, errored, persisted, packages, failed_tests, started_at, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Seed, r.Source.String(), r.Errored, r.Persisted, r.Packages, r.FailedTests,
		r.StartedAt.UTC().Format(timeFormat), r.FinishedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}
	return nil
}

// List returns up to limit records, newest first. A limit below one returns
// nothing.
func (s *Store) List(ctx context.Context, limit int) ([]history.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, errors.New("storage is not configured")
	}
	if limit < 1 {
		return nil, nil
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, seed, source, errored, persisted, packages, failed_tests, started_at, finished_at
FROM runs
ORDER BY started_at DESC, id
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []history.Record
	for rows.Next() {
		var (
			r                     history.Record
			source                string
			startedAt, finishedAt string
		)
		if err := rows.Scan(&r.ID, &r.Seed, &source, &r.Errored, &r.Persisted, &r.Packages, &r.FailedTests, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Source = parseSource(source)
		if r.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at for run %s: %w", r.ID, err)
		}
		if r.FinishedAt, err = time.Parse(timeFormat, finishedAt); err != nil {
			return nil, fmt.Errorf("parse finished_at for run %s: %w", r.ID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return records, nil
}

func parseSource(name string) seed.Source {
	for _, s := range []seed.Source{seed.SourceEnvironment, seed.SourceConfig, seed.SourceStored, seed.SourceGenerated} {
		if s.String() == name {
			return s
		}
	}
	return seed.SourceUnspecified
}

var _ history.Store = (*Store)(nil)
