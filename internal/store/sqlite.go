package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // pure-Go sqlite driver, no cgo

	"github.com/CheapNud/shotcutrenderqueue/internal/job"
)

// SQLiteStore is the production JobStore: one SQLite database file holding
// one row per job, the full record serialized as JSON alongside a handful of
// indexed columns used for the status/owner queries the scheduler and crash
// recoverer need. WAL mode gives the write-ahead durability spec §4.1
// requires without needing a heavier external database for a desktop app.
type SQLiteStore struct {
	db *sql.DB
}

var _ JobStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (creating if absent) the database at path and ensures
// the schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: serialize writers, avoid SQLITE_BUSY storms

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: apply pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id                text PRIMARY KEY,
	status            text NOT NULL,
	owner_process_id  text NOT NULL DEFAULT '',
	owner_host_id     text NOT NULL DEFAULT '',
	created_at        text NOT NULL,
	record            text NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_jobs_owner ON jobs(owner_process_id, owner_host_id);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Create(ctx context.Context, j *job.Job) error {
	record, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("store: marshal job: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, status, owner_process_id, owner_host_id, created_at, record)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID, string(j.GetStatus()), j.OwnerProcessID, j.OwnerHostID, j.CreatedAt.Format(timeLayout), record,
	)
	if err != nil {
		return fmt.Errorf("store: insert job %s: %w", j.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*job.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT record FROM jobs WHERE id = ?`, id)
	var record string
	if err := row.Scan(&record); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: get job %s: %w", id, err)
	}
	return decodeJob(record)
}

func (s *SQLiteStore) ListByStatus(ctx context.Context, status job.Status) ([]*job.Job, error) {
	return s.query(ctx, `SELECT record FROM jobs WHERE status = ? ORDER BY created_at DESC`, string(status))
}

func (s *SQLiteStore) ListAll(ctx context.Context) ([]*job.Job, error) {
	return s.query(ctx, `SELECT record FROM jobs ORDER BY created_at DESC`)
}

func (s *SQLiteStore) ListActive(ctx context.Context) ([]*job.Job, error) {
	return s.query(ctx,
		`SELECT record FROM jobs WHERE status IN (?, ?, ?) ORDER BY created_at DESC`,
		string(job.StatusPending), string(job.StatusRunning), string(job.StatusPaused),
	)
}

func (s *SQLiteStore) ClaimOrphaned(ctx context.Context, currentPID, currentHost string) ([]*job.Job, error) {
	return s.query(ctx,
		`SELECT record FROM jobs WHERE status = ? AND NOT (owner_process_id = ? AND owner_host_id = ?) ORDER BY created_at DESC`,
		string(job.StatusRunning), currentPID, currentHost,
	)
}

func (s *SQLiteStore) UpdateFull(ctx context.Context, j *job.Job) error {
	record, err := json.Marshal(j)
	if err != nil {
		return fmt.Errorf("store: marshal job: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, owner_process_id = ?, owner_host_id = ?, record = ? WHERE id = ?`,
		string(j.GetStatus()), j.OwnerProcessID, j.OwnerHostID, record, j.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update job %s: %w", j.ID, err)
	}
	return requireOneRow(res, j.ID)
}

func (s *SQLiteStore) UpdateProgressOnly(ctx context.Context, id string, percent float64, currentFrame int, stageLabel string) error {
	j, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	j.UpdateProgress(percent, currentFrame, stageLabel)
	return s.UpdateFull(ctx, j)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete job %s: %w", id, err)
	}
	return requireOneRow(res, id)
}

func (s *SQLiteStore) query(ctx context.Context, query string, args ...any) ([]*job.Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		var record string
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}
		j, err := decodeJob(record)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func decodeJob(record string) (*job.Job, error) {
	var j job.Job
	if err := json.Unmarshal([]byte(record), &j); err != nil {
		return nil, fmt.Errorf("store: decode job record: %w", err)
	}
	return &j, nil
}

func requireOneRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
