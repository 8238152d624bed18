package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/opsdash/internal/apperr"
)

// Run is one recorded metrics computation.
type Run struct {
	ID             string    `json:"id"`
	SnapshotID     string    `json:"snapshot_id"`
	Source         string    `json:"source"`
	TakenAt        time.Time `json:"taken_at"`
	Checksum       string    `json:"checksum"`
	Total          int       `json:"total"`
	Open           int       `json:"open"`
	Working        int       `json:"working"`
	Done           int       `json:"done"`
	Archived       int       `json:"archived"`
	Overdue        int       `json:"overdue"`
	CompletionRate float64   `json:"completion_rate"`
}

// Store defines the history operations. Consumers depend on this interface
// rather than *DB.
type Store interface {
	Record(ctx context.Context, r Run) (Run, error)
	Latest(ctx context.Context) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	Prune(ctx context.Context, keep int) (int64, error)
	Close() error
}

var _ Store = (*DB)(nil)

const runColumns = `id, snapshot_id, source, taken_at, checksum, total, open, working, done, archived, overdue, completion_rate`

// Record inserts r, assigning an id when it has none.
func (db *DB) Record(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.TakenAt.IsZero() {
		r.TakenAt = time.Now()
	}
	r.TakenAt = r.TakenAt.UTC()

	_, err := db.conn.ExecContext(ctx, db.rebind(`
		INSERT INTO metric_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), r.ID, r.SnapshotID, r.Source, r.TakenAt, r.Checksum,
		r.Total, r.Open, r.Working, r.Done, r.Archived, r.Overdue, r.CompletionRate)
	if err != nil {
		return Run{}, fmt.Errorf("history: record run: %w", err)
	}
	return r, nil
}

// Latest returns the most recent run, or apperr.ErrNotFound.
func (db *DB) Latest(ctx context.Context) (Run, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM metric_runs ORDER BY taken_at DESC, id DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, apperr.ErrNotFound
	}
	if err != nil {
		return Run{}, fmt.Errorf("history: latest run: %w", err)
	}
	return r, nil
}

// List returns up to limit runs, newest first. A limit <= 0 returns all.
func (db *DB) List(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM metric_runs ORDER BY taken_at DESC, id DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.conn.QueryContext(ctx, db.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("history: list runs: %w", err)
	}
	defer rows.Close()

	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep runs and reports how many were
// removed. A keep <= 0 is a no-op.
func (db *DB) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := db.conn.ExecContext(ctx, db.rebind(`
		DELETE FROM metric_runs WHERE id NOT IN (
			SELECT id FROM metric_runs ORDER BY taken_at DESC, id DESC LIMIT ?
		)
	`), keep)
	if err != nil {
		return 0, fmt.Errorf("history: prune runs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	err := s.Scan(&r.ID, &r.SnapshotID, &r.Source, &r.TakenAt, &r.Checksum,
		&r.Total, &r.Open, &r.Working, &r.Done, &r.Archived, &r.Overdue, &r.CompletionRate)
	return r, err
}
