package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusProcessing     Status = "Processing"
	StatusApplied        Status = "Applied"
	StatusActionRequired Status = "Action Required"
	StatusFailed         Status = "Failed"
)

func (s Status) IsTerminal() bool {
	switch s {
	case StatusApplied, StatusActionRequired, StatusFailed:
		return true
	}
	return false
}

type Attempt struct {
	ID        int64     `json:"id"`
	PostingID int64     `json:"postingId"`
	RunID     string    `json:"runId"`
	Status    Status    `json:"status"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateAttempt persists the Processing record before any page interaction,
// so an interrupted application still leaves an auditable row.
func CreateAttempt(ctx context.Context, db *sql.DB, postingID int64, runID string) (*Attempt, error) {
	now := time.Now().UTC()
	a := Attempt{
		PostingID: postingID,
		RunID:     runID,
		Status:    StatusProcessing,
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := db.ExecContext(ctx, `
INSERT INTO attempts(posting_id, run_id, status, notes, created_at, updated_at)
VALUES(?,?,?,?,?,?);`,
		a.PostingID, a.RunID, string(a.Status), a.Notes,
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert attempt: %w", err)
	}
	a.ID, _ = res.LastInsertId()
	return &a, nil
}

// UpdateAttempt moves an attempt to a new status. A terminal status is never
// overwritten; such a call reports an error instead of mutating history.
func UpdateAttempt(ctx context.Context, db *sql.DB, id int64, status Status, notes string) error {
	var cur string
	err := db.QueryRowContext(ctx, `SELECT status FROM attempts WHERE id = ?;`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read attempt status: %w", err)
	}
	if Status(cur).IsTerminal() {
		return fmt.Errorf("attempt %d already terminal (%s)", id, cur)
	}

	_, err = db.ExecContext(ctx, `
UPDATE attempts
SET status = ?, notes = ?, updated_at = ?
WHERE id = ?;`,
		string(status), notes, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	return nil
}

// AppendAttemptNote adds a line to notes without touching status. Used by the
// confirmation-mail pass.
func AppendAttemptNote(ctx context.Context, db *sql.DB, id int64, line string) error {
	_, err := db.ExecContext(ctx, `
UPDATE attempts
SET notes = CASE WHEN notes = '' THEN ? ELSE notes || char(10) || ? END,
    updated_at = ?
WHERE id = ?;`,
		line, line, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("append attempt note: %w", err)
	}
	return nil
}

// ReconcileStaleAttempts marks attempts left in Processing by a previous,
// interrupted run as Failed. Runs once at startup.
func ReconcileStaleAttempts(ctx context.Context, db *sql.DB) (int64, error) {
	res, err := db.ExecContext(ctx, `
UPDATE attempts
SET status = ?, notes = 'interrupted: engine restarted mid-application', updated_at = ?
WHERE status = ?;`,
		string(StatusFailed), time.Now().UTC().Format(time.RFC3339), string(StatusProcessing))
	if err != nil {
		return 0, fmt.Errorf("reconcile attempts: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func AttemptCountForPosting(ctx context.Context, db *sql.DB, postingID int64) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM attempts WHERE posting_id = ?;`, postingID).Scan(&n)
	return n, err
}

// AttemptRef pairs an attempt with its posting's company and platform, for
// matching confirmation emails back to attempts.
type AttemptRef struct {
	AttemptID int64
	Company   string
	Platform  string
}

func AttemptsSince(ctx context.Context, db *sql.DB, since time.Time) ([]AttemptRef, error) {
	rows, err := db.QueryContext(ctx, `
SELECT a.id, p.company, p.platform
FROM attempts a
JOIN postings p ON p.id = a.posting_id
WHERE a.created_at >= ?
ORDER BY a.id;`, since.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AttemptRef
	for rows.Next() {
		var r AttemptRef
		if err := rows.Scan(&r.AttemptID, &r.Company, &r.Platform); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func ListAttempts(ctx context.Context, db *sql.DB, limit int) ([]Attempt, error) {
	if limit <= 0 || limit > 2000 {
		limit = 500
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, posting_id, run_id, status, notes, created_at, updated_at
FROM attempts
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var st, created, updated string
		if err := rows.Scan(&a.ID, &a.PostingID, &a.RunID, &st, &a.Notes, &created, &updated); err != nil {
			return nil, err
		}
		a.Status = Status(st)
		a.CreatedAt, _ = time.Parse(time.RFC3339, created)
		a.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		out = append(out, a)
	}
	return out, rows.Err()
}
