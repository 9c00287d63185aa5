package cheatlog

import (
	"context"
	"errors"
	"time"

	"proctoring/internal/violation"
)

// Entry is one incoming snapshot from a student's auto-save. Snapshots are
// delivered at-least-once and may arrive out of order; the store merges them
// so that replays and stale retries are harmless.
type Entry struct {
	ExamID      string                 `json:"examId" binding:"required"`
	Username    string                 `json:"username" binding:"required"`
	Email       string                 `json:"email" binding:"required"`
	violation.Counts
	Screenshots []violation.Screenshot `json:"screenshots"`
}

// Validate rejects entries the store must never partially apply.
func (e Entry) Validate() error {
	if e.ExamID == "" {
		return errors.New("exam id required")
	}
	if e.Email == "" {
		return errors.New("email required")
	}
	if e.Username == "" {
		return errors.New("username required")
	}
	for _, s := range e.Screenshots {
		if s.URL == "" {
			return errors.New("screenshot url required")
		}
	}
	return nil
}

// Record is the persisted cheating log, one per (examId, email) pair.
// Counters only ever grow; screenshots are append-only. updatedAt doubles as
// the student's liveness heartbeat.
type Record struct {
	ID          string                 `json:"id"`
	ExamID      string                 `json:"examId"`
	Username    string                 `json:"username"`
	Email       string                 `json:"email"`
	violation.Counts
	Screenshots []violation.Screenshot `json:"screenshots"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// Store is the merge-store contract. Upsert must be atomic per
// (examId, email) key: concurrent saves for the same student may not lose
// the max-merge invariant. Different pairs are independent.
type Store interface {
	// Upsert inserts or max-merges counters and appends screenshots,
	// returning the full merged record.
	Upsert(ctx context.Context, e Entry) (Record, error)
	// ListByExam returns every log for one exam.
	ListByExam(ctx context.Context, examID string) ([]Record, error)
	// UpdatedSince returns records touched at or after the cutoff,
	// newest first, capped at limit (0 means no cap).
	UpdatedSince(ctx context.Context, cutoff time.Time, limit int) ([]Record, error)
	// TotalsCreatedSince sums every counter across records created at or
	// after the cutoff.
	TotalsCreatedSince(ctx context.Context, cutoff time.Time) (violation.Counts, error)
}
