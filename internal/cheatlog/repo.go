package cheatlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"proctoring/internal/violation"
)

// Repository is the Postgres-backed merge store. The counter merge is a
// single INSERT ... ON CONFLICT statement, so concurrent saves for the same
// (exam_id, email) pair serialize on the row and GREATEST keeps every
// counter monotonic regardless of arrival order.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// Upsert inserts or max-merges one entry and returns the merged record.
func (r *Repository) Upsert(ctx context.Context, e Entry) (Record, error) {
	if err := e.Validate(); err != nil {
		return Record{}, err
	}

	var rec Record
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO cheating_logs
			(id, exam_id, username, email,
			 no_face_count, multiple_face_count, cell_phone_count, prohibited_object_count,
			 browser_lockdown_violations, tab_switch_violations, window_blur_violations)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (exam_id, email) DO UPDATE SET
			username                    = EXCLUDED.username,
			no_face_count               = GREATEST(cheating_logs.no_face_count, EXCLUDED.no_face_count),
			multiple_face_count         = GREATEST(cheating_logs.multiple_face_count, EXCLUDED.multiple_face_count),
			cell_phone_count            = GREATEST(cheating_logs.cell_phone_count, EXCLUDED.cell_phone_count),
			prohibited_object_count     = GREATEST(cheating_logs.prohibited_object_count, EXCLUDED.prohibited_object_count),
			browser_lockdown_violations = GREATEST(cheating_logs.browser_lockdown_violations, EXCLUDED.browser_lockdown_violations),
			tab_switch_violations       = GREATEST(cheating_logs.tab_switch_violations, EXCLUDED.tab_switch_violations),
			window_blur_violations      = GREATEST(cheating_logs.window_blur_violations, EXCLUDED.window_blur_violations),
			updated_at                  = NOW()
		RETURNING id, exam_id, username, email,
			no_face_count, multiple_face_count, cell_phone_count, prohibited_object_count,
			browser_lockdown_violations, tab_switch_violations, window_blur_violations,
			created_at, updated_at
	`, uuid.NewString(), e.ExamID, e.Username, e.Email,
		e.NoFace, e.MultipleFace, e.CellPhone, e.ProhibitedObject,
		e.BrowserLockdown, e.TabSwitch, e.WindowBlur)
	if err := scanRecord(row, &rec); err != nil {
		return Record{}, err
	}

	// Screenshots append after the counter merge. The append is commutative
	// on its own, so it does not need to share the upsert statement.
	for _, s := range e.Screenshots {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO cheating_screenshots (id, log_id, url, type, detected_at)
			VALUES ($1,$2,$3,$4,$5)
		`, uuid.NewString(), rec.ID, s.URL, string(s.Type), s.DetectedAt); err != nil {
			return Record{}, err
		}
	}

	shots, err := r.screenshots(ctx, rec.ID)
	if err != nil {
		return Record{}, err
	}
	rec.Screenshots = shots
	return rec, nil
}

// ListByExam returns every log for one exam.
func (r *Repository) ListByExam(ctx context.Context, examID string) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, exam_id, username, email,
			no_face_count, multiple_face_count, cell_phone_count, prohibited_object_count,
			browser_lockdown_violations, tab_switch_violations, window_blur_violations,
			created_at, updated_at
		FROM cheating_logs
		WHERE exam_id = $1
		ORDER BY updated_at DESC
	`, examID)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

// UpdatedSince returns records touched at or after the cutoff, newest first.
func (r *Repository) UpdatedSince(ctx context.Context, cutoff time.Time, limit int) ([]Record, error) {
	query := `
		SELECT id, exam_id, username, email,
			no_face_count, multiple_face_count, cell_phone_count, prohibited_object_count,
			browser_lockdown_violations, tab_switch_violations, window_blur_violations,
			created_at, updated_at
		FROM cheating_logs
		WHERE updated_at >= $1
		ORDER BY updated_at DESC`
	args := []any{cutoff}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, rows)
}

// TotalsCreatedSince sums counters across records created at or after cutoff.
func (r *Repository) TotalsCreatedSince(ctx context.Context, cutoff time.Time) (violation.Counts, error) {
	var c violation.Counts
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(no_face_count),0), COALESCE(SUM(multiple_face_count),0),
			COALESCE(SUM(cell_phone_count),0), COALESCE(SUM(prohibited_object_count),0),
			COALESCE(SUM(browser_lockdown_violations),0), COALESCE(SUM(tab_switch_violations),0),
			COALESCE(SUM(window_blur_violations),0)
		FROM cheating_logs
		WHERE created_at >= $1
	`, cutoff).Scan(&c.NoFace, &c.MultipleFace, &c.CellPhone, &c.ProhibitedObject,
		&c.BrowserLockdown, &c.TabSwitch, &c.WindowBlur)
	return c, err
}

func (r *Repository) collect(ctx context.Context, rows *sql.Rows) ([]Record, error) {
	defer rows.Close()
	var out []Record
	for rows.Next() {
		var rec Record
		if err := scanRecord(rows, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		shots, err := r.screenshots(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Screenshots = shots
	}
	return out, nil
}

func (r *Repository) screenshots(ctx context.Context, logID string) ([]violation.Screenshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT url, type, detected_at
		FROM cheating_screenshots
		WHERE log_id = $1
		ORDER BY detected_at, id
	`, logID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []violation.Screenshot
	for rows.Next() {
		var s violation.Screenshot
		var typ string
		if err := rows.Scan(&s.URL, &typ, &s.DetectedAt); err != nil {
			return nil, err
		}
		s.Type = violation.Type(typ)
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, rec *Record) error {
	return row.Scan(&rec.ID, &rec.ExamID, &rec.Username, &rec.Email,
		&rec.NoFace, &rec.MultipleFace, &rec.CellPhone, &rec.ProhibitedObject,
		&rec.BrowserLockdown, &rec.TabSwitch, &rec.WindowBlur,
		&rec.CreatedAt, &rec.UpdatedAt)
}
