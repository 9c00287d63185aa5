package exam

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository persists exams and results in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new exam with a generated examId.
func (r *Repository) Create(ctx context.Context, e Exam) (Exam, error) {
	if e.ExamName == "" || e.TotalQuestions <= 0 || e.Duration <= 0 {
		return Exam{}, errors.New("exam name, question count and duration required")
	}
	if e.DeadDate.Before(e.LiveDate) {
		return Exam{}, errors.New("dead date before live date")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.ExamID == "" {
		e.ExamID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO exams (id, exam_id, exam_name, total_questions, duration, live_date, dead_date, teacher)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at
	`, e.ID, e.ExamID, e.ExamName, e.TotalQuestions, e.Duration, e.LiveDate, e.DeadDate, e.Teacher)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return Exam{}, err
	}
	if len(e.EligibleStudents) > 0 {
		if err := r.SetEligibleStudents(ctx, e.ExamID, e.EligibleStudents); err != nil {
			return Exam{}, err
		}
	}
	return e, nil
}

// GetByExamID returns one exam or nil when absent.
func (r *Repository) GetByExamID(ctx context.Context, examID string) (*Exam, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, exam_id, exam_name, total_questions, duration, live_date, dead_date, teacher, created_at, updated_at
		FROM exams WHERE exam_id = $1
	`, examID)
	var e Exam
	if err := row.Scan(&e.ID, &e.ExamID, &e.ExamName, &e.TotalQuestions, &e.Duration,
		&e.LiveDate, &e.DeadDate, &e.Teacher, &e.CreatedAt, &e.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	roster, err := r.eligible(ctx, e.ExamID)
	if err != nil {
		return nil, err
	}
	e.EligibleStudents = roster
	return &e, nil
}

// List returns all exams, or only the ones a student email is eligible for.
func (r *Repository) List(ctx context.Context, studentEmail string) ([]Exam, error) {
	query := `
		SELECT id, exam_id, exam_name, total_questions, duration, live_date, dead_date, teacher, created_at, updated_at
		FROM exams ORDER BY live_date DESC`
	args := []any{}
	if studentEmail != "" {
		query = `
		SELECT e.id, e.exam_id, e.exam_name, e.total_questions, e.duration, e.live_date, e.dead_date, e.teacher, e.created_at, e.updated_at
		FROM exams e
		JOIN exam_eligible_students s ON s.exam_id = e.exam_id
		WHERE s.email = $1
		ORDER BY e.live_date DESC`
		args = append(args, studentEmail)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exam
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.ExamID, &e.ExamName, &e.TotalQuestions, &e.Duration,
			&e.LiveDate, &e.DeadDate, &e.Teacher, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LiveExams returns exams whose live/dead window contains now.
func (r *Repository) LiveExams(ctx context.Context, now time.Time) ([]Exam, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, exam_id, exam_name, total_questions, duration, live_date, dead_date, teacher, created_at, updated_at
		FROM exams
		WHERE live_date <= $1 AND dead_date >= $1
		ORDER BY dead_date
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Exam
	for rows.Next() {
		var e Exam
		if err := rows.Scan(&e.ID, &e.ExamID, &e.ExamName, &e.TotalQuestions, &e.Duration,
			&e.LiveDate, &e.DeadDate, &e.Teacher, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update rewrites the mutable exam fields.
func (r *Repository) Update(ctx context.Context, examID string, e Exam) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE exams
		SET exam_name = $2, total_questions = $3, duration = $4, live_date = $5, dead_date = $6, updated_at = NOW()
		WHERE exam_id = $1
	`, examID, e.ExamName, e.TotalQuestions, e.Duration, e.LiveDate, e.DeadDate)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an exam and its roster.
func (r *Repository) Delete(ctx context.Context, examID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM exam_eligible_students WHERE exam_id = $1`, examID); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM exams WHERE exam_id = $1`, examID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetEligibleStudents replaces the roster for an exam.
func (r *Repository) SetEligibleStudents(ctx context.Context, examID string, emails []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM exam_eligible_students WHERE exam_id = $1`, examID); err != nil {
		return err
	}
	for _, email := range emails {
		if _, err := r.db.ExecContext(ctx, `
			INSERT INTO exam_eligible_students (exam_id, email)
			VALUES ($1, $2)
			ON CONFLICT (exam_id, email) DO NOTHING
		`, examID, email); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) eligible(ctx context.Context, examID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT email FROM exam_eligible_students WHERE exam_id = $1 ORDER BY email
	`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

// InsertResult records a submitted exam result.
func (r *Repository) InsertResult(ctx context.Context, res Result) (Result, error) {
	if res.ExamID == "" || res.Email == "" {
		return Result{}, errors.New("exam id and email required")
	}
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.SubmittedAt.IsZero() {
		res.SubmittedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO results (id, exam_id, email, username, total_questions, correct_answers, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, res.ID, res.ExamID, res.Email, res.Username, res.TotalQuestions, res.CorrectAnswers, res.SubmittedAt)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// HasSubmitted reports whether a result exists for (examID, email). Used to
// exclude finished students from the active-student dashboard.
func (r *Repository) HasSubmitted(ctx context.Context, examID, email string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(1) FROM results WHERE exam_id = $1 AND email = $2
	`, examID, email).Scan(&n)
	return n > 0, err
}

// ResultsByExam lists submissions for a single exam.
func (r *Repository) ResultsByExam(ctx context.Context, examID string) ([]Result, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, exam_id, email, username, total_questions, correct_answers, submitted_at
		FROM results WHERE exam_id = $1 ORDER BY submitted_at DESC
	`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var res Result
		if err := rows.Scan(&res.ID, &res.ExamID, &res.Email, &res.Username,
			&res.TotalQuestions, &res.CorrectAnswers, &res.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
