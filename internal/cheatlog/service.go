package cheatlog

import (
	"context"
	"fmt"
	"time"

	"proctoring/internal/exam"
	"proctoring/internal/violation"
)

// ExamDirectory is the read-only exam collaborator the dashboards consume.
type ExamDirectory interface {
	LiveExams(ctx context.Context, now time.Time) ([]exam.Exam, error)
	GetByExamID(ctx context.Context, examID string) (*exam.Exam, error)
}

// ResultChecker answers whether a student already submitted an exam.
type ResultChecker interface {
	HasSubmitted(ctx context.Context, examID, email string) (bool, error)
}

// Service fronts the merge store with validation and the teacher-facing
// dashboard reads. All reads are derived; the store holds the only state.
type Service struct {
	store        Store
	exams        ExamDirectory
	results      ResultChecker
	activeWindow time.Duration
	recentWindow time.Duration
	now          func() time.Time
}

// NewService creates a service. activeWindow bounds the active-student view
// (how stale a heartbeat may be), recentWindow bounds the recent-violations
// and stats views.
func NewService(store Store, exams ExamDirectory, results ResultChecker, activeWindow, recentWindow time.Duration) *Service {
	if activeWindow <= 0 {
		activeWindow = 15 * time.Minute
	}
	if recentWindow <= 0 {
		recentWindow = 30 * time.Minute
	}
	return &Service{
		store:        store,
		exams:        exams,
		results:      results,
		activeWindow: activeWindow,
		recentWindow: recentWindow,
		now:          time.Now,
	}
}

// SetClock overrides the service clock for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SaveLog validates and merges one auto-save snapshot.
func (s *Service) SaveLog(ctx context.Context, e Entry) (Record, error) {
	return s.store.Upsert(ctx, e)
}

// LogsByExam returns every log for one exam.
func (s *Service) LogsByExam(ctx context.Context, examID string) ([]Record, error) {
	return s.store.ListByExam(ctx, examID)
}

// ActiveStudent is a student currently taking a live exam.
type ActiveStudent struct {
	Email         string    `json:"email"`
	Username      string    `json:"username"`
	ExamID        string    `json:"examId"`
	ExamName      string    `json:"examName"`
	LastActivity  time.Time `json:"lastActivity"`
	TimeRemaining string    `json:"timeRemaining"`
	Status        string    `json:"status"`
}

// ActiveStudents lists students who started a currently-live exam, have not
// submitted it, and whose log heartbeat is within the active window.
func (s *Service) ActiveStudents(ctx context.Context) ([]ActiveStudent, error) {
	now := s.now()
	liveExams, err := s.exams.LiveExams(ctx, now)
	if err != nil {
		return nil, err
	}

	out := []ActiveStudent{}
	for _, ex := range liveExams {
		logs, err := s.store.ListByExam(ctx, ex.ExamID)
		if err != nil {
			return nil, err
		}
		for _, rec := range logs {
			submitted, err := s.results.HasSubmitted(ctx, ex.ExamID, rec.Email)
			if err != nil {
				return nil, err
			}
			if submitted {
				continue
			}
			if now.Sub(rec.UpdatedAt) > s.activeWindow {
				continue
			}
			out = append(out, ActiveStudent{
				Email:         rec.Email,
				Username:      rec.Username,
				ExamID:        ex.ExamID,
				ExamName:      ex.ExamName,
				LastActivity:  rec.UpdatedAt,
				TimeRemaining: timeRemaining(now, ex.DeadDate),
				Status:        "active",
			})
		}
	}
	return out, nil
}

// RecentViolation is a log with at least one counter, enriched for display.
type RecentViolation struct {
	Record
	ExamName        string    `json:"examName"`
	TotalViolations int       `json:"totalViolations"`
	LastViolation   time.Time `json:"lastViolation"`
}

const recentViolationsCap = 50

// RecentViolations returns logs updated within the recent window that carry
// at least one violation, newest first, capped at 50.
func (s *Service) RecentViolations(ctx context.Context) ([]RecentViolation, error) {
	cutoff := s.now().Add(-s.recentWindow)
	recs, err := s.store.UpdatedSince(ctx, cutoff, 0)
	if err != nil {
		return nil, err
	}

	out := []RecentViolation{}
	for _, rec := range recs {
		if !rec.Counts.Any() {
			continue
		}
		name := "Unknown Exam"
		if ex, err := s.exams.GetByExamID(ctx, rec.ExamID); err == nil && ex != nil {
			name = ex.ExamName
		}
		out = append(out, RecentViolation{
			Record:          rec,
			ExamName:        name,
			TotalViolations: rec.Counts.Total(),
			LastViolation:   rec.UpdatedAt,
		})
		if len(out) == recentViolationsCap {
			break
		}
	}
	return out, nil
}

// Stats is the live proctoring overview.
type Stats struct {
	ActiveExams      int              `json:"activeExams"`
	ActiveStudents   int              `json:"activeStudents"`
	RecentViolations int              `json:"recentViolations"`
	TodayViolations  violation.Counts `json:"todayViolations"`
	TodayTotal       int              `json:"todayTotal"`
}

// Stats aggregates active exams, recently-active students (recent window,
// unique by email) and today's counter sums.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	now := s.now()

	liveExams, err := s.exams.LiveExams(ctx, now)
	if err != nil {
		return Stats{}, err
	}

	recent, err := s.store.UpdatedSince(ctx, now.Add(-s.recentWindow), 0)
	if err != nil {
		return Stats{}, err
	}
	emails := map[string]struct{}{}
	for _, rec := range recent {
		emails[rec.Email] = struct{}{}
	}

	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.store.TotalsCreatedSince(ctx, startOfDay)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		ActiveExams:      len(liveExams),
		ActiveStudents:   len(emails),
		RecentViolations: len(recent),
		TodayViolations:  today,
		TodayTotal:       today.Total(),
	}, nil
}

func timeRemaining(now, deadline time.Time) string {
	diff := deadline.Sub(now)
	if diff <= 0 {
		return "Expired"
	}
	hours := int(diff.Hours())
	minutes := int(diff.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
