package exam

import "time"

// Exam is the scheduling record students take and teachers manage. The core
// proctoring pipeline consumes it read-only for live-window and eligibility
// checks.
type Exam struct {
	ID               string    `json:"id"`
	ExamID           string    `json:"examId"`
	ExamName         string    `json:"examName"`
	TotalQuestions   int       `json:"totalQuestions"`
	Duration         int       `json:"duration"` // minutes
	LiveDate         time.Time `json:"liveDate"`
	DeadDate         time.Time `json:"deadDate"`
	Teacher          string    `json:"teacher"`
	EligibleStudents []string  `json:"eligibleStudents"` // student emails
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// IsLiveAt reports whether the exam accepts sessions at the given time.
func (e Exam) IsLiveAt(now time.Time) bool {
	return !now.Before(e.LiveDate) && !now.After(e.DeadDate)
}

// IsEligible reports whether the student email may take this exam. An exam
// with no explicit roster is open to everyone.
func (e Exam) IsEligible(email string) bool {
	if len(e.EligibleStudents) == 0 {
		return true
	}
	for _, s := range e.EligibleStudents {
		if s == email {
			return true
		}
	}
	return false
}

// Result is a submitted exam outcome. Result submission and cheating-log
// saves are independent writes; neither rolls back the other.
type Result struct {
	ID             string    `json:"id"`
	ExamID         string    `json:"examId"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	TotalQuestions int       `json:"totalQuestions"`
	CorrectAnswers int       `json:"correctAnswers"`
	SubmittedAt    time.Time `json:"submittedAt"`
}
