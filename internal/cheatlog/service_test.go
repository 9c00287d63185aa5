package cheatlog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctoring/internal/exam"
	"proctoring/internal/violation"
)

type fakeExams struct {
	exams []exam.Exam
}

func (f *fakeExams) LiveExams(_ context.Context, now time.Time) ([]exam.Exam, error) {
	var out []exam.Exam
	for _, e := range f.exams {
		if e.IsLiveAt(now) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExams) GetByExamID(_ context.Context, examID string) (*exam.Exam, error) {
	for _, e := range f.exams {
		if e.ExamID == examID {
			ex := e
			return &ex, nil
		}
	}
	return nil, nil
}

type fakeResults struct {
	submitted map[string]bool // examID+email
}

func (f *fakeResults) HasSubmitted(_ context.Context, examID, email string) (bool, error) {
	return f.submitted[examID+"|"+email], nil
}

func newTestService(t *testing.T, now time.Time) (*Service, *Memory, *fakeResults) {
	t.Helper()
	mem := NewMemory()
	mem.SetClock(func() time.Time { return now })
	exams := &fakeExams{exams: []exam.Exam{{
		ExamID:   "E1",
		ExamName: "Algorithms Midterm",
		LiveDate: now.Add(-time.Hour),
		DeadDate: now.Add(time.Hour),
	}}}
	results := &fakeResults{submitted: map[string]bool{}}
	svc := NewService(mem, exams, results, 15*time.Minute, 30*time.Minute)
	svc.SetClock(func() time.Time { return now })
	return svc, mem, results
}

func TestActiveStudents(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, mem, results := newTestService(t, now)
	ctx := context.Background()

	// Fresh heartbeat: active.
	mem.SetClock(func() time.Time { return now.Add(-5 * time.Minute) })
	_, err := mem.Upsert(ctx, entry("E1", "fresh@x.com", violation.Counts{}))
	require.NoError(t, err)

	// 20 minutes stale: outside the 15-minute window even though no result
	// was submitted.
	mem.SetClock(func() time.Time { return now.Add(-20 * time.Minute) })
	_, err = mem.Upsert(ctx, entry("E1", "stale@x.com", violation.Counts{}))
	require.NoError(t, err)

	// Fresh heartbeat but already submitted: excluded.
	mem.SetClock(func() time.Time { return now.Add(-time.Minute) })
	_, err = mem.Upsert(ctx, entry("E1", "done@x.com", violation.Counts{}))
	require.NoError(t, err)
	results.submitted["E1|done@x.com"] = true

	active, err := svc.ActiveStudents(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "fresh@x.com", active[0].Email)
	assert.Equal(t, "Algorithms Midterm", active[0].ExamName)
	assert.Equal(t, "active", active[0].Status)
	assert.Equal(t, "1h 0m", active[0].TimeRemaining)
}

func TestActiveStudents_NoLiveExams(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, mem, _ := newTestService(t, now)
	svc.SetClock(func() time.Time { return now.Add(3 * time.Hour) }) // past dead date

	_, err := mem.Upsert(context.Background(), entry("E1", "s@x.com", violation.Counts{}))
	require.NoError(t, err)

	active, err := svc.ActiveStudents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestRecentViolations(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, mem, _ := newTestService(t, now)
	ctx := context.Background()

	// Zero-count log (initial save) must not appear.
	mem.SetClock(func() time.Time { return now.Add(-time.Minute) })
	_, err := mem.Upsert(ctx, entry("E1", "clean@x.com", violation.Counts{}))
	require.NoError(t, err)

	mem.SetClock(func() time.Time { return now.Add(-2 * time.Minute) })
	_, err = mem.Upsert(ctx, entry("E1", "bad@x.com", violation.Counts{CellPhone: 2, TabSwitch: 1}))
	require.NoError(t, err)

	// Outside the 30-minute window.
	mem.SetClock(func() time.Time { return now.Add(-45 * time.Minute) })
	_, err = mem.Upsert(ctx, entry("E1", "older@x.com", violation.Counts{NoFace: 9}))
	require.NoError(t, err)

	recent, err := svc.RecentViolations(ctx)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "bad@x.com", recent[0].Email)
	assert.Equal(t, "Algorithms Midterm", recent[0].ExamName)
	assert.Equal(t, 3, recent[0].TotalViolations)
}

func TestRecentViolations_Cap(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, mem, _ := newTestService(t, now)
	ctx := context.Background()

	mem.SetClock(func() time.Time { return now.Add(-time.Minute) })
	for i := 0; i < 60; i++ {
		_, err := mem.Upsert(ctx, entry("E1", fmt.Sprintf("s%d@x.com", i), violation.Counts{NoFace: 1}))
		require.NoError(t, err)
	}

	recent, err := svc.RecentViolations(ctx)
	require.NoError(t, err)
	assert.Len(t, recent, 50)
}

func TestStats(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc, mem, _ := newTestService(t, now)
	ctx := context.Background()

	mem.SetClock(func() time.Time { return now.Add(-time.Minute) })
	_, err := mem.Upsert(ctx, entry("E1", "a@x.com", violation.Counts{NoFace: 2}))
	require.NoError(t, err)
	_, err = mem.Upsert(ctx, entry("E1", "b@x.com", violation.Counts{CellPhone: 1}))
	require.NoError(t, err)

	// Created yesterday: excluded from today's totals, outside recent window.
	mem.SetClock(func() time.Time { return now.Add(-24 * time.Hour) })
	_, err = mem.Upsert(ctx, entry("E1", "c@x.com", violation.Counts{NoFace: 5}))
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ActiveExams)
	assert.Equal(t, 2, stats.ActiveStudents)
	assert.Equal(t, 2, stats.RecentViolations)
	assert.Equal(t, 2, stats.TodayViolations.NoFace)
	assert.Equal(t, 1, stats.TodayViolations.CellPhone)
	assert.Equal(t, 3, stats.TodayTotal)
}
