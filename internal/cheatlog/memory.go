package cheatlog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"proctoring/internal/violation"
)

// Memory is an in-memory merge store for dev and tests, with the same merge
// semantics as the Postgres repository.
type Memory struct {
	mu   sync.Mutex
	recs map[key]*Record
	now  func() time.Time
}

type key struct {
	examID string
	email  string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{recs: make(map[key]*Record), now: time.Now}
}

// SetClock overrides the store clock; tests use it to age records.
func (m *Memory) SetClock(now func() time.Time) { m.now = now }

var _ Store = (*Memory)(nil)

// Upsert inserts or max-merges one entry and returns the merged record.
func (m *Memory) Upsert(ctx context.Context, e Entry) (Record, error) {
	if err := e.Validate(); err != nil {
		return Record{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{examID: e.ExamID, email: e.Email}
	now := m.now().UTC()
	rec, ok := m.recs[k]
	if !ok {
		rec = &Record{
			ID:        uuid.NewString(),
			ExamID:    e.ExamID,
			Email:     e.Email,
			CreatedAt: now,
		}
		m.recs[k] = rec
	}
	rec.Username = e.Username
	rec.Counts = rec.Counts.Max(e.Counts)
	rec.Screenshots = append(rec.Screenshots, e.Screenshots...)
	rec.UpdatedAt = now
	return cloned(*rec), nil
}

// ListByExam returns every log for one exam, newest activity first.
func (m *Memory) ListByExam(ctx context.Context, examID string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.recs {
		if rec.ExamID == examID {
			out = append(out, cloned(*rec))
		}
	}
	sortNewest(out)
	return out, nil
}

// UpdatedSince returns records touched at or after the cutoff, newest first.
func (m *Memory) UpdatedSince(ctx context.Context, cutoff time.Time, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.recs {
		if !rec.UpdatedAt.Before(cutoff) {
			out = append(out, cloned(*rec))
		}
	}
	sortNewest(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TotalsCreatedSince sums counters across records created at or after cutoff.
func (m *Memory) TotalsCreatedSince(ctx context.Context, cutoff time.Time) (violation.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c violation.Counts
	for _, rec := range m.recs {
		if !rec.CreatedAt.Before(cutoff) {
			c.NoFace += rec.NoFace
			c.MultipleFace += rec.MultipleFace
			c.CellPhone += rec.CellPhone
			c.ProhibitedObject += rec.ProhibitedObject
			c.BrowserLockdown += rec.BrowserLockdown
			c.TabSwitch += rec.TabSwitch
			c.WindowBlur += rec.WindowBlur
		}
	}
	return c, nil
}

func cloned(r Record) Record {
	shots := make([]violation.Screenshot, len(r.Screenshots))
	copy(shots, r.Screenshots)
	r.Screenshots = shots
	return r
}

func sortNewest(recs []Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].UpdatedAt.After(recs[j].UpdatedAt)
	})
}
