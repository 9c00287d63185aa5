package cheatlog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctoring/internal/violation"
)

func entry(examID, email string, c violation.Counts, shots ...violation.Screenshot) Entry {
	return Entry{
		ExamID:      examID,
		Username:    "Student",
		Email:       email,
		Counts:      c,
		Screenshots: shots,
	}
}

func TestUpsert_CreatesThenMerges(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	rec, err := m.Upsert(ctx, entry("E1", "s@x.com", violation.Counts{NoFace: 2}))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.NoFace)
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)

	// A stale lower snapshot must not regress the counter.
	rec, err = m.Upsert(ctx, entry("E1", "s@x.com", violation.Counts{NoFace: 1}))
	require.NoError(t, err)
	assert.Equal(t, 2, rec.NoFace)
}

func TestUpsert_MaxMergePerField(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Upsert(ctx, entry("E1", "s@x.com", violation.Counts{NoFace: 3, TabSwitch: 1}))
	require.NoError(t, err)
	rec, err := m.Upsert(ctx, entry("E1", "s@x.com", violation.Counts{NoFace: 1, CellPhone: 2}))
	require.NoError(t, err)

	// Field by field, never whole-record overwrite.
	assert.Equal(t, 3, rec.NoFace)
	assert.Equal(t, 2, rec.CellPhone)
	assert.Equal(t, 1, rec.TabSwitch)
}

func TestUpsert_MonotonicUnderArbitraryOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	patches := []violation.Counts{
		{NoFace: 1, WindowBlur: 4},
		{NoFace: 5},
		{NoFace: 2, CellPhone: 3, WindowBlur: 1},
		{},
		{CellPhone: 1, BrowserLockdown: 2},
	}
	for _, p := range patches {
		_, err := m.Upsert(ctx, entry("E1", "s@x.com", p))
		require.NoError(t, err)
	}

	recs, err := m.ListByExam(ctx, "E1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	// Final value per field is the max ever sent for that field.
	assert.Equal(t, violation.Counts{NoFace: 5, CellPhone: 3, BrowserLockdown: 2, WindowBlur: 4}, recs[0].Counts)
}

func TestUpsert_IdempotentRetry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	e := entry("E1", "s@x.com", violation.Counts{MultipleFace: 2})
	first, err := m.Upsert(ctx, e)
	require.NoError(t, err)
	second, err := m.Upsert(ctx, e)
	require.NoError(t, err)

	assert.Equal(t, first.Counts, second.Counts)

	recs, _ := m.ListByExam(ctx, "E1")
	require.Len(t, recs, 1)
}

func TestUpsert_ScreenshotsAppendOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := m.Upsert(ctx, entry("E1", "s@x.com", violation.Counts{},
		violation.Screenshot{URL: "a", Type: violation.NoFace, DetectedAt: at}))
	require.NoError(t, err)
	rec, err := m.Upsert(ctx, entry("E1", "s@x.com", violation.Counts{},
		violation.Screenshot{URL: "b", Type: violation.CellPhone, DetectedAt: at}))
	require.NoError(t, err)

	require.Len(t, rec.Screenshots, 2)
	assert.Equal(t, "a", rec.Screenshots[0].URL)
	assert.Equal(t, "b", rec.Screenshots[1].URL)
}

func TestUpsert_DuplicateScreenshotURLsTolerated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	shot := violation.Screenshot{URL: "a", Type: violation.NoFace, DetectedAt: time.Now()}
	_, err := m.Upsert(ctx, entry("E1", "s@x.com", violation.Counts{}, shot))
	require.NoError(t, err)
	rec, err := m.Upsert(ctx, entry("E1", "s@x.com", violation.Counts{}, shot))
	require.NoError(t, err)

	// The client saved-set is the dedup authority; the store never dedupes.
	assert.Len(t, rec.Screenshots, 2)
}

func TestUpsert_AlwaysRefreshesUsernameAndHeartbeat(t *testing.T) {
	m := NewMemory()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return clock })
	ctx := context.Background()

	e := entry("E1", "s@x.com", violation.Counts{})
	first, err := m.Upsert(ctx, e)
	require.NoError(t, err)

	clock = clock.Add(5 * time.Minute)
	e.Username = "Renamed Student"
	second, err := m.Upsert(ctx, e)
	require.NoError(t, err)

	assert.Equal(t, "Renamed Student", second.Username)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestUpsert_RejectsInvalidEntry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Upsert(ctx, Entry{ExamID: "E1", Username: "S"})
	assert.Error(t, err)

	// Nothing partially persisted.
	recs, _ := m.ListByExam(ctx, "E1")
	assert.Empty(t, recs)
}

func TestUpsert_PairsAreIndependent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.Upsert(ctx, entry("E1", "a@x.com", violation.Counts{NoFace: 1}))
	require.NoError(t, err)
	_, err = m.Upsert(ctx, entry("E1", "b@x.com", violation.Counts{NoFace: 7}))
	require.NoError(t, err)
	_, err = m.Upsert(ctx, entry("E2", "a@x.com", violation.Counts{NoFace: 3}))
	require.NoError(t, err)

	recs, _ := m.ListByExam(ctx, "E1")
	assert.Len(t, recs, 2)
	recs, _ = m.ListByExam(ctx, "E2")
	require.Len(t, recs, 1)
	assert.Equal(t, 3, recs[0].NoFace)
}

func TestUpdatedSinceAndTotals(t *testing.T) {
	m := NewMemory()
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return clock })
	ctx := context.Background()

	_, err := m.Upsert(ctx, entry("E1", "old@x.com", violation.Counts{NoFace: 1}))
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	_, err = m.Upsert(ctx, entry("E1", "new@x.com", violation.Counts{CellPhone: 2}))
	require.NoError(t, err)

	recent, err := m.UpdatedSince(ctx, clock.Add(-30*time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "new@x.com", recent[0].Email)

	totals, err := m.TotalsCreatedSince(ctx, clock.Add(-2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, totals.NoFace)
	assert.Equal(t, 2, totals.CellPhone)
}
