package proctor

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"proctoring/internal/violation"
)

func intp(v int) *int { return &v }

func TestAggregate_PartialMergeKeepsOtherFields(t *testing.T) {
	a := NewAggregate("E1", "Student", "s@x.com")
	a.CountViolation(violation.CellPhone)
	a.CountViolation(violation.TabSwitch)

	a.Merge(Patch{NoFace: intp(4)})

	st := a.Snapshot()
	assert.Equal(t, 4, st.Counts.NoFace)
	// Omitted fields are retained, never implicitly zeroed.
	assert.Equal(t, 1, st.Counts.CellPhone)
	assert.Equal(t, 1, st.Counts.TabSwitch)
	assert.Equal(t, "E1", st.ExamID)
}

func TestAggregate_ScreenshotReplaceVsAppend(t *testing.T) {
	a := NewAggregate("E1", "Student", "s@x.com")
	a.AppendScreenshot(violation.Screenshot{URL: "a", Type: violation.NoFace})
	a.AppendScreenshot(violation.Screenshot{URL: "b", Type: violation.CellPhone})
	assert.Len(t, a.Snapshot().Screenshots, 2)

	// Server-confirmed round-trip replaces the list outright.
	confirmed := []violation.Screenshot{{URL: "c"}}
	a.Merge(Patch{Screenshots: &confirmed})
	st := a.Snapshot()
	assert.Len(t, st.Screenshots, 1)
	assert.Equal(t, "c", st.Screenshots[0].URL)

	// Omitting screenshots keeps them.
	a.Merge(Patch{NoFace: intp(1)})
	assert.Len(t, a.Snapshot().Screenshots, 1)
}

func TestAggregate_ApplyFunctionalUpdate(t *testing.T) {
	a := NewAggregate("E1", "Student", "s@x.com")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Apply(func(s State) State {
				s.Counts.NoFace++
				return s
			})
		}()
	}
	wg.Wait()

	// Every updater saw the previous state, not a stale snapshot.
	assert.Equal(t, 50, a.Snapshot().Counts.NoFace)
}

func TestAggregate_Reset(t *testing.T) {
	a := NewAggregate("E1", "Student", "s@x.com")
	a.CountViolation(violation.NoFace)
	a.AppendScreenshot(violation.Screenshot{URL: "a"})
	a.MarkSaved([]violation.Screenshot{{URL: "a"}})

	a.Reset("E1-coding")

	st := a.Snapshot()
	assert.Equal(t, violation.Counts{}, st.Counts)
	assert.Empty(t, st.Screenshots)
	assert.Equal(t, "E1-coding", st.ExamID)
	assert.Equal(t, "Student", st.Username)
	assert.Equal(t, "s@x.com", st.Email)

	// Saved-set cleared with the phase.
	a.AppendScreenshot(violation.Screenshot{URL: "a"})
	assert.Len(t, a.UnsavedScreenshots(), 1)
}

func TestAggregate_SavedSetFiltersUnsaved(t *testing.T) {
	a := NewAggregate("E1", "Student", "s@x.com")
	s1 := violation.Screenshot{URL: "a", DetectedAt: time.Now()}
	s2 := violation.Screenshot{URL: "b", DetectedAt: time.Now()}
	a.AppendScreenshot(s1)
	a.AppendScreenshot(s2)

	a.MarkSaved([]violation.Screenshot{s1})

	unsaved := a.UnsavedScreenshots()
	assert.Len(t, unsaved, 1)
	assert.Equal(t, "b", unsaved[0].URL)

	a.MarkSaved(unsaved)
	assert.Empty(t, a.UnsavedScreenshots())
}

func TestAggregate_SnapshotIsACopy(t *testing.T) {
	a := NewAggregate("E1", "Student", "s@x.com")
	a.AppendScreenshot(violation.Screenshot{URL: "a"})

	st := a.Snapshot()
	st.Screenshots[0].URL = "mutated"
	st.Counts.NoFace = 99

	fresh := a.Snapshot()
	assert.Equal(t, "a", fresh.Screenshots[0].URL)
	assert.Equal(t, 0, fresh.Counts.NoFace)
}
