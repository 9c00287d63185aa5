package proctor

import (
	"sync"

	"proctoring/internal/violation"
)

// State is the per-session violation record held in agent memory. Counts
// only grow within a session; the only way down is an explicit Reset at an
// exam-phase transition.
type State struct {
	ExamID      string
	Username    string
	Email       string
	Counts      violation.Counts
	Screenshots []violation.Screenshot
}

// Patch is a partial state update. Nil fields are "not provided" and keep
// their previous value; a non-nil Screenshots slice replaces the list
// outright (used for server-confirmed round-trips).
type Patch struct {
	ExamID           *string
	Username         *string
	Email            *string
	NoFace           *int
	MultipleFace     *int
	CellPhone        *int
	ProhibitedObject *int
	BrowserLockdown  *int
	TabSwitch        *int
	WindowBlur       *int
	Screenshots      *[]violation.Screenshot
}

// Aggregate is the single writer for session violation state. The detection
// loop, the lockdown monitor and the auto-saver all go through its mutex, so
// "previous state" is never ambiguous when two sources fire in the same
// tick. It also tracks which screenshots the server has acknowledged.
type Aggregate struct {
	mu    sync.Mutex
	state State
	saved map[string]struct{}
}

// NewAggregate creates session state for one student and exam.
func NewAggregate(examID, username, email string) *Aggregate {
	return &Aggregate{
		state: State{ExamID: examID, Username: username, Email: email},
		saved: make(map[string]struct{}),
	}
}

// Apply runs a functional update against the latest state. fn receives a
// deep copy and its return value becomes the new state.
func (a *Aggregate) Apply(fn func(State) State) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = fn(copyState(a.state))
}

// Merge applies a partial patch: provided fields replace, omitted fields
// are retained, never implicitly zeroed.
func (a *Aggregate) Merge(p Patch) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p.ExamID != nil {
		a.state.ExamID = *p.ExamID
	}
	if p.Username != nil {
		a.state.Username = *p.Username
	}
	if p.Email != nil {
		a.state.Email = *p.Email
	}
	if p.NoFace != nil {
		a.state.Counts.NoFace = *p.NoFace
	}
	if p.MultipleFace != nil {
		a.state.Counts.MultipleFace = *p.MultipleFace
	}
	if p.CellPhone != nil {
		a.state.Counts.CellPhone = *p.CellPhone
	}
	if p.ProhibitedObject != nil {
		a.state.Counts.ProhibitedObject = *p.ProhibitedObject
	}
	if p.BrowserLockdown != nil {
		a.state.Counts.BrowserLockdown = *p.BrowserLockdown
	}
	if p.TabSwitch != nil {
		a.state.Counts.TabSwitch = *p.TabSwitch
	}
	if p.WindowBlur != nil {
		a.state.Counts.WindowBlur = *p.WindowBlur
	}
	if p.Screenshots != nil {
		a.state.Screenshots = append([]violation.Screenshot(nil), (*p.Screenshots)...)
	}
}

// CountViolation increments the counter for t. Counting never depends on
// evidence capture.
func (a *Aggregate) CountViolation(t violation.Type) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Counts.Inc(t)
}

// AppendScreenshot appends captured evidence (internal detector path).
func (a *Aggregate) AppendScreenshot(s violation.Screenshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Screenshots = append(a.state.Screenshots, s)
}

// Reset zeroes all counters, clears screenshots and the saved-set, and
// restamps the exam id. Used exactly once per exam-phase transition.
func (a *Aggregate) Reset(examID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = State{
		ExamID:   examID,
		Username: a.state.Username,
		Email:    a.state.Email,
	}
	a.saved = make(map[string]struct{})
}

// Snapshot returns a deep copy of the current state.
func (a *Aggregate) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyState(a.state)
}

// UnsavedScreenshots returns screenshots not yet acknowledged by the server.
func (a *Aggregate) UnsavedScreenshots() []violation.Screenshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []violation.Screenshot
	for _, s := range a.state.Screenshots {
		if _, ok := a.saved[s.URL]; !ok {
			out = append(out, s)
		}
	}
	return out
}

// MarkSaved records server acknowledgement so evidence is never resent.
func (a *Aggregate) MarkSaved(shots []violation.Screenshot) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, s := range shots {
		if s.URL != "" {
			a.saved[s.URL] = struct{}{}
		}
	}
}

func copyState(s State) State {
	shots := make([]violation.Screenshot, len(s.Screenshots))
	copy(shots, s.Screenshots)
	s.Screenshots = shots
	return s
}
