package violation

import "time"

// Type identifies a classified cheating signal. The set is closed: the
// detector and the lockdown monitor only ever emit one of these values.
type Type string

const (
	NoFace           Type = "noFace"
	MultipleFace     Type = "multipleFace"
	CellPhone        Type = "cellPhone"
	ProhibitedObject Type = "prohibitedObject"

	// Lockdown-sourced types. Many raw triggers collapse into these three;
	// the raw trigger survives only in the event description.
	BrowserLockdown Type = "browserLockdown"
	TabSwitch       Type = "tabSwitch"
	WindowBlur      Type = "windowBlur"
)

// None marks "no violation" from the classifier.
const None Type = ""

// Types lists every counted violation type.
func Types() []Type {
	return []Type{NoFace, MultipleFace, CellPhone, ProhibitedObject, BrowserLockdown, TabSwitch, WindowBlur}
}

// Screenshot is a captured evidence frame. Immutable once created.
type Screenshot struct {
	URL        string    `json:"url"`
	Type       Type      `json:"type"`
	DetectedAt time.Time `json:"detectedAt"`
}

// Counts holds the seven persisted violation counters. JSON field names
// match the ingestion endpoint wire format.
type Counts struct {
	NoFace           int `json:"noFaceCount"`
	MultipleFace     int `json:"multipleFaceCount"`
	CellPhone        int `json:"cellPhoneCount"`
	ProhibitedObject int `json:"prohibitedObjectCount"`
	BrowserLockdown  int `json:"browserLockdownViolations"`
	TabSwitch        int `json:"tabSwitchViolations"`
	WindowBlur       int `json:"windowBlurViolations"`
}

// Inc bumps the counter for t. Unknown types are ignored.
func (c *Counts) Inc(t Type) {
	switch t {
	case NoFace:
		c.NoFace++
	case MultipleFace:
		c.MultipleFace++
	case CellPhone:
		c.CellPhone++
	case ProhibitedObject:
		c.ProhibitedObject++
	case BrowserLockdown:
		c.BrowserLockdown++
	case TabSwitch:
		c.TabSwitch++
	case WindowBlur:
		c.WindowBlur++
	}
}

// Get returns the counter for t.
func (c Counts) Get(t Type) int {
	switch t {
	case NoFace:
		return c.NoFace
	case MultipleFace:
		return c.MultipleFace
	case CellPhone:
		return c.CellPhone
	case ProhibitedObject:
		return c.ProhibitedObject
	case BrowserLockdown:
		return c.BrowserLockdown
	case TabSwitch:
		return c.TabSwitch
	case WindowBlur:
		return c.WindowBlur
	}
	return 0
}

// Max returns the field-wise maximum of c and o. This is the merge rule for
// the server-side store: a stale snapshot can never lower a counter.
func (c Counts) Max(o Counts) Counts {
	return Counts{
		NoFace:           maxInt(c.NoFace, o.NoFace),
		MultipleFace:     maxInt(c.MultipleFace, o.MultipleFace),
		CellPhone:        maxInt(c.CellPhone, o.CellPhone),
		ProhibitedObject: maxInt(c.ProhibitedObject, o.ProhibitedObject),
		BrowserLockdown:  maxInt(c.BrowserLockdown, o.BrowserLockdown),
		TabSwitch:        maxInt(c.TabSwitch, o.TabSwitch),
		WindowBlur:       maxInt(c.WindowBlur, o.WindowBlur),
	}
}

// Total sums all counters.
func (c Counts) Total() int {
	return c.NoFace + c.MultipleFace + c.CellPhone + c.ProhibitedObject +
		c.BrowserLockdown + c.TabSwitch + c.WindowBlur
}

// Any reports whether at least one counter is positive.
func (c Counts) Any() bool { return c.Total() > 0 }

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
