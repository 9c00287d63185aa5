package violation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyLabel(t *testing.T) {
	assert.Equal(t, CellPhone, ClassifyLabel("cell phone", 0))
	assert.Equal(t, ProhibitedObject, ClassifyLabel("book", 0))
	assert.Equal(t, ProhibitedObject, ClassifyLabel("laptop", 0))
	assert.Equal(t, None, ClassifyLabel("chair", 0))
}

func TestClassifyLabel_Persons(t *testing.T) {
	// First person is the examinee, not a violation.
	assert.Equal(t, None, ClassifyLabel("person", 1))
	// Second and subsequent persons are multipleFace.
	assert.Equal(t, MultipleFace, ClassifyLabel("person", 2))
	assert.Equal(t, MultipleFace, ClassifyLabel("person", 3))
}

func TestClassifyTrigger(t *testing.T) {
	typ, desc := ClassifyTrigger(TriggerTabSwitch)
	assert.Equal(t, TabSwitch, typ)
	assert.NotEmpty(t, desc)

	typ, _ = ClassifyTrigger(TriggerWindowBlur)
	assert.Equal(t, WindowBlur, typ)

	// Everything else collapses into the generic lockdown counter.
	for _, tr := range []Trigger{
		TriggerRightClick, TriggerCopy, TriggerPaste, TriggerF12,
		TriggerDevtoolsShortcut, TriggerPrintScreen, TriggerAltTab,
		TriggerBackButton, TriggerFullscreenExit,
	} {
		typ, desc := ClassifyTrigger(tr)
		assert.Equal(t, BrowserLockdown, typ, "trigger %s", tr)
		assert.NotEmpty(t, desc)
	}

	typ, desc = ClassifyTrigger(Trigger("UNKNOWN"))
	assert.Equal(t, None, typ)
	assert.Empty(t, desc)
}

func TestCountsIncGetMax(t *testing.T) {
	var c Counts
	c.Inc(NoFace)
	c.Inc(NoFace)
	c.Inc(TabSwitch)
	assert.Equal(t, 2, c.Get(NoFace))
	assert.Equal(t, 1, c.Get(TabSwitch))
	assert.Equal(t, 3, c.Total())
	assert.True(t, c.Any())

	merged := c.Max(Counts{NoFace: 1, CellPhone: 4})
	assert.Equal(t, 2, merged.NoFace)
	assert.Equal(t, 4, merged.CellPhone)
	assert.Equal(t, 1, merged.TabSwitch)
}
