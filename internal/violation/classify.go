package violation

// ClassifyLabel maps one object-detector label to a violation type.
// personCount is the running number of "person" labels already seen in the
// current frame, including this one when label is "person": the first person
// is the examinee and classifies as nothing, every additional person is a
// multipleFace violation. Absence of any person in a frame is the caller's
// concern (see FrameResult).
func ClassifyLabel(label string, personCount int) Type {
	switch label {
	case "cell phone":
		return CellPhone
	case "book", "laptop":
		return ProhibitedObject
	case "person":
		if personCount > 1 {
			return MultipleFace
		}
		return None
	}
	return None
}

// Trigger is a raw lockdown event source: an intercepted gesture, a
// navigation attempt, or a visibility/focus transition.
type Trigger string

const (
	TriggerRightClick        Trigger = "RIGHT_CLICK"
	TriggerCopy              Trigger = "COPY"
	TriggerCut               Trigger = "CUT"
	TriggerPaste             Trigger = "PASTE"
	TriggerF12               Trigger = "F12_KEY"
	TriggerDevtoolsShortcut  Trigger = "DEVTOOLS_SHORTCUT"
	TriggerConsoleShortcut   Trigger = "CONSOLE_SHORTCUT"
	TriggerInspectorShortcut Trigger = "INSPECTOR_SHORTCUT"
	TriggerViewSource        Trigger = "VIEW_SOURCE"
	TriggerSavePage          Trigger = "SAVE_PAGE"
	TriggerPrint             Trigger = "PRINT"
	TriggerPrintScreen       Trigger = "PRINT_SCREEN"
	TriggerCopyShortcut      Trigger = "COPY_SHORTCUT"
	TriggerPasteShortcut     Trigger = "PASTE_SHORTCUT"
	TriggerCutShortcut       Trigger = "CUT_SHORTCUT"
	TriggerAltTab            Trigger = "ALT_TAB"
	TriggerCmdTab            Trigger = "CMD_TAB"
	TriggerBrowserNav        Trigger = "BROWSER_NAVIGATION"
	TriggerBackButton        Trigger = "BACK_BUTTON"
	TriggerTabSwitch         Trigger = "TAB_SWITCH"
	TriggerWindowBlur        Trigger = "WINDOW_BLUR"
	TriggerFullscreenExit    Trigger = "FULLSCREEN_EXIT"
)

// triggerRules is the data-driven interception table. Adding or removing an
// intercepted gesture is a row change here, not new code.
var triggerRules = map[Trigger]struct {
	Type        Type
	Description string
}{
	TriggerRightClick:        {BrowserLockdown, "Attempted to open context menu"},
	TriggerCopy:              {BrowserLockdown, "Attempted to copy content"},
	TriggerCut:               {BrowserLockdown, "Attempted to cut content"},
	TriggerPaste:             {BrowserLockdown, "Attempted to paste content"},
	TriggerF12:               {BrowserLockdown, "Attempted to open developer tools"},
	TriggerDevtoolsShortcut:  {BrowserLockdown, "Attempted to open developer tools"},
	TriggerConsoleShortcut:   {BrowserLockdown, "Attempted to open console"},
	TriggerInspectorShortcut: {BrowserLockdown, "Attempted to open element inspector"},
	TriggerViewSource:        {BrowserLockdown, "Attempted to view page source"},
	TriggerSavePage:          {BrowserLockdown, "Attempted to save page"},
	TriggerPrint:             {BrowserLockdown, "Attempted to print page"},
	TriggerPrintScreen:       {BrowserLockdown, "Attempted to take screenshot"},
	TriggerCopyShortcut:      {BrowserLockdown, "Attempted to copy with keyboard"},
	TriggerPasteShortcut:     {BrowserLockdown, "Attempted to paste with keyboard"},
	TriggerCutShortcut:       {BrowserLockdown, "Attempted to cut with keyboard"},
	TriggerAltTab:            {BrowserLockdown, "Attempted to switch applications"},
	TriggerCmdTab:            {BrowserLockdown, "Attempted to switch applications"},
	TriggerBrowserNav:        {BrowserLockdown, "Attempted to navigate with keyboard"},
	TriggerBackButton:        {BrowserLockdown, "Attempted to use browser back button"},
	TriggerTabSwitch:         {TabSwitch, "User switched tabs or minimized window"},
	TriggerWindowBlur:        {WindowBlur, "Window lost focus"},
	TriggerFullscreenExit:    {BrowserLockdown, "User exited fullscreen mode"},
}

// ClassifyTrigger maps a raw lockdown trigger to the persisted violation
// type plus an audit description. Unknown triggers return None.
func ClassifyTrigger(t Trigger) (Type, string) {
	r, ok := triggerRules[t]
	if !ok {
		return None, ""
	}
	return r.Type, r.Description
}

// Triggers returns every trigger the interception table knows about.
func Triggers() []Trigger {
	out := make([]Trigger, 0, len(triggerRules))
	for t := range triggerRules {
		out = append(out, t)
	}
	return out
}
