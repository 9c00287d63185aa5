package proctor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"proctoring/internal/violation"
)

// Browser abstracts the surfaces the lockdown monitor attaches to: the raw
// trigger stream (intercepted gestures, visibility and focus transitions),
// the navigation history, and the fullscreen API.
type Browser interface {
	// Triggers streams raw lockdown triggers until the subscription context
	// ends. Subscribing is what arms interception: a disabled monitor never
	// subscribes, so nothing is suppressed or raised.
	Triggers(ctx context.Context) <-chan violation.Trigger
	// PushHistoryState plants a synthetic history entry so back-navigation
	// can be neutralized.
	PushHistoryState()
	// RequestFullscreen asks the browser to re-enter fullscreen.
	RequestFullscreen() error
	// IsFullscreen reports the current fullscreen state.
	IsFullscreen() bool
}

// LockdownEvent is one classified lockdown violation reported to the parent.
type LockdownEvent struct {
	Type        violation.Type
	Trigger     violation.Trigger
	Description string
	Timestamp   time.Time
	Count       int // running total across all triggers this session
}

// Monitor watches input/navigation/visibility/focus surfaces independently
// of the detection loop. Every raw trigger is tallied for introspection and
// reported through the callback; the session layer decides which reports
// become counted violations.
type Monitor struct {
	browser           Browser
	enabled           bool
	enforceFullscreen bool
	refullscreenDelay time.Duration
	onViolation       func(LockdownEvent)
	log               *slog.Logger

	mu      sync.Mutex
	tallies map[violation.Trigger]int
	total   int
}

// MonitorOptions configures a lockdown monitor.
type MonitorOptions struct {
	Enabled           bool
	EnforceFullscreen bool
	// RefullscreenDelay is how long after a fullscreen exit the monitor
	// waits before re-requesting fullscreen. Defaults to one second.
	RefullscreenDelay time.Duration
	OnViolation       func(LockdownEvent)
}

// NewMonitor builds a monitor over the given browser surfaces.
func NewMonitor(browser Browser, opts MonitorOptions, log *slog.Logger) *Monitor {
	if opts.RefullscreenDelay <= 0 {
		opts.RefullscreenDelay = time.Second
	}
	return &Monitor{
		browser:           browser,
		enabled:           opts.Enabled,
		enforceFullscreen: opts.EnforceFullscreen,
		refullscreenDelay: opts.RefullscreenDelay,
		onViolation:       opts.OnViolation,
		log:               log,
		tallies:           make(map[violation.Trigger]int),
	}
}

// Attach arms the monitor and returns a detach handle. Detach is idempotent:
// every listener is removed exactly once no matter how often it is called.
// A disabled monitor attaches nothing and returns a no-op handle.
func (m *Monitor) Attach(ctx context.Context) (detach func()) {
	if !m.enabled {
		return func() {}
	}

	subCtx, cancel := context.WithCancel(ctx)
	triggers := m.browser.Triggers(subCtx)

	// Neutralize the first back-navigation before it happens.
	m.browser.PushHistoryState()
	if m.enforceFullscreen && !m.browser.IsFullscreen() {
		if err := m.browser.RequestFullscreen(); err != nil {
			m.log.Warn("fullscreen request failed", "err", err)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-subCtx.Done():
				return
			case tr, ok := <-triggers:
				if !ok {
					return
				}
				m.handle(subCtx, tr)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
}

func (m *Monitor) handle(ctx context.Context, tr violation.Trigger) {
	typ, desc := violation.ClassifyTrigger(tr)
	if typ == violation.None {
		m.log.Debug("unknown lockdown trigger", "trigger", tr)
		return
	}

	m.mu.Lock()
	m.tallies[tr]++
	m.total++
	total := m.total
	m.mu.Unlock()

	switch tr {
	case violation.TriggerBackButton:
		// Re-plant the synthetic entry so the next back press is also inert.
		m.browser.PushHistoryState()
	case violation.TriggerFullscreenExit:
		if m.enforceFullscreen {
			m.scheduleRefullscreen(ctx)
		}
	}

	m.log.Warn("lockdown violation", "trigger", tr, "total", total)
	if m.onViolation != nil {
		m.onViolation(LockdownEvent{
			Type:        typ,
			Trigger:     tr,
			Description: desc,
			Timestamp:   time.Now().UTC(),
			Count:       total,
		})
	}
}

func (m *Monitor) scheduleRefullscreen(ctx context.Context) {
	timer := time.AfterFunc(m.refullscreenDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if m.browser.IsFullscreen() {
			return
		}
		if err := m.browser.RequestFullscreen(); err != nil {
			m.log.Warn("fullscreen re-request failed", "err", err)
		}
	})
	go func() {
		<-ctx.Done()
		timer.Stop()
	}()
}

// Tally returns how often a trigger fired this session.
func (m *Monitor) Tally(tr violation.Trigger) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tallies[tr]
}

// Total returns the total raw violation count across all triggers.
func (m *Monitor) Total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}
