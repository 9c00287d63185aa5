package proctor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"proctoring/internal/violation"
)

// Notifier surfaces rate-limited warnings to the student. The terminal
// toast implementation satisfies this; a nil notifier is silent.
type Notifier interface {
	Warn(t violation.Type, message string)
}

var toastMessages = map[violation.Type]string{
	violation.NoFace:           "Face Not Visible - Warning Recorded",
	violation.MultipleFace:     "Multiple Faces Detected - Warning Recorded",
	violation.CellPhone:        "Cell Phone Detected - Warning Recorded",
	violation.ProhibitedObject: "Prohibited Object Detected - Warning Recorded",
	violation.BrowserLockdown:  "Blocked Action Detected - Warning Recorded",
	violation.TabSwitch:        "Tab Switch Detected - Stay on the exam page",
	violation.WindowBlur:       "Window Focus Lost - Stay on the exam page",
}

// SessionConfig wires one proctored exam session.
type SessionConfig struct {
	ExamID   string
	Username string
	Email    string

	Source   FrameSource
	Detector ObjectDetector
	Browser  Browser
	Uploader Uploader
	Sink     Sink
	Notifier Notifier

	DetectInterval    time.Duration
	AutoSaveInterval  time.Duration
	TypeCooldown      time.Duration // detection path, default 30s
	GlobalCooldown    time.Duration // default 10s
	ToastCooldown     time.Duration // lockdown path, default 5s
	LockdownEnabled   bool
	EnforceFullscreen bool

	Logger *slog.Logger
}

// Session owns one student's proctoring pipeline: detection loop and
// lockdown monitor feeding the aggregate through their own cooldown gates,
// with the auto-saver flushing to the server. The two sources share no
// state except the aggregate.
type Session struct {
	cfg      SessionConfig
	agg      *Aggregate
	detectCD *Cooldown
	toastCD  *Cooldown
	capturer *Capturer
	monitor  *Monitor
	saver    *AutoSaver
	log      *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	detach  func()
	wg      sync.WaitGroup
	started bool
}

// NewSession builds but does not start a session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TypeCooldown <= 0 {
		cfg.TypeCooldown = 30 * time.Second
	}
	if cfg.GlobalCooldown <= 0 {
		cfg.GlobalCooldown = 10 * time.Second
	}
	if cfg.ToastCooldown <= 0 {
		cfg.ToastCooldown = 5 * time.Second
	}

	s := &Session{
		cfg:      cfg,
		agg:      NewAggregate(cfg.ExamID, cfg.Username, cfg.Email),
		detectCD: NewCooldown(cfg.TypeCooldown, cfg.GlobalCooldown),
		toastCD:  NewCooldown(cfg.ToastCooldown, cfg.GlobalCooldown),
		log:      cfg.Logger,
	}
	s.capturer = NewCapturer(cfg.Source, cfg.Uploader, cfg.Logger)
	s.monitor = NewMonitor(cfg.Browser, MonitorOptions{
		Enabled:           cfg.LockdownEnabled,
		EnforceFullscreen: cfg.EnforceFullscreen,
		OnViolation:       s.handleLockdown,
	}, cfg.Logger)
	s.saver = NewAutoSaver(s.agg, cfg.Sink, cfg.AutoSaveInterval, cfg.Logger)
	return s
}

// Aggregate exposes the session's violation state (for UI bindings).
func (s *Session) Aggregate() *Aggregate { return s.agg }

// Monitor exposes the lockdown monitor's introspection counters.
func (s *Session) Monitor() *Monitor { return s.monitor }

// Start launches the detection loop, the lockdown monitor and the
// auto-saver. It is not restartable after Stop.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	loop := NewDetectionLoop(s.cfg.Source, s.cfg.Detector, s.cfg.DetectInterval, s.handleDetection, s.log)
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		loop.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.saver.Run(runCtx)
	}()
	s.detach = s.monitor.Attach(runCtx)

	s.log.Info("proctoring session started",
		"exam", s.cfg.ExamID, "student", s.cfg.Email)
}

// AdvancePhase resets the session state for an independently-proctored exam
// phase (MCQ section done, coding section begins).
func (s *Session) AdvancePhase(examID string) {
	s.agg.Reset(examID)
	s.detectCD.Reset()
	s.toastCD.Reset()
	s.log.Info("exam phase advanced", "exam", examID)
}

// Stop tears the session down: timers cleared, listeners detached, one
// final best-effort flush of the aggregate. In-flight screenshot uploads
// are neither awaited nor cancelled.
func (s *Session) Stop(ctx context.Context) {
	s.mu.Lock()
	cancel, detach := s.cancel, s.detach
	s.cancel, s.detach = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	cancel()
	s.wg.Wait()
	if detach != nil {
		detach()
	}
	s.saver.Flush(ctx)
	s.log.Info("proctoring session stopped", "exam", s.cfg.ExamID)
}

// handleDetection is the webcam path: classified violations pass the
// 30s/10s cooldown, are counted immediately, and evidence capture runs
// concurrently so an upload can never delay or fail the count.
func (s *Session) handleDetection(t violation.Type) {
	if !s.detectCD.Allow(t, time.Now()) {
		return
	}
	s.agg.CountViolation(t)
	s.notify(t)

	// Fire-and-forget: teardown neither awaits nor cancels the upload, and
	// the evidence is merged in after the fact if it succeeds.
	go func() {
		ctx, cancelUpload := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelUpload()
		if shot := s.capturer.Capture(ctx, t); shot != nil {
			s.agg.AppendScreenshot(*shot)
		}
	}()
}

// handleLockdown is the browser path: every raw event is reported by the
// monitor, but only occurrences clearing the 5s/10s gate are counted and
// surfaced.
func (s *Session) handleLockdown(ev LockdownEvent) {
	if !s.toastCD.Allow(ev.Type, ev.Timestamp) {
		return
	}
	s.agg.CountViolation(ev.Type)
	s.notify(ev.Type)
}

func (s *Session) notify(t violation.Type) {
	if s.cfg.Notifier == nil {
		return
	}
	if msg, ok := toastMessages[t]; ok {
		s.cfg.Notifier.Warn(t, msg)
	}
}
