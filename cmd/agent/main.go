package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"proctoring/internal/cloudinary"
	"proctoring/internal/config"
	"proctoring/internal/detectclient"
	"proctoring/internal/logclient"
	"proctoring/internal/proctor"
	"proctoring/internal/toast"
	"proctoring/internal/violation"
)

// The agent runs one proctored exam session from the terminal: camera frames
// come from a directory of JPEGs, lockdown triggers are typed on stdin, and
// violation snapshots auto-save to the exam server.
func main() {
	var (
		examID    = flag.String("exam", "", "exam id to proctor")
		email     = flag.String("email", "", "student email")
		name      = flag.String("name", "", "student display name")
		framesDir = flag.String("frames", "", "directory of jpeg frames standing in for the webcam")
		serverURL = flag.String("server", "http://localhost:8082", "exam server base URL")
		token     = flag.String("token", "", "bearer token for the exam server")
		duration  = flag.Duration("duration", 0, "exam duration; 0 disables the auto-submit timer")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *examID == "" || *email == "" || *name == "" {
		fmt.Fprintln(os.Stderr, "usage: agent -exam <id> -email <email> -name <name> [-frames dir] [-server url] [-token t]")
		os.Exit(2)
	}

	cfg := config.Load()

	source, err := newDirSource(*framesDir)
	if err != nil {
		logger.Error("frame source init failed", "err", err)
		os.Exit(1)
	}

	var uploader proctor.Uploader
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		uploader = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	} else {
		logger.Warn("cloudinary not configured, screenshots disabled")
	}

	browser := newConsoleBrowser(logger)

	session := proctor.NewSession(proctor.SessionConfig{
		ExamID:   *examID,
		Username: *name,
		Email:    *email,

		Source:   source,
		Detector: detectclient.New(cfg.DetectorURL, cfg.DetectorSkip),
		Browser:  browser,
		Uploader: uploader,
		Sink:     logclient.New(*serverURL, *token),
		Notifier: toast.NewTerminal(),

		DetectInterval:    cfg.DetectInterval,
		AutoSaveInterval:  cfg.AutoSaveInterval,
		TypeCooldown:      cfg.TypeCooldown,
		GlobalCooldown:    cfg.GlobalCooldown,
		ToastCooldown:     cfg.ToastCooldown,
		LockdownEnabled:   true,
		EnforceFullscreen: true,

		Logger: logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var timeUp <-chan time.Time
	if *duration > 0 {
		timeUp = time.After(*duration)
	}

	session.Start(ctx)
	fmt.Println("session running; type a trigger (tab, blur, copy, paste, rightclick, devtools, back, esc), 'phase <examId>' or 'quit'")

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- strings.TrimSpace(scanner.Text())
		}
		close(lines)
	}()

loop:
	for {
		select {
		case <-sigCh:
			break loop
		case <-timeUp:
			logger.Info("exam time elapsed, auto-submitting")
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			switch {
			case line == "quit":
				break loop
			case strings.HasPrefix(line, "phase "):
				session.AdvancePhase(strings.TrimPrefix(line, "phase "))
			case line != "":
				if t, ok := consoleTriggers[line]; ok {
					browser.Fire(t)
				} else {
					fmt.Printf("unknown trigger %q\n", line)
				}
			}
		}
	}

	session.Stop(context.Background())
}

// consoleTriggers maps typed shorthand to raw lockdown triggers.
var consoleTriggers = map[string]violation.Trigger{
	"tab":        violation.TriggerTabSwitch,
	"blur":       violation.TriggerWindowBlur,
	"copy":       violation.TriggerCopy,
	"cut":        violation.TriggerCut,
	"paste":      violation.TriggerPaste,
	"rightclick": violation.TriggerRightClick,
	"devtools":   violation.TriggerF12,
	"print":      violation.TriggerPrint,
	"back":       violation.TriggerBackButton,
	"esc":        violation.TriggerFullscreenExit,
	"alttab":     violation.TriggerAltTab,
}

// dirSource cycles through the JPEG files of a directory as camera frames.
// An empty path yields a never-ready source, which degrades the session to
// lockdown-only proctoring.
type dirSource struct {
	mu     sync.Mutex
	frames [][]byte
	next   int
}

func newDirSource(dir string) (*dirSource, error) {
	s := &dirSource{}
	if dir == "" {
		return s, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".jpg") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		s.frames = append(s.frames, data)
	}
	return s, nil
}

func (s *dirSource) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) > 0
}

func (s *dirSource) Grab() (proctor.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return proctor.Frame{}, fmt.Errorf("no frames available")
	}
	data := s.frames[s.next%len(s.frames)]
	s.next++
	return proctor.Frame{Width: 640, Height: 480, JPEG: data}, nil
}

// consoleBrowser is the terminal stand-in for the browser surfaces: triggers
// come from typed commands, fullscreen is a tracked flag.
type consoleBrowser struct {
	log *slog.Logger

	mu         sync.Mutex
	subs       []chan violation.Trigger
	fullscreen bool
}

func newConsoleBrowser(log *slog.Logger) *consoleBrowser {
	return &consoleBrowser{log: log, fullscreen: true}
}

// Fire delivers a trigger to every live subscription.
func (b *consoleBrowser) Fire(t violation.Trigger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t == violation.TriggerFullscreenExit {
		b.fullscreen = false
	}
	for _, ch := range b.subs {
		select {
		case ch <- t:
		default:
		}
	}
}

func (b *consoleBrowser) Triggers(ctx context.Context) <-chan violation.Trigger {
	ch := make(chan violation.Trigger, 8)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	go func() {
		<-ctx.Done()
		b.mu.Lock()
		for i, sub := range b.subs {
			if sub == ch {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
	}()
	return ch
}

func (b *consoleBrowser) PushHistoryState() {
	b.log.Debug("history state planted")
}

func (b *consoleBrowser) RequestFullscreen() error {
	b.mu.Lock()
	b.fullscreen = true
	b.mu.Unlock()
	b.log.Info("fullscreen re-entered")
	return nil
}

func (b *consoleBrowser) IsFullscreen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.fullscreen
}
