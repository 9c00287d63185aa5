package proctor

import (
	"context"
	"log/slog"
	"time"

	"proctoring/internal/violation"
)

// Frame is one sampled camera image.
type Frame struct {
	Width  int
	Height int
	JPEG   []byte
}

// FrameSource provides live camera frames. Ready reports whether the source
// has a usable frame (stream open, non-zero dimensions); Grab returns the
// current frame.
type FrameSource interface {
	Ready() bool
	Grab() (Frame, error)
}

// Detection is one labeled object from the detector model.
type Detection struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// ObjectDetector runs one inference pass over a frame.
type ObjectDetector interface {
	Detect(ctx context.Context, frame Frame) ([]Detection, error)
}

// DetectionLoop samples the frame source at a fixed cadence and forwards
// classified violations. A tick that fails, for any reason, is logged and
// skipped; the loop only stops when its context is cancelled.
type DetectionLoop struct {
	source   FrameSource
	detector ObjectDetector
	interval time.Duration
	handle   func(violation.Type)
	log      *slog.Logger
}

// NewDetectionLoop builds a loop; handle receives every classified violation
// (before any rate limiting).
func NewDetectionLoop(source FrameSource, detector ObjectDetector, interval time.Duration, handle func(violation.Type), log *slog.Logger) *DetectionLoop {
	if interval <= 0 {
		interval = time.Second
	}
	return &DetectionLoop{
		source:   source,
		detector: detector,
		interval: interval,
		handle:   handle,
		log:      log,
	}
}

// Run blocks until ctx is cancelled.
func (l *DetectionLoop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick samples and classifies one frame.
func (l *DetectionLoop) tick(ctx context.Context) {
	if !l.source.Ready() {
		// Camera not up yet; retry next tick.
		return
	}
	frame, err := l.source.Grab()
	if err != nil {
		l.log.Warn("frame grab failed", "err", err)
		return
	}
	detections, err := l.detector.Detect(ctx, frame)
	if err != nil {
		l.log.Warn("inference failed", "err", err)
		return
	}

	personCount := 0
	for _, d := range detections {
		if d.Label == "person" {
			personCount++
		}
		if t := violation.ClassifyLabel(d.Label, personCount); t != violation.None {
			l.handle(t)
		}
	}
	if personCount == 0 {
		// Exactly one noFace per frame with no person in it.
		l.handle(violation.NoFace)
	}
}
