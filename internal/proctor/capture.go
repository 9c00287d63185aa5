package proctor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"proctoring/internal/violation"
)

// Uploader pushes an encoded frame to external blob storage and returns an
// opaque URL. The Cloudinary client satisfies this.
type Uploader interface {
	Upload(ctx context.Context, jpeg []byte, filename string) (string, error)
}

// Capturer grabs evidence frames on qualifying violations. Capture is
// best-effort by contract: any failure means "no evidence this time", never
// an error that blocks counting.
type Capturer struct {
	source   FrameSource
	uploader Uploader
	log      *slog.Logger
}

// NewCapturer builds a capturer over the session's frame source.
func NewCapturer(source FrameSource, uploader Uploader, log *slog.Logger) *Capturer {
	return &Capturer{source: source, uploader: uploader, log: log}
}

// Capture grabs and uploads the current frame for a violation of type t.
// Returns nil when the source is not ready, the frame is degenerate, or the
// upload fails.
func (c *Capturer) Capture(ctx context.Context, t violation.Type) *violation.Screenshot {
	if c.uploader == nil {
		return nil
	}
	if !c.source.Ready() {
		c.log.Debug("screenshot skipped, source not ready", "type", t)
		return nil
	}
	frame, err := c.source.Grab()
	if err != nil || frame.Width == 0 || frame.Height == 0 || len(frame.JPEG) == 0 {
		c.log.Debug("screenshot skipped, degenerate frame", "type", t, "err", err)
		return nil
	}

	detectedAt := time.Now().UTC()
	name := fmt.Sprintf("cheating_%d.jpg", detectedAt.UnixMilli())
	url, err := c.uploader.Upload(ctx, frame.JPEG, name)
	if err != nil {
		c.log.Warn("screenshot upload failed", "type", t, "err", err)
		return nil
	}
	return &violation.Screenshot{URL: url, Type: t, DetectedAt: detectedAt}
}
