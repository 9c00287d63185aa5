package proctor

import (
	"context"
	"log/slog"
	"time"

	"proctoring/internal/cheatlog"
)

// Sink receives auto-save snapshots. The HTTP log client satisfies this in
// the agent; tests and embedded setups can pass the merge store directly.
type Sink interface {
	Save(ctx context.Context, e cheatlog.Entry) (cheatlog.Record, error)
}

// AutoSaver periodically flushes the aggregate to the merge store. The first
// save fires immediately on start, with whatever the aggregate holds (zero
// counts at session start), so presence tracking has a record before any
// violation occurs. A failed save is logged and retried on the next tick;
// the aggregate is untouched on failure so nothing is lost.
type AutoSaver struct {
	agg      *Aggregate
	sink     Sink
	interval time.Duration
	log      *slog.Logger
}

// NewAutoSaver builds a scheduler over the session aggregate.
func NewAutoSaver(agg *Aggregate, sink Sink, interval time.Duration, log *slog.Logger) *AutoSaver {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &AutoSaver{agg: agg, sink: sink, interval: interval, log: log}
}

// Run flushes immediately, then on every tick until ctx is cancelled.
func (s *AutoSaver) Run(ctx context.Context) {
	s.Flush(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Flush(ctx)
		}
	}
}

// Flush sends one snapshot: current counters plus only the screenshots the
// server has not yet acknowledged. On success those screenshots join the
// saved-set and are never resent.
func (s *AutoSaver) Flush(ctx context.Context) {
	state := s.agg.Snapshot()
	unsaved := s.agg.UnsavedScreenshots()

	entry := cheatlog.Entry{
		ExamID:      state.ExamID,
		Username:    state.Username,
		Email:       state.Email,
		Counts:      state.Counts,
		Screenshots: unsaved,
	}
	if _, err := s.sink.Save(ctx, entry); err != nil {
		s.log.Warn("auto-save failed, will retry next tick", "err", err)
		return
	}
	s.agg.MarkSaved(unsaved)
	s.log.Debug("auto-save ok",
		"violations", state.Counts.Total(),
		"screenshots", len(unsaved))
}
