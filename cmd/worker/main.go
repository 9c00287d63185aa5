package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"proctoring/internal/cheatlog"
	"proctoring/internal/config"
	"proctoring/internal/exam"
	"proctoring/internal/queue"
	"proctoring/internal/store"
)

const statsCacheKey = "proctoring:stats"

// Worker consumes merge events for audit logging and keeps the dashboard
// stats snapshot warm in Redis so the API can serve it without recomputing.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "proctoring:events")
	}

	logStore := cheatlog.NewRepository(db.Client)
	examRepo := exam.NewRepository(db.Client)
	logs := cheatlog.NewService(logStore, examRepo, examRepo, cfg.ActiveWindow, cfg.RecentWindow)

	refresh := func() {
		refreshCtx, done := context.WithTimeout(ctx, 10*time.Second)
		defer done()
		stats, err := logs.Stats(refreshCtx)
		if err != nil {
			log.Printf("stats refresh failed: %v", err)
			return
		}
		payload, err := json.Marshal(stats)
		if err != nil {
			log.Printf("stats marshal failed: %v", err)
			return
		}
		if err := redisClient.Client.Set(refreshCtx, statsCacheKey, payload, 2*time.Minute).Err(); err != nil {
			log.Printf("stats cache write failed: %v", err)
			return
		}
		log.Printf("stats cached: %d active exams, %d active students, %d violations today",
			stats.ActiveExams, stats.ActiveStudents, stats.TodayTotal)
	}

	c := cron.New()
	if _, err := c.AddFunc("* * * * *", refresh); err != nil {
		log.Fatalf("cron schedule failed: %v", err)
	}
	c.Start()
	defer c.Stop()
	refresh()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		switch msg.Type {
		case queue.EventLogUpdated:
			rec, err := msg.Record()
			if err != nil {
				log.Printf("bad log-updated payload: %v", err)
				continue
			}
			log.Printf("log merged: exam=%s student=%s total=%d screenshots=%d",
				rec.ExamID, rec.Email, rec.Counts.Total(), len(rec.Screenshots))
		case queue.EventExamSubmitted:
			log.Printf("exam submitted: %s", string(msg.Body))
		default:
			log.Printf("unknown event type %q", msg.Type)
		}
	}

	log.Println("worker stopped")
}
