package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"proctoring/internal/cheatlog"
	"proctoring/internal/cloudinary"
	"proctoring/internal/config"
	"proctoring/internal/exam"
	"proctoring/internal/livefeed"
	"proctoring/internal/queue"
	"proctoring/internal/store"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Printf("warning: db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

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

	var cdn *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdn = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		log.Println("Cloudinary configured:", cfg.CloudinaryCloudName)
	} else {
		log.Println("Cloudinary not configured (CLOUDINARY_CLOUD_NAME / API_KEY / API_SECRET not set)")
	}

	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	hub := livefeed.NewHub()
	go hub.Run(hubCtx)

	r := newRouter(deps{
		cfg:   cfg,
		logs:  logs,
		exams: examRepo,
		queue: q,
		hub:   hub,
		cdn:   cdn,
		cache: redisCache{redisClient},
		healthy: func(ctx context.Context) (bool, bool) {
			return db != nil && db.Client.PingContext(ctx) == nil, redisClient.Healthy(ctx)
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// redisCache adapts the redis wrapper to the router's read-only cache.
type redisCache struct {
	r *store.Redis
}

func (c redisCache) Get(ctx context.Context, key string) (string, error) {
	if c.r == nil || c.r.Client == nil {
		return "", nil
	}
	return c.r.Client.Get(ctx, key).Result()
}
