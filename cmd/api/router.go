package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proctoring/internal/auth"
	"proctoring/internal/cheatlog"
	"proctoring/internal/cloudinary"
	"proctoring/internal/config"
	"proctoring/internal/exam"
	"proctoring/internal/httpmiddleware"
	"proctoring/internal/livefeed"
	"proctoring/internal/metrics"
	"proctoring/internal/queue"
	"proctoring/internal/violation"
)

const statsCacheKey = "proctoring:stats"

// examStore is the slice of exam.Repository the handlers use.
type examStore interface {
	Create(ctx context.Context, e exam.Exam) (exam.Exam, error)
	GetByExamID(ctx context.Context, examID string) (*exam.Exam, error)
	List(ctx context.Context, studentEmail string) ([]exam.Exam, error)
	Update(ctx context.Context, examID string, e exam.Exam) error
	Delete(ctx context.Context, examID string) error
	SetEligibleStudents(ctx context.Context, examID string, emails []string) error
	InsertResult(ctx context.Context, res exam.Result) (exam.Result, error)
	ResultsByExam(ctx context.Context, examID string) ([]exam.Result, error)
}

// statsCache reads the snapshot the worker refreshes in Redis.
type statsCache interface {
	Get(ctx context.Context, key string) (string, error)
}

type deps struct {
	cfg   config.App
	logs  *cheatlog.Service
	exams examStore
	queue queue.Queue
	hub   *livefeed.Hub
	cdn   *cloudinary.Client
	cache statsCache
	// healthy reports backing-store connectivity for /healthz.
	healthy func(ctx context.Context) (db, redis bool)
}

func newRouter(d deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(d.cfg.RateLimitPerMin, d.cfg.RateLimitPerMin).Gin())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		dbOK, redisOK := true, true
		if d.healthy != nil {
			dbOK, redisOK = d.healthy(c.Request.Context())
		}
		status := http.StatusOK
		if !dbOK || !redisOK {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "db": dbOK, "redis": redisOK})
	})

	// Dev token endpoint. A real deployment fronts this with the identity
	// provider; here it lets agents and dashboards obtain session tokens.
	r.POST("/v1/auth/token", func(c *gin.Context) {
		var req struct {
			Email string `json:"email" binding:"required"`
			Name  string `json:"name" binding:"required"`
			Role  string `json:"role" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if req.Role != auth.RoleStudent && req.Role != auth.RoleTeacher {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
			return
		}
		token, exp, err := auth.Issue(req.Email, req.Name, req.Role, d.cfg.JWTIssuer, d.cfg.JWTSigningKey, d.cfg.AccessTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"token": token, "expires_at": exp.Unix()})
	})

	// Browsers cannot attach Authorization headers to websocket upgrades, so
	// the live feed validates its token from the query string.
	r.GET("/v1/live", func(c *gin.Context) {
		token := c.Query("token")
		claims, err := auth.Parse(token, d.cfg.JWTSigningKey, d.cfg.JWTIssuer)
		if err != nil || claims.Role != auth.RoleTeacher {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		d.hub.ServeWS(c.Writer, c.Request)
	})

	authed := r.Group("/v1", auth.Middleware(d.cfg.JWTSigningKey, d.cfg.JWTIssuer))
	teacher := authed.Group("", auth.RequireRole(auth.RoleTeacher))

	authed.POST("/cheating-logs", func(c *gin.Context) {
		var e cheatlog.Entry
		if err := c.ShouldBindJSON(&e); err != nil {
			metrics.LogRejects.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := e.Validate(); err != nil {
			metrics.LogRejects.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if claims, ok := auth.FromContext(c); ok && claims.Role == auth.RoleStudent && claims.Email != e.Email {
			c.JSON(http.StatusForbidden, gin.H{"error": "email mismatch"})
			return
		}

		rec, err := d.logs.SaveLog(c.Request.Context(), e)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		metrics.LogUpserts.Inc()
		metrics.ScreenshotsStored.Add(float64(len(e.Screenshots)))
		for _, t := range violation.Types() {
			if e.Counts.Get(t) > 0 {
				metrics.ViolationSnapshots.WithLabelValues(string(t)).Inc()
			}
		}

		if d.hub != nil {
			d.hub.Broadcast(rec)
		}
		if d.queue != nil {
			if msg, err := queue.LogUpdated(rec); err == nil {
				if err := d.queue.Publish(c.Request.Context(), msg); err != nil {
					log.Printf("queue publish failed: %v", err)
				}
			}
		}

		c.JSON(http.StatusCreated, rec)
	})

	teacher.GET("/cheating-logs/:examId", func(c *gin.Context) {
		recs, err := d.logs.LogsByExam(c.Request.Context(), c.Param("examId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"logs": recs})
	})

	teacher.GET("/proctoring/active-students", func(c *gin.Context) {
		students, err := d.logs.ActiveStudents(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"students": students, "count": len(students)})
	})

	teacher.GET("/proctoring/recent-violations", func(c *gin.Context) {
		recent, err := d.logs.RecentViolations(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"violations": recent, "count": len(recent)})
	})

	teacher.GET("/proctoring/stats", func(c *gin.Context) {
		if d.cache != nil {
			if cached, err := d.cache.Get(c.Request.Context(), statsCacheKey); err == nil && cached != "" {
				var stats cheatlog.Stats
				if json.Unmarshal([]byte(cached), &stats) == nil {
					c.JSON(http.StatusOK, stats)
					return
				}
			}
		}
		stats, err := d.logs.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, stats)
	})

	teacher.POST("/exams", func(c *gin.Context) {
		var e exam.Exam
		if err := c.ShouldBindJSON(&e); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if claims, ok := auth.FromContext(c); ok && e.Teacher == "" {
			e.Teacher = claims.Email
		}
		created, err := d.exams.Create(c.Request.Context(), e)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	authed.GET("/exams", func(c *gin.Context) {
		email := c.Query("student")
		if claims, ok := auth.FromContext(c); ok && claims.Role == auth.RoleStudent {
			email = claims.Email
		}
		exams, err := d.exams.List(c.Request.Context(), email)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"exams": exams})
	})

	authed.GET("/exams/:examId", func(c *gin.Context) {
		e, err := d.exams.GetByExamID(c.Request.Context(), c.Param("examId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if e == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
			return
		}
		c.JSON(http.StatusOK, e)
	})

	teacher.PUT("/exams/:examId", func(c *gin.Context) {
		var e exam.Exam
		if err := c.ShouldBindJSON(&e); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := d.exams.Update(c.Request.Context(), c.Param("examId"), e); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	})

	teacher.DELETE("/exams/:examId", func(c *gin.Context) {
		if err := d.exams.Delete(c.Request.Context(), c.Param("examId")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted"})
	})

	teacher.PUT("/exams/:examId/students", func(c *gin.Context) {
		var req struct {
			Emails []string `json:"emails" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := d.exams.SetEligibleStudents(c.Request.Context(), c.Param("examId"), req.Emails); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "updated"})
	})

	authed.POST("/results", func(c *gin.Context) {
		var res exam.Result
		if err := c.ShouldBindJSON(&res); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if claims, ok := auth.FromContext(c); ok && claims.Role == auth.RoleStudent {
			res.Email = claims.Email
		}
		created, err := d.exams.InsertResult(c.Request.Context(), res)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, created)
	})

	teacher.GET("/results/:examId", func(c *gin.Context) {
		results, err := d.exams.ResultsByExam(c.Request.Context(), c.Param("examId"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
	})

	// Evidence upload for agents without their own Cloudinary credentials.
	authed.POST("/upload", func(c *gin.Context) {
		if d.cdn == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
			return
		}

		var result *cloudinary.UploadResult
		var err error
		switch {
		case strings.Contains(c.ContentType(), "multipart/form-data"):
			file, header, ferr := c.Request.FormFile("file")
			if ferr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "file field required"})
				return
			}
			defer file.Close()
			data, ferr := io.ReadAll(file)
			if ferr != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
				return
			}
			result, err = d.cdn.UploadBytes(c.Request.Context(), data, header.Filename)
		default:
			var body struct {
				Data string `json:"data" binding:"required"`
			}
			if berr := c.ShouldBindJSON(&body); berr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "provide {\"data\": \"<base64 data URL>\"}"})
				return
			}
			result, err = d.cdn.UploadBase64(c.Request.Context(), body.Data)
		}
		if err != nil {
			log.Printf("cloudinary upload failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": result.SecureURL, "public_id": result.PublicID, "bytes": result.Bytes})
	})

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
