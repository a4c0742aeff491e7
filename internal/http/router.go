// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/animoa/animoa-backend/docs"
	"github.com/animoa/animoa-backend/internal/auth"
	"github.com/animoa/animoa-backend/internal/config"
	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/http/handlers"
	"github.com/animoa/animoa-backend/internal/http/middleware"
	"github.com/animoa/animoa-backend/internal/llm"
	"github.com/animoa/animoa-backend/internal/outbox"
	"github.com/animoa/animoa-backend/internal/repo"
	"github.com/animoa/animoa-backend/internal/services"
)

// threadRepoShim adapts the repository free functions to the
// services.ThreadRepo interface expected by the ThreadService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type threadRepoShim struct{}

// CreateThread proxies repo.CreateThread.
func (threadRepoShim) CreateThread(ctx context.Context, db *gorm.DB, userID, title string) (*domain.Thread, error) {
	return repo.CreateThread(ctx, db, userID, title)
}

// ListThreads proxies repo.ListThreads.
func (threadRepoShim) ListThreads(ctx context.Context, db *gorm.DB, userID string) ([]domain.Thread, error) {
	return repo.ListThreads(ctx, db, userID)
}

// GetThread proxies repo.GetThread.
func (threadRepoShim) GetThread(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Thread, error) {
	return repo.GetThread(ctx, db, id, userID)
}

// UpdateThreadTitle proxies repo.UpdateThreadTitle.
func (threadRepoShim) UpdateThreadTitle(ctx context.Context, db *gorm.DB, id, userID, title string) error {
	return repo.UpdateThreadTitle(ctx, db, id, userID, title)
}

// CountThreads proxies repo.CountThreads (pagination support).
func (threadRepoShim) CountThreads(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountThreads(ctx, db, userID)
}

// ListThreadsPage proxies repo.ListThreadsPage (pagination support).
func (threadRepoShim) ListThreadsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Thread, error) {
	return repo.ListThreadsPage(ctx, db, userID, offset, limit)
}

// DeleteThread proxies repo.DeleteThread (cascades messages and feedback).
func (threadRepoShim) DeleteThread(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteThread(ctx, db, id, userID)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// The returned outbox queue is constructed but not started; the caller owns
// its lifecycle (Start/Stop).
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
// 10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, model llm.Completer, cfg config.Config) *outbox.Queue {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Compress responses (skip the PDF download, already compressed inside)
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`^/api/v\d+/assessments/.*/report$`})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, threadID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, threadID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/model
	sessions := services.NewSessionStore(cfg.DefaultLanguage)
	sessions.ProfileLanguage = services.ProfileLanguageLookup(db)
	obx := outbox.New(db, cfg.Outbox.MaxAttempts, cfg.Outbox.Backoff, sessions.MarkPersisted)

	threadSvc := services.NewThreadService(db, threadRepoShim{})
	msgSvc := &services.MessageService{
		DB:             db,
		LLM:            model,
		Outbox:         obx,
		Threads:        threadSvc,
		MaxPromptRunes: 2000,
		MaxReplyRunes:  1500,
		HistoryWindow:  10,
		TitleMaxLen:    6,
	}
	fbSvc := &services.FeedbackService{DB: db}
	assessmentSvc := &services.AssessmentService{
		DB:       db,
		Composer: services.NewComposer(model),
		Messages: msgSvc,
	}
	moodSvc := &services.MoodService{DB: db}
	profileSvc := &services.ProfileService{DB: db}
	authSvc := auth.NewService(db, cfg.Auth)

	h := handlers.New(db, sessions, authSvc, threadSvc, msgSvc, fbSvc, assessmentSvc, moodSvc, profileSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Auth (no token required)
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
		api.POST("/auth/refresh", h.Refresh)
		api.POST("/auth/restore", h.Restore)
	}

	// Everything below resolves the caller identity. Tokens are verified when
	// present; unauthenticated requests fall back to the demo identity.
	authed := api.Group("", middleware.RequireAuth(authSvc, middleware.AuthOptions{Optional: true}))
	{
		authed.POST("/auth/logout", h.Logout)

		// Session
		authed.GET("/session", h.GetSession)
		authed.POST("/session/language", h.SetLanguage)

		// Threads
		authed.POST("/threads", h.CreateThread)
		authed.GET("/threads", h.ListThreads)
		authed.GET("/threads/:id", h.OpenThread)
		authed.PUT("/threads/:id/title", h.UpdateThreadTitle)
		authed.POST("/threads/:id/delete-request", h.RequestThreadDelete)
		authed.POST("/threads/:id/delete-confirm", h.ConfirmThreadDelete)
		authed.POST("/threads/:id/delete-cancel", h.CancelThreadDelete)

		// Messages
		authed.GET("/threads/:id/messages", h.ListMessages)
		authed.POST("/threads/:id/messages", h.PostMessage)

		// Feedback
		authed.POST("/threads/:id/messages/:index/feedback", h.React)
		authed.GET("/threads/:id/feedback", h.ListFeedback)

		// Assessments
		authed.POST("/assessments", h.SubmitAssessment)
		authed.GET("/assessments", h.ListAssessments)
		authed.GET("/assessments/:id", h.GetAssessment)
		authed.DELETE("/assessments/:id", h.DeleteAssessment)
		authed.GET("/assessments/:id/report", h.DownloadReport)

		// Moods
		authed.POST("/moods", h.LogMood)
		authed.GET("/moods/today", h.TodayMood)
		authed.GET("/moods", h.MoodHistory)

		// Profile
		authed.GET("/profile", h.GetProfile)
		authed.PUT("/profile", h.UpdateProfile)
	}

	return obx
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
