package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/animoa/animoa-backend/internal/config"
	"github.com/animoa/animoa-backend/internal/domain"
	"github.com/animoa/animoa-backend/internal/http/middleware"
	"github.com/animoa/animoa-backend/internal/llm"
)

// --- tiny fake model to satisfy llm.Completer ---
type fakeModel struct{ reply string }

func (f fakeModel) Complete(_ context.Context, _ []llm.Message) (string, error) {
	return f.reply, nil
}

func (f fakeModel) CompleteWithTemperature(_ context.Context, _ []llm.Message, _ float64) (string, error) {
	return f.reply, nil
}

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// schema so handlers don't explode on list endpoints
	if err := db.AutoMigrate(
		&domain.User{}, &domain.Profile{}, &domain.Thread{}, &domain.Message{},
		&domain.Feedback{}, &domain.Assessment{}, &domain.MoodLog{}, &domain.Idempotency{}, &domain.OutboxEntry{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath:     "/api/v1",
		DefaultLanguage: "en",
		RateRPS:         100,
		RateBurst:       10,
		CORS:            config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:        config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:            config.OTELConfig{ServiceName: "test-svc"},
		Auth:            config.AuthConfig{JWTSecret: "router-test-secret", AccessTTL: time.Hour, RefreshTTL: 24 * time.Hour},
		Outbox:          config.OutboxConfig{MaxAttempts: 3, Backoff: time.Millisecond},
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	db := newTestDB(t)
	RegisterRoutes(r, db, fakeModel{reply: "ok"}, baseConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	db := newTestDB(t)
	RegisterRoutes(r, db, fakeModel{reply: "ok"}, cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

// End-to-end: create a thread, post a message, then read the session back
// through the mounted /api/v1 surface.
func TestRegisterRoutes_ConversationFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	db := newTestDB(t)
	obx := RegisterRoutes(r, db, fakeModel{reply: "I hear you."}, baseConfig())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obx.Start(ctx)
	defer obx.Stop()

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", "flow-user")
		// Responses are gzip-compressed only when asked; don't ask.
		r.ServeHTTP(w, req)
		return w
	}

	// Create a thread
	w := do(http.MethodPost, "/api/v1/threads", `{"title":"First"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create thread = %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		Thread domain.Thread `json:"thread"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("json: %v", err)
	}

	// Post a message and get the canned reply
	w = do(http.MethodPost, "/api/v1/threads/"+created.Thread.ID+"/messages", `{"content":"rough day"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("post message = %d body=%s", w.Code, w.Body.String())
	}
	var posted struct {
		Message domain.Message `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &posted); err != nil {
		t.Fatalf("json: %v", err)
	}
	if posted.Message.Content != "I hear you." {
		t.Fatalf("reply = %q", posted.Message.Content)
	}

	// Session snapshot shows the active thread and both cached messages
	w = do(http.MethodGet, "/api/v1/session", "")
	if w.Code != http.StatusOK {
		t.Fatalf("session = %d", w.Code)
	}
	var sess struct {
		ActiveThreadID string           `json:"active_thread_id"`
		Messages       []domain.Message `json:"messages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &sess); err != nil {
		t.Fatalf("json: %v", err)
	}
	if sess.ActiveThreadID != created.Thread.ID || len(sess.Messages) != 2 {
		t.Fatalf("session state: %+v", sess)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	db := newTestDB(t)
	RegisterRoutes(r, db, fakeModel{reply: "ok"}, baseConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
}

func Test_threadRepoShim_Proxies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	shim := threadRepoShim{}
	ctx := context.Background()

	th, err := shim.CreateThread(ctx, db, "u1", "t1")
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	if th == nil || th.ID == "" || th.Title != "t1" || th.UserID != "u1" {
		t.Fatalf("CreateThread returned bad thread: %+v", th)
	}

	all, err := shim.ListThreads(ctx, db, "u1")
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(all) < 1 {
		t.Fatalf("ListThreads expected >=1, got %d", len(all))
	}

	got, err := shim.GetThread(ctx, db, th.ID, "u1")
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if got.ID != th.ID || got.UserID != "u1" {
		t.Fatalf("GetThread mismatch: got=%+v want id=%s user=u1", got, th.ID)
	}

	if err := shim.UpdateThreadTitle(ctx, db, th.ID, "u1", "t1-renamed"); err != nil {
		t.Fatalf("UpdateThreadTitle: %v", err)
	}
	got2, err := shim.GetThread(ctx, db, th.ID, "u1")
	if err != nil {
		t.Fatalf("GetThread (after update): %v", err)
	}
	if got2.Title != "t1-renamed" {
		t.Fatalf("UpdateThreadTitle failed, title=%q", got2.Title)
	}

	// Seed a few more for pagination
	if _, err := shim.CreateThread(ctx, db, "u1", "t2"); err != nil {
		t.Fatalf("CreateThread t2: %v", err)
	}
	if _, err := shim.CreateThread(ctx, db, "u1", "t3"); err != nil {
		t.Fatalf("CreateThread t3: %v", err)
	}

	n, err := shim.CountThreads(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CountThreads: %v", err)
	}
	if n < 3 {
		t.Fatalf("CountThreads expected >=3, got %d", n)
	}

	page, err := shim.ListThreadsPage(ctx, db, "u1", 0, 2)
	if err != nil {
		t.Fatalf("ListThreadsPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("ListThreadsPage expected 2, got %d", len(page))
	}

	// DeleteThread removes the row
	if err := shim.DeleteThread(ctx, db, th.ID, "u1"); err != nil {
		t.Fatalf("DeleteThread: %v", err)
	}
	if _, err := shim.GetThread(ctx, db, th.ID, "u1"); err == nil {
		t.Fatalf("thread should be gone")
	}
}

// Safe-retry end to end: the first POST with an Idempotency-Key executes
// normally (lookup miss), the retry replays the stored assistant message
// (lookup hit) without generating a second reply.
func TestRegisterRoutes_IdempotentRetry(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	db := newTestDB(t)
	obx := RegisterRoutes(r, db, fakeModel{reply: "same answer"}, baseConfig())

	const userID = "retry-user"
	const key = "key-retry-1"

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-User-ID", userID)
		if method == http.MethodPost && strings.Contains(path, "/messages") {
			req.Header.Set(middleware.HeaderIdempotencyKey, key)
		}
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/api/v1/threads", `{"title":"retry"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create thread = %d", w.Code)
	}
	var created struct {
		Thread domain.Thread `json:"thread"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("json: %v", err)
	}

	msgPath := "/api/v1/threads/" + created.Thread.ID + "/messages"
	w = do(http.MethodPost, msgPath, `{"content":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("first post = %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("first post must not be a replay")
	}
	var first struct {
		Message domain.Message `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("json: %v", err)
	}

	// Drain the outbox so the replay can load the persisted assistant message.
	obx.Flush(context.Background())

	w = do(http.MethodPost, msgPath, `{"content":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("retry post = %d body=%s", w.Code, w.Body.String())
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("expected Idempotency-Replayed header on retry")
	}
	var second struct {
		Message domain.Message `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &second); err != nil {
		t.Fatalf("json: %v", err)
	}
	if second.Message.ID != first.Message.ID {
		t.Fatalf("replay returned a different message: %s vs %s", second.Message.ID, first.Message.ID)
	}
}
