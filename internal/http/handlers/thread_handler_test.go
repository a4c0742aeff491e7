package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/animoa/animoa-backend/internal/repo"
)

func threadRouter(h *Handlers) *gin.Engine {
	r := gin.New()
	r.POST("/threads", h.CreateThread)
	r.GET("/threads", h.ListThreads)
	r.GET("/threads/:id", h.OpenThread)
	r.PUT("/threads/:id/title", h.UpdateThreadTitle)
	r.POST("/threads/:id/delete-request", h.RequestThreadDelete)
	r.POST("/threads/:id/delete-confirm", h.ConfirmThreadDelete)
	r.POST("/threads/:id/delete-cancel", h.CancelThreadDelete)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user, body string) *httptest.ResponseRecorder {
	t.Helper()
	var buf *bytes.Buffer
	if body != "" {
		buf = bytes.NewBufferString(body)
	} else {
		buf = bytes.NewBufferString("{}")
	}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user)
	r.ServeHTTP(w, req)
	return w
}

// ---------- CreateThread ----------

func TestCreateThread_BadJSON_Success_SelectsActive(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _, sessions := newTestHandlers(t, &fakeModel{reply: "ok"})
	r := threadRouter(h)

	// Bad JSON -> 400
	w := doJSON(t, r, http.MethodPost, "/threads", "u1", "{bad")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// Success -> 201, title trimmed, thread becomes active in session
	w = doJSON(t, r, http.MethodPost, "/threads", "u1", `{"title":"   Sleep log  "}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create -> %d body=%s", w.Code, w.Body.String())
	}
	var out CreateThreadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Thread == nil || out.Thread.Title != "Sleep log" || out.Degraded {
		t.Fatalf("unexpected response: %#v", out)
	}
	if got := sessions.Get("u1").ActiveThreadID(); got != out.Thread.ID {
		t.Fatalf("active thread = %q, want %q", got, out.Thread.ID)
	}
}

func TestCreateThread_Degraded_StillReturnsThread(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, db, _ := newTestHandlers(t, &fakeModel{reply: "ok"})
	r := threadRouter(h)

	if err := db.Migrator().DropTable("threads"); err != nil {
		t.Fatalf("drop: %v", err)
	}

	w := doJSON(t, r, http.MethodPost, "/threads", "u1", `{"title":"Offline"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("degraded create -> %d body=%s", w.Code, w.Body.String())
	}
	var out CreateThreadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Thread == nil || !out.Degraded {
		t.Fatalf("expected degraded thread, got %#v", out)
	}
}

// ---------- ListThreads ----------

func TestListThreads_ETag304_and_SuccessPage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, db, _ := newTestHandlers(t, &fakeModel{reply: "ok"})
	r := threadRouter(h)

	if _, err := repo.CreateThread(context.Background(), db, "u1", "A"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.CreateThread(context.Background(), db, "u1", "B"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	count, maxTS, err := repo.ThreadsStats(context.Background(), db, "u1")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var ts int64
	if maxTS != nil {
		ts = maxTS.Unix()
	}
	etag := fmt.Sprintf(`W/"threads:%s:%d:%d"`, "u1", count, ts)

	// 304 path
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/threads", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("If-None-Match", etag)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotModified {
		t.Fatalf("etag 304 -> %d", w.Code)
	}

	// 200 success with pagination
	w = doJSON(t, r, http.MethodGet, "/threads?page=1&page_size=1", "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("list 200 -> %d body=%s", w.Code, w.Body.String())
	}
	var out ListThreadsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Pagination.Page != 1 || out.Pagination.PageSize != 1 || out.Pagination.Total != 2 {
		t.Fatalf("pagination mismatch: %#v", out.Pagination)
	}
	if out.Pagination.TotalPages != 2 || !out.Pagination.HasNext {
		t.Fatalf("pages/hasnext mismatch: %#v", out.Pagination)
	}
	if len(out.Threads) != 1 {
		t.Fatalf("expected 1 thread on page 1")
	}
}

// ---------- OpenThread ----------

func TestOpenThread_LoadsMessagesAndSelects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, db, sessions := newTestHandlers(t, &fakeModel{reply: "ok"})
	r := threadRouter(h)

	th, err := repo.CreateThread(context.Background(), db, "u1", "Evening check-in")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.CreateMessage(db, th.ID, "user", "hi"); err != nil {
		t.Fatalf("seed msg: %v", err)
	}
	if _, err := repo.CreateMessage(db, th.ID, "assistant", "hello"); err != nil {
		t.Fatalf("seed msg: %v", err)
	}

	w := doJSON(t, r, http.MethodGet, "/threads/"+th.ID, "u1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("open -> %d body=%s", w.Code, w.Body.String())
	}
	var out OpenThreadResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Thread == nil || out.Thread.ID != th.ID || len(out.Messages) != 2 {
		t.Fatalf("unexpected open response: %#v", out)
	}
	if got := sessions.Get("u1").ActiveThreadID(); got != th.ID {
		t.Fatalf("active thread = %q", got)
	}

	// Unknown id -> 404; malformed id -> 400
	if w := doJSON(t, r, http.MethodGet, "/threads/"+uuid.NewString(), "u1", ""); w.Code != http.StatusNotFound {
		t.Fatalf("unknown -> %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/threads/not-a-uuid", "u1", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed -> %d", w.Code)
	}
}

// ---------- UpdateThreadTitle ----------

func TestUpdateThreadTitle_Validation_Success_NotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, db, _ := newTestHandlers(t, &fakeModel{reply: "ok"})
	r := threadRouter(h)

	th, err := repo.CreateThread(context.Background(), db, "u1", "Old")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// bad UUID
	if w := doJSON(t, r, http.MethodPut, "/threads/not-uuid/title", "u1", `{"title":"x"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("uuid 400 -> %d", w.Code)
	}
	// empty title
	if w := doJSON(t, r, http.MethodPut, "/threads/"+th.ID+"/title", "u1", `{"title":"   "}`); w.Code != http.StatusBadRequest {
		t.Fatalf("empty title 400 -> %d", w.Code)
	}
	// success
	if w := doJSON(t, r, http.MethodPut, "/threads/"+th.ID+"/title", "u1", `{"title":"New Name"}`); w.Code != http.StatusNoContent {
		t.Fatalf("204 -> %d", w.Code)
	}
	got, err := repo.GetThread(context.Background(), db, th.ID, "u1")
	if err != nil || got.Title != "New Name" {
		t.Fatalf("rename not stored: %#v err=%v", got, err)
	}
	// foreign user -> 404
	if w := doJSON(t, r, http.MethodPut, "/threads/"+th.ID+"/title", "intruder", `{"title":"X"}`); w.Code != http.StatusNotFound {
		t.Fatalf("foreign -> %d", w.Code)
	}
}

// ---------- two-step deletion ----------

func TestThreadDelete_TwoStepFlow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, db, _ := newTestHandlers(t, &fakeModel{reply: "ok"})
	r := threadRouter(h)

	th, err := repo.CreateThread(context.Background(), db, "u1", "Doomed")
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	// Confirm without request -> 409
	if w := doJSON(t, r, http.MethodPost, "/threads/"+th.ID+"/delete-confirm", "u1", ""); w.Code != http.StatusConflict {
		t.Fatalf("confirm without request -> %d", w.Code)
	}

	// Request then confirm -> 204, row gone
	if w := doJSON(t, r, http.MethodPost, "/threads/"+th.ID+"/delete-request", "u1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("request -> %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/threads/"+th.ID+"/delete-confirm", "u1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("confirm -> %d", w.Code)
	}
	if _, err := repo.GetThread(context.Background(), db, th.ID, "u1"); err == nil {
		t.Fatalf("thread should be deleted")
	}
}

func TestThreadDelete_StaleConfirm_And_Cancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, db, _ := newTestHandlers(t, &fakeModel{reply: "ok"})
	r := threadRouter(h)

	a, _ := repo.CreateThread(context.Background(), db, "u1", "Keep A")
	b, _ := repo.CreateThread(context.Background(), db, "u1", "Keep B")

	// Arm for A, confirm B -> 409, both survive
	if w := doJSON(t, r, http.MethodPost, "/threads/"+a.ID+"/delete-request", "u1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("request -> %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/threads/"+b.ID+"/delete-confirm", "u1", ""); w.Code != http.StatusConflict {
		t.Fatalf("stale confirm -> %d", w.Code)
	}
	if _, err := repo.GetThread(context.Background(), db, a.ID, "u1"); err != nil {
		t.Fatalf("thread A gone: %v", err)
	}
	if _, err := repo.GetThread(context.Background(), db, b.ID, "u1"); err != nil {
		t.Fatalf("thread B gone: %v", err)
	}

	// The stale confirm disarmed the request: confirming A now conflicts too.
	if w := doJSON(t, r, http.MethodPost, "/threads/"+a.ID+"/delete-confirm", "u1", ""); w.Code != http.StatusConflict {
		t.Fatalf("disarmed confirm -> %d", w.Code)
	}

	// Request then cancel -> confirm conflicts again
	doJSON(t, r, http.MethodPost, "/threads/"+a.ID+"/delete-request", "u1", "")
	if w := doJSON(t, r, http.MethodPost, "/threads/"+a.ID+"/delete-cancel", "u1", ""); w.Code != http.StatusNoContent {
		t.Fatalf("cancel -> %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/threads/"+a.ID+"/delete-confirm", "u1", ""); w.Code != http.StatusConflict {
		t.Fatalf("confirm after cancel -> %d", w.Code)
	}
}
