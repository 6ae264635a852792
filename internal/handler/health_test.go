package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := &HealthHandler{}
	h.Register(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("code=%d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"code":0`) || !strings.Contains(body, `"status":"ok"`) {
		t.Fatalf("body=%s", body)
	}
}

func TestReadyz_NoDatabase(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	h := &HealthHandler{}
	h.Register(engine)

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("code=%d want 503", w.Code)
	}
}
