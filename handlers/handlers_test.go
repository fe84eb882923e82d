package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type fakePinger struct {
	err error
}

func (p *fakePinger) Ping() error { return p.err }

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/api/v3/sync/property", h.SyncProperty)
	router.GET("/health", h.HealthCheck)
	return router
}

func TestSyncProperty_RequestValidation(t *testing.T) {
	// Validation rejects these before the orchestrator is touched.
	h := NewHandlers(nil, &fakePinger{})
	router := newRouter(h)

	testCases := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: "{not json"},
		{name: "missing authorities", body: `{"building_id": "1001234"}`},
		{name: "missing identifiers", body: `{"authorities": ["DOB"]}`},
	}

	for _, testCase := range testCases {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("POST", "/api/v3/sync/property", strings.NewReader(testCase.body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want %d", testCase.name, w.Code, http.StatusBadRequest)
		}
		if !strings.Contains(w.Body.String(), `"success":false`) {
			t.Errorf("%s: expected a failure body, got %s", testCase.name, w.Body.String())
		}
	}
}

func TestHealthCheck(t *testing.T) {
	testCases := []struct {
		name     string
		pingErr  error
		expected int
	}{
		{name: "healthy", pingErr: nil, expected: http.StatusOK},
		{name: "database down", pingErr: fmt.Errorf("connection refused"), expected: http.StatusServiceUnavailable},
	}

	for _, testCase := range testCases {
		h := NewHandlers(nil, &fakePinger{err: testCase.pingErr})
		router := newRouter(h)

		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)

		if w.Code != testCase.expected {
			t.Errorf("%s: status = %d, want %d", testCase.name, w.Code, testCase.expected)
		}
		if !strings.Contains(w.Body.String(), `"service":"regsync"`) {
			t.Errorf("%s: expected service field in body, got %s", testCase.name, w.Body.String())
		}
	}
}
