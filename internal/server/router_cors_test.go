package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCORSMiddlewareAllowsConfiguredOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware([]string{"https://draw.example.com"}))
	router.GET("/api/rooms", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodOptions, "/api/rooms", http.NoBody)
	request.Header.Set("Origin", "https://draw.example.com")
	request.Header.Set("Access-Control-Request-Method", http.MethodGet)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://draw.example.com" {
		t.Fatalf("expected origin to be echoed, got %q", got)
	}

	rejected := httptest.NewRequest(http.MethodGet, "/api/rooms", http.NoBody)
	rejected.Header.Set("Origin", "https://evil.example.com")
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, rejected)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected foreign origin to be rejected, got %d", recorder.Code)
	}
}

func TestCORSMiddlewareWildcard(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(corsMiddleware([]string{"*"}))
	router.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
	request.Header.Set("Origin", "https://anywhere.example.com")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://draw.example.com"})

	request := httptest.NewRequest(http.MethodGet, "/ws", http.NoBody)
	if !check(request) {
		t.Fatal("requests without an origin should pass")
	}
	request.Header.Set("Origin", "https://draw.example.com")
	if !check(request) {
		t.Fatal("configured origin should pass")
	}
	request.Header.Set("Origin", "https://evil.example.com")
	if check(request) {
		t.Fatal("foreign origin should be refused")
	}
}
