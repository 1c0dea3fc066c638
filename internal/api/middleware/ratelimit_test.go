package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/airalert/airalert/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doFrom(handler http.Handler, ip, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, http.NoBody)
	req.RemoteAddr = ip
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 3,
		WindowLength: time.Minute,
	})(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doFrom(handler, "10.0.0.1:12345", "/test").Code, "request %d", i+1)
	}

	rec := doFrom(handler, "10.0.0.1:12345", "/test")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimitByIP_DifferentIPsHaveSeparateLimits(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 1,
		WindowLength: time.Minute,
	})(okHandler())

	assert.Equal(t, http.StatusOK, doFrom(handler, "172.16.0.1:12345", "/test").Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(handler, "172.16.0.1:12345", "/test").Code)
	assert.Equal(t, http.StatusOK, doFrom(handler, "172.16.0.2:12345", "/test").Code)
}

func TestRateLimitExceededResponse_Format(t *testing.T) {
	handler := middleware.RequestID(middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 1,
		WindowLength: 30 * time.Second,
	})(okHandler()))

	doFrom(handler, "203.0.113.1:12345", "/telegram/webhook")
	rec := doFrom(handler, "203.0.113.1:12345", "/telegram/webhook")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	body := rec.Body.String()
	assert.Contains(t, body, "too-many-requests")
	assert.Contains(t, body, "/telegram/webhook")
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 120, middleware.WebhookRateLimit.RequestLimit)
	assert.Equal(t, time.Minute, middleware.WebhookRateLimit.WindowLength)
	assert.Equal(t, 60, middleware.OpsRateLimit.RequestLimit)
}
