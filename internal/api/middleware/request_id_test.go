package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/airalert/airalert/internal/api/middleware"
)

func serveRequestID(t *testing.T, incoming string) (ctxID, headerID string) {
	t.Helper()
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = middleware.GetRequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	if incoming != "" {
		req.Header.Set(middleware.RequestIDHeader, incoming)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	return ctxID, w.Header().Get(middleware.RequestIDHeader)
}

func TestRequestID_GeneratesNewID(t *testing.T) {
	ctxID, headerID := serveRequestID(t, "")

	assert.True(t, strings.HasPrefix(ctxID, "req_"))
	assert.Equal(t, ctxID, headerID)
}

func TestRequestID_PreservesExistingID(t *testing.T) {
	ctxID, headerID := serveRequestID(t, "existing_request_id")

	assert.Equal(t, "existing_request_id", ctxID)
	assert.Equal(t, "existing_request_id", headerID)
}

func TestRequestID_ReplacesUnusableID(t *testing.T) {
	for _, incoming := range []string{strings.Repeat("x", 65), "has space", "bad\x01id"} {
		ctxID, _ := serveRequestID(t, incoming)
		assert.True(t, strings.HasPrefix(ctxID, "req_"), "incoming %q", incoming)
	}
}

func TestGetRequestID_ReturnsEmptyStringForMissingContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetRequestID(req.Context()))
}

func TestRequestID_UniqueIDs(t *testing.T) {
	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, _ := serveRequestID(t, "")
		assert.False(t, ids[id], "duplicate request ID generated: %s", id)
		ids[id] = true
	}
}
