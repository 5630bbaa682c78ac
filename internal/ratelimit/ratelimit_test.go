package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func serve(handler http.Handler, ip string) int {
	request := httptest.NewRequest(http.MethodGet, "/ping", nil)
	request.Header.Set("X-Real-IP", ip)
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder.Code
}

func TestHandlerLimitsPerClient(t *testing.T) {
	limiter := New(1, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, serve(handler, "10.0.0.1"))
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.2"))

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1"))
}

func TestDisabled(t *testing.T) {
	handler := New(0, 0).Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 100; i++ {
		assert.Equal(t, http.StatusOK, serve(handler, "10.0.0.1"))
	}
}

func TestForget(t *testing.T) {
	limiter := New(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.allow("a")
	now = now.Add(time.Minute)
	limiter.allow("b")

	assert.Equal(t, 1, limiter.Forget(30*time.Second))
	assert.Len(t, limiter.visitors, 1)
}
