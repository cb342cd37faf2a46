package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tamrstore/storefront/pkg/logger"
)

func limitedHandler(rps float64, burst int) http.Handler {
	l := logger.NewWithWriter("test", "error", io.Discard)
	return RateLimit(rps, burst, ShopperOrIP, l)(http.HandlerFunc(ok))
}

func requestAs(shopper string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	if shopper != "" {
		req.Header.Set(UserIDHeader, shopper)
	}
	return req
}

func TestRateLimit_BurstThenRejects(t *testing.T) {
	h := limitedHandler(0.001, 2)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestAs("s1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("s1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestRateLimit_SeparateBucketsPerShopper(t *testing.T) {
	h := limitedHandler(0.001, 1)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("s1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, requestAs("s2"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_DisabledWhenRPSNotPositive(t *testing.T) {
	h := limitedHandler(0, 1)

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestAs("s1"))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestLimiterStore_SweepsIdleBuckets(t *testing.T) {
	s := newLimiterStore(1, 1, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.get("a")
	s.get("b")
	assert.Equal(t, 2, s.len())

	now = now.Add(2 * time.Minute)
	s.get("b")
	assert.Equal(t, 1, s.len())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", ClientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	assert.Equal(t, "10.0.0.2", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage, 203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(req))

	assert.Equal(t, "ip:203.0.113.7", ShopperOrIP(req))
	req.Header.Set(UserIDHeader, "s1")
	assert.Equal(t, "shopper:s1", ShopperOrIP(req))
}
