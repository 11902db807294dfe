package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/use-agent/sillage/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestLimiterStore_PerIdentityBuckets(t *testing.T) {
	s := newLimiterStore(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	now := time.Now()

	ok, _ := s.reserve("a", now)
	assert.True(t, ok)
	ok, _ = s.reserve("a", now)
	assert.True(t, ok)
	ok, wait := s.reserve("a", now)
	assert.False(t, ok)
	assert.InDelta(t, time.Second, wait, float64(50*time.Millisecond))

	ok, _ = s.reserve("b", now)
	assert.True(t, ok, "identities do not share a bucket")

	ok, _ = s.reserve("a", now.Add(time.Second))
	assert.True(t, ok, "bucket refills")
}

func TestLimiterStore_Sweep(t *testing.T) {
	s := newLimiterStore(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	now := time.Now()
	s.reserve("old", now.Add(-2*time.Hour))
	s.reserve("new", now)

	s.sweep(now.Add(-time.Hour))
	assert.Equal(t, 1, s.size())
}

func TestKnownKey(t *testing.T) {
	keys := [][]byte{[]byte("alpha"), []byte("beta")}
	assert.True(t, knownKey(keys, "beta"))
	assert.False(t, knownKey(keys, "gamma"))
	assert.False(t, knownKey(keys, "alph"))
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := gin.New()
	r.GET("/x", Auth(nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDContextKey)) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Regexp(t, `^[0-9a-f-]{36}$`, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Body.String())
}
