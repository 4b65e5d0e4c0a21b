package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAllow_BurstThenThrottle(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, BurstSize: 3, CleanupInterval: time.Minute})
	defer l.Stop()

	assert.True(t, l.Allow("client"))
	assert.True(t, l.Allow("client"))
	assert.True(t, l.Allow("client"))
	assert.False(t, l.Allow("client"), "burst exhausted")
}

func TestAllow_KeysIndependent(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})
	defer l.Stop()

	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"), "a's bucket must not affect b")
}

func TestAllowN_HigherPlanRate(t *testing.T) {
	l := New(Config{RequestsPerMinute: 1, BurstSize: 2, CleanupInterval: time.Minute})
	defer l.Stop()

	assert.True(t, l.AllowN("org", 6000))
	assert.True(t, l.AllowN("org", 6000))
	// 6000 rpm refills 100 tokens/sec; after a short sleep we can go again.
	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.AllowN("org", 6000))
}

func TestMiddleware_Returns429(t *testing.T) {
	l := New(Config{RequestsPerMinute: 60, BurstSize: 1, CleanupInterval: time.Minute})
	defer l.Stop()

	router := gin.New()
	router.Use(l.Middleware())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	router.ServeHTTP(first, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	router.ServeHTTP(second, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
