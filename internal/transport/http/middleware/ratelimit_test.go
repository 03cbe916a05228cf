package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	redisv9 "github.com/redis/go-redis/v9"
)

func newLimitedRouter(t *testing.T, limit int, window time.Duration) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ping", RateLimit(client, "test", limit, window, "too many requests"), func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})
	return router, mr
}

func doPing(router *gin.Engine) int {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimitBlocksOverLimit(t *testing.T) {
	router, _ := newLimitedRouter(t, 3, time.Minute)

	for i := 0; i < 3; i++ {
		if code := doPing(router); code != http.StatusOK {
			t.Fatalf("request %d: want=200 got=%d", i+1, code)
		}
	}
	if code := doPing(router); code != http.StatusTooManyRequests {
		t.Fatalf("over limit: want=429 got=%d", code)
	}
}

func TestRateLimitWindowExpires(t *testing.T) {
	router, mr := newLimitedRouter(t, 1, time.Minute)

	if code := doPing(router); code != http.StatusOK {
		t.Fatalf("first request: got %d", code)
	}
	if code := doPing(router); code != http.StatusTooManyRequests {
		t.Fatalf("second request: want=429 got=%d", code)
	}

	mr.FastForward(time.Minute + time.Second)
	if code := doPing(router); code != http.StatusOK {
		t.Fatalf("after window: want=200 got=%d", code)
	}
}

func TestRateLimitCounterAlwaysCarriesTTL(t *testing.T) {
	router, mr := newLimitedRouter(t, 100, time.Minute)

	if code := doPing(router); code != http.StatusOK {
		t.Fatalf("first request: got %d", code)
	}
	keys := mr.Keys()
	if len(keys) != 1 {
		t.Fatalf("want 1 counter key, got %v", keys)
	}
	key := keys[0]
	if mr.TTL(key) <= 0 {
		t.Fatalf("counter has no expiry")
	}

	// A counter that somehow lost its TTL gets one back on the next request
	// instead of throttling the client forever.
	mr.Del(key)
	if err := mr.Set(key, "50"); err != nil {
		t.Fatalf("reset counter: %v", err)
	}
	if code := doPing(router); code != http.StatusOK {
		t.Fatalf("repair request: got %d", code)
	}
	if mr.TTL(key) <= 0 {
		t.Fatalf("expiry not restored on stuck counter")
	}
}

func TestRateLimitFailsOpenWhenRedisDown(t *testing.T) {
	router, mr := newLimitedRouter(t, 1, time.Minute)
	mr.Close()

	for i := 0; i < 3; i++ {
		if code := doPing(router); code != http.StatusOK {
			t.Fatalf("request %d with redis down: want=200 got=%d", i+1, code)
		}
	}
}
