package httpmiddleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func TestTokenBucketRefills(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(ctx, "a"); !ok {
			t.Fatalf("request %d denied", i)
		}
	}
	if ok, _ := l.Allow(ctx, "a"); ok {
		t.Fatal("third request allowed with capacity 2")
	}
	if ok, _ := l.Allow(ctx, "b"); !ok {
		t.Fatal("independent key denied")
	}

	now = now.Add(2 * time.Second)
	if ok, _ := l.Allow(ctx, "a"); !ok {
		t.Error("request denied after refill")
	}
}

func TestTokenBucketForgetsIdleClients(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := start
	l := NewTokenBucket(2, 60)
	l.now = func() time.Time { return now }

	for _, key := range []string{"a", "b", "c"} {
		l.Allow(ctx, key)
	}
	if n := len(l.state); n != 3 {
		t.Fatalf("buckets = %d, want 3", n)
	}

	now = start.Add(90 * time.Second)
	l.Allow(ctx, "d")
	l.Allow(ctx, "d")
	l.Allow(ctx, "d")
	if n := len(l.state); n != 1 {
		t.Fatalf("buckets after sweep = %d, want 1", n)
	}
	if ok, _ := l.Allow(ctx, "d"); ok {
		t.Error("exhausted client allowed before refill")
	}

	now = now.Add(30 * time.Second)
	l.Allow(ctx, "e")
	if _, ok := l.state["d"]; !ok {
		t.Error("bucket swept before the sweep interval elapsed")
	}
}

func TestRedisWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 10, 0, time.UTC)
	l := NewRedisWindow(client, "rl:", 2)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !ok {
			t.Fatalf("request %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := l.Allow(ctx, "10.0.0.1"); ok {
		t.Fatal("third request in window allowed")
	}

	now = now.Add(time.Minute)
	if ok, err := l.Allow(ctx, "10.0.0.1"); err != nil || !ok {
		t.Errorf("next window: ok=%v err=%v", ok, err)
	}
	if ttl := mr.TTL("rl:10.0.0.1:" + itoa(now.Unix()/60)); ttl <= 0 {
		t.Errorf("window key ttl = %v, want positive", ttl)
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	limited := gin.New()
	limited.Use(RateLimit(NewTokenBucket(1, 1)))
	limited.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := []int{}
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		limited.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want [200 429]", codes)
	}

	open := gin.New()
	open.Use(RateLimit(failingLimiter{}))
	open.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("limiter error status = %d, want 200", w.Code)
	}
}
