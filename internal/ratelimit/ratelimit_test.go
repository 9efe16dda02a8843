package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/aimerfeng/StarReviews/internal/cache"
	"github.com/aimerfeng/StarReviews/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"pgregory.net/rapid"
)

var testRedis *cache.Redis

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	var err error
	testRedis, err = cache.NewFromURL(redisURL)
	if err != nil {
		fmt.Printf("Warning: Failed to connect to test Redis: %v\n", err)
		testRedis = nil
	}

	code := m.Run()

	if testRedis != nil {
		testRedis.Close()
	}
	os.Exit(code)
}

// TestProperty_SubmissionLimit tests that a client gets exactly Limit submissions per window
// *For any* limit, the first Limit checks SHALL be allowed and the next SHALL be rejected.
func TestProperty_SubmissionLimit(t *testing.T) {
	if testRedis == nil {
		t.Skip("Test Redis not available")
	}

	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		limit := rapid.IntRange(1, 10).Draw(rt, "limit")
		l := New(testRedis, &config.RateLimitConfig{Enabled: true, Limit: limit, WindowSeconds: 60})
		client := "test-" + uuid.New().String()
		defer l.Reset(ctx, client)

		for i := 0; i < limit; i++ {
			res, err := l.Check(ctx, client)
			if err != nil {
				rt.Fatalf("Check failed: %v", err)
			}
			if !res.Allowed {
				rt.Fatalf("PROPERTY VIOLATION: attempt %d of %d rejected", i+1, limit)
			}
			if res.Remaining != int64(limit-i-1) {
				rt.Fatalf("PROPERTY VIOLATION: remaining %d after %d attempts", res.Remaining, i+1)
			}
		}

		res, err := l.Check(ctx, client)
		if err != nil {
			rt.Fatalf("Check failed: %v", err)
		}
		if res.Allowed || res.RetryAfter <= 0 {
			rt.Fatalf("PROPERTY VIOLATION: attempt over limit allowed=%v retry=%v", res.Allowed, res.RetryAfter)
		}
	})
}

func TestMiddleware_Returns429(t *testing.T) {
	if testRedis == nil {
		t.Skip("Test Redis not available")
	}

	l := New(testRedis, &config.RateLimitConfig{Enabled: true, Limit: 1, WindowSeconds: 60})
	client := "192.0.2.10"
	defer l.Reset(context.Background(), client)

	router := gin.New()
	router.POST("/reviews", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusCreated) })

	codes := make([]int, 2)
	for i := range codes {
		req := httptest.NewRequest("POST", "/reviews", nil)
		req.RemoteAddr = client + ":1234"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		codes[i] = w.Code
	}

	if codes[0] != http.StatusCreated || codes[1] != http.StatusTooManyRequests {
		t.Errorf("Expected [201 429], got %v", codes)
	}
}

func TestRetryAfterSeconds_RoundsUp(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Second, "1"},
		{1900 * time.Millisecond, "2"},
		{1001 * time.Millisecond, "2"},
		{time.Hour, "3600"},
	}

	for _, tt := range tests {
		if got := retryAfterSeconds(tt.in); got != tt.want {
			t.Errorf("retryAfterSeconds(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
