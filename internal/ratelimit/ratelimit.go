package ratelimit

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/aimerfeng/StarReviews/internal/cache"
	"github.com/aimerfeng/StarReviews/internal/config"
	apierrors "github.com/aimerfeng/StarReviews/internal/errors"
	"github.com/aimerfeng/StarReviews/internal/middleware"
	"github.com/aimerfeng/StarReviews/internal/monitoring"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Limiter limits review submissions per client with a redis sliding window
type Limiter struct {
	redis  *cache.Redis
	limit  int
	window time.Duration
	now    func() time.Time
}

// Result contains the result of a rate limit check
type Result struct {
	Allowed    bool
	Remaining  int64
	Limit      int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// New creates a limiter
func New(r *cache.Redis, cfg *config.RateLimitConfig) *Limiter {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if window <= 0 {
		window = time.Hour
	}
	return &Limiter{
		redis:  r,
		limit:  cfg.Limit,
		window: window,
		now:    time.Now,
	}
}

func (l *Limiter) key(client string) string {
	return fmt.Sprintf("ratelimit:reviews:%s", client)
}

// Check records one submission attempt for client and reports whether it is allowed
func (l *Limiter) Check(ctx context.Context, client string) (*Result, error) {
	now := l.now()
	windowStart := now.Add(-l.window)
	key := l.key(client)

	// Score = timestamp, Member = unique attempt ID
	pipe := l.redis.Client.Pipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Error().Err(err).Str("client", client).Msg("Failed to check rate limit")
		// On redis error, allow the submission (fail open)
		return &Result{
			Allowed:   true,
			Remaining: int64(l.limit),
			Limit:     l.limit,
		}, nil
	}

	count := countCmd.Val()
	result := &Result{
		Limit:   l.limit,
		ResetAt: now.Add(l.window),
	}

	if count >= int64(l.limit) {
		result.Allowed = false
		result.RetryAfter = l.window

		oldest, err := l.redis.Client.ZRangeWithScores(ctx, key, 0, 0).Result()
		if err == nil && len(oldest) > 0 {
			oldestTime := time.Unix(0, int64(oldest[0].Score))
			result.RetryAfter = oldestTime.Add(l.window).Sub(now)
			if result.RetryAfter < time.Second {
				result.RetryAfter = time.Second
			}
		}
		return result, nil
	}

	err := l.redis.Client.ZAdd(ctx, key, redis.Z{
		Score:  float64(now.UnixNano()),
		Member: fmt.Sprintf("%d-%s", now.UnixNano(), client),
	}).Err()
	if err != nil {
		log.Warn().Err(err).Str("client", client).Msg("Failed to add rate limit entry")
	}
	l.redis.Client.Expire(ctx, key, l.window*2)

	result.Allowed = true
	result.Remaining = int64(l.limit) - count - 1
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	return result, nil
}

// Reset clears the window for client
func (l *Limiter) Reset(ctx context.Context, client string) error {
	return l.redis.Client.Del(ctx, l.key(client)).Err()
}

// Middleware rejects submissions over the limit with 429, keyed by client IP
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := l.Check(c.Request.Context(), c.ClientIP())
		if err != nil || result.Allowed {
			if result != nil {
				c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
			}
			c.Next()
			return
		}

		monitoring.RecordRateLimitHit()
		c.Header("Retry-After", retryAfterSeconds(result.RetryAfter))
		middleware.RespondError(c, &apierrors.APIError{
			Code:       apierrors.ErrRateLimited,
			Message:    "Too many reviews, try again later",
			HTTPStatus: http.StatusTooManyRequests,
		})
		c.Abort()
	}
}

// retryAfterSeconds rounds d up to whole seconds for the Retry-After header
func retryAfterSeconds(d time.Duration) string {
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}
