package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// SendLimiter is the shared sliding-window counter, normally backed by
// the Redis record store so the limit holds across server instances.
type SendLimiter interface {
	AllowSend(ctx context.Context, userID string, limit int, window time.Duration) (bool, error)
}

// RateLimiter gates message sends: a shared counter when available, a
// per-process token bucket otherwise.
type RateLimiter struct {
	shared SendLimiter
	limit  int
	window time.Duration

	mu    sync.Mutex
	local map[uuid.UUID]*rate.Limiter
}

// NewRateLimiter allows limit sends per rolling window per user. shared
// may be nil, in which case only the local fallback applies.
func NewRateLimiter(shared SendLimiter, limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		shared: shared,
		limit:  limit,
		window: window,
		local:  make(map[uuid.UUID]*rate.Limiter),
	}
}

// Allow reports whether the user may send now.
func (rl *RateLimiter) Allow(ctx context.Context, userID uuid.UUID) bool {
	if rl.shared != nil {
		ok, err := rl.shared.AllowSend(ctx, userID.String(), rl.limit, rl.window)
		if err == nil {
			return ok
		}
		// Shared counter unreachable; fall through to the local bucket.
	}

	rl.mu.Lock()
	limiter, exists := rl.local[userID]
	if !exists {
		limiter = rate.NewLimiter(rate.Every(rl.window/time.Duration(rl.limit)), rl.limit)
		rl.local[userID] = limiter
	}
	if len(rl.local) > 10000 {
		rl.local = map[uuid.UUID]*rate.Limiter{userID: limiter}
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// RateLimitMiddleware rejects sends over the per-user limit.
func RateLimitMiddleware(rl *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("user_id")
		if !exists {
			c.Next()
			return
		}
		uid, ok := userID.(uuid.UUID)
		if !ok {
			c.Next()
			return
		}

		if !rl.Allow(c.Request.Context(), uid) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
