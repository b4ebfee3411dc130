// Package idempotency rejects replays of the same checkout request.
package idempotency

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"grocery-checkout/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Header is the request header clients put their idempotency key in.
const Header = "Idempotency-Key"

const DefaultTTL = 24 * time.Hour

// Guard remembers claimed keys in Redis for ttl.
type Guard struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewGuard(rdb redis.Cmdable, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{rdb: rdb, ttl: ttl}
}

func redisKey(userID uint, key string) string {
	return fmt.Sprintf("idempotent-key:%d:%s", userID, key)
}

// Claim reports true the first time a user presents key within the TTL.
func (g *Guard) Claim(ctx context.Context, userID uint, key string) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, redisKey(userID, key), "exists", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("idempotency: claim: %w", err)
	}
	return ok, nil
}

// Release forgets key so a failed request can be retried with it.
func (g *Guard) Release(ctx context.Context, userID uint, key string) error {
	if err := g.rdb.Del(ctx, redisKey(userID, key)).Err(); err != nil {
		return fmt.Errorf("idempotency: release: %w", err)
	}
	return nil
}

// Middleware guards a route. It must run after authentication because keys
// are scoped to the authenticated user id. Requests without the header
// pass through; when Redis is unreachable the request is let through too.
func Middleware(g *Guard, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(Header)
		if key == "" {
			c.Next()
			return
		}
		userID := c.GetUint(middleware.UserIDKey)

		claimed, err := g.Claim(c.Request.Context(), userID, key)
		if err != nil {
			log.Warn().Err(err).Uint("user_id", userID).Msg("idempotency check skipped")
			c.Next()
			return
		}
		if !claimed {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error": "a request with this Idempotency-Key was already processed",
				"code":  "DUPLICATE_REQUEST",
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := g.Release(context.WithoutCancel(c.Request.Context()), userID, key); err != nil {
				log.Warn().Err(err).Uint("user_id", userID).Msg("failed to release idempotency key")
			}
		}
	}
}
