package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	dedupeKeyPrefix = "dedupe:update:"
	dedupeTTL       = 24 * time.Hour
)

// DedupeStore is the slice of the Redis client the dedupe middleware needs.
type DedupeStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ DedupeStore = (*redis.Client)(nil)

// updateEnvelope pulls just the update identifier out of the webhook body.
type updateEnvelope struct {
	UpdateID *int64 `json:"update_id"`
}

// UpdateDedupeMiddleware drops replayed webhook updates. Telegram re-sends
// an update until it gets a 2xx, so after a slow handler the same update can
// arrive twice; the SetNX marker makes the second delivery a no-op. When the
// handler fails with a 5xx the marker is cleared again, so the transport's
// retry of an unprocessed update is let through rather than swallowed.
func UpdateDedupeMiddleware(store DedupeStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatus(http.StatusBadRequest)
			return
		}
		// The handler needs to re-read the body.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		var envelope updateEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil || envelope.UpdateID == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		key := dedupeKeyPrefix + strconv.FormatInt(*envelope.UpdateID, 10)

		first, err := store.SetNX(ctx, key, "1", dedupeTTL).Result()
		if err != nil {
			// Fail open when redis is unavailable.
			c.Next()
			return
		}
		if !first {
			c.JSON(http.StatusOK, gin.H{"ok": true, "duplicate": true})
			c.Abort()
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusInternalServerError {
			// The request context may already be gone by now.
			store.Del(context.Background(), key)
		}
	}
}
