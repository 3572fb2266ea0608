package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mx-space/viewblock/internal/pkg/redis"
	"go.uber.org/zap"
)

const (
	idempotenceHeader = "x-idempotence"
	idempotenceTTL    = 60 * time.Second
	idempotencePrefix = "views:idempotence:"
)

// Idempotence rejects a repeated write (same caller, path and body) while the
// first one is running or within a minute of it succeeding. A nil client disables it.
func Idempotence(rdb *redis.Client, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || c.Request.Method == http.MethodGet {
			c.Next()
			return
		}

		key, err := resolveIdempotenceKey(c)
		if err != nil || key == "" {
			c.Next()
			return
		}

		redisKey := idempotencePrefix + key
		ctx := c.Request.Context()

		acquired, err := rdb.Raw().SetNX(ctx, redisKey, "0", idempotenceTTL).Result()
		if err != nil {
			log.Warn("idempotence check failed", zap.Error(err))
			c.Next()
			return
		}
		if !acquired {
			msg := "an identical request succeeded less than a minute ago"
			if val, _, _ := rdb.Get(ctx, redisKey); val == "0" {
				msg = "an identical request is still being processed"
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"ok":      0,
				"code":    http.StatusConflict,
				"message": msg,
			})
			return
		}

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 {
			_ = rdb.Set(ctx, redisKey, "1", idempotenceTTL)
		} else {
			_ = rdb.Del(ctx, redisKey)
		}
	}
}

// resolveIdempotenceKey returns the idempotence key for the current request.
func resolveIdempotenceKey(c *gin.Context) (string, error) {
	if hdr := c.GetHeader(idempotenceHeader); hdr != "" {
		return hdr, nil
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return "", err
	}
	c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

	raw := fmt.Sprintf("%s|%s|%s|%s", c.Request.Method, c.Request.URL.String(), body, CurrentUserID(c))
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:]), nil
}
