package router

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/http/response"
	"github.com/referral-ledger/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
}

var rateLimitScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("TTL", KEYS[1])
return {current, ttl}
`)

// RateLimitMiddleware Redis 固定窗口限流，必须挂在推荐业务处理之前
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || rule.WindowSeconds <= 0 || rule.MaxRequests <= 0 {
			c.Next()
			return
		}

		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}
		if rule.Prefix != "" {
			key = fmt.Sprintf("%s:%s", rule.Prefix, key)
		}

		result, err := rateLimitScript.Run(c.Request.Context(), client, []string{key}, rule.WindowSeconds).Result()
		if err != nil {
			logger.Ctx(c.Request.Context()).Errorw("rate_limit_script_failed", "key", key, "error", err)
			abortWithKey(c, response.CodeInternal, "error.internal")
			return
		}

		values, ok := result.([]interface{})
		if !ok || len(values) < 2 {
			abortWithKey(c, response.CodeInternal, "error.internal")
			return
		}
		count, ok := toInt64(values[0])
		if !ok {
			abortWithKey(c, response.CodeInternal, "error.internal")
			return
		}
		ttlSeconds, _ := toInt64(values[1])
		if count > int64(rule.MaxRequests) {
			waitSeconds := int(ttlSeconds)
			if waitSeconds < 1 {
				waitSeconds = rule.WindowSeconds
			}
			c.Header("Retry-After", strconv.Itoa(waitSeconds))
			logger.Ctx(c.Request.Context()).Warnw("rate_limit_exceeded",
				"key", key,
				"count", count,
				"limit", rule.MaxRequests,
			)
			abortWithKey(c, response.CodeTooManyRequests, "error.too_many_requests")
			return
		}

		c.Next()
	}
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByCallerOrIP 已鉴权时按用户限流，否则按 IP
func KeyByCallerOrIP(c *gin.Context) string {
	if callerID := strings.TrimSpace(c.GetString(constants.ContextKeyUserID)); callerID != "" {
		return "user:" + callerID
	}
	return "ip:" + c.ClientIP()
}

func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}
