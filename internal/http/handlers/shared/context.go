package shared

import (
	"strings"

	"github.com/referral-ledger/internal/constants"
	"github.com/referral-ledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetCallerID 读取鉴权中间件写入的用户 ID，缺失时返回 401。
func GetCallerID(c *gin.Context) (string, bool) {
	value, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return "", false
	}
	id, ok := value.(string)
	if !ok || strings.TrimSpace(id) == "" {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return "", false
	}
	return id, true
}

// GetCallerEmail 读取令牌中的邮箱，可能为空。
func GetCallerEmail(c *gin.Context) string {
	if value, ok := c.Get(constants.ContextKeyUserEmail); ok {
		if email, ok := value.(string); ok {
			return email
		}
	}
	return ""
}
