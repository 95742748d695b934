package public

import (
	"strings"

	handlershared "github.com/referral-ledger/internal/http/handlers/shared"
	"github.com/referral-ledger/internal/http/response"
	"github.com/referral-ledger/internal/logger"

	"github.com/gin-gonic/gin"
)

// authorizeCaller 调用方为目标用户本人时放行，否则要求具备对应路由权限
func (h *Handler) authorizeCaller(c *gin.Context, callerID, targetUserID, object, action string) bool {
	if strings.TrimSpace(targetUserID) == "" || callerID == strings.TrimSpace(targetUserID) {
		return true
	}
	if h.AuthzService != nil {
		allowed, err := h.AuthzService.EnforceUser(callerID, object, action)
		if err != nil {
			logger.Ctx(c.Request.Context()).Errorw("referral_caller_authz_failed",
				"caller_id", callerID,
				"object", object,
				"error", err,
			)
		}
		if err == nil && allowed {
			return true
		}
	}
	handlershared.RespondError(c, response.CodeForbidden, "error.forbidden", nil)
	return false
}

// callerEmailOr 令牌中的邮箱优先，令牌未携带时才使用请求中的邮箱
func callerEmailOr(c *gin.Context, requested string) string {
	if email := strings.TrimSpace(handlershared.GetCallerEmail(c)); email != "" {
		return email
	}
	return strings.TrimSpace(requested)
}
