package admin

import (
	handlershared "github.com/referral-ledger/internal/http/handlers/shared"
	"github.com/referral-ledger/internal/http/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, key string, err error) {
	handlershared.RespondError(c, code, key, err)
}

func respondMapped(c *gin.Context, err error, fallbackKey string) {
	handlershared.RespondWithMappedError(c, err, handlershared.ReferralErrorRules, response.CodeInternal, fallbackKey)
}
